package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pageassist/internal/chat/ports"
	pkgerrors "pageassist/internal/errors"
	"pageassist/internal/prompts"
	"pageassist/internal/rag"
	"pageassist/internal/websearch"
)

const retrievalTopK = 4

// maxInlinePageRunes bounds page text placed directly into the search
// results block when a turn names a URL instead of a query.
const maxInlinePageRunes = 8000

// prepared is the mode-specific shape of a turn: the human message with
// any grounding context rendered into it, the default system prompt, and
// the sources that grounding produced.
type prepared struct {
	humanMessage  string
	defaultSystem string
	promptID      string
	sources       []ports.Passage
}

func (o *Orchestrator) prepare(ctx context.Context, client ports.LLMClient, turn Turn, history []ports.HistoryEntry) (*prepared, error) {
	switch turn.Mode {
	case ModeRAG:
		return o.prepareRAG(ctx, client, turn, history)
	case ModeWebSearch:
		return o.prepareWebSearch(ctx, client, turn, history)
	case ModePreset:
		if turn.PromptID == "" {
			return nil, pkgerrors.NewConfigError(pkgerrors.ReasonPromptNotFound, "")
		}
		return &prepared{humanMessage: turn.Message, promptID: turn.PromptID}, nil
	default:
		// A normal turn carrying a page reference is promoted to grounded
		// prompting over that page when retrieval is available.
		if turn.PageURL != "" && o.opts.Retriever != nil && o.opts.Indexer != nil {
			return o.prepareRAG(ctx, client, turn, history)
		}
		// Normal and vision turns differ only in attached images, which
		// the assembler handles.
		return &prepared{
			humanMessage:  turn.Message,
			defaultSystem: o.opts.DefaultSystem,
			promptID:      turn.PromptID,
		}, nil
	}
}

func (o *Orchestrator) prepareRAG(ctx context.Context, client ports.LLMClient, turn Turn, history []ports.HistoryEntry) (*prepared, error) {
	if o.opts.Retriever == nil {
		return nil, pkgerrors.NewConfigError(pkgerrors.ReasonNotConfigured, "retrieval")
	}
	if turn.PageURL != "" {
		if o.opts.Indexer == nil {
			return nil, pkgerrors.NewConfigError(pkgerrors.ReasonNotConfigured, "indexing")
		}
		if err := o.opts.Indexer.IndexURL(ctx, turn.PageURL); err != nil {
			return nil, fmt.Errorf("index page: %w", err)
		}
	}

	query := o.rewriteQuery(ctx, client, turn.Message, history)
	passages, err := o.opts.Retriever.Search(ctx, query, retrievalTopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve passages: %w", err)
	}

	human := prompts.RenderTemplate(prompts.DefaultRAGPrompt, map[string]string{
		"context":  rag.FormatPassages(passages),
		"question": turn.Message,
	})
	return &prepared{humanMessage: human, sources: passages}, nil
}

func (o *Orchestrator) prepareWebSearch(ctx context.Context, client ports.LLMClient, turn Turn, history []ports.HistoryEntry) (*prepared, error) {
	if o.opts.Search == nil {
		return nil, pkgerrors.NewConfigError(pkgerrors.ReasonNotConfigured, "websearch")
	}

	var results []ports.SearchResult
	if url := firstURL(turn.Message); url != "" && o.opts.Pages != nil {
		// The question names a page; read it instead of searching.
		page, err := o.opts.Pages.Fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("fetch page: %w", err)
		}
		results = []ports.SearchResult{{
			Title:   page.Title,
			URL:     page.URL,
			Content: clipRunes(page.Text, maxInlinePageRunes),
		}}
	} else {
		query := o.rewriteQuery(ctx, client, turn.Message, history)
		var err error
		results, err = o.opts.Search.Search(ctx, query, 0)
		if err != nil {
			return nil, fmt.Errorf("web search: %w", err)
		}
	}

	human := prompts.RenderTemplate(prompts.DefaultWebSearchPrompt, map[string]string{
		"search_results": websearch.FormatResults(results),
		"current_date":   time.Now().Format("2006-01-02"),
		"question":       turn.Message,
	})
	sources := make([]ports.Passage, 0, len(results))
	for _, r := range results {
		sources = append(sources, ports.Passage{Content: r.Content, Source: r.URL})
	}
	return &prepared{humanMessage: human, sources: sources}, nil
}

// rewriteQuery condenses a follow-up question into a standalone retrieval
// query. The first turn of a session needs no rewriting, and a rewrite
// failure falls back to the raw message rather than failing the turn.
func (o *Orchestrator) rewriteQuery(ctx context.Context, client ports.LLMClient, message string, history []ports.HistoryEntry) string {
	if len(history) == 0 {
		return message
	}

	prompt := prompts.RenderTemplate(prompts.DefaultRewritePrompt, map[string]string{
		"chat_history": formatChatHistory(history),
		"question":     message,
	})
	resp, err := client.Complete(ctx, ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		o.logger.Warn("query rewrite failed, using raw message: %v", err)
		return message
	}
	rewritten := strings.TrimSpace(RemoveReasoning(resp.Content))
	if rewritten == "" {
		return message
	}
	return rewritten
}

// firstURL returns the first http(s) URL in the message, with trailing
// punctuation trimmed, or "" when there is none.
func firstURL(message string) string {
	for _, field := range strings.Fields(message) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			return strings.TrimRight(field, ".,;:!?)")
		}
	}
	return ""
}

func clipRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func formatChatHistory(history []ports.HistoryEntry) string {
	var sb strings.Builder
	for _, entry := range history {
		role := "Human"
		if entry.Role == "assistant" {
			role = "Assistant"
		}
		fmt.Fprintf(&sb, "%s: %s\n", role, RemoveReasoning(entry.Content))
	}
	return sb.String()
}
