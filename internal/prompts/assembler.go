package prompts

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"pageassist/internal/chat/ports"
	"pageassist/internal/logging"
)

// DefaultHistoryTokenBudget bounds how much prior conversation rides along
// with a new turn.
const DefaultHistoryTokenBudget = 4096

// Request describes one turn to assemble. The human message arrives
// already rendered when a mode injects context (retrieval passages or
// search results live inside it, never in a separate system message).
type Request struct {
	// SystemOverride is a temporary system prompt for this turn only. It
	// wins over any stored prompt.
	SystemOverride string
	// PromptID selects a stored prompt. A dangling id fails the turn.
	PromptID string
	// DefaultSystem applies when neither an override nor a stored system
	// prompt is in play. Empty means no system message.
	DefaultSystem string

	History      []ports.HistoryEntry
	HumanMessage string
	Images       []string

	// HistoryTokenBudget caps history tokens; zero means the default.
	HistoryTokenBudget int
}

// Assembler builds the ordered message list for a backend call: at most
// one system message first, truncated history next, the human turn last.
type Assembler struct {
	store   *Store
	encoder *tiktoken.Tiktoken
	logger  logging.Logger
}

// NewAssembler builds an assembler over the given prompt store.
func NewAssembler(store *Store) (*Assembler, error) {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &Assembler{
		store:   store,
		encoder: encoder,
		logger:  logging.NewComponentLogger("prompt-assembler"),
	}, nil
}

// Assemble produces the messages for one turn.
func (a *Assembler) Assemble(req Request) ([]ports.Message, error) {
	system, humanText, err := a.resolvePrompt(req)
	if err != nil {
		return nil, err
	}

	budget := req.HistoryTokenBudget
	if budget <= 0 {
		budget = DefaultHistoryTokenBudget
	}
	history := a.truncateHistory(req.History, budget)

	messages := make([]ports.Message, 0, len(history)+2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, ports.Message{Role: "system", Content: system})
	}
	for _, entry := range history {
		msg := ports.Message{Role: entry.Role, Content: entry.Content}
		if entry.Image != "" {
			msg.Images = []string{entry.Image}
		}
		messages = append(messages, msg)
	}

	human := ports.Message{Role: "user", Content: humanText}
	if len(req.Images) > 0 {
		human.Images = append(human.Images, req.Images...)
	}
	messages = append(messages, human)
	return messages, nil
}

// resolvePrompt applies the precedence order: a per-turn override beats a
// stored prompt, which beats the default. A stored quick prompt rewrites
// the human text instead of adding a system message.
func (a *Assembler) resolvePrompt(req Request) (system, humanText string, err error) {
	humanText = req.HumanMessage

	if strings.TrimSpace(req.SystemOverride) != "" {
		return req.SystemOverride, humanText, nil
	}
	if req.PromptID != "" {
		prompt, err := a.store.Get(req.PromptID)
		if err != nil {
			return "", "", err
		}
		if prompt.IsSystem {
			return prompt.Content, humanText, nil
		}
		return "", RenderTemplate(prompt.Content, map[string]string{"text": humanText}), nil
	}
	return req.DefaultSystem, humanText, nil
}

// truncateHistory drops the oldest entries until the remainder fits the
// token budget. The newest entries always survive.
func (a *Assembler) truncateHistory(history []ports.HistoryEntry, budget int) []ports.HistoryEntry {
	total := 0
	counts := make([]int, len(history))
	for i, entry := range history {
		counts[i] = len(a.encoder.Encode(entry.Content, nil, nil))
		total += counts[i]
	}
	start := 0
	for start < len(history) && total > budget {
		total -= counts[start]
		start++
	}
	if start > 0 {
		a.logger.Debug("truncated %d of %d history entries to fit %d token budget", start, len(history), budget)
	}
	return history[start:]
}

// CountTokens reports the token length of text under the assembler's
// encoding.
func (a *Assembler) CountTokens(text string) int {
	return len(a.encoder.Encode(text, nil, nil))
}
