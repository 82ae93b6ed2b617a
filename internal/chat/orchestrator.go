package chat

import (
	"context"
	"fmt"
	"sync"

	"pageassist/internal/chat/ports"
	pkgerrors "pageassist/internal/errors"
	"pageassist/internal/logging"
	"pageassist/internal/prompts"
	"pageassist/internal/provider"
)

// ErrBusy is returned when a turn is submitted while another is in flight.
var ErrBusy = fmt.Errorf("a turn is already streaming")

// HistoryLog is the durable session log the orchestrator reads and writes.
type HistoryLog interface {
	ports.HistoryStore
	Entries(ctx context.Context, sessionID string) ([]ports.HistoryEntry, error)
}

// PageIndexer ingests a page so retrieval can ground answers in it.
type PageIndexer interface {
	IndexURL(ctx context.Context, url string) error
}

// PageFetcher reads a URL's extracted text on demand.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*ports.PageContent, error)
}

// BackendResolver turns a model reference into a streaming client and
// reports the reference's sampling defaults.
type BackendResolver interface {
	Resolve(modelRef string) (ports.StreamingLLMClient, error)
	SamplingFor(modelRef string) provider.Sampling
}

// Options wires the orchestrator's collaborators. Retriever, Search, and
// Indexer are optional; modes that need a missing one fail with a
// configuration error.
type Options struct {
	Selector  BackendResolver
	Assembler *prompts.Assembler
	History   HistoryLog
	Retriever ports.Retriever
	Search    ports.SearchProvider
	Indexer   PageIndexer
	Pages     PageFetcher

	// DefaultSystem applies to turns with no prompt selection.
	DefaultSystem string
}

// Orchestrator runs one streaming turn at a time. A turn moves through
// submitting, streaming, and one of completed, cancelled, or failed; the
// outcome is persisted before the terminal state is reported.
type Orchestrator struct {
	opts   Options
	logger logging.Logger

	mu        sync.Mutex
	state     State
	cancel    context.CancelFunc
	processed bool
}

// NewOrchestrator builds an orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	return &Orchestrator{
		opts:   opts,
		logger: logging.NewComponentLogger("orchestrator"),
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Processing reports whether the current turn has produced output yet.
// False while waiting on the first token.
func (o *Orchestrator) Processing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.processed
}

// StopStreaming cancels the in-flight turn. A no-op when idle.
func (o *Orchestrator) StopStreaming() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// Submit runs one turn to completion, pushing events to emit as the
// answer streams. It returns the outcome after persistence has settled.
// Only one turn runs at a time; a concurrent Submit fails with ErrBusy.
func (o *Orchestrator) Submit(ctx context.Context, turn Turn, emit func(Event)) (*Outcome, error) {
	if emit == nil {
		emit = func(Event) {}
	}

	turnCtx, cancel, err := o.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	outcome, err := o.run(turnCtx, turn, emit)
	o.finish(outcome)
	if err != nil {
		emit(Event{Type: EventError, Error: err.Error(), SessionID: outcome.SessionID})
		return outcome, err
	}
	emit(Event{Type: EventDone, Content: outcome.Content, SessionID: outcome.SessionID})
	return outcome, nil
}

func (o *Orchestrator) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateSubmitting || o.state == StateStreaming {
		return nil, nil, ErrBusy
	}
	turnCtx, cancel := context.WithCancel(ctx)
	o.state = StateSubmitting
	o.cancel = cancel
	o.processed = false
	return turnCtx, cancel, nil
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()
}

func (o *Orchestrator) finish(outcome *Outcome) {
	o.mu.Lock()
	o.cancel = nil
	o.state = outcome.State
	o.mu.Unlock()
}

func (o *Orchestrator) run(ctx context.Context, turn Turn, emit func(Event)) (*Outcome, error) {
	outcome := &Outcome{SessionID: turn.SessionID, State: StateFailed}

	client, err := o.opts.Selector.Resolve(turn.Model)
	if err != nil {
		return outcome, err
	}

	historyEntries, err := o.opts.History.Entries(ctx, turn.SessionID)
	if err != nil {
		return outcome, err
	}
	if turn.Regenerate && len(historyEntries) > 0 {
		// The turn replays the last user message; the log keeps it.
		historyEntries = trimLastExchange(historyEntries)
	}

	prep, err := o.prepare(ctx, client, turn, historyEntries)
	if err != nil {
		return outcome, err
	}
	if len(prep.sources) > 0 {
		outcome.Sources = prep.sources
		emit(Event{Type: EventSources, Sources: prep.sources, SessionID: turn.SessionID})
	}

	sampling := o.opts.Selector.SamplingFor(turn.Model)
	messages, err := o.opts.Assembler.Assemble(prompts.Request{
		SystemOverride: turn.SystemOverride,
		PromptID:       prep.promptID,
		DefaultSystem:  prep.defaultSystem,
		History:        historyEntries,
		HumanMessage:   prep.humanMessage,
		Images:         turn.Images,
	})
	if err != nil {
		return outcome, err
	}

	o.setState(StateStreaming)
	segmenter := NewSegmenter()
	accumulated := ""

	resp, streamErr := client.StreamComplete(ctx, ports.CompletionRequest{
		Messages:    messages,
		Temperature: sampling.Temperature,
		TopP:        sampling.TopP,
		TopK:        sampling.TopK,
		MaxTokens:   sampling.MaxTokens,
	}, ports.CompletionStreamCallbacks{
		OnContentDelta: func(delta ports.ContentDelta) {
			if delta.Final {
				return
			}
			o.mu.Lock()
			o.processed = true
			o.mu.Unlock()
			accumulated = segmenter.Append(accumulated, delta.Delta, delta.Reasoning)
			emit(Event{
				Type:      EventDelta,
				Delta:     delta.Delta,
				Content:   accumulated + CursorGlyph,
				SessionID: turn.SessionID,
			})
		},
	})

	accumulated = segmenter.Finish(accumulated)
	outcome.Content = accumulated
	outcome.ReasoningTimeMs = segmenter.ReasoningTimeMs()
	if resp != nil {
		outcome.Usage = resp.Usage
	}

	result := ports.TurnResult{
		SessionID:       turn.SessionID,
		Model:           client.Model(),
		Prompt:          turn.Message,
		Image:           firstImage(turn.Images),
		Response:        accumulated,
		Sources:         outcome.Sources,
		ReasoningTimeMs: outcome.ReasoningTimeMs,
		MessageType:     string(turn.Mode),
		Regenerate:      turn.Regenerate,
	}
	if resp != nil {
		result.GenerationInfo = resp.Metadata
	}

	if streamErr != nil {
		if pkgerrors.IsCancellation(streamErr) || pkgerrors.IsCancellation(ctx.Err()) {
			outcome.State = StateCancelled
		}
		result.Err = streamErr.Error()
		sessionID, handled, saveErr := o.opts.History.SaveOnError(context.WithoutCancel(ctx), result)
		if saveErr != nil {
			o.logger.Error("persist failed turn: %v", saveErr)
		} else if handled {
			outcome.SessionID = sessionID
		}
		if outcome.State == StateCancelled {
			return outcome, nil
		}
		return outcome, streamErr
	}

	sessionID, saveErr := o.opts.History.SaveOnSuccess(ctx, result)
	if saveErr != nil {
		return outcome, fmt.Errorf("persist turn: %w", saveErr)
	}
	outcome.SessionID = sessionID
	outcome.State = StateCompleted
	return outcome, nil
}

// EditMessage rewrites the message at index. Editing a user message drops
// everything after it and resubmits the edited text as a regenerate,
// returning that turn's outcome. Editing an assistant message mutates it in
// place without touching the backend and returns a nil outcome.
func (o *Orchestrator) EditMessage(ctx context.Context, sessionID string, index int, text string, isUser bool, model string, emit func(Event)) (*Outcome, error) {
	entries, err := o.opts.History.Entries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := o.opts.History.UpdateMessageAt(ctx, sessionID, index, text); err != nil {
		return nil, err
	}
	if !isUser {
		return nil, nil
	}
	if err := o.opts.History.TruncateAt(ctx, sessionID, index+1); err != nil {
		return nil, err
	}
	mode := ""
	if index < len(entries) {
		mode = entries[index].MessageType
	}
	return o.Submit(ctx, Turn{
		SessionID:  sessionID,
		Model:      model,
		Message:    text,
		Mode:       Mode(mode),
		Regenerate: true,
	}, emit)
}

// RegenerateLast re-runs the session's last user message and replaces the
// last assistant answer.
func (o *Orchestrator) RegenerateLast(ctx context.Context, sessionID, model string, emit func(Event)) (*Outcome, error) {
	entries, err := o.opts.History.Entries(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	lastUser := lastUserEntry(entries)
	if lastUser == nil {
		return nil, fmt.Errorf("session %s has no user message to regenerate", sessionID)
	}
	return o.Submit(ctx, Turn{
		SessionID:  sessionID,
		Model:      model,
		Message:    lastUser.Content,
		Mode:       Mode(lastUser.MessageType),
		Regenerate: true,
	}, emit)
}

// CreateBranch forks the session at the given message into a new session
// and returns the new session id.
func (o *Orchestrator) CreateBranch(ctx context.Context, sessionID string, index int) (string, error) {
	return o.opts.History.Fork(ctx, sessionID, index)
}

// trimLastExchange drops the trailing assistant answer and the user
// message that produced it.
func trimLastExchange(entries []ports.HistoryEntry) []ports.HistoryEntry {
	end := len(entries)
	if end > 0 && entries[end-1].Role == "assistant" {
		end--
	}
	if end > 0 && entries[end-1].Role == "user" {
		end--
	}
	return entries[:end]
}

func lastUserEntry(entries []ports.HistoryEntry) *ports.HistoryEntry {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Role == "user" {
			return &entries[i]
		}
	}
	return nil
}

func firstImage(images []string) string {
	if len(images) == 0 {
		return ""
	}
	return images[0]
}
