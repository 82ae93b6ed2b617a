package ports

import "context"

// HistoryEntry is one role/content pair in the backend-facing conversation
// log. Entries are appended in matching user/assistant pairs after a turn
// completes.
type HistoryEntry struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	Image       string `json:"image,omitempty"`
	MessageType string `json:"message_type,omitempty"`
}

// TurnResult is what the orchestrator hands to the history store when a turn
// finishes, successfully or not.
type TurnResult struct {
	SessionID       string         `json:"session_id"`
	Model           string         `json:"model"`
	Prompt          string         `json:"prompt"`
	Image           string         `json:"image,omitempty"`
	Response        string         `json:"response"`
	Sources         []Passage      `json:"sources,omitempty"`
	GenerationInfo  map[string]any `json:"generation_info,omitempty"`
	ReasoningTimeMs int64          `json:"reasoning_time_ms,omitempty"`
	MessageType     string         `json:"message_type,omitempty"`
	Regenerate      bool           `json:"regenerate,omitempty"`
	Err             string         `json:"error,omitempty"`
}

// HistoryStore persists chat sessions. SaveOnSuccess creates the session on
// the first turn and returns its id. SaveOnError decides whether the failure
// is recoverable locally (handled=true, a recoverable marker is stored) or
// must propagate to the caller (handled=false).
type HistoryStore interface {
	SaveOnSuccess(ctx context.Context, result TurnResult) (string, error)
	SaveOnError(ctx context.Context, result TurnResult) (sessionID string, handled bool, err error)
	TruncateAt(ctx context.Context, sessionID string, index int) error
	UpdateMessageAt(ctx context.Context, sessionID string, index int, text string) error
	Fork(ctx context.Context, sessionID string, index int) (string, error)
}
