// Package chat drives a streaming conversation turn end to end: resolve
// the backend, assemble the prompt, stream the answer, and persist the
// outcome.
package chat

import (
	"pageassist/internal/chat/ports"
)

// Mode selects how a turn is augmented before it reaches the model.
type Mode string

const (
	// ModeNormal sends the message as-is.
	ModeNormal Mode = "normal"
	// ModeVision attaches images to the message.
	ModeVision Mode = "vision"
	// ModeRAG grounds the answer in passages retrieved from indexed pages.
	ModeRAG Mode = "rag"
	// ModeWebSearch grounds the answer in live search results.
	ModeWebSearch Mode = "websearch"
	// ModePreset rewrites the message through a stored quick prompt.
	ModePreset Mode = "preset"
)

// CursorGlyph trails the in-flight assistant text in UI events and never
// reaches the durable log.
const CursorGlyph = "▋"

// State is the orchestrator's turn lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateStreaming  State = "streaming"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

// Turn is one user submission.
type Turn struct {
	SessionID      string   `json:"session_id,omitempty"`
	Model          string   `json:"model"`
	Message        string   `json:"message"`
	Images         []string `json:"images,omitempty"`
	Mode           Mode     `json:"mode,omitempty"`
	PageURL        string   `json:"page_url,omitempty"`
	PromptID       string   `json:"prompt_id,omitempty"`
	SystemOverride string   `json:"system_override,omitempty"`
	Regenerate     bool     `json:"-"`
}

// EventType discriminates stream events.
type EventType string

const (
	// EventDelta carries incremental assistant text.
	EventDelta EventType = "delta"
	// EventSources reports the passages or results grounding the answer.
	EventSources EventType = "sources"
	// EventDone closes a successful stream.
	EventDone EventType = "done"
	// EventError closes a failed stream.
	EventError EventType = "error"
)

// Event is one update pushed to the caller while a turn streams.
type Event struct {
	Type      EventType       `json:"type"`
	Delta     string          `json:"delta,omitempty"`
	Content   string          `json:"content,omitempty"`
	Sources   []ports.Passage `json:"sources,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Outcome summarizes a finished turn.
type Outcome struct {
	SessionID       string
	State           State
	Content         string
	Sources         []ports.Passage
	Usage           ports.TokenUsage
	ReasoningTimeMs int64
}
