// Package ports declares the types and interfaces the chat core consumes:
// model backends, the history store, retrieval, and content sources.
// Components accept these interfaces and return concrete structs.
package ports

import "context"

// Message is a backend-facing conversation entry, distinct from the richer
// UI message kept by the orchestrator.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // data URIs, appended after text content
}

// CompletionRequest carries the parameters for one model call.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	TopK        int       `json:"top_k,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
}

// TokenUsage tracks model-reported token consumption.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the aggregated result of an invoke or a finished
// stream. Metadata carries model-reported generation stats.
type CompletionResponse struct {
	Content    string         `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      TokenUsage     `json:"usage"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ContentDelta is one streamed fragment. Delta carries visible answer text,
// Reasoning carries the model's reasoning side-channel when the backend
// exposes one, and Final marks the end of the sequence.
type ContentDelta struct {
	Delta     string
	Reasoning string
	Final     bool
}

// CompletionStreamCallbacks captures the optional hooks invoked while
// streaming. Nil functions are ignored.
type CompletionStreamCallbacks struct {
	OnContentDelta func(ContentDelta)
}

// LLMClient is the minimal model backend: single-shot completion, used for
// auxiliary sub-tasks such as query rewriting and title generation.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Model() string
}

// StreamingLLMClient adds incremental streaming. The sequence is finite and
// cancellable through ctx; after cancellation no further deltas arrive.
type StreamingLLMClient interface {
	LLMClient
	StreamComplete(ctx context.Context, req CompletionRequest, callbacks CompletionStreamCallbacks) (*CompletionResponse, error)
}
