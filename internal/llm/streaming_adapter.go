package llm

import (
	"context"

	"pageassist/internal/chat/ports"
)

// streamingAdapter wraps a client that lacks native streaming support and
// synthesizes the stream callbacks from a single Complete call.
type streamingAdapter struct {
	base ports.LLMClient
}

var _ ports.StreamingLLMClient = (*streamingAdapter)(nil)

// EnsureStreaming guarantees the returned client implements
// ports.StreamingLLMClient, wrapping non-streaming implementations.
func EnsureStreaming(client ports.LLMClient) ports.StreamingLLMClient {
	if client == nil {
		return nil
	}
	if streaming, ok := client.(ports.StreamingLLMClient); ok {
		return streaming
	}
	return &streamingAdapter{base: client}
}

func (a *streamingAdapter) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	return a.base.Complete(ctx, req)
}

func (a *streamingAdapter) Model() string {
	return a.base.Model()
}

func (a *streamingAdapter) StreamComplete(ctx context.Context, req ports.CompletionRequest, callbacks ports.CompletionStreamCallbacks) (*ports.CompletionResponse, error) {
	resp, err := a.base.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if callbacks.OnContentDelta != nil {
		if resp != nil && resp.Content != "" {
			callbacks.OnContentDelta(ports.ContentDelta{Delta: resp.Content})
		}
		callbacks.OnContentDelta(ports.ContentDelta{Final: true})
	}
	return resp, nil
}
