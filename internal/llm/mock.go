package llm

import (
	"context"

	"pageassist/internal/chat/ports"
)

// MockClient is a scripted backend for tests. Chunks are replayed in order
// on StreamComplete; Response backs Complete.
type MockClient struct {
	ModelName string
	Chunks    []ports.ContentDelta
	Response  *ports.CompletionResponse
	Err       error

	CompleteCalls int
	StreamCalls   int
	LastRequest   ports.CompletionRequest
}

var _ ports.StreamingLLMClient = (*MockClient)(nil)

func (m *MockClient) Model() string {
	if m.ModelName == "" {
		return "mock-model"
	}
	return m.ModelName
}

func (m *MockClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	m.CompleteCalls++
	m.LastRequest = req
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Response != nil {
		return m.Response, nil
	}
	return &ports.CompletionResponse{Content: "ok", StopReason: "stop"}, nil
}

func (m *MockClient) StreamComplete(ctx context.Context, req ports.CompletionRequest, callbacks ports.CompletionStreamCallbacks) (*ports.CompletionResponse, error) {
	m.StreamCalls++
	m.LastRequest = req

	var content string
	for _, chunk := range m.Chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content += chunk.Delta
		if callbacks.OnContentDelta != nil {
			callbacks.OnContentDelta(chunk)
		}
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if callbacks.OnContentDelta != nil {
		callbacks.OnContentDelta(ports.ContentDelta{Final: true})
	}
	resp := m.Response
	if resp == nil {
		resp = &ports.CompletionResponse{Content: content, StopReason: "stop"}
	}
	return resp, nil
}
