package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pageassist/internal/chat/ports"
)

func TestOllamaStreamComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3:8b", req.Model)
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"model":"llama3:8b","message":{"role":"assistant","content":"Hel"},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3:8b","message":{"role":"assistant","content":"lo"},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3:8b","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":10,"eval_count":2}`)
	}))
	defer srv.Close()

	client, err := NewOllamaClient("llama3:8b", Config{BaseURL: srv.URL})
	require.NoError(t, err)
	streaming := client.(ports.StreamingLLMClient)

	var deltas []string
	sawFinal := false
	resp, err := streaming.StreamComplete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "hi"}},
	}, ports.CompletionStreamCallbacks{
		OnContentDelta: func(d ports.ContentDelta) {
			if d.Final {
				sawFinal = true
				return
			}
			deltas = append(deltas, d.Delta)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.True(t, sawFinal)
	assert.Equal(t, "Hello", resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestOllamaStreamForwardsThinking(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"","thinking":"pondering"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"answer"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`)
	}))
	defer srv.Close()

	client, err := NewOllamaClient("deepseek-r1", Config{BaseURL: srv.URL})
	require.NoError(t, err)
	streaming := client.(ports.StreamingLLMClient)

	var reasoning, content string
	_, err = streaming.StreamComplete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "hi"}},
	}, ports.CompletionStreamCallbacks{
		OnContentDelta: func(d ports.ContentDelta) {
			reasoning += d.Reasoning
			content += d.Delta
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "pondering", reasoning)
	assert.Equal(t, "answer", content)
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Message:    ollamaMessage{Role: "assistant", Content: "fine"},
			Done:       true,
			DoneReason: "stop",
		})
	}))
	defer srv.Close()

	client, err := NewOllamaClient("llama3:8b", Config{BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "how are you"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "fine", resp.Content)
}

func TestOllamaImagesLoseDataURIPrefix(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaResponse{Message: ollamaMessage{Content: "ok"}, Done: true})
	}))
	defer srv.Close()

	client, err := NewOllamaClient("llava", Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{
			Role:    "user",
			Content: "what is this",
			Images:  []string{"data:image/png;base64,AAAA"},
		}},
	})
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, []string{"AAAA"}, got.Messages[0].Images)
}

func TestOllamaServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewOllamaClient("missing", Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}
