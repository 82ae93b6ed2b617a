package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pageassist/internal/chat/ports"
	pkgerrors "pageassist/internal/errors"
	"pageassist/internal/httpclient"
	"pageassist/internal/logging"
)

var _ ports.StreamingLLMClient = (*ollamaClient)(nil)

// ollamaClient speaks the Ollama /api/chat endpoint, streaming NDJSON chunks.
type ollamaClient struct {
	model      string
	baseURL    string
	httpClient *http.Client
	streaming  *http.Client
	logger     logging.Logger
}

// NewOllamaClient builds a client for a local Ollama server. The base URL
// is normalized to end in /api.
func NewOllamaClient(model string, config Config) (ports.LLMClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434/api"
	}
	if !strings.HasSuffix(baseURL, "/api") {
		baseURL += "/api"
	}

	logger := logging.NewComponentLogger("ollama-client")
	return &ollamaClient{
		model:      model,
		baseURL:    baseURL,
		httpClient: httpclient.New(config.timeoutOrDefault(60*time.Second), logger),
		streaming:  httpclient.NewStreaming(logger),
		logger:     logger,
	}, nil
}

func (c *ollamaClient) Model() string {
	return c.model
}

func (c *ollamaClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	payload, err := c.buildPayload(req, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, c.httpClient, payload)
	if err != nil {
		if pkgerrors.IsCancellation(err) {
			return nil, err
		}
		return nil, pkgerrors.NewNetworkError("invoke", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := httpclient.ReadAllWithLimit(resp.Body, 64*1024)
		return nil, pkgerrors.NewNetworkError("invoke",
			fmt.Errorf("ollama request failed: %s", strings.TrimSpace(string(body))))
	}

	var response ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}
	if response.Error != "" {
		return nil, pkgerrors.NewNetworkError("invoke", fmt.Errorf("ollama error: %s", response.Error))
	}

	return c.buildResponse(response, response.Message.Content), nil
}

func (c *ollamaClient) StreamComplete(ctx context.Context, req ports.CompletionRequest, callbacks ports.CompletionStreamCallbacks) (*ports.CompletionResponse, error) {
	payload, err := c.buildPayload(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, c.streaming, payload)
	if err != nil {
		if pkgerrors.IsCancellation(err) {
			return nil, err
		}
		return nil, pkgerrors.NewNetworkError("stream", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := httpclient.ReadAllWithLimit(resp.Body, 64*1024)
		return nil, pkgerrors.NewNetworkError("stream",
			fmt.Errorf("ollama request failed: %s", strings.TrimSpace(string(body))))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var builder strings.Builder
	var finalResponse *ports.CompletionResponse
	finalSent := false

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk ollamaResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return nil, fmt.Errorf("decode ollama stream chunk: %w", err)
		}
		if chunk.Error != "" {
			return nil, pkgerrors.NewNetworkError("stream", fmt.Errorf("ollama error: %s", chunk.Error))
		}

		delta := chunk.Message.Content
		reasoning := chunk.Message.Thinking
		if delta != "" || reasoning != "" {
			builder.WriteString(delta)
			if cb := callbacks.OnContentDelta; cb != nil {
				cb(ports.ContentDelta{Delta: delta, Reasoning: reasoning})
			}
		}

		if chunk.Done && !finalSent {
			finalSent = true
			if cb := callbacks.OnContentDelta; cb != nil {
				cb(ports.ContentDelta{Final: true})
			}
			finalResponse = c.buildResponse(chunk, builder.String())
		}
	}

	if err := scanner.Err(); err != nil {
		if pkgerrors.IsCancellation(ctx.Err()) {
			return nil, ctx.Err()
		}
		return nil, pkgerrors.NewNetworkError("stream", fmt.Errorf("read ollama stream: %w", err))
	}

	if finalResponse == nil {
		// Stream ended without an explicit final chunk; synthesize one.
		finalResponse = &ports.CompletionResponse{
			Content:    builder.String(),
			StopReason: "unknown",
		}
	}
	return finalResponse, nil
}

func (c *ollamaClient) buildPayload(req ports.CompletionRequest, stream bool) ([]byte, error) {
	request := ollamaRequest{
		Model:    c.model,
		Messages: convertOllamaMessages(req.Messages),
		Stream:   stream,
	}

	options := make(map[string]any)
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.TopP > 0 {
		options["top_p"] = req.TopP
	}
	if req.TopK > 0 {
		options["top_k"] = req.TopK
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(req.Stop) > 0 {
		options["stop"] = append([]string(nil), req.Stop...)
	}
	if len(options) > 0 {
		request.Options = options
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}
	return body, nil
}

func (c *ollamaClient) doRequest(ctx context.Context, client *http.Client, body []byte) (*http.Response, error) {
	endpoint := c.baseURL + "/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return client.Do(httpReq)
}

func (c *ollamaClient) buildResponse(resp ollamaResponse, content string) *ports.CompletionResponse {
	stopReason := strings.TrimSpace(resp.DoneReason)
	if stopReason == "" {
		stopReason = "stop"
	}
	return &ports.CompletionResponse{
		Content:    content,
		StopReason: stopReason,
		Usage: ports.TokenUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
		Metadata: map[string]any{
			"model":                resp.Model,
			"total_duration":       resp.TotalDuration,
			"eval_count":           resp.EvalCount,
			"prompt_eval_count":    resp.PromptEvalCount,
			"load_duration":        resp.LoadDuration,
			"prompt_eval_duration": resp.PromptEvalDuration,
			"eval_duration":        resp.EvalDuration,
		},
	}
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role     string   `json:"role"`
	Content  string   `json:"content"`
	Thinking string   `json:"thinking,omitempty"`
	Images   []string `json:"images,omitempty"`
}

type ollamaResponse struct {
	Model              string        `json:"model"`
	Message            ollamaMessage `json:"message"`
	Done               bool          `json:"done"`
	DoneReason         string        `json:"done_reason"`
	PromptEvalCount    int           `json:"prompt_eval_count"`
	EvalCount          int           `json:"eval_count"`
	TotalDuration      int64         `json:"total_duration"`
	LoadDuration       int64         `json:"load_duration"`
	PromptEvalDuration int64         `json:"prompt_eval_duration"`
	EvalDuration       int64         `json:"eval_duration"`
	Error              string        `json:"error"`
}

func convertOllamaMessages(msgs []ports.Message) []ollamaMessage {
	result := make([]ollamaMessage, 0, len(msgs))
	for _, msg := range msgs {
		role := strings.TrimSpace(msg.Role)
		if role == "" {
			continue
		}
		var images []string
		for _, img := range msg.Images {
			if b64 := stripDataURIPrefix(img); b64 != "" {
				images = append(images, b64)
			}
		}
		if strings.TrimSpace(msg.Content) == "" && len(images) == 0 {
			continue
		}
		result = append(result, ollamaMessage{
			Role:    role,
			Content: msg.Content,
			Images:  images,
		})
	}
	return result
}

// stripDataURIPrefix reduces a data URI to its raw base64 payload, which is
// what the Ollama API expects for images.
func stripDataURIPrefix(uri string) string {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return ""
	}
	if idx := strings.Index(uri, "base64,"); idx >= 0 {
		return uri[idx+len("base64,"):]
	}
	return uri
}
