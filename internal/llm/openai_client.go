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

var _ ports.StreamingLLMClient = (*openaiClient)(nil)

// openaiClient speaks the OpenAI-compatible chat completions API. Providers
// that surface a reasoning side-channel do so through the delta's
// reasoning_content field, which is forwarded as ContentDelta.Reasoning.
type openaiClient struct {
	model      string
	apiKey     string
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
	streaming  *http.Client
	logger     logging.Logger
}

// NewOpenAIClient builds a client against an OpenAI-compatible provider.
func NewOpenAIClient(model string, config Config) (ports.LLMClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("openai-compatible provider requires a base URL")
	}

	logger := logging.NewComponentLogger("openai-client")
	return &openaiClient{
		model:      model,
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		headers:    config.Headers,
		httpClient: httpclient.New(config.timeoutOrDefault(120*time.Second), logger),
		streaming:  httpclient.NewStreaming(logger),
		logger:     logger,
	}, nil
}

func (c *openaiClient) Model() string {
	return c.model
}

func (c *openaiClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	body, err := c.buildPayload(req, false)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, c.httpClient, body)
	if err != nil {
		if pkgerrors.IsCancellation(err) {
			return nil, err
		}
		return nil, pkgerrors.NewNetworkError("invoke", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := httpclient.ReadAllWithLimit(resp.Body, 8<<20)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError("invoke", resp.StatusCode, respBody)
	}

	var parsed openaiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return nil, pkgerrors.NewNetworkError("invoke",
			fmt.Errorf("provider error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return nil, pkgerrors.NewNetworkError("invoke", fmt.Errorf("no choices in response"))
	}

	choice := parsed.Choices[0]
	content := choice.Message.Content
	if rc := choice.Message.ReasoningContent; rc != "" {
		content = "<think>" + rc + "</think>" + content
	}
	return &ports.CompletionResponse{
		Content:    content,
		StopReason: choice.FinishReason,
		Usage: ports.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
		Metadata: map[string]any{"model": parsed.Model},
	}, nil
}

func (c *openaiClient) StreamComplete(ctx context.Context, req ports.CompletionRequest, callbacks ports.CompletionStreamCallbacks) (*ports.CompletionResponse, error) {
	body, err := c.buildPayload(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, c.streaming, body)
	if err != nil {
		if pkgerrors.IsCancellation(err) {
			return nil, err
		}
		return nil, pkgerrors.NewNetworkError("stream", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := httpclient.ReadAllWithLimit(resp.Body, 64*1024)
		return nil, c.statusError("stream", resp.StatusCode, respBody)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var contentBuilder strings.Builder
	usage := ports.TokenUsage{}
	finishReason := ""
	model := ""

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		var chunk openaiStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.logger.Debug("skipping malformed stream chunk: %v", err)
			continue
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage != nil {
			usage.PromptTokens = chunk.Usage.PromptTokens
			usage.CompletionTokens = chunk.Usage.CompletionTokens
			usage.TotalTokens = chunk.Usage.TotalTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			finishReason = *choice.FinishReason
		}
		delta := choice.Delta.Content
		reasoning := choice.Delta.ReasoningContent
		if delta == "" && reasoning == "" {
			continue
		}
		contentBuilder.WriteString(delta)
		if callbacks.OnContentDelta != nil {
			callbacks.OnContentDelta(ports.ContentDelta{Delta: delta, Reasoning: reasoning})
		}
	}

	if err := scanner.Err(); err != nil {
		if pkgerrors.IsCancellation(ctx.Err()) {
			return nil, ctx.Err()
		}
		return nil, pkgerrors.NewNetworkError("stream", fmt.Errorf("read response stream: %w", err))
	}

	if callbacks.OnContentDelta != nil {
		callbacks.OnContentDelta(ports.ContentDelta{Final: true})
	}

	return &ports.CompletionResponse{
		Content:    contentBuilder.String(),
		StopReason: finishReason,
		Usage:      usage,
		Metadata:   map[string]any{"model": model},
	}, nil
}

func (c *openaiClient) buildPayload(req ports.CompletionRequest, stream bool) ([]byte, error) {
	payload := map[string]any{
		"model":    c.model,
		"messages": convertOpenAIMessages(req.Messages),
		"stream":   stream,
	}
	if req.Temperature > 0 {
		payload["temperature"] = req.Temperature
	}
	if req.TopP > 0 {
		payload["top_p"] = req.TopP
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if len(req.Stop) > 0 {
		payload["stop"] = req.Stop
	}
	if stream {
		payload["stream_options"] = map[string]any{"include_usage": true}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return body, nil
}

func (c *openaiClient) doRequest(ctx context.Context, client *http.Client, body []byte) (*http.Response, error) {
	endpoint := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	return client.Do(httpReq)
}

func (c *openaiClient) statusError(op string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return pkgerrors.NewNetworkError(op, fmt.Errorf("provider returned %d: %s", status, msg))
}

// convertOpenAIMessages renders messages into the chat completions shape.
// Messages with images become multi-part content with the image parts
// appended after the text part.
func convertOpenAIMessages(msgs []ports.Message) []map[string]any {
	result := make([]map[string]any, 0, len(msgs))
	for _, msg := range msgs {
		role := strings.TrimSpace(msg.Role)
		if role == "" {
			continue
		}
		if len(msg.Images) == 0 {
			result = append(result, map[string]any{
				"role":    role,
				"content": msg.Content,
			})
			continue
		}
		parts := []map[string]any{{"type": "text", "text": msg.Content}}
		for _, img := range msg.Images {
			if strings.TrimSpace(img) == "" {
				continue
			}
			parts = append(parts, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": img},
			})
		}
		result = append(result, map[string]any{
			"role":    role,
			"content": parts,
		})
	}
	return result
}

type openaiResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type openaiStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
