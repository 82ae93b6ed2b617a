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

var _ ports.StreamingLLMClient = (*geminiClient)(nil)

// TokenSource supplies the bearer token for gateway requests. Each request
// captures its own token value at send time; Invalidate is called after a
// detected 401 so the next fetch logs in afresh.
type TokenSource interface {
	GetValidToken(ctx context.Context) (string, error)
	Invalidate()
}

// GeminiConfig locates a model behind the SSO gateway. One endpoint
// template per provider; the endpoint shape is a configuration concern,
// not something probed at runtime.
type GeminiConfig struct {
	GatewayURL string
	ProjectID  string
	Location   string
	Model      string
	Timeout    int // seconds, non-streaming calls
}

// geminiClient calls a Vertex-style generateContent API behind an
// enterprise SSO gateway. A 401 triggers exactly one transparent retry
// with a refreshed token; a second 401 surfaces as an auth error.
type geminiClient struct {
	config     GeminiConfig
	tokens     TokenSource
	httpClient *http.Client
	streaming  *http.Client
	logger     logging.Logger
}

// NewGeminiClient builds an SSO-gated Gemini backend.
func NewGeminiClient(config GeminiConfig, tokens TokenSource) (ports.LLMClient, error) {
	if strings.TrimSpace(config.GatewayURL) == "" {
		return nil, fmt.Errorf("gemini gateway requires a base URL")
	}
	if strings.TrimSpace(config.Model) == "" {
		config.Model = "gemini-2.5-flash"
	}
	timeout := 120 * time.Second
	if config.Timeout > 0 {
		timeout = time.Duration(config.Timeout) * time.Second
	}

	logger := logging.NewComponentLogger("gemini-client")
	return &geminiClient{
		config:     config,
		tokens:     tokens,
		httpClient: httpclient.New(timeout, logger),
		streaming:  httpclient.NewStreaming(logger),
		logger:     logger,
	}, nil
}

func (c *geminiClient) Model() string {
	return c.config.Model
}

func (c *geminiClient) endpoint(action string) string {
	base := strings.TrimRight(c.config.GatewayURL, "/")
	return fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:%s",
		base, c.config.ProjectID, c.config.Location, c.config.Model, action)
}

func (c *geminiClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	body, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.doAuthenticated(ctx, c.httpClient, c.endpoint("generateContent"), body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := httpclient.ReadAllWithLimit(resp.Body, 8<<20)
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}
	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return nil, pkgerrors.NewNetworkError("invoke", fmt.Errorf("no candidates in gateway response"))
	}

	var builder strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		builder.WriteString(part.Text)
	}
	return &ports.CompletionResponse{
		Content:    builder.String(),
		StopReason: strings.ToLower(parsed.Candidates[0].FinishReason),
		Usage:      parsed.usage(),
		Metadata:   map[string]any{"model": c.config.Model, "model_version": parsed.ModelVersion},
	}, nil
}

func (c *geminiClient) StreamComplete(ctx context.Context, req ports.CompletionRequest, callbacks ports.CompletionStreamCallbacks) (*ports.CompletionResponse, error) {
	body, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.doAuthenticated(ctx, c.streaming, c.endpoint("streamGenerateContent"), body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var builder strings.Builder
	usage := ports.TokenUsage{}
	finishReason := ""

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// The gateway streams a JSON array one object per line; strip the
		// array punctuation and skip anything that still fails to parse.
		line := strings.Trim(strings.TrimSpace(scanner.Text()), "[],")
		if line == "" {
			continue
		}
		var chunk geminiResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			c.logger.Debug("skipping malformed stream chunk: %v", err)
			continue
		}
		if u := chunk.usage(); u.TotalTokens > 0 {
			usage = u
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		candidate := chunk.Candidates[0]
		if candidate.FinishReason != "" {
			finishReason = strings.ToLower(candidate.FinishReason)
		}
		for _, part := range candidate.Content.Parts {
			if part.Text == "" {
				continue
			}
			builder.WriteString(part.Text)
			if callbacks.OnContentDelta != nil {
				callbacks.OnContentDelta(ports.ContentDelta{Delta: part.Text})
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if pkgerrors.IsCancellation(ctx.Err()) {
			return nil, ctx.Err()
		}
		return nil, pkgerrors.NewNetworkError("stream", fmt.Errorf("read gateway stream: %w", err))
	}

	if callbacks.OnContentDelta != nil {
		callbacks.OnContentDelta(ports.ContentDelta{Final: true})
	}

	return &ports.CompletionResponse{
		Content:    builder.String(),
		StopReason: finishReason,
		Usage:      usage,
		Metadata:   map[string]any{"model": c.config.Model},
	}, nil
}

// doAuthenticated sends the request with a bearer token captured at send
// time. On a 401 it invalidates the cache, refreshes, and retries exactly
// once; a second consecutive 401 surfaces as an auth error rather than
// looping.
func (c *geminiClient) doAuthenticated(ctx context.Context, client *http.Client, url string, body []byte) (*http.Response, error) {
	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, client, url, body, token)
	if err != nil {
		if pkgerrors.IsCancellation(err) {
			return nil, err
		}
		return nil, pkgerrors.NewNetworkError("invoke", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return c.checkStatus(resp)
	}
	_ = resp.Body.Close()

	c.logger.Info("gateway returned 401, refreshing token and retrying once")
	c.tokens.Invalidate()
	token, err = c.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err = c.send(ctx, client, url, body, token)
	if err != nil {
		if pkgerrors.IsCancellation(err) {
			return nil, err
		}
		return nil, pkgerrors.NewNetworkError("invoke", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		return nil, pkgerrors.NewAuthError(pkgerrors.ReasonRefreshFailed, http.StatusUnauthorized,
			fmt.Errorf("gateway rejected refreshed token"))
	}
	return c.checkStatus(resp)
}

func (c *geminiClient) send(ctx context.Context, client *http.Client, url string, body []byte, token string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	return client.Do(httpReq)
}

func (c *geminiClient) checkStatus(resp *http.Response) (*http.Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	body, _ := httpclient.ReadAllWithLimit(resp.Body, 64*1024)
	_ = resp.Body.Close()
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return nil, pkgerrors.NewNetworkError("invoke",
		fmt.Errorf("gateway returned %d: %s", resp.StatusCode, msg))
}

func (c *geminiClient) buildPayload(req ports.CompletionRequest) ([]byte, error) {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = 0.2
	}
	topP := req.TopP
	if topP == 0 {
		topP = 0.8
	}
	topK := req.TopK
	if topK == 0 {
		topK = 40
	}
	generation := map[string]any{
		"temperature": temperature,
		"topP":        topP,
		"topK":        topK,
	}
	if req.MaxTokens > 0 {
		generation["maxOutputTokens"] = req.MaxTokens
	}

	payload := geminiRequest{
		Contents: convertGeminiContents(req.Messages),
		SafetySettings: []geminiSafetySetting{
			{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_LOW_AND_ABOVE"},
		},
		GenerationConfig: generation,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway request: %w", err)
	}
	return body, nil
}

// convertGeminiContents maps chat roles onto the gateway's user/model pair.
// The API has no system role, so system content is folded into a user entry
// with a "System:" prefix.
func convertGeminiContents(msgs []ports.Message) []geminiContent {
	result := make([]geminiContent, 0, len(msgs))
	for _, msg := range msgs {
		content := msg.Content
		role := "user"
		switch strings.ToLower(strings.TrimSpace(msg.Role)) {
		case "assistant", "model":
			role = "model"
		case "system":
			content = "System: " + content
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		result = append(result, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: content}},
		})
	}
	return result
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiRequest struct {
	Contents         []geminiContent       `json:"contents"`
	SafetySettings   []geminiSafetySetting `json:"safety_settings,omitempty"`
	GenerationConfig map[string]any        `json:"generation_config,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Role  string       `json:"role"`
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

func (r geminiResponse) usage() ports.TokenUsage {
	if r.UsageMetadata == nil {
		return ports.TokenUsage{}
	}
	return ports.TokenUsage{
		PromptTokens:     r.UsageMetadata.PromptTokenCount,
		CompletionTokens: r.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      r.UsageMetadata.TotalTokenCount,
	}
}
