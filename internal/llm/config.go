// Package llm implements the model backends: a local Ollama client, an
// OpenAI-compatible HTTP client, and an SSO-gated Gemini gateway client.
// All of them satisfy ports.LLMClient; streaming implementations also
// satisfy ports.StreamingLLMClient.
package llm

import "time"

// Config carries the per-backend connection settings resolved from a
// provider descriptor.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds non-streaming calls, in seconds. Zero means the
	// client default. Streaming calls are bounded by their context.
	Timeout int
	Headers map[string]string
}

func (c Config) timeoutOrDefault(def time.Duration) time.Duration {
	if c.Timeout > 0 {
		return time.Duration(c.Timeout) * time.Second
	}
	return def
}
