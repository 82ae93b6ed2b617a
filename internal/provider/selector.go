package provider

import (
	"strings"

	"pageassist/internal/chat/ports"
	pkgerrors "pageassist/internal/errors"
	"pageassist/internal/llm"
	"pageassist/internal/logging"
)

// Selector resolves a model reference to a backend client. Selection is
// strictly a function of the reference: a reference matching a stored
// descriptor is built from that descriptor's kind, anything else is treated
// as a local Ollama model name against the configured Ollama URL.
type Selector struct {
	registry  *Registry
	tokens    llm.TokenSource
	ollamaURL string
	logger    logging.Logger
}

// NewSelector builds a selector. tokens backs sso-gateway descriptors and
// may be nil when no gateway provider is configured.
func NewSelector(registry *Registry, tokens llm.TokenSource, ollamaURL string) *Selector {
	return &Selector{
		registry:  registry,
		tokens:    tokens,
		ollamaURL: ollamaURL,
		logger:    logging.NewComponentLogger("backend-selector"),
	}
}

// Resolve constructs the backend for modelRef. The returned client always
// supports streaming; non-streaming backends are wrapped.
func (s *Selector) Resolve(modelRef string) (ports.StreamingLLMClient, error) {
	modelRef = strings.TrimSpace(modelRef)
	if modelRef == "" {
		return nil, pkgerrors.NewConfigError(pkgerrors.ReasonUnknownModel, modelRef)
	}

	desc, err := s.registry.Get(modelRef)
	if err != nil {
		return nil, err
	}
	if desc == nil {
		// Not a stored descriptor: a bare local model name.
		if s.ollamaURL == "" {
			return nil, pkgerrors.NewConfigError(pkgerrors.ReasonUnknownModel, modelRef)
		}
		client, err := llm.NewOllamaClient(modelRef, llm.Config{BaseURL: s.ollamaURL})
		if err != nil {
			return nil, err
		}
		return llm.EnsureStreaming(client), nil
	}

	s.logger.Debug("resolved %s to %s provider %s", modelRef, desc.Kind, desc.ID)
	switch desc.Kind {
	case KindSSOGateway:
		if s.tokens == nil {
			return nil, pkgerrors.NewConfigError(pkgerrors.ReasonNotConfigured, desc.ID)
		}
		client, err := llm.NewGeminiClient(llm.GeminiConfig{
			GatewayURL: desc.BaseURL,
			ProjectID:  desc.ProjectID,
			Location:   desc.Location,
			Model:      desc.Model,
		}, s.tokens)
		if err != nil {
			return nil, err
		}
		return llm.EnsureStreaming(client), nil
	case KindOpenAI:
		client, err := llm.NewOpenAIClient(desc.Model, llm.Config{
			BaseURL: desc.BaseURL,
			APIKey:  desc.APIKey,
		})
		if err != nil {
			return nil, err
		}
		return llm.EnsureStreaming(client), nil
	case KindLocal:
		baseURL := desc.BaseURL
		if baseURL == "" {
			baseURL = s.ollamaURL
		}
		client, err := llm.NewOllamaClient(desc.Model, llm.Config{BaseURL: baseURL})
		if err != nil {
			return nil, err
		}
		return llm.EnsureStreaming(client), nil
	default:
		return nil, pkgerrors.NewConfigError(pkgerrors.ReasonUnknownModel, modelRef)
	}
}

// SamplingFor returns the stored sampling defaults for modelRef, or zero
// values when the reference has no descriptor.
func (s *Selector) SamplingFor(modelRef string) Sampling {
	desc, err := s.registry.Get(strings.TrimSpace(modelRef))
	if err != nil || desc == nil {
		return Sampling{}
	}
	return desc.Sampling
}
