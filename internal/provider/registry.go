// Package provider stores backend descriptors and resolves a model
// reference to a concrete client. Resolution happens once per turn at the
// Resolve boundary; downstream code depends only on the client interface,
// never on the descriptor kind.
package provider

import (
	"fmt"
	"sort"
	"strings"

	"pageassist/internal/storage"
)

// Kind tags a descriptor with the backend family it belongs to.
type Kind string

const (
	KindLocal      Kind = "local"
	KindOpenAI     Kind = "openai-compatible"
	KindSSOGateway Kind = "sso-gateway"
)

// Sampling carries a provider's default sampling parameters. Zero values
// mean "let the backend decide".
type Sampling struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Descriptor is a persisted provider record. Created via settings, read at
// resolve time, never mutated mid-turn.
type Descriptor struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Kind      Kind     `json:"kind"`
	BaseURL   string   `json:"base_url,omitempty"`
	APIKey    string   `json:"api_key,omitempty"`
	Model     string   `json:"model"`
	ProjectID string   `json:"project_id,omitempty"` // sso-gateway only
	Location  string   `json:"location,omitempty"`   // sso-gateway only
	Sampling  Sampling `json:"sampling,omitempty"`
}

const descriptorKeyPrefix = "provider_"

// Registry persists descriptors in the key-value store, one key per record.
type Registry struct {
	kv storage.KV
}

// NewRegistry opens a registry over the given store.
func NewRegistry(kv storage.KV) *Registry {
	return &Registry{kv: kv}
}

// Put stores or replaces a descriptor.
func (r *Registry) Put(desc Descriptor) error {
	if strings.TrimSpace(desc.ID) == "" {
		return fmt.Errorf("descriptor requires an id")
	}
	if desc.Kind == "" {
		return fmt.Errorf("descriptor %q requires a kind", desc.ID)
	}
	return r.kv.Set(descriptorKeyPrefix+desc.ID, desc)
}

// Get returns the descriptor for id, or nil when none is stored.
func (r *Registry) Get(id string) (*Descriptor, error) {
	var desc Descriptor
	if err := r.kv.Get(descriptorKeyPrefix+id, &desc); err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &desc, nil
}

// Remove deletes a descriptor.
func (r *Registry) Remove(id string) error {
	return r.kv.Delete(descriptorKeyPrefix + id)
}

// List returns all stored descriptors sorted by id.
func (r *Registry) List() ([]Descriptor, error) {
	keys, err := r.kv.Keys(descriptorKeyPrefix)
	if err != nil {
		return nil, err
	}
	descs := make([]Descriptor, 0, len(keys))
	for _, key := range keys {
		var desc Descriptor
		if err := r.kv.Get(key, &desc); err != nil {
			return nil, err
		}
		descs = append(descs, desc)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].ID < descs[j].ID })
	return descs, nil
}
