// Package prompts holds the named prompt store and the assembler that
// turns a chat turn into the ordered message list sent to a backend.
package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	pkgerrors "pageassist/internal/errors"
	"pageassist/internal/storage"
)

// Prompt is a stored, user-managed prompt. System prompts prepend a system
// message; quick prompts rewrite the user's text in place.
type Prompt struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	IsSystem bool   `json:"is_system"`
}

const promptKeyPrefix = "prompt_"

// Store persists named prompts in the key-value store.
type Store struct {
	kv storage.KV
}

// NewStore opens a prompt store.
func NewStore(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// Save stores a prompt, assigning an id when absent.
func (s *Store) Save(p Prompt) (Prompt, error) {
	if strings.TrimSpace(p.Content) == "" {
		return Prompt{}, fmt.Errorf("prompt requires content")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.kv.Set(promptKeyPrefix+p.ID, p); err != nil {
		return Prompt{}, err
	}
	return p, nil
}

// Get returns the prompt with the given id. A missing prompt is a
// configuration error so callers fail the turn instead of silently
// assembling without it.
func (s *Store) Get(id string) (*Prompt, error) {
	var p Prompt
	if err := s.kv.Get(promptKeyPrefix+id, &p); err != nil {
		if storage.IsNotFound(err) {
			return nil, pkgerrors.NewConfigError(pkgerrors.ReasonPromptNotFound, id)
		}
		return nil, err
	}
	return &p, nil
}

// Delete removes a stored prompt.
func (s *Store) Delete(id string) error {
	return s.kv.Delete(promptKeyPrefix + id)
}

// List returns all stored prompts sorted by title.
func (s *Store) List() ([]Prompt, error) {
	keys, err := s.kv.Keys(promptKeyPrefix)
	if err != nil {
		return nil, err
	}
	result := make([]Prompt, 0, len(keys))
	for _, key := range keys {
		var p Prompt
		if err := s.kv.Get(key, &p); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Title < result[j].Title })
	return result, nil
}
