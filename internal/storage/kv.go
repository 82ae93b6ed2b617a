// Package storage provides a durable key-value store with atomic per-key
// reads and writes. Token caches, provider descriptors, and named prompts
// persist through it; no cross-key transactions are offered or needed.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = os.ErrNotExist

// IsNotFound reports whether err means the key had no stored value.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// KV is a minimal durable key-value contract. Values are JSON documents.
type KV interface {
	Get(key string, out any) error
	Set(key string, value any) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
}

// fileKV stores each key as its own JSON file under a base directory.
// Writes go to a temp file first and are renamed into place, so a reader
// never observes a torn value.
type fileKV struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileKV opens (creating if needed) a file-backed store rooted at baseDir.
func NewFileKV(baseDir string) (KV, error) {
	if strings.HasPrefix(baseDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		baseDir = filepath.Join(home, baseDir[2:])
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &fileKV{baseDir: baseDir}, nil
}

// Root returns the resolved base directory.
func (s *fileKV) Root() string {
	return s.baseDir
}

func (s *fileKV) path(key string) string {
	// Keys may contain separators ("provider/abc"); flatten them so every
	// key maps to a single file in baseDir.
	safe := strings.ReplaceAll(key, string(os.PathSeparator), "_")
	return filepath.Join(s.baseDir, safe+".json")
}

func (s *fileKV) Get(key string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("key %q: %w", key, ErrNotFound)
		}
		return fmt.Errorf("read key %q: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode key %q: %w", key, err)
	}
	return nil
}

func (s *fileKV) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key %q: %w", key, err)
	}
	path := s.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write key %q: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit key %q: %w", key, err)
	}
	return nil
}

func (s *fileKV) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete key %q: %w", key, err)
	}
	return nil
}

func (s *fileKV) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	var keys []string
	flatPrefix := strings.ReplaceAll(prefix, string(os.PathSeparator), "_")
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		key := strings.TrimSuffix(name, ".json")
		if flatPrefix != "" && !strings.HasPrefix(key, flatPrefix) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// memKV is an in-memory KV for tests and temporary (incognito-style) chats.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemKV returns a volatile in-memory store.
func NewMemKV() KV {
	return &memKV{data: make(map[string][]byte)}
}

func (s *memKV) Get(key string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.data[key]
	if !ok {
		return fmt.Errorf("key %q: %w", key, ErrNotFound)
	}
	return json.Unmarshal(data, out)
}

func (s *memKV) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

func (s *memKV) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memKV) Keys(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.data {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
