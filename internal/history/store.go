// Package history persists chat sessions as a durable message log. Turn
// outcomes append user and assistant entries; edits, regenerations, and
// branches rewrite or fork the log.
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pageassist/internal/chat/ports"
	"pageassist/internal/logging"
	"pageassist/internal/storage"
)

const (
	sessionKeyPrefix = "session_"
	maxTitleLength   = 60
)

// Message is one persisted log entry.
type Message struct {
	ID              string          `json:"id"`
	Role            string          `json:"role"`
	Content         string          `json:"content"`
	Image           string          `json:"image,omitempty"`
	Sources         []ports.Passage `json:"sources,omitempty"`
	Model           string          `json:"model,omitempty"`
	GenerationInfo  map[string]any  `json:"generation_info,omitempty"`
	ReasoningTimeMs int64           `json:"reasoning_time_ms,omitempty"`
	MessageType     string          `json:"message_type,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Session is a persisted conversation.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps sessions in the key-value store, one record per session.
// A single mutex serializes mutations; one chat turn is in flight at a
// time so contention is not a concern.
type Store struct {
	mu     sync.Mutex
	kv     storage.KV
	logger logging.Logger
	now    func() time.Time
}

var _ ports.HistoryStore = (*Store)(nil)

// NewStore opens a session store.
func NewStore(kv storage.KV) *Store {
	return &Store{
		kv:     kv,
		logger: logging.NewComponentLogger("history"),
		now:    time.Now,
	}
}

// SaveOnSuccess appends the completed turn's user and assistant messages,
// creating the session on first use. It returns the session id.
func (s *Store) SaveOnSuccess(ctx context.Context, result ports.TurnResult) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendTurn(result, result.Response)
}

// SaveOnError persists what a failed or cancelled turn produced. A partial
// answer is kept alongside the prompt; a turn that produced nothing leaves
// no trace, and handled reports whether anything was written.
func (s *Store) SaveOnError(ctx context.Context, result ports.TurnResult) (string, bool, error) {
	if strings.TrimSpace(result.Response) == "" {
		return result.SessionID, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.appendTurn(result, result.Response)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *Store) appendTurn(result ports.TurnResult, response string) (string, error) {
	session, err := s.loadOrCreate(result.SessionID, result.Model, result.Prompt)
	if err != nil {
		return "", err
	}

	now := s.now()
	if result.Regenerate && len(session.Messages) > 0 {
		// A regeneration replaces the last assistant answer in place.
		last := len(session.Messages) - 1
		if session.Messages[last].Role == "assistant" {
			session.Messages = session.Messages[:last]
		}
	} else {
		session.Messages = append(session.Messages, Message{
			ID:          uuid.NewString(),
			Role:        "user",
			Content:     result.Prompt,
			Image:       result.Image,
			MessageType: result.MessageType,
			CreatedAt:   now,
		})
	}
	session.Messages = append(session.Messages, Message{
		ID:              uuid.NewString(),
		Role:            "assistant",
		Content:         response,
		Sources:         result.Sources,
		Model:           result.Model,
		GenerationInfo:  result.GenerationInfo,
		ReasoningTimeMs: result.ReasoningTimeMs,
		MessageType:     result.MessageType,
		CreatedAt:       now,
	})
	session.UpdatedAt = now
	if session.Model == "" {
		session.Model = result.Model
	}

	if err := s.kv.Set(sessionKeyPrefix+session.ID, session); err != nil {
		return "", fmt.Errorf("persist session: %w", err)
	}
	return session.ID, nil
}

func (s *Store) loadOrCreate(sessionID, model, firstPrompt string) (*Session, error) {
	if sessionID != "" {
		var session Session
		if err := s.kv.Get(sessionKeyPrefix+sessionID, &session); err != nil {
			if !storage.IsNotFound(err) {
				return nil, err
			}
		} else {
			return &session, nil
		}
	}
	now := s.now()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	s.logger.Debug("creating session %s", sessionID)
	return &Session{
		ID:        sessionID,
		Title:     titleFrom(firstPrompt),
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Get returns a stored session.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	if err := s.kv.Get(sessionKeyPrefix+sessionID, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns all sessions, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	keys, err := s.kv.Keys(sessionKeyPrefix)
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(keys))
	for _, key := range keys {
		var session Session
		if err := s.kv.Get(key, &session); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.kv.Delete(sessionKeyPrefix + sessionID)
}

// Entries returns the session's log as backend-facing history entries.
func (s *Store) Entries(ctx context.Context, sessionID string) ([]ports.HistoryEntry, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	entries := make([]ports.HistoryEntry, 0, len(session.Messages))
	for _, msg := range session.Messages {
		entries = append(entries, ports.HistoryEntry{
			Role:        msg.Role,
			Content:     msg.Content,
			Image:       msg.Image,
			MessageType: msg.MessageType,
		})
	}
	return entries, nil
}

// TruncateAt drops messages from index onward, keeping messages [0, index).
func (s *Store) TruncateAt(ctx context.Context, sessionID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if index < 0 || index > len(session.Messages) {
		return fmt.Errorf("truncate index %d out of range for %d messages", index, len(session.Messages))
	}
	session.Messages = session.Messages[:index]
	session.UpdatedAt = s.now()
	return s.kv.Set(sessionKeyPrefix+sessionID, session)
}

// UpdateMessageAt replaces the text of the message at index.
func (s *Store) UpdateMessageAt(ctx context.Context, sessionID string, index int, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(session.Messages) {
		return fmt.Errorf("message index %d out of range for %d messages", index, len(session.Messages))
	}
	session.Messages[index].Content = text
	session.UpdatedAt = s.now()
	return s.kv.Set(sessionKeyPrefix+sessionID, session)
}

// Fork copies messages [0, index] into a new session and returns its id.
// The source session is left untouched.
func (s *Store) Fork(ctx context.Context, sessionID string, index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(session.Messages) {
		return "", fmt.Errorf("branch index %d out of range for %d messages", index, len(session.Messages))
	}

	now := s.now()
	branch := Session{
		ID:        uuid.NewString(),
		Title:     session.Title,
		Model:     session.Model,
		Messages:  append([]Message(nil), session.Messages[:index+1]...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.kv.Set(sessionKeyPrefix+branch.ID, branch); err != nil {
		return "", fmt.Errorf("persist branch: %w", err)
	}
	s.logger.Info("branched session %s at message %d into %s", sessionID, index, branch.ID)
	return branch.ID, nil
}

func titleFrom(prompt string) string {
	title := strings.TrimSpace(strings.Join(strings.Fields(prompt), " "))
	runes := []rune(title)
	if len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength]) + "..."
	}
	if title == "" {
		title = "Untitled"
	}
	return title
}
