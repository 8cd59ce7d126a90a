// Package storage provides in-memory conversation storage.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Used when on-disk logging is disabled and in tests

package storage

import (
	"context"
	"sync"

	"github.com/richinex/lampcode/llm"
	"github.com/richinex/lampcode/model"
)

// InMemoryStorage implements Store using in-memory maps.
// Data is lost when process terminates.
type InMemoryStorage struct {
	mu        sync.RWMutex
	sessions  map[string][]llm.ChatMessage
	models    map[string]string
	toolCalls []model.ToolRecord
	changes   []ChangeRecord
	errors    []string
	ended     map[string]int
}

// NewInMemoryStorage creates a new in-memory storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		sessions: make(map[string][]llm.ChatMessage),
		models:   make(map[string]string),
		ended:    make(map[string]int),
	}
}

// Save saves conversation history for a session.
func (s *InMemoryStorage) Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Make a copy to avoid external mutations
	copied := make([]llm.ChatMessage, len(history))
	copy(copied, history)
	s.sessions[sessionID] = copied

	return nil
}

// Load loads conversation history for a session.
// Returns empty slice if session doesn't exist.
func (s *InMemoryStorage) Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.sessions[sessionID]
	if !ok {
		return []llm.ChatMessage{}, nil
	}

	// Return a copy to avoid external mutations
	copied := make([]llm.ChatMessage, len(history))
	copy(copied, history)
	return copied, nil
}

// Exists checks if a session exists.
func (s *InMemoryStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, saved := s.sessions[sessionID]
	_, started := s.models[sessionID]
	return saved || started, nil
}

// StartSession records the session's model.
func (s *InMemoryStorage) StartSession(ctx context.Context, sessionID, modelName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.models[sessionID] = modelName
	return nil
}

// EndSession records the final model and accumulates the token total.
func (s *InMemoryStorage) EndSession(ctx context.Context, sessionID, modelName string, totalTokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.models[sessionID] = modelName
	s.ended[sessionID] += totalTokens
	return nil
}

// LogToolCall appends a tool call record.
func (s *InMemoryStorage) LogToolCall(ctx context.Context, sessionID string, rec model.ToolRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Args = model.SanitizeArgs(rec.Args)
	s.toolCalls = append(s.toolCalls, rec)
	return nil
}

// LogChange appends a change record.
func (s *InMemoryStorage) LogChange(ctx context.Context, sessionID string, ch ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.changes = append(s.changes, ch)
	return nil
}

// LogError appends an error message.
func (s *InMemoryStorage) LogError(ctx context.Context, sessionID string, err error, where string) error {
	if err == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := err.Error()
	if where != "" {
		msg = where + ": " + msg
	}
	s.errors = append(s.errors, msg)
	return nil
}

// ToolCalls returns a copy of the logged tool calls.
func (s *InMemoryStorage) ToolCalls() []model.ToolRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]model.ToolRecord(nil), s.toolCalls...)
}

// Changes returns a copy of the logged changes.
func (s *InMemoryStorage) Changes() []ChangeRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]ChangeRecord(nil), s.changes...)
}

// Errors returns a copy of the logged error messages.
func (s *InMemoryStorage) Errors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.errors...)
}

// Close is a no-op.
func (s *InMemoryStorage) Close() error {
	return nil
}

// Verify InMemoryStorage implements Store
var _ Store = (*InMemoryStorage)(nil)
