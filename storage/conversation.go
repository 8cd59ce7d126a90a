// Package storage persists conversations and the session journal.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interfaces
// - Allows swapping between memory and SQLite without API changes
// - Each storage implementation encapsulates its own data structures and protocols

package storage

import (
	"context"
	"time"

	"github.com/richinex/lampcode/llm"
	"github.com/richinex/lampcode/model"
)

// ConversationStorage stores the rolling conversation history so a session
// can be resumed.
type ConversationStorage interface {
	// Save replaces the stored history for a session.
	Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error

	// Load returns the stored history for a session.
	// Returns empty slice (not nil) if session doesn't exist.
	// Returns error only for storage failures (I/O errors, etc.), not missing sessions.
	Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error)

	// Exists checks if a session exists.
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// Journal records what happened during a session: tool calls, workspace
// changes and errors.
type Journal interface {
	StartSession(ctx context.Context, sessionID, modelName string) error
	EndSession(ctx context.Context, sessionID, modelName string, totalTokens int) error
	LogToolCall(ctx context.Context, sessionID string, rec model.ToolRecord) error
	LogChange(ctx context.Context, sessionID string, ch ChangeRecord) error
	LogError(ctx context.Context, sessionID string, err error, where string) error
}

// Store is a conversation store that also keeps a journal.
type Store interface {
	ConversationStorage
	Journal
	Close() error
}

// ChangeRecord is a journaled workspace change.
type ChangeRecord struct {
	Type      string
	Path      string
	Count     int
	Timestamp time.Time
}

// SessionInfo summarizes a stored session.
type SessionInfo struct {
	ID          string
	Model       string
	CreatedAt   string
	UpdatedAt   string
	EndedAt     string
	TotalTokens int
	Messages    int
	ToolCalls   int
}

// Stats summarizes a journal.
type Stats struct {
	Path            string
	SizeBytes       int64
	Sessions        int
	Messages        int
	ToolCalls       int
	FailedToolCalls int
	Changes         int
	Errors          int
}
