// Package storage provides the SQLite session journal.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema and migration details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/lampcode/llm"
	"github.com/richinex/lampcode/model"
)

// timeLayout matches SQLite's datetime('now') so stored timestamps compare
// as strings.
const timeLayout = "2006-01-02 15:04:05"

// gitignore keeps the journal out of version control.
const gitignore = `# LampCode logs - excluded by default for privacy
*.db
*.db-journal
*.db-wal
*.db-shm
`

// SqliteStorage implements Store using SQLite.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteStorage struct {
	db   *sql.DB
	path string
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	// Create parent directory if needed
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	storage := &SqliteStorage{db: db, path: path}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// OpenJournal opens the journal at path and drops a .gitignore next to it.
func OpenJournal(path string) (*SqliteStorage, error) {
	s, err := OpenSqlite(path)
	if err != nil {
		return nil, err
	}
	ignore := filepath.Join(filepath.Dir(path), ".gitignore")
	if _, err := os.Stat(ignore); errors.Is(err, os.ErrNotExist) {
		// A missing .gitignore only affects version control hygiene.
		_ = os.WriteFile(ignore, []byte(gitignore), 0644)
	}
	return s, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path, empty for in-memory databases.
func (s *SqliteStorage) Path() string {
	return s.path
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			model TEXT NOT NULL DEFAULT '',
			total_tokens INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now')),
			ended_at TEXT
		);

		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			message_index INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			tool_calls TEXT,
			tool_call_id TEXT,
			name TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE,
			UNIQUE(session_id, message_index)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_session
		ON messages(session_id, message_index);

		CREATE TABLE IF NOT EXISTS tool_calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			tool TEXT NOT NULL,
			status TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			args TEXT,
			result_type TEXT,
			error TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_tool_calls_session
		ON tool_calls(session_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			change_type TEXT NOT NULL,
			path TEXT,
			count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			message TEXT NOT NULL,
			context TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SqliteStorage) ensureSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO sessions (session_id) VALUES (?)",
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}

func (s *SqliteStorage) touch(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET updated_at = datetime('now') WHERE session_id = ?",
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}
	return nil
}

// Save saves conversation history for a session.
func (s *SqliteStorage) Save(ctx context.Context, sessionID string, history []llm.ChatMessage) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to clear old messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (session_id, message_index, role, content, tool_calls, tool_call_id, name)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, msg := range history {
		var calls any
		if len(msg.ToolCalls) > 0 {
			data, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("failed to encode tool calls: %w", err)
			}
			calls = string(data)
		}
		_, err = stmt.ExecContext(ctx, sessionID, i, msg.Role, msg.Content, calls, nullable(msg.ToolCallID), nullable(msg.Name))
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = datetime('now') WHERE session_id = ?",
		sessionID)
	if err != nil {
		return fmt.Errorf("failed to update session timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Load loads conversation history for a session.
// Returns empty slice if session doesn't exist.
func (s *SqliteStorage) Load(ctx context.Context, sessionID string) ([]llm.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, tool_calls, tool_call_id, name
		FROM messages WHERE session_id = ? ORDER BY message_index ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []llm.ChatMessage{} // Start with empty slice, not nil
	for rows.Next() {
		var msg llm.ChatMessage
		var calls, callID, name sql.NullString
		if err := rows.Scan(&msg.Role, &msg.Content, &calls, &callID, &name); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if calls.Valid && calls.String != "" {
			if err := json.Unmarshal([]byte(calls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("invalid tool calls in database: %w", err)
			}
		}
		msg.ToolCallID = callID.String
		msg.Name = name.String
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// Exists checks if a session exists.
func (s *SqliteStorage) Exists(ctx context.Context, sessionID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sessions WHERE session_id = ?",
		sessionID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}

	return count > 0, nil
}

// Journal implementation

// StartSession registers a session and the model it runs with.
func (s *SqliteStorage) StartSession(ctx context.Context, sessionID, modelName string) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET model = ?, ended_at = NULL, updated_at = datetime('now') WHERE session_id = ?",
		modelName, sessionID)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	return nil
}

// EndSession stamps the session end with the final model and token total.
func (s *SqliteStorage) EndSession(ctx context.Context, sessionID, modelName string, totalTokens int) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET model = ?, total_tokens = total_tokens + ?, ended_at = datetime('now'), updated_at = datetime('now')
		WHERE session_id = ?`,
		modelName, totalTokens, sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// LogToolCall appends a tool call record. Large content arguments are
// shortened first.
func (s *SqliteStorage) LogToolCall(ctx context.Context, sessionID string, rec model.ToolRecord) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}
	var args any
	if len(rec.Args) > 0 {
		args = string(model.SanitizeArgs(rec.Args))
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_calls (session_id, tool, status, duration_ms, args, result_type, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID,
		rec.Tool,
		string(rec.Status),
		rec.DurationMs,
		args,
		nullable(rec.ResultType),
		nullable(rec.Error),
		formatTime(rec.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to log tool call: %w", err)
	}
	return s.touch(ctx, sessionID)
}

// LogChange appends a workspace change record.
func (s *SqliteStorage) LogChange(ctx context.Context, sessionID string, ch ChangeRecord) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO changes (session_id, change_type, path, count, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, ch.Type, nullable(ch.Path), ch.Count, formatTime(ch.Timestamp))
	if err != nil {
		return fmt.Errorf("failed to log change: %w", err)
	}
	return s.touch(ctx, sessionID)
}

// LogError appends an error record. where names the failing operation.
func (s *SqliteStorage) LogError(ctx context.Context, sessionID string, logged error, where string) error {
	if logged == nil {
		return nil
	}
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO errors (session_id, message, context, created_at)
		VALUES (?, ?, ?, ?)`,
		sessionID, logged.Error(), nullable(where), formatTime(time.Time{}))
	if err != nil {
		return fmt.Errorf("failed to log error: %w", err)
	}
	return s.touch(ctx, sessionID)
}

// RecentToolCalls returns up to limit tool calls, newest first. An empty
// sessionID spans all sessions.
func (s *SqliteStorage) RecentToolCalls(ctx context.Context, sessionID string, limit int) ([]model.ToolRecord, error) {
	query := `
		SELECT tool, status, duration_ms, args, result_type, error, created_at
		FROM tool_calls`
	args := []any{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer rows.Close()

	records := []model.ToolRecord{}
	for rows.Next() {
		var rec model.ToolRecord
		var status, created string
		var callArgs, resultType, callErr sql.NullString
		if err := rows.Scan(&rec.Tool, &status, &rec.DurationMs, &callArgs, &resultType, &callErr, &created); err != nil {
			return nil, fmt.Errorf("failed to scan tool call: %w", err)
		}
		rec.Status = model.ToolStatus(status)
		if callArgs.Valid {
			rec.Args = json.RawMessage(callArgs.String)
		}
		rec.ResultType = resultType.String
		rec.Error = callErr.String
		if t, err := time.Parse(timeLayout, created); err == nil {
			rec.Timestamp = t
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tool calls: %w", err)
	}
	return records, nil
}

// Sessions lists stored sessions, most recently updated first.
func (s *SqliteStorage) Sessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.model, s.created_at, s.updated_at, s.ended_at, s.total_tokens,
			(SELECT COUNT(*) FROM messages m WHERE m.session_id = s.session_id),
			(SELECT COUNT(*) FROM tool_calls t WHERE t.session_id = s.session_id)
		FROM sessions s
		ORDER BY s.updated_at DESC, s.session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []SessionInfo{} // Start with empty slice, not nil
	for rows.Next() {
		var info SessionInfo
		var ended sql.NullString
		if err := rows.Scan(&info.ID, &info.Model, &info.CreatedAt, &info.UpdatedAt, &ended,
			&info.TotalTokens, &info.Messages, &info.ToolCalls); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		info.EndedAt = ended.String
		sessions = append(sessions, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// Stats counts the journal's rows and reports the database file size.
func (s *SqliteStorage) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Path: s.path}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM sessions", &st.Sessions},
		{"SELECT COUNT(*) FROM messages", &st.Messages},
		{"SELECT COUNT(*) FROM tool_calls", &st.ToolCalls},
		{"SELECT COUNT(*) FROM tool_calls WHERE status = 'error'", &st.FailedToolCalls},
		{"SELECT COUNT(*) FROM changes", &st.Changes},
		{"SELECT COUNT(*) FROM errors", &st.Errors},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return Stats{}, fmt.Errorf("failed to count rows: %w", err)
		}
	}
	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			st.SizeBytes = info.Size()
		}
	}
	return st, nil
}

// journalTables lists child tables before sessions so deletes never orphan
// rows even without foreign key enforcement.
var journalTables = []string{"messages", "tool_calls", "changes", "errors", "sessions"}

// Clear deletes every journal row and returns how many were removed.
func (s *SqliteStorage) Clear(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var deleted int64
	for _, table := range journalTables {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table)
		if err != nil {
			return 0, fmt.Errorf("failed to clear %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return deleted, nil
}

// Cleanup deletes sessions last updated before cutoff, with their records.
// Returns the number of sessions removed.
func (s *SqliteStorage) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stamp := cutoff.UTC().Format(timeLayout)
	var removed int64
	for _, table := range journalTables {
		query := "DELETE FROM " + table + " WHERE session_id IN (SELECT session_id FROM sessions WHERE updated_at < ?)"
		if table == "sessions" {
			query = "DELETE FROM sessions WHERE updated_at < ?"
		}
		res, err := tx.ExecContext(ctx, query, stamp)
		if err != nil {
			return 0, fmt.Errorf("failed to prune %s: %w", table, err)
		}
		if table == "sessions" {
			removed, _ = res.RowsAffected()
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return removed, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// formatTime renders t in the journal layout, using now for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

// Verify SqliteStorage implements Store
var _ Store = (*SqliteStorage)(nil)
