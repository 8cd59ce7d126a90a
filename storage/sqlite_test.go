package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/richinex/lampcode/llm"
	"github.com/richinex/lampcode/model"
)

func newTestStorage(t *testing.T) *SqliteStorage {
	t.Helper()
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func TestSqliteStorageSaveAndLoad(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	messages := []llm.ChatMessage{
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there"},
	}

	if err := storage.Save(ctx, "test-session", messages); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := storage.Load(ctx, "test-session")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(loaded) != 2 {
		t.Errorf("expected 2 messages, got %d", len(loaded))
	}
	if loaded[0].Content != "Hello" {
		t.Errorf("expected 'Hello', got '%s'", loaded[0].Content)
	}
	if loaded[1].Content != "Hi there" {
		t.Errorf("expected 'Hi there', got '%s'", loaded[1].Content)
	}
}

func TestSqliteStorageRoundTripsToolCalls(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	messages := []llm.ChatMessage{
		{Role: "user", Content: "read it"},
		{Role: "assistant", ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{"path":"a.go"}`)},
		}},
		llm.ToolResultMessage("call_1", "read_file", `{"type":"read_file_result"}`),
		{Role: "assistant", Content: "done"},
	}
	if err := storage.Save(ctx, "s", messages); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := storage.Load(ctx, "s")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(loaded))
	}
	calls := loaded[1].ToolCalls
	if len(calls) != 1 || calls[0].ID != "call_1" || string(calls[0].Arguments) != `{"path":"a.go"}` {
		t.Errorf("tool calls = %+v", calls)
	}
	if loaded[2].ToolCallID != "call_1" || loaded[2].Name != "read_file" {
		t.Errorf("tool result = %+v", loaded[2])
	}
	if loaded[3].ToolCalls != nil {
		t.Errorf("plain message gained tool calls: %+v", loaded[3].ToolCalls)
	}
}

func TestSqliteStorageLoadNonexistentSession(t *testing.T) {
	storage := newTestStorage(t)

	loaded, err := storage.Load(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(loaded) != 0 {
		t.Errorf("expected empty slice, got %d messages", len(loaded))
	}
}

func TestSqliteStorageOverwriteSession(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	first := []llm.ChatMessage{{Role: "user", Content: "one"}, {Role: "assistant", Content: "two"}}
	second := []llm.ChatMessage{{Role: "user", Content: "three"}}

	if err := storage.Save(ctx, "s", first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := storage.Save(ctx, "s", second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, _ := storage.Load(ctx, "s")
	if len(loaded) != 1 || loaded[0].Content != "three" {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestSqliteStorageJournalAndStats(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	if err := storage.StartSession(ctx, "s1", "gpt-4"); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	ok := model.ToolRecord{
		Timestamp:  time.Now(),
		Tool:       "read_file",
		Status:     model.ToolSuccess,
		DurationMs: 3,
		Args:       json.RawMessage(`{"path":"a.go"}`),
		ResultType: "read_file_result",
	}
	failed := model.ToolRecord{Tool: "edit_file", Status: model.ToolError, Error: "no such file"}
	for _, rec := range []model.ToolRecord{ok, failed} {
		if err := storage.LogToolCall(ctx, "s1", rec); err != nil {
			t.Fatalf("LogToolCall failed: %v", err)
		}
	}
	if err := storage.LogChange(ctx, "s1", ChangeRecord{Type: "file_updated", Path: "a.go"}); err != nil {
		t.Fatalf("LogChange failed: %v", err)
	}
	if err := storage.LogError(ctx, "s1", errors.New("timeout"), "processMessage"); err != nil {
		t.Fatalf("LogError failed: %v", err)
	}
	if err := storage.Save(ctx, "s1", []llm.ChatMessage{{Role: "user", Content: "hi"}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := storage.EndSession(ctx, "s1", "claude-3.5-sonnet", 1200); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	st, err := storage.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if st.Sessions != 1 || st.Messages != 1 || st.ToolCalls != 2 || st.FailedToolCalls != 1 || st.Changes != 1 || st.Errors != 1 {
		t.Errorf("stats = %+v", st)
	}

	sessions, err := storage.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	info := sessions[0]
	if info.Model != "claude-3.5-sonnet" || info.TotalTokens != 1200 || info.ToolCalls != 2 || info.Messages != 1 || info.EndedAt == "" {
		t.Errorf("session = %+v", info)
	}

	recent, err := storage.RecentToolCalls(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("RecentToolCalls failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(recent))
	}
	if recent[0].Tool != "edit_file" || recent[0].Error != "no such file" || recent[0].Succeeded() {
		t.Errorf("newest call = %+v", recent[0])
	}
	if recent[1].ResultType != "read_file_result" || string(recent[1].Args) != `{"path":"a.go"}` {
		t.Errorf("oldest call = %+v", recent[1])
	}
}

func TestSqliteStorageClear(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	_ = storage.Save(ctx, "s", []llm.ChatMessage{{Role: "user", Content: "hi"}})
	_ = storage.LogToolCall(ctx, "s", model.ToolRecord{Tool: "read_file", Status: model.ToolSuccess})

	deleted, err := storage.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}
	exists, _ := storage.Exists(ctx, "s")
	if exists {
		t.Error("session survived Clear")
	}
}

func TestSqliteStorageCleanup(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	_ = storage.Save(ctx, "old", []llm.ChatMessage{{Role: "user", Content: "old"}})
	_ = storage.LogToolCall(ctx, "old", model.ToolRecord{Tool: "read_file", Status: model.ToolSuccess})
	_ = storage.Save(ctx, "new", []llm.ChatMessage{{Role: "user", Content: "new"}})

	stale := time.Now().AddDate(0, 0, -40).UTC().Format(timeLayout)
	if _, err := storage.db.ExecContext(ctx, "UPDATE sessions SET updated_at = ? WHERE session_id = 'old'", stale); err != nil {
		t.Fatal(err)
	}

	removed, err := storage.Cleanup(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	st, _ := storage.Stats(ctx)
	if st.Sessions != 1 || st.Messages != 1 || st.ToolCalls != 0 {
		t.Errorf("stats after cleanup = %+v", st)
	}
	if exists, _ := storage.Exists(ctx, "new"); !exists {
		t.Error("recent session was pruned")
	}
}

func TestOpenJournalWritesGitignore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".lampcode")
	path := filepath.Join(dir, "lampcode.db")

	storage, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal failed: %v", err)
	}
	defer storage.Close()

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	if err != nil {
		t.Fatalf("missing .gitignore: %v", err)
	}
	if string(data) != gitignore {
		t.Errorf(".gitignore = %q", data)
	}
	if storage.Path() != path {
		t.Errorf("Path() = %q, want %q", storage.Path(), path)
	}

	if err := storage.StartSession(context.Background(), "s", "gpt-4"); err != nil {
		t.Fatal(err)
	}
	st, err := storage.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.SizeBytes == 0 {
		t.Error("expected a non-empty database file")
	}
}
