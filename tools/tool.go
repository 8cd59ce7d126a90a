// Package tools provides the workspace file tools the agent can call.
//
// Information Hiding:
// - Path containment and symlink checks run inside every tool
// - Argument sanitization and defaults resolved at the validation boundary
// - Atomic write strategy hidden behind create and edit
// - Context cache updates reported back after mutations
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/richinex/lampcode/contextcache"
	"github.com/richinex/lampcode/internal/pathguard"
	"github.com/richinex/lampcode/internal/scanner"
)

// ToolMetadata describes what a tool does and how to call it.
type ToolMetadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// String returns a string representation of the tool metadata.
func (m ToolMetadata) String() string {
	return fmt.Sprintf("%s: %s", m.Name, m.Description)
}

// Result is the tagged outcome of a tool call. Kind is the value of the
// "type" field in the encoded JSON.
type Result interface {
	Kind() string
}

// Tool is the interface that all tools must implement.
type Tool interface {
	// Metadata returns tool metadata (name, description, JSON schema).
	Metadata() ToolMetadata

	// Validate checks arguments without touching the filesystem.
	Validate(args json.RawMessage) error

	// Execute runs the tool. Returned errors are reported to the model as
	// tool_error results; they never abort the agent loop.
	Execute(ctx context.Context, args json.RawMessage) (Result, error)
}

// ContextStore is the slice of the context cache the tools report to.
type ContextStore interface {
	Refresh(ctx context.Context, path string, change contextcache.ChangeType) (contextcache.Entry, error)
	Rescan(ctx context.Context) ([]contextcache.Entry, error)
	RescanWith(ctx context.Context, limit int, includeHidden bool) ([]contextcache.Entry, error)
	Entries() []contextcache.Entry
}

// Workspace bundles what file tools need: the guard that confines paths,
// the scanner used for search and listing, and the context store.
type Workspace struct {
	Guard   *pathguard.Guard
	Scanner *scanner.Scanner
	Context ContextStore
	Logger  *slog.Logger
}

// NewWorkspace wires a workspace for root.
func NewWorkspace(guard *pathguard.Guard, sc *scanner.Scanner, store ContextStore, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{Guard: guard, Scanner: sc, Context: store, Logger: logger}
}

// Encode renders a result as the JSON the model receives.
func Encode(r Result) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", r.Kind(), err)
	}
	return string(data), nil
}

// RefreshInfo reports a context rescan triggered by a mutating tool.
type RefreshInfo struct {
	Count int `json:"count"`
}

// ContextFile describes a cached file in list_context and refresh_context.
type ContextFile struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Modified string `json:"modified,omitempty"`
	Preview  string `json:"preview,omitempty"`
}

// refreshEntry updates the cache after a write. Failures are logged and
// otherwise ignored so they never mask a successful write.
func (w *Workspace) refreshEntry(ctx context.Context, rel string, change contextcache.ChangeType) *contextcache.Entry {
	if w.Context == nil {
		return nil
	}
	entry, err := w.Context.Refresh(ctx, rel, change)
	if err != nil {
		w.Logger.Warn("context refresh failed", "path", rel, "error", err)
		return nil
	}
	return &entry
}

func (w *Workspace) rescan(ctx context.Context) (*RefreshInfo, error) {
	if w.Context == nil {
		return nil, fmt.Errorf("context cache is unavailable")
	}
	entries, err := w.Context.Rescan(ctx)
	if err != nil {
		return nil, err
	}
	return &RefreshInfo{Count: len(entries)}, nil
}
