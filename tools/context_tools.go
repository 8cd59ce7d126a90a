// list_context and refresh_context: inspect and rebuild the context cache.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const contextPreviewChars = 200

// ListContextResult is returned by list_context.
type ListContextResult struct {
	Type  string        `json:"type"`
	Count int           `json:"count"`
	Files []ContextFile `json:"files"`
}

// Kind implements Result.
func (ListContextResult) Kind() string { return "list_context_result" }

// RefreshContextResult is returned by refresh_context.
type RefreshContextResult struct {
	Type    string        `json:"type"`
	Message string        `json:"message"`
	Files   []ContextFile `json:"files"`
}

// Kind implements Result.
func (RefreshContextResult) Kind() string { return "refresh_context_result" }

// ListContextTool lists cached project files.
type ListContextTool struct {
	ws *Workspace
}

// NewListContextTool creates a list_context tool.
func NewListContextTool(ws *Workspace) *ListContextTool {
	return &ListContextTool{ws: ws}
}

// Metadata returns the tool metadata.
func (t *ListContextTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "list_context",
		Description: "List currently cached project files with metadata and content previews",
		Parameters:  emptySchema(),
	}
}

// Validate accepts any object.
func (t *ListContextTool) Validate(args json.RawMessage) error {
	var v map[string]any
	return decodeArgs("list_context", args, &v)
}

// Execute lists cached files with short previews.
func (t *ListContextTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	if t.ws.Context == nil {
		return nil, fmt.Errorf("context cache is unavailable")
	}
	entries := t.ws.Context.Entries()
	files := make([]ContextFile, 0, len(entries))
	for _, e := range entries {
		preview, _ := truncateChars(e.Content, contextPreviewChars, "")
		files = append(files, ContextFile{Path: e.Path, Size: e.Size, Preview: preview})
	}
	return ListContextResult{Type: ListContextResult{}.Kind(), Count: len(files), Files: files}, nil
}

// RefreshContextTool rescans the workspace into the context cache.
type RefreshContextTool struct {
	ws *Workspace
}

// NewRefreshContextTool creates a refresh_context tool.
func NewRefreshContextTool(ws *Workspace) *RefreshContextTool {
	return &RefreshContextTool{ws: ws}
}

// Metadata returns the tool metadata.
func (t *RefreshContextTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "refresh_context",
		Description: "Refresh the project file cache by scanning the workspace. Use when you need to see recently created/modified files.",
		Parameters:  refreshContextSchema(),
	}
}

// Bounds for refresh_context's limit argument.
const (
	defaultRefreshLimit = 20
	maxRefreshLimit     = 100
)

type refreshContextArgs struct {
	Limit           *float64 `json:"limit"`
	IncludeMetadata *bool    `json:"include_metadata"`
	IncludeHidden   *bool    `json:"include_hidden"`
}

type refreshContextRequest struct {
	limit         int
	withMeta      bool
	includeHidden bool
}

func (t *RefreshContextTool) parse(raw json.RawMessage) (refreshContextRequest, error) {
	var a refreshContextArgs
	if err := decodeArgs("refresh_context", raw, &a); err != nil {
		return refreshContextRequest{}, err
	}
	limit, ok, err := optionalCount("refresh_context", "limit", a.Limit)
	if err != nil {
		return refreshContextRequest{}, err
	}
	if !ok {
		limit = defaultRefreshLimit
	}
	return refreshContextRequest{
		limit:         clamp(limit, 1, maxRefreshLimit),
		withMeta:      boolOr(a.IncludeMetadata, false),
		includeHidden: boolOr(a.IncludeHidden, false),
	}, nil
}

// Validate validates the arguments.
func (t *RefreshContextTool) Validate(args json.RawMessage) error {
	_, err := t.parse(args)
	return err
}

// Execute rescans and reports the tracked files.
func (t *RefreshContextTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	req, err := t.parse(args)
	if err != nil {
		return nil, err
	}
	if t.ws.Context == nil {
		return nil, fmt.Errorf("context cache is unavailable")
	}
	entries, err := t.ws.Context.RescanWith(ctx, req.limit, req.includeHidden)
	if err != nil {
		return nil, err
	}
	files := make([]ContextFile, 0, len(entries))
	for _, e := range entries {
		f := ContextFile{Path: e.Path, Size: e.Size}
		if req.withMeta {
			f.Modified = e.Modified.UTC().Format(time.RFC3339Nano)
		}
		files = append(files, f)
	}
	return RefreshContextResult{
		Type:    RefreshContextResult{}.Kind(),
		Message: fmt.Sprintf("Project context refreshed with %d file(s).", len(files)),
		Files:   files,
	}, nil
}
