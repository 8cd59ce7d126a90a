// create_file: exclusive creation or atomic overwrite of workspace files.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/richinex/lampcode/contextcache"
	"github.com/richinex/lampcode/internal/pathguard"
)

// ErrConflict is matched by errors about existing files that may not be
// replaced.
var ErrConflict = errors.New("file already exists")

// ConflictError reports a create_file call that would overwrite a file
// without permission.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("File %q already exists. Set \"overwrite\": true to replace it.", e.Path)
}

// Is reports whether target is ErrConflict.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Create statuses.
const (
	StatusCreated     = "created"
	StatusOverwritten = "overwritten"
)

// CreateFileResult is returned by create_file.
type CreateFileResult struct {
	Type             string       `json:"type"`
	Path             string       `json:"path"`
	Status           string       `json:"status"`
	BytesWritten     int          `json:"bytes_written"`
	Modified         string       `json:"modified,omitempty"`
	Size             *int64       `json:"size,omitempty"`
	RefreshedContext *RefreshInfo `json:"refreshed_context,omitempty"`
}

// Kind implements Result.
func (CreateFileResult) Kind() string { return "create_file_result" }

type createFileArgs struct {
	Path           string  `json:"path"`
	Content        *string `json:"content"`
	Overwrite      *bool   `json:"overwrite"`
	RefreshContext *bool   `json:"refresh_context"`
}

type createFileRequest struct {
	path      string
	content   string
	overwrite bool
	refresh   bool
}

// CreateFileTool creates files.
type CreateFileTool struct {
	ws *Workspace
}

// NewCreateFileTool creates a create_file tool.
func NewCreateFileTool(ws *Workspace) *CreateFileTool {
	return &CreateFileTool{ws: ws}
}

// Metadata returns the tool metadata.
func (t *CreateFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "create_file",
		Description: "Create a new file or overwrite an existing file with specified content",
		Parameters:  createFileSchema(),
	}
}

func (t *CreateFileTool) parse(raw json.RawMessage) (createFileRequest, error) {
	const name = "create_file"
	var a createFileArgs
	if err := decodeArgs(name, raw, &a); err != nil {
		return createFileRequest{}, err
	}
	p, err := SanitizePath(name, a.Path)
	if err != nil {
		return createFileRequest{}, err
	}
	req := createFileRequest{
		path:      p,
		overwrite: boolOr(a.Overwrite, false),
		refresh:   boolOr(a.RefreshContext, false),
	}
	if a.Content != nil {
		req.content = *a.Content
	}
	return req, nil
}

// Validate validates the arguments.
func (t *CreateFileTool) Validate(args json.RawMessage) error {
	_, err := t.parse(args)
	return err
}

// Execute writes the file. New files are created exclusively; existing
// files are only replaced when overwrite is set, via temp file and rename.
func (t *CreateFileTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	req, err := t.parse(args)
	if err != nil {
		return nil, err
	}
	guard := t.ws.Guard

	abs, err := guard.Resolve(req.path)
	if err != nil {
		return nil, err
	}
	rel, err := guard.Rel(abs)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(abs)

	if info, err := os.Lstat(dir); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, &pathguard.PathError{Path: filepath.ToSlash(filepath.Dir(rel)), Err: pathguard.ErrSymlink}
	}
	if err := guard.AssertNotSymlink(abs); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", rel, err)
	}
	if err := guard.AssertNotSymlink(abs); err != nil {
		return nil, err
	}

	exists := false
	if info, err := os.Lstat(abs); err == nil {
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", rel)
		}
		exists = true
	}
	if exists && !req.overwrite {
		return nil, &ConflictError{Path: rel}
	}

	data := []byte(req.content)
	status := StatusCreated
	change := contextcache.ChangeFileCreated
	if exists {
		status = StatusOverwritten
		change = contextcache.ChangeFileUpdated
		if err := writeAtomic(abs, data); err != nil {
			return nil, fmt.Errorf("write %s: %w", rel, err)
		}
	} else {
		if err := writeExclusive(abs, data, 0o644); err != nil {
			if errors.Is(err, os.ErrExist) {
				return nil, &ConflictError{Path: rel}
			}
			return nil, fmt.Errorf("create %s: %w", rel, err)
		}
	}

	if err := guard.AssertNotSymlink(abs); err != nil {
		return nil, err
	}

	result := CreateFileResult{
		Type:         CreateFileResult{}.Kind(),
		Path:         rel,
		Status:       status,
		BytesWritten: len(data),
	}
	if entry := t.ws.refreshEntry(ctx, rel, change); entry != nil {
		result.Modified = entry.Modified.UTC().Format(time.RFC3339Nano)
		size := entry.Size
		result.Size = &size
	}
	if req.refresh {
		info, err := t.ws.rescan(ctx)
		if err != nil {
			return nil, fmt.Errorf("refresh context after creating %s: %w", rel, err)
		}
		result.RefreshedContext = info
	}
	return result, nil
}
