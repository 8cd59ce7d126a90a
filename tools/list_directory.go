// list_directory: bounded directory index of part of the workspace.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/richinex/lampcode/internal/scanner"
)

// DirectoryIndexResult is returned by list_directory.
type DirectoryIndexResult struct {
	Type         string              `json:"type"`
	BasePath     string              `json:"base_path"`
	Depth        int                 `json:"depth"`
	IncludeFiles bool                `json:"include_files"`
	Entries      []scanner.Entry     `json:"entries"`
	Errors       []scanner.ScanError `json:"errors,omitempty"`
}

// Kind implements Result.
func (DirectoryIndexResult) Kind() string { return "directory_index_result" }

type listDirectoryArgs struct {
	Path          *string  `json:"path"`
	MaxDepth      *float64 `json:"max_depth"`
	IncludeFiles  *bool    `json:"include_files"`
	IncludeHidden *bool    `json:"include_hidden"`
	Limit         *float64 `json:"limit"`
}

type listDirectoryRequest struct {
	path          string
	maxDepth      int
	includeFiles  bool
	includeHidden bool
	limit         int
}

// ListDirectoryTool lists directories.
type ListDirectoryTool struct {
	ws *Workspace
}

// NewListDirectoryTool creates a list_directory tool.
func NewListDirectoryTool(ws *Workspace) *ListDirectoryTool {
	return &ListDirectoryTool{ws: ws}
}

// Metadata returns the tool metadata.
func (t *ListDirectoryTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "list_directory",
		Description: "List files and directories in the workspace with configurable depth and filtering",
		Parameters:  listDirectorySchema(),
	}
}

func (t *ListDirectoryTool) parse(raw json.RawMessage) (listDirectoryRequest, error) {
	const name = "list_directory"
	var a listDirectoryArgs
	if err := decodeArgs(name, raw, &a); err != nil {
		return listDirectoryRequest{}, err
	}

	req := listDirectoryRequest{
		path:          ".",
		maxDepth:      2,
		includeFiles:  boolOr(a.IncludeFiles, true),
		includeHidden: boolOr(a.IncludeHidden, false),
		limit:         200,
	}
	if a.Path != nil {
		p, err := SanitizePath(name, *a.Path)
		if err != nil {
			return listDirectoryRequest{}, err
		}
		req.path = p
	}
	if n, ok, err := optionalCount(name, "max_depth", a.MaxDepth); err != nil {
		return listDirectoryRequest{}, err
	} else if ok {
		req.maxDepth = clamp(n, 0, 10)
	}
	if n, ok, err := optionalCount(name, "limit", a.Limit); err != nil {
		return listDirectoryRequest{}, err
	} else if ok {
		req.limit = clamp(n, 1, 500)
	}
	return req, nil
}

// Validate validates the arguments.
func (t *ListDirectoryTool) Validate(args json.RawMessage) error {
	_, err := t.parse(args)
	return err
}

// Execute builds the directory index below path.
func (t *ListDirectoryTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	req, err := t.parse(args)
	if err != nil {
		return nil, err
	}
	abs, err := t.ws.Guard.Check(req.path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", req.path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("list %s: not a directory", req.path)
	}

	entries, scanErrs, err := t.ws.Scanner.BuildDirectoryIndex(ctx, abs, scanner.IndexOptions{
		MaxDepth:      req.maxDepth,
		IncludeFiles:  req.includeFiles,
		IncludeHidden: req.includeHidden,
		Limit:         req.limit,
		Concurrency:   3,
	})
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []scanner.Entry{}
	}

	base, err := t.ws.Guard.Rel(abs)
	if err != nil {
		return nil, err
	}
	return DirectoryIndexResult{
		Type:         DirectoryIndexResult{}.Kind(),
		BasePath:     base,
		Depth:        req.maxDepth,
		IncludeFiles: req.includeFiles,
		Entries:      entries,
		Errors:       scanErrs,
	}, nil
}
