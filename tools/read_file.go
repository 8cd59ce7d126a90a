// read_file: bounded, line-sliced reads of workspace files.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// MaxReadChars caps the content returned by read_file.
const MaxReadChars = 6000

const readTruncationMarker = "\n...\n[truncated]"

// ReadFileResult is returned by read_file.
type ReadFileResult struct {
	Type       string `json:"type"`
	Path       string `json:"path"`
	Content    string `json:"content"`
	StartLine  int    `json:"start_line,omitempty"`
	EndLine    int    `json:"end_line,omitempty"`
	TotalLines int    `json:"total_lines"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// Kind implements Result.
func (ReadFileResult) Kind() string { return "read_file_result" }

type readFileArgs struct {
	Path  string `json:"path"`
	Lines *struct {
		Start *float64 `json:"start"`
		End   *float64 `json:"end"`
	} `json:"lines"`
}

type readFileRequest struct {
	path       string
	start, end int // 0 when unset
}

// ReadFileTool reads workspace files.
type ReadFileTool struct {
	ws *Workspace
}

// NewReadFileTool creates a read_file tool.
func NewReadFileTool(ws *Workspace) *ReadFileTool {
	return &ReadFileTool{ws: ws}
}

// Metadata returns the tool metadata.
func (t *ReadFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "read_file",
		Description: "Read the contents of a file in the workspace. Supports line range slicing.",
		Parameters:  readFileSchema(),
	}
}

func (t *ReadFileTool) parse(raw json.RawMessage) (readFileRequest, error) {
	const name = "read_file"
	var a readFileArgs
	if err := decodeArgs(name, raw, &a); err != nil {
		return readFileRequest{}, err
	}
	p, err := SanitizePath(name, a.Path)
	if err != nil {
		return readFileRequest{}, err
	}
	req := readFileRequest{path: p}
	if a.Lines != nil {
		if req.start, _, err = optionalLine(name, "lines.start", a.Lines.Start); err != nil {
			return readFileRequest{}, err
		}
		if req.end, _, err = optionalLine(name, "lines.end", a.Lines.End); err != nil {
			return readFileRequest{}, err
		}
	}
	return req, nil
}

// Validate validates the arguments.
func (t *ReadFileTool) Validate(args json.RawMessage) error {
	_, err := t.parse(args)
	return err
}

// Execute reads the file, optionally slicing lines [start, end].
func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	req, err := t.parse(args)
	if err != nil {
		return nil, err
	}
	abs, err := t.ws.Guard.Check(req.path)
	if err != nil {
		return nil, err
	}
	rel, err := t.ws.Guard.Rel(abs)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}

	content := string(data)
	lines := strings.Split(content, "\n")
	result := ReadFileResult{
		Type:       ReadFileResult{}.Kind(),
		Path:       rel,
		TotalLines: len(lines),
	}

	if req.start > 0 || req.end > 0 {
		start, end := clampLines(len(lines), req.start, req.end)
		if start <= end {
			content = strings.Join(lines[start-1:end], "\n")
		} else {
			content = ""
		}
		result.StartLine, result.EndLine = start, end
	}

	result.Content, result.Truncated = truncateChars(content, MaxReadChars, readTruncationMarker)
	return result, nil
}

// clampLines maps an optional 1-indexed inclusive range onto a file with
// lineCount lines. Zero means unset.
func clampLines(lineCount, start, end int) (int, int) {
	if start < 1 {
		start = 1
	}
	if end == 0 || end > lineCount {
		end = lineCount
	}
	return start, end
}

func truncateChars(s string, limit int, marker string) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + marker, true
}
