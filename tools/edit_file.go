// edit_file: sequential literal replacements and line-range rewrites.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/richinex/lampcode/contextcache"
)

// Edit statuses.
const (
	StatusUpdated   = "updated"
	StatusNoChanges = "no_changes"
)

// Operation types accepted by edit_file.
const (
	OpReplace      = "replace"
	OpReplaceRange = "replace_range"
)

// OperationReport describes one applied (or no-op) edit operation.
type OperationReport struct {
	Index              int    `json:"index"`
	Type               string `json:"type"`
	Replacements       *int   `json:"replacements,omitempty"`
	Start              int    `json:"start,omitempty"`
	End                int    `json:"end,omitempty"`
	Warning            string `json:"warning,omitempty"`
	Suggestion         string `json:"suggestion,omitempty"`
	FindPatternPreview string `json:"find_pattern_preview,omitempty"`
}

// EditFileResult is returned by edit_file.
type EditFileResult struct {
	Type              string            `json:"type"`
	Path              string            `json:"path"`
	Status            string            `json:"status"`
	OperationsApplied []OperationReport `json:"operations_applied"`
	BytesWritten      int               `json:"bytes_written"`
	BytesDelta        int               `json:"bytes_delta"`
	Modified          string            `json:"modified,omitempty"`
	Size              *int64            `json:"size,omitempty"`
	RefreshedContext  *RefreshInfo      `json:"refreshed_context,omitempty"`
}

// Kind implements Result.
func (EditFileResult) Kind() string { return "edit_file_result" }

// ZeroReplacementOps counts replace operations that matched nothing.
func (r EditFileResult) ZeroReplacementOps() int {
	n := 0
	for _, op := range r.OperationsApplied {
		if op.Type == OpReplace && op.Replacements != nil && *op.Replacements == 0 {
			n++
		}
	}
	return n
}

// EditOperation is one step of an edit, applied to the evolving buffer.
type EditOperation interface {
	Apply(buf string, index int) (string, OperationReport, error)
}

// ReplaceOp substitutes literal, non-overlapping occurrences of Find from
// left to right. Limit < 0 replaces all occurrences.
type ReplaceOp struct {
	Find    string
	Replace string
	Limit   int
}

// Apply implements EditOperation. No match is reported as a warning.
func (op ReplaceOp) Apply(buf string, index int) (string, OperationReport, error) {
	found := strings.Count(buf, op.Find)
	n := found
	if op.Limit >= 0 && op.Limit < n {
		n = op.Limit
	}

	report := OperationReport{Index: index, Type: OpReplace, Replacements: &n}
	if n == 0 {
		preview := op.Find
		if len(preview) > 100 {
			preview, _ = truncateChars(preview, 100, "...")
		}
		report.Warning = "No matching text found to replace"
		report.Suggestion = "Use read_file to verify the exact content before editing"
		report.FindPatternPreview = preview
		return buf, report, nil
	}
	return strings.Replace(buf, op.Find, op.Replace, n), report, nil
}

// ReplaceRangeOp replaces 1-indexed inclusive lines [Start, End] with Text.
// End is clamped to the last line; Start may be one past the last line to
// append. Empty Text deletes the range.
type ReplaceRangeOp struct {
	Start int
	End   int
	Text  string
}

// Apply implements EditOperation.
func (op ReplaceRangeOp) Apply(buf string, index int) (string, OperationReport, error) {
	if op.Start > op.End {
		return buf, OperationReport{}, fmt.Errorf("operations[%d].start must be <= end", index)
	}
	lines := strings.Split(buf, "\n")
	if op.Start > len(lines)+1 {
		return buf, OperationReport{}, fmt.Errorf("operations[%d] targets lines outside the file (%d lines)", index, len(lines))
	}

	idx := op.Start - 1
	deleteCount := min(op.End, len(lines)) - op.Start + 1
	if deleteCount < 0 {
		deleteCount = 0
	}
	var inserted []string
	if op.Text != "" {
		inserted = strings.Split(op.Text, "\n")
	}

	out := make([]string, 0, len(lines)-deleteCount+len(inserted))
	out = append(out, lines[:idx]...)
	out = append(out, inserted...)
	out = append(out, lines[idx+deleteCount:]...)

	return strings.Join(out, "\n"), OperationReport{Index: index, Type: OpReplaceRange, Start: op.Start, End: op.End}, nil
}

type editOpArgs struct {
	Type       string   `json:"type"`
	Find       *string  `json:"find"`
	Replace    *string  `json:"replace"`
	Count      *float64 `json:"count"`
	ReplaceAll *bool    `json:"replace_all"`
	Start      *float64 `json:"start"`
	End        *float64 `json:"end"`
	Text       *string  `json:"text"`
}

type editFileArgs struct {
	Path           string          `json:"path"`
	Operations     json.RawMessage `json:"operations"`
	RefreshContext *bool           `json:"refresh_context"`
}

type editFileRequest struct {
	path       string
	operations []EditOperation
	refresh    bool
}

// EditFileTool edits existing files.
type EditFileTool struct {
	ws *Workspace
}

// NewEditFileTool creates an edit_file tool.
func NewEditFileTool(ws *Workspace) *EditFileTool {
	return &EditFileTool{ws: ws}
}

// Metadata returns the tool metadata.
func (t *EditFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "edit_file",
		Description: "Edit an existing file using find/replace or line range operations. Multiple operations can be applied sequentially.",
		Parameters:  editFileSchema(),
	}
}

func (t *EditFileTool) parse(raw json.RawMessage) (editFileRequest, error) {
	const name = "edit_file"
	var a editFileArgs
	if err := decodeArgs(name, raw, &a); err != nil {
		return editFileRequest{}, err
	}
	p, err := SanitizePath(name, a.Path)
	if err != nil {
		return editFileRequest{}, err
	}

	var rawOps []json.RawMessage
	if len(a.Operations) == 0 || json.Unmarshal(a.Operations, &rawOps) != nil {
		return editFileRequest{}, invalidf(name, "requires a non-empty \"operations\" array")
	}
	if len(rawOps) == 0 {
		return editFileRequest{}, invalidf(name, "requires a non-empty \"operations\" array")
	}
	if len(rawOps) > MaxEditOperations {
		return editFileRequest{}, invalidf(name, "at most %d operations are allowed, got %d", MaxEditOperations, len(rawOps))
	}

	ops := make([]EditOperation, 0, len(rawOps))
	for i, r := range rawOps {
		op, err := parseEditOp(i, r)
		if err != nil {
			return editFileRequest{}, err
		}
		ops = append(ops, op)
	}
	return editFileRequest{path: p, operations: ops, refresh: boolOr(a.RefreshContext, false)}, nil
}

func parseEditOp(i int, raw json.RawMessage) (EditOperation, error) {
	const name = "edit_file"
	var a editOpArgs
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, invalidf(name, "operations[%d] must be an object: %v", i, err)
	}
	field := func(f string) string { return fmt.Sprintf("operations[%d].%s", i, f) }

	switch a.Type {
	case OpReplace:
		if a.Find == nil || *a.Find == "" {
			return nil, invalidf(name, "requires a non-empty string for %q", field("find"))
		}
		op := ReplaceOp{Find: *a.Find, Limit: 1}
		if a.Replace != nil {
			op.Replace = *a.Replace
		}
		switch {
		case boolOr(a.ReplaceAll, false):
			op.Limit = -1
		case a.Count != nil:
			n, _, err := optionalLine(name, field("count"), a.Count)
			if err != nil {
				return nil, err
			}
			op.Limit = n
		}
		return op, nil

	case OpReplaceRange:
		start, ok, err := optionalLine(name, field("start"), a.Start)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, invalidf(name, "requires an integer >= 1 for %q", field("start"))
		}
		end, ok, err := optionalLine(name, field("end"), a.End)
		if err != nil {
			return nil, err
		}
		if !ok {
			end = start
		}
		if start > end {
			return nil, invalidf(name, "%s must be <= end", field("start"))
		}
		op := ReplaceRangeOp{Start: start, End: end}
		if a.Text != nil {
			op.Text = *a.Text
		}
		return op, nil

	default:
		return nil, invalidf(name, "%s %q is not supported", field("type"), a.Type)
	}
}

// Validate validates the arguments.
func (t *EditFileTool) Validate(args json.RawMessage) error {
	_, err := t.parse(args)
	return err
}

// Execute applies every operation in order to an in-memory buffer and
// writes the result atomically if anything changed.
func (t *EditFileTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	req, err := t.parse(args)
	if err != nil {
		return nil, err
	}
	guard := t.ws.Guard

	abs, err := guard.Check(req.path)
	if err != nil {
		return nil, err
	}
	rel, err := guard.Rel(abs)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("file %q cannot be read: %w", rel, err)
	}

	original := string(data)
	buf := original
	reports := make([]OperationReport, 0, len(req.operations))
	for i, op := range req.operations {
		var report OperationReport
		buf, report, err = op.Apply(buf, i)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	result := EditFileResult{
		Type:              EditFileResult{}.Kind(),
		Path:              rel,
		OperationsApplied: reports,
	}
	if buf == original {
		result.Status = StatusNoChanges
		return result, nil
	}

	if err := writeAtomic(abs, []byte(buf)); err != nil {
		return nil, fmt.Errorf("write %s: %w", rel, err)
	}
	if err := guard.AssertNotSymlink(abs); err != nil {
		return nil, err
	}

	result.Status = StatusUpdated
	result.BytesWritten = len(buf)
	result.BytesDelta = len(buf) - len(original)
	if entry := t.ws.refreshEntry(ctx, rel, contextcache.ChangeFileUpdated); entry != nil {
		result.Modified = entry.Modified.UTC().Format(time.RFC3339Nano)
		size := entry.Size
		result.Size = &size
	}
	if req.refresh {
		info, err := t.ws.rescan(ctx)
		if err != nil {
			return nil, fmt.Errorf("refresh context after editing %s: %w", rel, err)
		}
		result.RefreshedContext = info
	}
	return result, nil
}
