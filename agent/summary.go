package agent

import (
	"fmt"
	"strings"

	"github.com/richinex/lampcode/tools"
)

// Summarize renders the one-line facts shown after a successful tool call
// and kept in the tool history.
func Summarize(r tools.Result) []string {
	var lines []string
	switch res := r.(type) {
	case tools.ListContextResult:
		lines = append(lines, fmt.Sprintf("Files in cache: %d", res.Count))
	case tools.RefreshContextResult:
		if res.Message != "" {
			lines = append(lines, res.Message)
		} else {
			lines = append(lines, fmt.Sprintf("Context refreshed with %d file(s).", len(res.Files)))
		}
	case tools.ReadFileResult:
		lines = append(lines, "Path: "+res.Path)
		lines = append(lines, fmt.Sprintf("Characters returned: %d", len(res.Content)))
	case tools.SearchCodeResult:
		lines = append(lines, "Query: "+res.Query)
		lines = append(lines, fmt.Sprintf("Matches: %d", len(res.Matches)))
		if len(res.Matches) > 0 {
			files := map[string]bool{}
			for _, m := range res.Matches {
				files[m.File] = true
			}
			lines = append(lines, fmt.Sprintf("Files matched: %d", len(files)))
		}
	case tools.DirectoryIndexResult:
		lines = append(lines, "Path: "+res.BasePath)
		lines = append(lines, fmt.Sprintf("Entries: %d", len(res.Entries)))
		if len(res.Errors) > 0 {
			lines = append(lines, fmt.Sprintf("Unreadable: %d", len(res.Errors)))
		}
	case tools.EditFileResult:
		lines = append(lines, "Path: "+res.Path)
		lines = append(lines, "Status: "+res.Status)
		if res.ZeroReplacementOps() > 0 || hasWarning(res.OperationsApplied) {
			lines = append(lines, "WARNING: Some operations had no effect (pattern not found)")
			lines = append(lines, "   -> Use read_file to verify the exact content before editing")
		}
		if len(res.OperationsApplied) > 0 {
			ops := make([]string, 0, len(res.OperationsApplied))
			for _, op := range res.OperationsApplied {
				ops = append(ops, describeOp(op))
			}
			lines = append(lines, "Operations: "+strings.Join(ops, ", "))
		}
		lines = append(lines, fmt.Sprintf("Size change: %+d bytes", res.BytesDelta))
	case tools.CreateFileResult:
		lines = append(lines, "Path: "+res.Path)
		lines = append(lines, "Status: "+res.Status)
		lines = append(lines, fmt.Sprintf("Bytes written: %d", res.BytesWritten))
	}
	return lines
}

func hasWarning(ops []tools.OperationReport) bool {
	for _, op := range ops {
		if op.Warning != "" {
			return true
		}
	}
	return false
}

func describeOp(op tools.OperationReport) string {
	switch op.Type {
	case tools.OpReplace:
		n := 0
		if op.Replacements != nil {
			n = *op.Replacements
		}
		switch n {
		case 0:
			return "0 replacements (pattern not found)"
		case 1:
			return "1 replacement"
		default:
			return fmt.Sprintf("%d replacements", n)
		}
	case tools.OpReplaceRange:
		return fmt.Sprintf("lines %d-%d", op.Start, op.End)
	}
	return op.Type
}
