package agent

import (
	"encoding/json"
	"errors"
	"io/fs"
	"strings"

	"github.com/richinex/lampcode/internal/pathguard"
)

// Recovery hints attached to tool_error envelopes.
const (
	hintNotFound     = "Check that the file path is correct and the file exists. Use list_directory or search_code to find the correct path."
	hintPermission   = "The file cannot be accessed due to permission restrictions. Check file permissions."
	hintOutside      = "The file path is outside the workspace directory. All file operations must be within the working directory."
	hintFindMissing  = "The find string was not found in the file. Use read_file first to see the exact content, then use the exact text for find/replace."
	hintEdit         = "Make sure the file exists and the find/replace strings are exact matches. Use read_file to verify the content first."
	hintRead         = "Verify the file path is correct relative to the working directory. Use list_directory to explore the directory structure."
	hintSearch       = "Check that the search query is valid. Use simpler search terms if the query is too complex."
	hintCreate       = "Ensure the directory exists and you have permission to create files. The file path must be within the workspace."
	hintGeneric      = "Review the error message and adjust the tool arguments accordingly. Use other tools to gather more information if needed."
	hintUnknownTool  = "Check that the tool name is spelled correctly. Available tools: "
	hintInvalidJSON  = "The tool arguments were not valid JSON. Send a single JSON object matching the tool's parameter schema."
	hintSymlink      = "The path passes through a symbolic link, which file tools refuse to follow. Use the real path inside the workspace."
	maxPathGuesses   = 3
	didYouMeanPrefix = " Did you mean: "
)

// Suggester proposes known paths close to a missing one.
type Suggester interface {
	Suggest(p string, n int) []string
}

// suggestion picks the recovery hint for a failed call. Checks run from the
// most specific error class to per-tool defaults.
func suggestion(tool string, args json.RawMessage, err error, paths Suggester) string {
	msg := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, fs.ErrNotExist) || containsAny(msg, "enoent", "not found", "does not exist", "no such file"):
		if tool == "edit_file" && containsAny(msg, "find string", "not found in file") {
			return hintFindMissing
		}
		return hintNotFound + didYouMean(args, paths)
	case errors.Is(err, fs.ErrPermission) || containsAny(msg, "eacces", "permission denied"):
		return hintPermission
	case errors.Is(err, pathguard.ErrOutsideWorkspace) || containsAny(msg, "outside workspace", "outside the working directory", "path traversal"):
		return hintOutside
	case errors.Is(err, pathguard.ErrSymlink):
		return hintSymlink
	}

	switch tool {
	case "edit_file":
		if containsAny(msg, "find string", "not found in file") {
			return hintFindMissing
		}
		return hintEdit
	case "read_file":
		return hintRead
	case "search_code":
		return hintSearch
	case "create_file":
		return hintCreate
	}
	return hintGeneric
}

// didYouMean renders close matches for the call's path argument.
func didYouMean(args json.RawMessage, paths Suggester) string {
	if paths == nil {
		return ""
	}
	var a struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
		return ""
	}
	guesses := paths.Suggest(a.Path, maxPathGuesses)
	if len(guesses) == 0 {
		return ""
	}
	return didYouMeanPrefix + strings.Join(guesses, ", ") + "?"
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
