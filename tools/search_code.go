// search_code: case-insensitive substring search across relevant files.

package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/richinex/lampcode/internal/scanner"
)

const (
	defaultSearchResults = 20
	maxSearchResults     = 50
	maxSnippetChars      = 200
	searchFileLimit      = 1000
)

// SearchMatch is one matching line.
type SearchMatch struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Snippet string `json:"snippet"`
}

// SearchCodeResult is returned by search_code.
type SearchCodeResult struct {
	Type    string        `json:"type"`
	Query   string        `json:"query"`
	Matches []SearchMatch `json:"matches"`
}

// Kind implements Result.
func (SearchCodeResult) Kind() string { return "search_code_result" }

type searchCodeArgs struct {
	Query      string   `json:"query"`
	MaxResults *float64 `json:"max_results"`
}

type searchCodeRequest struct {
	query      string
	maxResults int
}

// SearchCodeTool searches file contents.
type SearchCodeTool struct {
	ws *Workspace
}

// NewSearchCodeTool creates a search_code tool.
func NewSearchCodeTool(ws *Workspace) *SearchCodeTool {
	return &SearchCodeTool{ws: ws}
}

// Metadata returns the tool metadata.
func (t *SearchCodeTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "search_code",
		Description: "Search for text across all files in the workspace. Returns file paths, line numbers, and matching snippets.",
		Parameters:  searchCodeSchema(),
	}
}

func (t *SearchCodeTool) parse(raw json.RawMessage) (searchCodeRequest, error) {
	const name = "search_code"
	var a searchCodeArgs
	if err := decodeArgs(name, raw, &a); err != nil {
		return searchCodeRequest{}, err
	}
	q := strings.TrimSpace(a.Query)
	if q == "" {
		return searchCodeRequest{}, invalidf(name, "requires a non-empty string for \"query\"")
	}
	if len(q) > MaxQueryLength {
		return searchCodeRequest{}, invalidf(name, "\"query\" must be at most %d characters", MaxQueryLength)
	}
	n, ok, err := optionalCount(name, "max_results", a.MaxResults)
	if err != nil {
		return searchCodeRequest{}, err
	}
	if !ok {
		n = defaultSearchResults
	}
	return searchCodeRequest{query: q, maxResults: clamp(n, 1, maxSearchResults)}, nil
}

// Validate validates the arguments.
func (t *SearchCodeTool) Validate(args json.RawMessage) error {
	_, err := t.parse(args)
	return err
}

// Execute scans relevant files in breadth-first order and collects
// matching lines until max_results is reached. Unreadable files are skipped.
func (t *SearchCodeTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	req, err := t.parse(args)
	if err != nil {
		return nil, err
	}

	opts := scanner.DefaultOptions()
	opts.Limit = searchFileLimit
	files, _, err := t.ws.Scanner.RelevantFiles(ctx, ".", opts)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(req.query)
	result := SearchCodeResult{Type: SearchCodeResult{}.Kind(), Query: req.query, Matches: []SearchMatch{}}

	for _, abs := range files {
		if len(result.Matches) >= req.maxResults {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t.ws.Guard.AssertNotSymlink(abs) != nil {
			continue
		}
		rel, err := t.ws.Guard.Rel(abs)
		if err != nil {
			continue
		}
		result.Matches = searchFile(abs, rel, needle, req.maxResults, result.Matches)
	}
	return result, nil
}

func searchFile(abs, rel, needle string, limit int, matches []SearchMatch) []SearchMatch {
	f, err := os.Open(abs)
	if err != nil {
		return matches
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() && len(matches) < limit {
		line++
		text := sc.Text()
		if !strings.Contains(strings.ToLower(text), needle) {
			continue
		}
		snippet, _ := truncateChars(strings.TrimSpace(text), maxSnippetChars, "")
		matches = append(matches, SearchMatch{File: rel, Line: line, Snippet: snippet})
	}
	return matches
}
