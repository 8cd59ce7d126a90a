package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/richinex/lampcode/config"
	"github.com/richinex/lampcode/llm"
	"github.com/richinex/lampcode/model"
	"github.com/richinex/lampcode/storage"
)

func TestLookup(t *testing.T) {
	h := newHarness(t, nil, "", &cannedProvider{})
	tests := []struct {
		input string
		want  string // first command name, empty when the model gets it
		args  int
	}{
		{"exit", "exit", 0},
		{"QUIT", "exit", 0},
		{"read main.go", "read", 1},
		{"read", "", 0},
		{"search  func main", "search", 2},
		{"config list models", "config", 2},
		{"clear-logs --force", "clear-logs", 1},
		{"explain main.go", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, args, ok := h.sess.lookup(tt.input)
			if tt.want == "" {
				if ok {
					t.Errorf("lookup(%q) matched %v", tt.input, cmd.names)
				}
				return
			}
			if !ok || cmd.names[0] != tt.want || len(args) != tt.args {
				t.Errorf("lookup(%q) = %v %v %v", tt.input, cmd.names, args, ok)
			}
		})
	}
}

func TestCmdRead_ShowsPreview(t *testing.T) {
	var lines []string
	for i := 1; i <= 40; i++ {
		lines = append(lines, "line")
	}
	h := newHarness(t, map[string]string{"notes.txt": strings.Join(lines, "\n")}, "read notes.txt\n", &cannedProvider{})
	out := h.run(t)

	if !strings.Contains(out, "File: notes.txt (40 lines)") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "... (10 more lines)") {
		t.Errorf("missing remainder line:\n%s", out)
	}
	if h.sess.agent.Stats().TotalToolCalls != 0 {
		t.Error("built-in read counted as a model tool call")
	}
}

func TestCmdRead_RejectsEscapes(t *testing.T) {
	h := newHarness(t, nil, "read ../../etc/passwd\n", &cannedProvider{})
	h.run(t)
	if !strings.Contains(h.errs.String(), "outside") {
		t.Errorf("stderr = %q", h.errs.String())
	}
}

func TestCmdSearch_GroupsByFile(t *testing.T) {
	var body strings.Builder
	for i := 0; i < 7; i++ {
		body.WriteString("needle here\n")
	}
	h := newHarness(t, map[string]string{
		"a.txt": body.String(),
		"b.txt": "one needle\n",
	}, "search needle\nsearch missing-word\n", &cannedProvider{})
	out := h.run(t)

	for _, want := range []string{"Found 8 matches in 2 files", "a.txt", "b.txt", "... and 2 more", `No matches found for "missing-word"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCmdHistory(t *testing.T) {
	h := newHarness(t, nil, "history\n", &cannedProvider{})
	out := h.run(t)
	if !strings.Contains(out, "No tool calls have been recorded yet.") {
		t.Errorf("output = %s", out)
	}
}

func TestCmdHistory_NewestFirst(t *testing.T) {
	h := newHarness(t, map[string]string{"a.go": "package a\n"}, "look\nhistory\n", &cannedProvider{replies: []llm.LLMResponse{
		{ToolCalls: []llm.ToolCall{
			{ID: "1", Name: "list_context"},
			{ID: "2", Name: "read_file", Arguments: []byte(`{"path":"missing.go"}`)},
		}},
		{Content: "ok"},
	}})
	out := h.run(t)

	i := strings.Index(out, "Recent tool calls")
	if i < 0 {
		t.Fatalf("no history section:\n%s", out)
	}
	section := out[i:]
	read, list := strings.Index(section, "] read_file"), strings.Index(section, "] list_context")
	if read < 0 || list < 0 || read > list {
		t.Errorf("history not newest first:\n%s", section)
	}
	if !strings.Contains(section, "Status: "+string(model.ToolError)) || !strings.Contains(section, "Error: ") {
		t.Errorf("failed call not shown:\n%s", section)
	}
}

func TestCmdChanges_AfterCreate(t *testing.T) {
	h := newHarness(t, nil, "make it\nchanges\n", &cannedProvider{replies: []llm.LLMResponse{
		{ToolCalls: []llm.ToolCall{{ID: "1", Name: "create_file", Arguments: []byte(`{"path":"new.go","content":"package x\n"}`)}}},
		{Content: "created"},
	}})
	out := h.run(t)
	if !strings.Contains(out, "file_created new.go") {
		t.Errorf("output = %s", out)
	}
	if len(h.store.Changes()) == 0 {
		t.Error("change not journaled")
	}
}

func TestCmdConfig_ListAndSetModel(t *testing.T) {
	h := newHarness(t, nil, "config list models\nconfig set model anthropic/claude-3.5-sonnet\nmodel nope/unknown\nmodel\n", &cannedProvider{})
	out := h.run(t)

	if !strings.Contains(out, "→ openai/gpt-4") {
		t.Errorf("current model not marked:\n%s", out)
	}
	if !strings.Contains(out, "Model changed to: anthropic/claude-3.5-sonnet") {
		t.Errorf("switch not reported:\n%s", out)
	}
	if !strings.Contains(h.errs.String(), "unknown model") {
		t.Errorf("bad model accepted: %q", h.errs.String())
	}
	if !strings.Contains(out, "Current model: anthropic/claude-3.5-sonnet") {
		t.Errorf("model not kept:\n%s", out)
	}
}

func TestCmdConfig_Show(t *testing.T) {
	h := newHarness(t, map[string]string{"a.go": "package a\n"}, "config\n", &cannedProvider{})
	out := h.run(t)
	for _, want := range []string{"Provider: openrouter", "Model: openai/gpt-4", "Caching: Auto", "Files in context: 1", "Journal: disabled"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCmdClearLogs(t *testing.T) {
	journal, err := storage.NewSqliteInMemory()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := journal.StartSession(ctx, "old", "openai/gpt-4"); err != nil {
		t.Fatal(err)
	}

	h := newHarness(t, nil, "clear-logs\nn\nclear-logs -f\n", &cannedProvider{})
	h.sess.openLogs = func() (logStore, error) { return nopCloser{journal}, nil }
	out := h.run(t)

	if !strings.Contains(out, "Cancelled.") {
		t.Errorf("declined prompt not honored:\n%s", out)
	}
	if !strings.Contains(out, "Deleted 1 records.") {
		t.Errorf("forced clear missing:\n%s", out)
	}
	st, err := journal.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Sessions != 0 {
		t.Errorf("sessions after clear = %d", st.Sessions)
	}
}

// nopCloser keeps the shared in-memory journal open across commands.
type nopCloser struct{ *storage.SqliteStorage }

func (nopCloser) Close() error { return nil }

func TestCmdHelp_ListsCommands(t *testing.T) {
	h := newHarness(t, nil, "help\n", &cannedProvider{})
	out := h.run(t)
	for _, cmd := range builtins() {
		if !strings.Contains(out, cmd.usage) {
			t.Errorf("help missing %q", cmd.usage)
		}
	}
}

func TestPrintModels_UnprofiledCurrent(t *testing.T) {
	var buf bytes.Buffer
	printModels(&buf, "vendor/custom")
	if !strings.Contains(buf.String(), "has no profile") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestCachingMode(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"openai/gpt-4", "Auto"},
		{"anthropic/claude-3.5-sonnet", "Manual (4 breakpoints)"},
	}
	for _, tt := range tests {
		if got := cachingMode(config.LookupProfile(tt.model)); got != tt.want {
			t.Errorf("cachingMode(%s) = %q, want %q", tt.model, got, tt.want)
		}
	}
	if got := cachingMode(config.ModelProfile{}); got != "None" {
		t.Errorf("cachingMode(zero) = %q", got)
	}
}

func TestPrintTools_Verbose(t *testing.T) {
	var buf bytes.Buffer
	printTools(&buf, []llm.ToolDefinition{{
		Name:        "read_file",
		Description: "Read a file.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"path": map[string]any{"type": "string", "description": "File path"}},
			"required":   []string{"path"},
		},
	}}, true)
	if !strings.Contains(buf.String(), "path*: string - File path") {
		t.Errorf("output = %s", buf.String())
	}
}
