package tools

import (
	"errors"
	"testing"

	"github.com/richinex/lampcode/internal/pathguard"
	"github.com/richinex/lampcode/internal/scanner"
)

func TestListDirectory_Defaults(t *testing.T) {
	env := newEnv(t, map[string]string{
		"cmd/app/main.go": "",
		"README.md":       "",
		".secret":         "",
	})

	res, err := run(t, NewListDirectoryTool(env.ws), map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	r := res.(DirectoryIndexResult)
	if r.BasePath != "." || r.Depth != 2 || !r.IncludeFiles {
		t.Errorf("result header = %+v", r)
	}
	want := []scanner.Entry{
		{Type: scanner.EntryFile, Path: "README.md"},
		{Type: scanner.EntryDirectory, Path: "cmd"},
		{Type: scanner.EntryDirectory, Path: "cmd/app"},
		{Type: scanner.EntryFile, Path: "cmd/app/main.go"},
	}
	if len(r.Entries) != len(want) {
		t.Fatalf("entries = %v, want %v", r.Entries, want)
	}
	for i := range want {
		if r.Entries[i] != want[i] {
			t.Errorf("entry[%d] = %v, want %v", i, r.Entries[i], want[i])
		}
	}
}

func TestListDirectory_Subdirectory(t *testing.T) {
	env := newEnv(t, map[string]string{"pkg/a/b.go": ""})

	res, err := run(t, NewListDirectoryTool(env.ws), map[string]any{"path": "pkg", "max_depth": 0, "include_files": false})
	if err != nil {
		t.Fatal(err)
	}
	r := res.(DirectoryIndexResult)
	if r.BasePath != "pkg" || len(r.Entries) != 1 || r.Entries[0].Path != "pkg/a" {
		t.Errorf("result = %+v", r)
	}
}

func TestListDirectory_Rejects(t *testing.T) {
	env := newEnv(t, map[string]string{"file.txt": ""})
	tool := NewListDirectoryTool(env.ws)

	if _, err := run(t, tool, map[string]any{"path": "../"}); !errors.Is(err, pathguard.ErrOutsideWorkspace) {
		t.Errorf("escape error = %v", err)
	}
	if _, err := run(t, tool, map[string]any{"path": "file.txt"}); err == nil {
		t.Error("listing a file should fail")
	}
	if _, err := run(t, tool, map[string]any{"limit": 2e6}); !errors.Is(err, ErrValidation) {
		t.Errorf("limit error = %v, want ErrValidation", err)
	}
}
