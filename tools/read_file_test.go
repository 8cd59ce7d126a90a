package tools

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/richinex/lampcode/internal/pathguard"
)

func TestReadFile_Whole(t *testing.T) {
	env := newEnv(t, map[string]string{"a.txt": "one\ntwo\nthree"})

	res, err := run(t, NewReadFileTool(env.ws), map[string]any{"path": "a.txt"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	r := res.(ReadFileResult)
	if r.Content != "one\ntwo\nthree" || r.TotalLines != 3 || r.Type != "read_file_result" {
		t.Errorf("result = %+v", r)
	}
}

func TestReadFile_ReportsWorkspaceRelativePath(t *testing.T) {
	env := newEnv(t, map[string]string{"sub/a.txt": "x"})

	for _, p := range []string{filepath.Join(env.root, "sub", "a.txt"), "./sub/../sub/a.txt"} {
		res, err := run(t, NewReadFileTool(env.ws), map[string]any{"path": p})
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		if got := res.(ReadFileResult).Path; got != "sub/a.txt" {
			t.Errorf("Path for %s = %q, want sub/a.txt", p, got)
		}
	}
}

func TestReadFile_LineRangeClamped(t *testing.T) {
	var lines []string
	for i := 1; i <= 10; i++ {
		lines = append(lines, "line"+strings.Repeat("!", i))
	}
	env := newEnv(t, map[string]string{"ten.txt": strings.Join(lines, "\n")})

	res, err := run(t, NewReadFileTool(env.ws), map[string]any{
		"path":  "ten.txt",
		"lines": map[string]any{"start": 8, "end": 50},
	})
	if err != nil {
		t.Fatal(err)
	}
	r := res.(ReadFileResult)
	if want := strings.Join(lines[7:], "\n"); r.Content != want {
		t.Errorf("Content = %q, want %q", r.Content, want)
	}
	if r.StartLine != 8 || r.EndLine != 10 {
		t.Errorf("range = %d..%d, want 8..10", r.StartLine, r.EndLine)
	}
}

func TestReadFile_Truncates(t *testing.T) {
	env := newEnv(t, map[string]string{"big.txt": strings.Repeat("a", MaxReadChars+500)})

	res, err := run(t, NewReadFileTool(env.ws), map[string]any{"path": "big.txt"})
	if err != nil {
		t.Fatal(err)
	}
	r := res.(ReadFileResult)
	if !r.Truncated || !strings.HasSuffix(r.Content, "\n...\n[truncated]") {
		t.Errorf("content not truncated")
	}
	if len(r.Content) != MaxReadChars+len("\n...\n[truncated]") {
		t.Errorf("len = %d", len(r.Content))
	}
}

func TestReadFile_RejectsEscapes(t *testing.T) {
	env := newEnv(t, nil)
	tool := NewReadFileTool(env.ws)

	_, err := run(t, tool, map[string]any{"path": "../../etc/passwd"})
	if !errors.Is(err, pathguard.ErrOutsideWorkspace) {
		t.Errorf("error = %v, want ErrOutsideWorkspace", err)
	}

	_, err = run(t, tool, map[string]any{"path": strings.Repeat("../", 6) + "x"})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("deep traversal error = %v, want ErrValidation", err)
	}
}

func TestReadFile_RejectsSymlink(t *testing.T) {
	env := newEnv(t, map[string]string{"real.txt": "secret"})
	if err := os.Symlink(filepath.Join(env.root, "real.txt"), filepath.Join(env.root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := run(t, NewReadFileTool(env.ws), map[string]any{"path": "link.txt"})
	if !errors.Is(err, pathguard.ErrSymlink) {
		t.Errorf("error = %v, want ErrSymlink", err)
	}
}

func TestReadFile_Validation(t *testing.T) {
	env := newEnv(t, nil)
	tool := NewReadFileTool(env.ws)

	cases := []map[string]any{
		{},
		{"path": "   "},
		{"path": "a.txt", "lines": map[string]any{"start": 0}},
		{"path": "a.txt", "lines": map[string]any{"start": 1.5}},
	}
	for _, c := range cases {
		if _, err := run(t, tool, c); !errors.Is(err, ErrValidation) {
			t.Errorf("args %v: error = %v, want ErrValidation", c, err)
		}
	}
}

func TestSanitizePath(t *testing.T) {
	got, err := SanitizePath("read_file", "  sub/..../a\x00.txt ")
	if err != nil {
		t.Fatal(err)
	}
	if got != "sub/../a.txt" {
		t.Errorf("SanitizePath() = %q, want sub/../a.txt", got)
	}
}
