package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatal(err)
		}
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestRelevantFiles_FiltersAndOrders(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":                   "package main",
		"README.md":                 "# hi",
		"image.png":                 "binary",
		"package-lock.json":         "{}",
		"web/app.min.js":            "x",
		"web/app.js":                "x",
		"node_modules/dep/index.js": "x",
		".git/config.txt":           "x",
		".hidden/secret.txt":        "x",
		"pkg/sub/deep.go":           "package sub",
	})

	s := New(root)
	files, errs, err := s.RelevantFiles(context.Background(), ".", DefaultOptions())
	if err != nil {
		t.Fatalf("RelevantFiles() error = %v", err)
	}
	if len(errs) != 0 {
		t.Errorf("unexpected scan errors: %v", errs)
	}

	got := relAll(t, root, files)
	want := []string{"README.md", "main.go", "web/app.js", "pkg/sub/deep.go"}
	if len(got) != len(want) {
		t.Fatalf("RelevantFiles() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("file[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRelevantFiles_IncludeHidden(t *testing.T) {
	root := writeTree(t, map[string]string{
		".hidden/secret.txt": "x",
		".git/config.txt":    "x",
	})

	opts := DefaultOptions()
	opts.IncludeHidden = true
	files, _, err := New(root).RelevantFiles(context.Background(), ".", opts)
	if err != nil {
		t.Fatal(err)
	}
	got := relAll(t, root, files)
	if len(got) != 1 || got[0] != ".hidden/secret.txt" {
		t.Errorf("RelevantFiles() = %v, want only .hidden/secret.txt", got)
	}
}

func TestRelevantFiles_LimitAndDepth(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go":          "",
		"b.go":          "",
		"c.go":          "",
		"d1/d2/deep.go": "",
	})
	s := New(root)

	opts := DefaultOptions()
	opts.Limit = 2
	files, _, _ := s.RelevantFiles(context.Background(), ".", opts)
	if len(files) != 2 {
		t.Errorf("limit 2 returned %d files", len(files))
	}

	opts = DefaultOptions()
	opts.MaxDepth = 1
	files, _, _ = s.RelevantFiles(context.Background(), ".", opts)
	for _, f := range relAll(t, root, files) {
		if f == "d1/d2/deep.go" {
			t.Errorf("depth 1 scan reached %s", f)
		}
	}
}

func TestBuildDirectoryIndex(t *testing.T) {
	root := writeTree(t, map[string]string{
		"cmd/tool/main.go": "",
		"go.mod":           "",
		".env":             "",
	})
	s := New(root)

	entries, _, err := s.BuildDirectoryIndex(context.Background(), ".", DefaultIndexOptions())
	if err != nil {
		t.Fatal(err)
	}
	want := []Entry{
		{Type: EntryDirectory, Path: "cmd"},
		{Type: EntryFile, Path: "go.mod"},
		{Type: EntryDirectory, Path: "cmd/tool"},
		{Type: EntryFile, Path: "cmd/tool/main.go"},
	}
	if len(entries) != len(want) {
		t.Fatalf("entries = %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry[%d] = %v, want %v", i, entries[i], want[i])
		}
	}

	opts := DefaultIndexOptions()
	opts.IncludeFiles = false
	dirs, _, _ := s.BuildDirectoryIndex(context.Background(), ".", opts)
	for _, e := range dirs {
		if e.Type != EntryDirectory {
			t.Errorf("IncludeFiles=false returned %v", e)
		}
	}
}

func TestBuildDirectoryIndex_MissingStart(t *testing.T) {
	root := t.TempDir()

	entries, errs, err := New(root).BuildDirectoryIndex(context.Background(), "nope", DefaultIndexOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want none", entries)
	}
	if len(errs) != 1 || errs[0].Code != CodeNotFound || errs[0].Path != "nope" {
		t.Errorf("errs = %v, want one NOT_FOUND for nope", errs)
	}
}

func TestScanProjectFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go": "package a",
		"b.md": "notes",
	})

	entries, err := New(root).ScanProjectFiles(context.Background(), ProjectOptions{Limit: 1, IncludeContent: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Path != "a.go" || entries[0].Content != "package a" || entries[0].Size != 9 {
		t.Errorf("entry = %+v", entries[0])
	}
	if entries[0].Modified.IsZero() {
		t.Error("Modified not populated")
	}
}

func TestScanProjectFiles_LimitDrivesScan(t *testing.T) {
	files := make(map[string]string, 1005)
	for i := 0; i < 1005; i++ {
		files[fmt.Sprintf("f%04d.txt", i)] = ""
	}
	root := writeTree(t, files)

	// The requested limit replaces the scan's own default cap.
	entries, err := New(root).ScanProjectFiles(context.Background(), ProjectOptions{Limit: 1003})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1003 {
		t.Fatalf("entries = %d, want 1003", len(entries))
	}
	if entries[0].Path != "f0000.txt" || entries[1002].Path != "f1002.txt" {
		t.Errorf("entries span %s..%s", entries[0].Path, entries[1002].Path)
	}
}

func TestSymlinksNotFollowed(t *testing.T) {
	root := writeTree(t, map[string]string{"real/a.go": ""})
	if err := os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	files, _, _ := New(root).RelevantFiles(context.Background(), ".", DefaultOptions())
	got := relAll(t, root, files)
	if len(got) != 1 || got[0] != "real/a.go" {
		t.Errorf("RelevantFiles() = %v, want [real/a.go]", got)
	}
}
