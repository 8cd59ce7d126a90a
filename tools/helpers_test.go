package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/richinex/lampcode/contextcache"
	"github.com/richinex/lampcode/internal/pathguard"
	"github.com/richinex/lampcode/internal/scanner"
)

type testEnv struct {
	root  string
	ws    *Workspace
	cache *contextcache.Cache
}

func newEnv(t *testing.T, files map[string]string) *testEnv {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		writeFile(t, root, rel, content)
	}
	guard, err := pathguard.New(root)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sc := scanner.New(guard.Root())
	cache := contextcache.New(guard, sc, contextcache.DefaultOptions(), logger)
	return &testEnv{
		root:  guard.Root(),
		ws:    NewWorkspace(guard, sc, cache, logger),
		cache: cache,
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func run(t *testing.T, tool Tool, args any) (Result, error) {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	if err := tool.Validate(raw); err != nil {
		return nil, err
	}
	return tool.Execute(context.Background(), raw)
}
