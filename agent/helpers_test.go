package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/richinex/lampcode/contextcache"
	"github.com/richinex/lampcode/internal/pathguard"
	"github.com/richinex/lampcode/internal/scanner"
	"github.com/richinex/lampcode/llm"
	"github.com/richinex/lampcode/storage"
	"github.com/richinex/lampcode/tools"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type step struct {
	resp llm.LLMResponse
	err  error
}

func reply(text string) step {
	return step{resp: llm.LLMResponse{
		Content: text,
		Usage:   &llm.TokenUsage{PromptTokens: 100, CompletionTokens: 10, TotalTokens: 110, CachedTokens: 40},
	}}
}

func callTool(id, name, args string) step {
	return step{resp: llm.LLMResponse{
		ToolCalls: []llm.ToolCall{{ID: id, Name: name, Arguments: json.RawMessage(args)}},
		Usage:     &llm.TokenUsage{PromptTokens: 100, CompletionTokens: 5, TotalTokens: 105},
	}}
}

func failWith(err error) step {
	return step{err: err}
}

// scriptedCompleter replays steps in order and records every request.
type scriptedCompleter struct {
	steps    []step
	requests []llm.Request
}

func (s *scriptedCompleter) Send(_ context.Context, req llm.Request) (llm.LLMResponse, error) {
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		return llm.LLMResponse{}, errors.New("script exhausted")
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	return st.resp, st.err
}

func (s *scriptedCompleter) last() llm.Request {
	return s.requests[len(s.requests)-1]
}

type testEnv struct {
	agent     *Agent
	completer *scriptedCompleter
	store     *storage.InMemoryStorage
	cache     *contextcache.Cache
	root      string
}

func newTestAgent(t *testing.T, files map[string]string, cfg Config, steps ...step) *testEnv {
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

	guard, err := pathguard.New(root)
	if err != nil {
		t.Fatal(err)
	}
	logger := testLogger()
	sc := scanner.New(guard.Root())
	cache := contextcache.New(guard, sc, contextcache.DefaultOptions(), logger)
	if err := cache.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	registry, err := tools.ForWorkspace(tools.NewWorkspace(guard, sc, cache, logger))
	if err != nil {
		t.Fatal(err)
	}

	cfg = cfg.withDefaults()
	cfg.WorkingDirectory = guard.Root()
	d := NewDispatcher(registry, tools.NewExecutor(0), NewRepetitionGuard(cfg.RepetitionWindow, cfg.RepetitionThreshold), cache, logger)

	completer := &scriptedCompleter{steps: steps}
	store := storage.NewInMemoryStorage()
	a := New(completer, d, cfg).
		WithLogger(logger).
		WithContext(cache).
		WithStore(store, "test-session").
		WithModel("openai/gpt-4", nil)

	return &testEnv{agent: a, completer: completer, store: store, cache: cache, root: guard.Root()}
}

// toolMessages returns the tool result messages of a request, in order.
func toolMessages(req llm.Request) []llm.ChatMessage {
	var out []llm.ChatMessage
	for _, m := range req.Messages {
		if m.Role == llm.RoleTool {
			out = append(out, m)
		}
	}
	return out
}
