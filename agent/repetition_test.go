package agent

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRepetitionGuard_WarnsFromThreshold(t *testing.T) {
	g := NewRepetitionGuard(10, 3)
	args := json.RawMessage(`{"path":"a.go","lines":{"start":1}}`)

	for i := 1; i <= 4; i++ {
		count, warning := g.Observe("read_file", args)
		if count != i {
			t.Errorf("call %d: count = %d", i, count)
		}
		if (warning != "") != (i >= 3) {
			t.Errorf("call %d: warning = %q", i, warning)
		}
	}
}

func TestRepetitionGuard_KeyOrderIgnored(t *testing.T) {
	a := Signature("edit_file", json.RawMessage(`{"path":"x","operations":[]}`))
	b := Signature("edit_file", json.RawMessage(`{ "operations": [], "path": "x" }`))
	if a != b {
		t.Errorf("signatures differ:\n%s\n%s", a, b)
	}
	if Signature("read_file", json.RawMessage(`{"path":"x"}`)) == Signature("search_code", json.RawMessage(`{"path":"x"}`)) {
		t.Error("tool name not part of the signature")
	}
}

func TestRepetitionGuard_WindowSlides(t *testing.T) {
	g := NewRepetitionGuard(3, 2)
	same := json.RawMessage(`{"path":"a"}`)

	g.Observe("read_file", same)
	g.Observe("list_context", json.RawMessage(`{}`))
	g.Observe("search_code", json.RawMessage(`{"query":"x"}`))
	g.Observe("search_code", json.RawMessage(`{"query":"y"}`))

	// The first call has left the window.
	if count, warning := g.Observe("read_file", same); count != 1 || warning != "" {
		t.Errorf("count = %d, warning = %q", count, warning)
	}

	g.Reset()
	if count, _ := g.Observe("search_code", json.RawMessage(`{"query":"y"}`)); count != 1 {
		t.Errorf("count after Reset = %d", count)
	}
}

func TestRepetitionWarning_NamesToolAndCount(t *testing.T) {
	w := repetitionWarning("edit_file", 4)
	if !strings.Contains(w, `"edit_file"`) || !strings.Contains(w, "4 times") {
		t.Errorf("warning = %q", w)
	}
}
