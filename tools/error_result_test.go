package tools

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewErrorResult_ShortensEcho(t *testing.T) {
	items := make([]any, 12)
	for i := range items {
		items[i] = i
	}
	raw, err := json.Marshal(map[string]any{
		"path":       "a.txt",
		"content":    strings.Repeat("x", 250),
		"operations": items,
	})
	if err != nil {
		t.Fatal(err)
	}

	res := NewErrorResult("create_file", raw, "boom", "try again")
	if res.Type != "tool_error" || res.Error.Status != "error" {
		t.Fatalf("envelope = %+v", res)
	}
	args := res.Error.ArgumentsUsed
	if args["path"] != "a.txt" {
		t.Errorf("path = %v", args["path"])
	}
	content := args["content"].(string)
	if !strings.HasSuffix(content, "... (truncated)") || len(content) != 200+len("... (truncated)") {
		t.Errorf("content echo = %q", content)
	}
	ops := args["operations"].([]any)
	if len(ops) != 11 || ops[10] != "... (truncated)" {
		t.Errorf("operations echo = %v", ops)
	}
}

func TestNewErrorResult_BadJSON(t *testing.T) {
	res := NewErrorResult("read_file", json.RawMessage(`{not json`), "parse", "")
	if len(res.Error.ArgumentsUsed) != 0 {
		t.Errorf("arguments = %v, want empty", res.Error.ArgumentsUsed)
	}

	encoded, err := Encode(res)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(encoded, `"type":"tool_error"`) || !strings.Contains(encoded, `"arguments_used":{}`) {
		t.Errorf("encoded = %s", encoded)
	}
}
