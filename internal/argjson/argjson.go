// Package argjson recovers the JSON object from model-written tool
// arguments. Models sometimes wrap arguments in markdown fences or add a
// sentence around them.
package argjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotObject is returned when no JSON object can be recovered.
var ErrNotObject = errors.New("arguments are not a JSON object")

// Object returns the JSON object in s. It accepts, in order: s itself,
// s with a surrounding code fence removed, and the span from the first
// '{' to the last '}'. recovered is true when s needed repair.
func Object(s string) (obj json.RawMessage, recovered bool, err error) {
	trimmed := strings.TrimSpace(s)
	if isObject(trimmed) {
		return json.RawMessage(trimmed), false, nil
	}

	if unfenced := stripFence(trimmed); unfenced != trimmed && isObject(unfenced) {
		return json.RawMessage(unfenced), true, nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start != -1 && end > start {
		if span := trimmed[start : end+1]; isObject(span) {
			return json.RawMessage(span), true, nil
		}
	}

	preview := []rune(trimmed)
	if len(preview) > 100 {
		preview = append(preview[:100], []rune("...")...)
	}
	return nil, false, fmt.Errorf("%w: %q", ErrNotObject, string(preview))
}

func isObject(s string) bool {
	if !strings.HasPrefix(s, "{") {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}

// stripFence removes a leading ``` or ```json line and a trailing ```.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
