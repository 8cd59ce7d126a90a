// Package model provides domain types shared across packages.
package model

import (
	"encoding/json"
	"time"
)

// ToolStatus is the outcome of a tool call.
type ToolStatus string

const (
	ToolSuccess ToolStatus = "success"
	ToolError   ToolStatus = "error"
)

// ToolRecord describes one tool invocation.
// Used by the agent's tool history, the session journal and the CLI.
type ToolRecord struct {
	Timestamp  time.Time       `json:"timestamp"`
	Tool       string          `json:"tool"`
	Status     ToolStatus      `json:"status"`
	DurationMs int64           `json:"duration_ms"`
	Args       json.RawMessage `json:"args,omitempty"`
	ResultType string          `json:"result_type,omitempty"`
	Summary    []string        `json:"summary,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// Succeeded reports whether the call returned a result.
func (r ToolRecord) Succeeded() bool {
	return r.Status == ToolSuccess
}

// MaxLoggedContent caps the "content" argument stored in journals.
const MaxLoggedContent = 500

// SanitizeArgs shortens a large "content" argument before the call is
// persisted. Arguments that are not a JSON object are returned unchanged.
func SanitizeArgs(raw json.RawMessage) json.RawMessage {
	var args map[string]json.RawMessage
	if err := json.Unmarshal(raw, &args); err != nil {
		return raw
	}
	c, ok := args["content"]
	if !ok {
		return raw
	}
	var content string
	if err := json.Unmarshal(c, &content); err != nil {
		return raw
	}
	r := []rune(content)
	if len(r) <= MaxLoggedContent {
		return raw
	}
	short, err := json.Marshal(string(r[:MaxLoggedContent]) + "... (truncated)")
	if err != nil {
		return raw
	}
	args["content"] = short
	out, err := json.Marshal(args)
	if err != nil {
		return raw
	}
	return out
}
