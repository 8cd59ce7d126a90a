package tools

import "encoding/json"

// Argument echo limits for error envelopes.
const (
	maxEchoString = 200
	maxEchoItems  = 10
	echoTruncated = "... (truncated)"
)

// ErrorDetails describes a failed tool call to the model.
type ErrorDetails struct {
	ToolName      string         `json:"tool_name"`
	Status        string         `json:"status"`
	ErrorMessage  string         `json:"error_message"`
	ArgumentsUsed map[string]any `json:"arguments_used"`
	Suggestion    string         `json:"suggestion"`
}

// ErrorResult is the tool_error envelope returned in place of a result.
type ErrorResult struct {
	Type  string       `json:"type"`
	Error ErrorDetails `json:"error"`
}

func (ErrorResult) Kind() string { return "tool_error" }

// NewErrorResult builds an envelope for a failed call. Long string arguments
// and long arrays are shortened so the echo never dominates the prompt.
func NewErrorResult(tool string, args json.RawMessage, message, suggestion string) ErrorResult {
	return ErrorResult{
		Type: ErrorResult{}.Kind(),
		Error: ErrorDetails{
			ToolName:      tool,
			Status:        "error",
			ErrorMessage:  message,
			ArgumentsUsed: EchoArguments(args),
			Suggestion:    suggestion,
		},
	}
}

// EchoArguments decodes raw call arguments for display, shortening strings
// over 200 characters and arrays over 10 items. Undecodable input yields an
// empty map.
func EchoArguments(raw json.RawMessage) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 {
		return out
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return out
	}
	for k, v := range decoded {
		out[k] = shorten(v)
	}
	return out
}

func shorten(v any) any {
	switch val := v.(type) {
	case string:
		if r := []rune(val); len(r) > maxEchoString {
			return string(r[:maxEchoString]) + echoTruncated
		}
		return val
	case []any:
		if len(val) > maxEchoItems {
			items := append([]any(nil), val[:maxEchoItems]...)
			return append(items, echoTruncated)
		}
		return val
	default:
		return val
	}
}
