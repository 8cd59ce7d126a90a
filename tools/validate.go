// Argument validation shared by the file tools.
//
// Information Hiding:
// - Path sanitization (NUL stripping, dot-run collapsing, traversal depth)
// - Numeric bounds and integer checks
// - Defaults applied once so Execute sees concrete values

package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ErrValidation marks arguments rejected before any filesystem access.
var ErrValidation = errors.New("invalid arguments")

// Validation limits.
const (
	MaxNumericArg        = 1_000_000
	MaxTraversalSegments = 5
	MaxEditOperations    = 50
	MaxQueryLength       = 500
)

var dotRun = regexp.MustCompile(`\.{2,}`)

func invalidf(tool, format string, args ...any) error {
	return fmt.Errorf("%w: tool %q: %s", ErrValidation, tool, fmt.Sprintf(format, args...))
}

func decodeArgs(tool string, raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return invalidf(tool, "%v", err)
	}
	return nil
}

// SanitizePath strips NUL bytes, collapses runs of dots to "..", rejects
// deep traversal chains and trims whitespace. Containment is checked later
// by the path guard.
func SanitizePath(tool, p string) (string, error) {
	p = strings.ReplaceAll(p, "\x00", "")
	p = dotRun.ReplaceAllString(p, "..")
	if strings.Count(p, "../") > MaxTraversalSegments {
		return "", invalidf(tool, "path traversal depth exceeds %d segments", MaxTraversalSegments)
	}
	p = strings.TrimSpace(p)
	if p == "" {
		return "", invalidf(tool, "requires a non-empty string for \"path\"")
	}
	return p, nil
}

// optionalCount validates a non-negative numeric argument and floors it.
// ok is false when the argument was absent.
func optionalCount(tool, field string, v *float64) (n int, ok bool, err error) {
	if v == nil {
		return 0, false, nil
	}
	f := *v
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, invalidf(tool, "%q must be a finite number", field)
	}
	if f < 0 || f > MaxNumericArg {
		return 0, false, invalidf(tool, "%q must be between 0 and %d", field, MaxNumericArg)
	}
	return int(math.Floor(f)), true, nil
}

// optionalLine validates a 1-indexed line number. ok is false when absent.
func optionalLine(tool, field string, v *float64) (n int, ok bool, err error) {
	if v == nil {
		return 0, false, nil
	}
	f := *v
	if f != math.Trunc(f) || f < 1 || f > MaxNumericArg {
		return 0, false, invalidf(tool, "%q must be an integer >= 1", field)
	}
	return int(f), true, nil
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
