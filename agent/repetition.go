package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RepetitionGuard watches a sliding window of tool call signatures and
// warns when the same call keeps coming back. It never blocks a call.
type RepetitionGuard struct {
	window    int
	threshold int
	recent    []string
}

// NewRepetitionGuard creates a guard over the last window calls that warns
// once a signature appears threshold times.
func NewRepetitionGuard(window, threshold int) *RepetitionGuard {
	return &RepetitionGuard{window: window, threshold: threshold}
}

// Observe records a call and returns how often its signature occurs in the
// window, plus a warning for the model when the count reaches the
// threshold.
func (g *RepetitionGuard) Observe(tool string, args json.RawMessage) (int, string) {
	sig := Signature(tool, args)
	g.recent = append(g.recent, sig)
	if over := len(g.recent) - g.window; over > 0 {
		g.recent = append([]string(nil), g.recent[over:]...)
	}

	count := 0
	for _, s := range g.recent {
		if s == sig {
			count++
		}
	}
	if count < g.threshold {
		return count, ""
	}
	return count, repetitionWarning(tool, count)
}

// Reset forgets every observed call.
func (g *RepetitionGuard) Reset() {
	g.recent = nil
}

// Signature fingerprints a call. Object keys are sorted so argument order
// does not matter; arguments that are not valid JSON are compared verbatim.
func Signature(tool string, args json.RawMessage) string {
	var decoded any
	if err := json.Unmarshal(args, &decoded); err == nil {
		if canonical, err := json.Marshal(decoded); err == nil {
			return tool + ":" + string(canonical)
		}
	}
	return tool + ":" + string(bytes.TrimSpace(args))
}

func repetitionWarning(tool string, count int) string {
	return fmt.Sprintf("REPETITION DETECTED: %q has been called %d times with identical arguments. "+
		"This suggests the operation is not achieving its goal. Try a different approach:\n"+
		"   1. Read the file to verify current state\n"+
		"   2. Use search_code to find the correct pattern\n"+
		"   3. Try a different tool or strategy\n"+
		"   4. Break the problem into smaller steps", tool, count)
}
