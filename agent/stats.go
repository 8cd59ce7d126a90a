package agent

import (
	"sort"
	"time"

	"github.com/richinex/lampcode/llm"
	"github.com/richinex/lampcode/model"
)

// Stats are the session counters shown on exit.
type Stats struct {
	StartedAt            time.Time
	Turns                int
	LLMCalls             int
	TotalToolCalls       int
	ToolCallsByType      map[string]int
	FailedOperations     int
	RepetitionsDetected  int
	ZeroReplacementEdits int
	EmptyResponses       int
	PromptTokens         int
	CompletionTokens     int
	CachedTokens         int
}

func newStats(now time.Time) Stats {
	return Stats{StartedAt: now, ToolCallsByType: map[string]int{}}
}

// TotalTokens returns prompt plus completion tokens.
func (s Stats) TotalTokens() int {
	return s.PromptTokens + s.CompletionTokens
}

// ToolUsage is one row of the per-tool breakdown.
type ToolUsage struct {
	Tool  string
	Calls int
}

// ToolBreakdown returns per-tool call counts, most used first.
func (s Stats) ToolBreakdown() []ToolUsage {
	out := make([]ToolUsage, 0, len(s.ToolCallsByType))
	for tool, n := range s.ToolCallsByType {
		out = append(out, ToolUsage{Tool: tool, Calls: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Calls != out[j].Calls {
			return out[i].Calls > out[j].Calls
		}
		return out[i].Tool < out[j].Tool
	})
	return out
}

func (s Stats) clone() Stats {
	byType := make(map[string]int, len(s.ToolCallsByType))
	for k, v := range s.ToolCallsByType {
		byType[k] = v
	}
	s.ToolCallsByType = byType
	return s
}

func (s *Stats) recordCall(o Outcome) {
	s.TotalToolCalls++
	s.ToolCallsByType[o.Record.Tool]++
	if o.Failed() {
		s.FailedOperations++
	}
	if o.Warning != "" {
		s.RepetitionsDetected++
	}
	if o.ZeroReplacements > 0 {
		s.ZeroReplacementEdits++
	}
}

func (s *Stats) recordUsage(u *llm.TokenUsage) {
	s.LLMCalls++
	if u == nil {
		return
	}
	s.PromptTokens += int(u.PromptTokens)
	s.CompletionTokens += int(u.CompletionTokens)
	s.CachedTokens += int(u.CachedTokens)
}

// toolRing keeps the newest tool records.
type toolRing struct {
	size    int
	records []model.ToolRecord
}

func (r *toolRing) add(rec model.ToolRecord) {
	r.records = append(r.records, rec)
	if over := len(r.records) - r.size; over > 0 {
		r.records = append([]model.ToolRecord(nil), r.records[over:]...)
	}
}

func (r *toolRing) all() []model.ToolRecord {
	return append([]model.ToolRecord(nil), r.records...)
}
