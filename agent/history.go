package agent

import (
	"github.com/richinex/lampcode/internal/tokens"
	"github.com/richinex/lampcode/llm"
)

// History is the bounded conversation record carried between turns.
// Whole turns are evicted oldest first. A turn that alone exceeds the bounds
// loses its tool rounds oldest first, so the newest user message and final
// answer survive and no tool result is left without its call.
type History struct {
	entries    []llm.ChatMessage
	maxEntries int
	maxTokens  int
}

// NewHistory creates a history bounded by entry count and estimated tokens.
func NewHistory(maxEntries, maxTokens int) *History {
	return &History{maxEntries: maxEntries, maxTokens: maxTokens}
}

// Append adds a turn's entries and enforces the bounds.
func (h *History) Append(msgs ...llm.ChatMessage) {
	all := make([]llm.ChatMessage, 0, len(h.entries)+len(msgs))
	all = append(append(all, h.entries...), msgs...)

	turns := splitTurns(all)
	for len(turns) > 1 && !h.fits(flatten(turns)) {
		turns = turns[1:]
	}
	if len(turns) == 1 {
		turns[0] = shrinkTurn(turns[0], h.fits)
	}
	h.entries = flatten(turns)
}

// Replace swaps in a stored history, applying the same bounds.
func (h *History) Replace(msgs []llm.ChatMessage) {
	h.entries = nil
	h.Append(msgs...)
}

// Recent returns up to n of the newest entries, starting at a user message.
func (h *History) Recent(n int) []llm.ChatMessage {
	return tail(h.entries, n)
}

// Entries returns a copy of every entry.
func (h *History) Entries() []llm.ChatMessage {
	return append([]llm.ChatMessage(nil), h.entries...)
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Tokens returns the estimated token count of all entries.
func (h *History) Tokens() int {
	return messageTokens(h.entries)
}

// Clear drops every entry.
func (h *History) Clear() {
	h.entries = nil
}

func (h *History) fits(msgs []llm.ChatMessage) bool {
	if h.maxEntries > 0 && len(msgs) > h.maxEntries {
		return false
	}
	return h.maxTokens <= 0 || messageTokens(msgs) <= h.maxTokens
}

// tail returns whole turns from the end of msgs holding at most n entries.
// When the newest turn alone is longer than n it is shrunk instead of
// dropped, so the last exchange is always present.
func tail(msgs []llm.ChatMessage, n int) []llm.ChatMessage {
	if n <= 0 {
		return nil
	}
	turns := splitTurns(msgs)
	keep := len(turns)
	count := 0
	for keep > 0 && count+len(turns[keep-1]) <= n {
		keep--
		count += len(turns[keep])
	}
	if keep == len(turns) && keep > 0 {
		within := func(t []llm.ChatMessage) bool { return len(t) <= n }
		return shrinkTurn(turns[keep-1], within)
	}
	return flatten(turns[keep:])
}

// splitTurns groups msgs into turns that each start at a user message.
// Entries before the first user message are dropped.
func splitTurns(msgs []llm.ChatMessage) [][]llm.ChatMessage {
	var turns [][]llm.ChatMessage
	for _, m := range msgs {
		if m.Role == llm.RoleUser {
			turns = append(turns, nil)
		}
		if len(turns) > 0 {
			turns[len(turns)-1] = append(turns[len(turns)-1], m)
		}
	}
	return turns
}

func flatten(turns [][]llm.ChatMessage) []llm.ChatMessage {
	var out []llm.ChatMessage
	for _, t := range turns {
		out = append(out, t...)
	}
	return out
}

// shrinkTurn drops the turn's tool rounds oldest first until fits accepts
// it. If that is not enough the turn is cut to its user message and final
// answer, then to the user message alone. The result may still fail fits;
// the user message is always kept.
func shrinkTurn(turn []llm.ChatMessage, fits func([]llm.ChatMessage) bool) []llm.ChatMessage {
	turn = append([]llm.ChatMessage(nil), turn...)
	for !fits(turn) {
		start, end := firstToolRound(turn)
		if start < 0 {
			break
		}
		turn = append(turn[:start], turn[end:]...)
	}
	if fits(turn) || len(turn) == 0 {
		return turn
	}

	last := turn[len(turn)-1]
	if len(turn) > 1 && last.Role == llm.RoleAssistant && len(last.ToolCalls) == 0 {
		if pair := []llm.ChatMessage{turn[0], last}; fits(pair) {
			return pair
		}
	}
	return turn[:1]
}

// firstToolRound locates the oldest assistant tool-call message and the
// tool results that follow it. start is -1 when the turn has none.
func firstToolRound(turn []llm.ChatMessage) (start, end int) {
	for i, m := range turn {
		if m.Role != llm.RoleAssistant || len(m.ToolCalls) == 0 {
			continue
		}
		end = i + 1
		for end < len(turn) && turn[end].Role == llm.RoleTool {
			end++
		}
		return i, end
	}
	return -1, -1
}

// messageTokens estimates the tokens of message contents and tool call
// arguments.
func messageTokens(msgs []llm.ChatMessage) int {
	total := 0
	for _, m := range msgs {
		total += tokens.Estimate(m.Content)
		for _, tc := range m.ToolCalls {
			total += tokens.Estimate(string(tc.Arguments))
		}
	}
	return total
}
