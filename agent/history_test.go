package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/richinex/lampcode/llm"
)

func TestHistory_EntryCap(t *testing.T) {
	h := NewHistory(4, 0)
	h.Append(turns(6, 10)...)

	if h.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", h.Len())
	}
	if h.Entries()[0].Role != llm.RoleUser {
		t.Errorf("history starts with %s", h.Entries()[0].Role)
	}
}

func TestHistory_TokenCapDropsOldest(t *testing.T) {
	h := NewHistory(100, 100)
	h.Append(llm.UserMessage("old"), llm.AssistantMessage(strings.Repeat("a", 200)))
	h.Append(llm.UserMessage("new"), llm.AssistantMessage(strings.Repeat("b", 200)))

	entries := h.Entries()
	if len(entries) != 2 || entries[0].Content != "new" {
		t.Errorf("entries = %d, first = %q", len(entries), entries[0].Content)
	}
	if h.Tokens() > 100 {
		t.Errorf("Tokens() = %d over cap", h.Tokens())
	}
}

// toolTurn builds a user question, rounds tool calls each followed by a
// result of resultSize bytes, and a final answer.
func toolTurn(question string, rounds, resultSize int, answer string) []llm.ChatMessage {
	msgs := []llm.ChatMessage{llm.UserMessage(question)}
	for i := 0; i < rounds; i++ {
		id := fmt.Sprintf("%s-%d", question, i)
		msgs = append(msgs,
			llm.ChatMessage{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: id, Name: "read_file", Arguments: json.RawMessage(`{"path":"a.go"}`)}}},
			llm.ToolResultMessage(id, "read_file", strings.Repeat("r", resultSize)),
		)
	}
	return append(msgs, llm.AssistantMessage(answer))
}

func TestHistory_NeverStartsWithOrphanToolResult(t *testing.T) {
	h := NewHistory(3, 0)
	h.Append(toolTurn("q", 1, 2, "a")...)

	// The entry cap cuts the tool round rather than the user message.
	entries := h.Entries()
	if len(entries) != 2 || entries[0].Content != "q" || entries[1].Content != "a" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestHistory_OversizedTurnKeepsQuestionAndAnswer(t *testing.T) {
	h := NewHistory(40, 8000)
	h.Append(toolTurn("earlier", 0, 0, "fine")...)
	h.Append(toolTurn("big", 6, 8000, "done")...)

	entries := h.Entries()
	if len(entries) == 0 {
		t.Fatal("history emptied by a token-heavy turn")
	}
	if entries[0].Role != llm.RoleUser || entries[0].Content != "big" {
		t.Errorf("first entry = %s %q", entries[0].Role, entries[0].Content)
	}
	if last := entries[len(entries)-1]; last.Content != "done" {
		t.Errorf("last entry = %q, want final answer", last.Content)
	}
	if h.Tokens() > 8000 {
		t.Errorf("Tokens() = %d over cap", h.Tokens())
	}
	for i, m := range entries {
		if m.Role == llm.RoleTool && (i == 0 || entries[i-1].Role == llm.RoleUser) {
			t.Errorf("orphan tool result at %d", i)
		}
	}
}

func TestHistory_DropsOldestToolRoundsFirst(t *testing.T) {
	h := NewHistory(4, 0)
	h.Append(toolTurn("q", 3, 2, "a")...)

	entries := h.Entries()
	if len(entries) != 4 {
		t.Fatalf("Len() = %d, want 4", len(entries))
	}
	if entries[1].ToolCalls[0].ID != "q-2" || entries[2].ToolCallID != "q-2" {
		t.Errorf("kept round = %+v, want the newest", entries[1:3])
	}
}

func TestHistory_RecentKeepsLastExchange(t *testing.T) {
	h := NewHistory(40, 0)
	h.Append(toolTurn("turn-one", 5, 2, "done-1")...)

	// Twelve entries do not fit in ten; the turn is shrunk, not skipped.
	recent := h.Recent(10)
	if len(recent) == 0 || len(recent) > 10 {
		t.Fatalf("Recent(10) = %d entries", len(recent))
	}
	if recent[0].Content != "turn-one" || recent[len(recent)-1].Content != "done-1" {
		t.Errorf("Recent(10) = %q ... %q", recent[0].Content, recent[len(recent)-1].Content)
	}

	recent = h.Recent(2)
	if len(recent) != 2 || recent[1].Content != "done-1" {
		t.Errorf("Recent(2) = %+v", recent)
	}
}

func TestHistory_RecentWholeTurns(t *testing.T) {
	h := NewHistory(0, 0)
	h.Append(
		llm.UserMessage("q1"),
		llm.AssistantMessage("a1"),
		llm.UserMessage("q2"),
		llm.ChatMessage{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "1", Name: "list_context", Arguments: json.RawMessage(`{}`)}}},
		llm.ToolResultMessage("1", "list_context", "{}"),
		llm.AssistantMessage("a2"),
	)

	recent := h.Recent(4)
	if len(recent) != 4 || recent[0].Content != "q2" {
		t.Errorf("Recent(4) = %+v", recent)
	}
	recent = h.Recent(5)
	if len(recent) != 4 {
		t.Errorf("Recent(5) = %d entries, want the last whole turn", len(recent))
	}
	recent = h.Recent(6)
	if len(recent) != 6 || recent[0].Content != "q1" {
		t.Errorf("Recent(6) = %+v", recent)
	}
}

func TestHistory_ReplaceAppliesBounds(t *testing.T) {
	h := NewHistory(2, 0)
	h.Replace(turns(5, 4))
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}
	h.Clear()
	if h.Len() != 0 {
		t.Errorf("Len() after Clear = %d", h.Len())
	}
}
