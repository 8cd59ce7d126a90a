package agent

import (
	"fmt"
	"strings"

	"github.com/richinex/lampcode/config"
	"github.com/richinex/lampcode/contextcache"
	"github.com/richinex/lampcode/internal/tokens"
	"github.com/richinex/lampcode/llm"
)

// Cache breakpoint placement thresholds, in estimated tokens.
const (
	contextBreakpointTokens = 5000
	historyBreakpointTokens = 3000
	historyBreakpointMinLen = 4
	olderHistoryShare       = 0.6
)

// DefaultSystemPrompt returns the built-in instructions for workdir.
func DefaultSystemPrompt(workdir string) string {
	return fmt.Sprintf(`You are LampCode, a coding assistant that completes tasks by working directly in the user's project.

Working directory: %s

How to work:
- State your understanding of the task before acting, and plan multi-step work.
- Gather facts with tools instead of guessing. Explain what each result told you.
- Keep changes focused and explain why you made them.

Tools:
- read_file: read a file or a line range (prefer ranges for large files)
- search_code: case-insensitive search across project files
- list_directory: explore the directory tree (keep max_depth small)
- create_file: create a file, or replace one when overwrite is true
- edit_file: apply find/replace or line-range edits; batch several operations in one call
- list_context: show the files currently cached for context
- refresh_context: rescan the project after files change

Paths are always relative to the working directory. Paths that leave it, or pass through symbolic links, are rejected.

When a tool fails you receive a tool_error with tool_name, error_message, arguments_used and suggestion. Read the suggestion and change your approach:
- missing file: locate it with list_directory or search_code
- find text not present: read_file first and copy the exact text
- path rejected: use a relative path inside the working directory

Checking your own edits:
- An edit_file result with "replacements": 0 or a warning means the text was NOT found. Do not retry the same edit. Read the file, then adjust the find text or switch to replace_range.
- A "no_changes" status means the file already had that content. Find out why before editing again.
- Never repeat an identical failing call more than 3 times. If a result carries a repetition_warning, try a different strategy.

Be precise, concrete and brief.`, workdir)
}

// Prompt is the assembled request prefix for one turn.
type Prompt struct {
	Messages    []llm.ChatMessage
	Context     contextcache.Selection
	History     []llm.ChatMessage // history actually sent
	Budget      int
	Breakpoints int
}

type promptInput struct {
	system     string
	history    []llm.ChatMessage
	user       string
	profile    config.ModelProfile
	minContext int
	selectCtx  func(budget int) contextcache.Selection
}

// buildPrompt lays out [system, context, history..., user]. History is
// halved when it leaves less than minContext tokens for project context.
// Models that need explicit cache hints get breakpoints on the system
// prompt, then a large context block, then the older share of history,
// within the profile's breakpoint limit. Recent turns are never marked.
func buildPrompt(in promptInput) Prompt {
	budget := in.profile.PromptBudget()
	history := in.history

	fixed := tokens.Estimate(in.system) + tokens.Estimate(in.user)
	if len(history) > 0 && budget-fixed-messageTokens(history) < in.minContext {
		history = tail(history, max(1, len(history)/2))
	}
	historyTokens := messageTokens(history)
	remaining := max(budget-fixed-historyTokens, 0)

	var sel contextcache.Selection
	if in.selectCtx != nil {
		sel = in.selectCtx(remaining)
	}
	block := sel.Block()

	history = append([]llm.ChatMessage(nil), history...)
	msgs := make([]llm.ChatMessage, 0, len(history)+3)
	used := 0

	if in.profile.ManualCaching() {
		limit := in.profile.Breakpoints()

		system := llm.SystemMessage(in.system)
		if used < limit {
			system.CacheBreakpoint = true
			used++
		}
		msgs = append(msgs, system)

		if block != "" {
			ctxMsg := llm.SystemMessage(strings.TrimLeft(block, "\n"))
			if tokens.Estimate(block) > contextBreakpointTokens && used < limit {
				ctxMsg.CacheBreakpoint = true
				used++
			}
			msgs = append(msgs, ctxMsg)
		}

		if historyTokens > historyBreakpointTokens && len(history) > historyBreakpointMinLen && used < limit {
			split := int(float64(len(history)) * olderHistoryShare)
			if split > 0 {
				history[split-1].CacheBreakpoint = true
				used++
			}
		}
	} else {
		msgs = append(msgs, llm.SystemMessage(in.system+block))
	}

	msgs = append(msgs, history...)
	msgs = append(msgs, llm.UserMessage(in.user))

	return Prompt{
		Messages:    msgs,
		Context:     sel,
		History:     history,
		Budget:      budget,
		Breakpoints: used,
	}
}
