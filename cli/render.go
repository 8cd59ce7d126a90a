// Terminal output for the chat surface.
//
// Information Hiding:
// - Tool activity lines and repetition warnings
// - Answer footer with cache and token figures
// - Session statistics layout

package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/richinex/lampcode/agent"
	"github.com/richinex/lampcode/llm"
)

const (
	argPreviewLen   = 80
	errorPreviewLen = 160
	ruleWidth       = 60
)

// console writes the REPL's output. It also observes the agent's tool
// activity.
type console struct {
	out     io.Writer
	errOut  io.Writer
	verbose bool
}

var _ agent.Observer = (*console)(nil)

func newConsole(out, errOut io.Writer, verbose bool) *console {
	return &console{out: out, errOut: errOut, verbose: verbose}
}

func (c *console) banner(model, workspace string) {
	fmt.Fprintln(c.out, "lampcode: chat with your codebase")
	fmt.Fprintf(c.out, "Model: %s\n", model)
	fmt.Fprintf(c.out, "Working directory: %s\n", workspace)
	fmt.Fprintln(c.out, "Type 'help' for commands, 'exit' to quit.")
	fmt.Fprintln(c.out)
}

func (c *console) errorf(format string, args ...any) {
	fmt.Fprintf(c.errOut, "\nError: "+format+"\n\n", args...)
}

// ToolStarted implements agent.Observer.
func (c *console) ToolStarted(call llm.ToolCall) {
	args := strings.TrimSpace(string(call.Arguments))
	if args == "" || args == "{}" {
		fmt.Fprintf(c.out, "  -> %s\n", call.Name)
		return
	}
	fmt.Fprintf(c.out, "  -> %s %s\n", call.Name, truncateString(args, argPreviewLen))
}

// ToolFinished implements agent.Observer.
func (c *console) ToolFinished(o agent.Outcome) {
	if o.Failed() {
		fmt.Fprintf(c.out, "     failed: %s\n", truncateString(o.Record.Error, errorPreviewLen))
	} else {
		for _, line := range o.Record.Summary {
			fmt.Fprintf(c.out, "     %s\n", line)
		}
	}
	if o.Warning != "" {
		fmt.Fprintf(c.out, "     warning: %s\n", o.Warning)
	}
}

// Notice implements agent.Observer.
func (c *console) Notice(msg string) {
	fmt.Fprintf(c.out, "  Note: %s\n", msg)
}

func (c *console) printResponse(resp agent.Response) {
	fmt.Fprintf(c.out, "\n%s\n\n", resp.Content)

	if u := resp.LastUsage; u != nil && u.CachedTokens > 0 {
		fmt.Fprintf(c.out, "Cache hit: %s tokens cached (%.0f%% of prompt)\n", humanize.Comma(int64(u.CachedTokens)), u.CacheHitPercent())
	}
	if c.verbose {
		fmt.Fprintf(c.out, "[%d LLM calls, %d tool rounds, %d prompt + %d completion tokens, %s]\n",
			resp.LLMCalls, resp.Iterations, resp.Usage.PromptTokens, resp.Usage.CompletionTokens,
			resp.Duration.Round(time.Millisecond))
		if len(resp.Context) > 0 {
			fmt.Fprintf(c.out, "[context: %s]\n", strings.Join(resp.Context, ", "))
		}
	}
}

// printStats prints the session counters. Nothing is printed for a
// session that never reached the model.
func (c *console) printStats(st agent.Stats) {
	if st.LLMCalls == 0 && st.TotalToolCalls == 0 {
		return
	}
	rule := strings.Repeat("=", ruleWidth)
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, rule)
	fmt.Fprintln(c.out, "Session Statistics")
	fmt.Fprintln(c.out, rule)
	fmt.Fprintf(c.out, "Turns: %d\n", st.Turns)
	fmt.Fprintf(c.out, "LLM calls: %d\n", st.LLMCalls)
	fmt.Fprintf(c.out, "Tokens: %s prompt, %s completion",
		humanize.Comma(int64(st.PromptTokens)), humanize.Comma(int64(st.CompletionTokens)))
	if st.CachedTokens > 0 {
		fmt.Fprintf(c.out, ", %s cached", humanize.Comma(int64(st.CachedTokens)))
	}
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "Total tool calls: %d\n", st.TotalToolCalls)

	if breakdown := st.ToolBreakdown(); len(breakdown) > 0 {
		fmt.Fprintln(c.out, "\nTool usage:")
		for _, u := range breakdown {
			fmt.Fprintf(c.out, "  %s: %d\n", u.Tool, u.Calls)
		}
	}

	warnings := []struct {
		label string
		n     int
	}{
		{"Failed operations", st.FailedOperations},
		{"Edits with zero replacements", st.ZeroReplacementEdits},
		{"Repetitions detected", st.RepetitionsDetected},
		{"Empty responses", st.EmptyResponses},
	}
	first := true
	for _, w := range warnings {
		if w.n == 0 {
			continue
		}
		if first {
			fmt.Fprintln(c.out)
			first = false
		}
		fmt.Fprintf(c.out, "Warning: %s: %d\n", w.label, w.n)
	}
	fmt.Fprintln(c.out, rule)
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
