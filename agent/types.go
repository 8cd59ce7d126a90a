// Package agent runs the coding agent: prompt assembly, the bounded tool
// loop and the per-session state around it.
//
// Contains the collaborator interfaces and the per-turn response.
package agent

import (
	"context"
	"time"

	"github.com/richinex/lampcode/contextcache"
	"github.com/richinex/lampcode/llm"
	"github.com/richinex/lampcode/model"
)

// Completer sends one completion request. *llm.Client satisfies it.
type Completer interface {
	Send(ctx context.Context, req llm.Request) (llm.LLMResponse, error)
}

// ContextSource supplies the project context block for each prompt.
// *contextcache.Cache satisfies it.
type ContextSource interface {
	EnsureCoverage(ctx context.Context)
	Select(budget int) contextcache.Selection
	SetModel(model string)
	RecentChanges(limit int) []contextcache.Change
}

// Observer is told about tool activity while a turn runs. Callbacks run on
// the loop's goroutine and must not call back into the Agent.
type Observer interface {
	ToolStarted(call llm.ToolCall)
	ToolFinished(o Outcome)
	Notice(msg string)
}

type nopObserver struct{}

func (nopObserver) ToolStarted(llm.ToolCall) {}
func (nopObserver) ToolFinished(Outcome)     {}
func (nopObserver) Notice(string)            {}

// EmptyResponsePlaceholder replaces a blank final answer.
const EmptyResponsePlaceholder = "[No response received from AI model. This may indicate an API issue, timeout, or model error. Please try again or rephrase your request.]"

// finalSummaryPrompt asks for an answer once the tool budget is spent.
const finalSummaryPrompt = "Please provide a final response based on the tool results so far."

// Response is the result of one user turn.
type Response struct {
	Content    string
	Iterations int // tool rounds executed
	ToolCalls  []model.ToolRecord
	Context    []string // project files included in the prompt
	Usage      llm.TokenUsage
	LastUsage  *llm.TokenUsage
	LLMCalls   int
	HitLimit   bool // the iteration cap forced a summary
	Empty      bool // the placeholder was substituted
	Duration   time.Duration
}

func (r *Response) addUsage(u *llm.TokenUsage) {
	r.LLMCalls++
	if u == nil {
		return
	}
	r.Usage.PromptTokens += u.PromptTokens
	r.Usage.CompletionTokens += u.CompletionTokens
	r.Usage.TotalTokens += u.TotalTokens
	r.Usage.CachedTokens += u.CachedTokens
	r.LastUsage = u
}
