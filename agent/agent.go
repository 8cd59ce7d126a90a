// Agent loop: prompt, completion, tool rounds, final answer.
//
// Information Hiding:
// - Loop state machine and iteration cap handling
// - Prompt assembly and cache breakpoint placement
// - History bounds and tool history ring
// - Journal writes for tool calls and failed turns

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/richinex/lampcode/config"
	"github.com/richinex/lampcode/contextcache"
	"github.com/richinex/lampcode/llm"
	"github.com/richinex/lampcode/model"
	"github.com/richinex/lampcode/storage"
	"github.com/richinex/lampcode/tools"
)

// ModelValidator accepts or rejects a model id for switching.
type ModelValidator func(id string) error

// Agent holds one session's state. Turns are serialized.
type Agent struct {
	mu sync.Mutex

	cfg        Config
	client     Completer
	dispatcher *Dispatcher
	source     ContextSource
	store      storage.Store
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
	closer     func() error

	sessionID string
	model     string
	profile   config.ModelProfile
	validate  ModelValidator

	history *History
	tools   toolRing
	stats   Stats
}

// New creates an agent. Context, storage and observer are optional.
func New(client Completer, dispatcher *Dispatcher, cfg Config) *Agent {
	cfg = cfg.withDefaults()
	a := &Agent{
		cfg:        cfg,
		client:     client,
		dispatcher: dispatcher,
		observer:   nopObserver{},
		logger:     slog.Default(),
		now:        time.Now,
		profile:    config.LookupProfile(""),
		validate:   config.ValidateModel,
		history:    NewHistory(cfg.MaxHistoryEntries, cfg.MaxHistoryTokens),
		tools:      toolRing{size: cfg.ToolHistorySize},
	}
	a.stats = newStats(a.now())
	return a
}

// WithContext sets the project context source.
func (a *Agent) WithContext(src ContextSource) *Agent {
	a.source = src
	if src != nil && a.model != "" {
		src.SetModel(a.model)
	}
	return a
}

// WithStore enables the journal and conversation persistence.
func (a *Agent) WithStore(store storage.Store, sessionID string) *Agent {
	a.store = store
	a.sessionID = sessionID
	return a
}

// WithObserver sets the tool activity observer.
func (a *Agent) WithObserver(o Observer) *Agent {
	if o == nil {
		o = nopObserver{}
	}
	a.observer = o
	return a
}

// WithLogger sets the diagnostics logger.
func (a *Agent) WithLogger(l *slog.Logger) *Agent {
	if l != nil {
		a.logger = l
	}
	return a
}

// WithModel sets the initial model without validation. validate is used by
// later SetModel calls; nil keeps config.ValidateModel.
func (a *Agent) WithModel(id string, validate ModelValidator) *Agent {
	a.model = id
	a.profile = config.LookupProfile(id)
	if validate != nil {
		a.validate = validate
	}
	if a.source != nil {
		a.source.SetModel(id)
	}
	return a
}

// Model returns the active model id.
func (a *Agent) Model() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.model
}

// Profile returns the active model profile.
func (a *Agent) Profile() config.ModelProfile {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.profile
}

// SessionID returns the journal session id, empty without a store.
func (a *Agent) SessionID() string {
	return a.sessionID
}

// SetModel switches the active model. The context selection is recomputed
// for the new budget on the next turn.
func (a *Agent) SetModel(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: empty model id", config.ErrUnknownModel)
	}
	if err := a.validate(id); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.model = id
	a.profile = config.LookupProfile(id)
	if a.source != nil {
		a.source.SetModel(id)
	}
	a.logger.Info("model switched", "model", id, "profile", a.profile.Name)
	return nil
}

// Stats returns a snapshot of the session counters.
func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats.clone()
}

// ToolHistory returns the newest tool records, oldest first.
func (a *Agent) ToolHistory() []model.ToolRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tools.all()
}

// History returns a copy of the conversation history.
func (a *Agent) History() []llm.ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Entries()
}

// Tools returns the tool definitions offered to the model.
func (a *Agent) Tools() []llm.ToolDefinition {
	return a.dispatcher.Definitions()
}

// RunTool executes one tool for an interactive command. The call is not
// recorded in history, stats or the journal.
func (a *Agent) RunTool(ctx context.Context, name string, args any) (tools.Result, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s arguments: %w", name, err)
	}
	return a.dispatcher.Run(ctx, name, raw)
}

// RecentChanges returns the context cache's newest change records.
func (a *Agent) RecentChanges(limit int) []contextcache.Change {
	if a.source == nil {
		return nil
	}
	return a.source.RecentChanges(limit)
}

// Start opens the journal session.
func (a *Agent) Start(ctx context.Context) error {
	if a.store == nil {
		return nil
	}
	if err := a.store.StartSession(ctx, a.sessionID, a.model); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	return nil
}

// Resume loads the stored conversation for the session. It returns the
// number of entries restored.
func (a *Agent) Resume(ctx context.Context) (int, error) {
	if a.store == nil {
		return 0, nil
	}
	msgs, err := a.store.Load(ctx, a.sessionID)
	if err != nil {
		return 0, fmt.Errorf("load session %s: %w", a.sessionID, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Replace(msgs)
	return a.history.Len(), nil
}

// Close ends the journal session and releases resources the agent owns.
func (a *Agent) Close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		stats := a.Stats()
		if err := a.store.EndSession(ctx, a.sessionID, a.Model(), stats.TotalTokens()); err != nil {
			errs = append(errs, fmt.Errorf("end session: %w", err))
		}
	}
	if a.closer != nil {
		if err := a.closer(); err != nil {
			errs = append(errs, err)
		}
		a.closer = nil
	}
	return errors.Join(errs...)
}

// ProcessMessage runs one user turn to a final answer. Tool failures are
// handed back to the model; only completion failures end the turn with an
// error, in which case history is left unchanged.
func (a *Agent) ProcessMessage(ctx context.Context, text string) (Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := a.now()
	a.stats.Turns++

	if a.source != nil {
		a.source.EnsureCoverage(ctx)
	}

	in := promptInput{
		system:     a.systemPrompt(),
		history:    a.history.Recent(a.cfg.RecentHistory),
		user:       text,
		profile:    a.profile,
		minContext: a.cfg.MinContextTokens,
	}
	if a.source != nil {
		in.selectCtx = a.source.Select
	}
	prompt := buildPrompt(in)
	a.logger.Debug("prompt built",
		"budget", prompt.Budget,
		"history", len(prompt.History),
		"context_files", len(prompt.Context.Snippets),
		"context_tokens", prompt.Context.Tokens,
		"breakpoints", prompt.Breakpoints,
	)

	resp := Response{Context: prompt.Context.Paths()}
	conversation := prompt.Messages
	defs := a.dispatcher.Definitions()
	turn := []llm.ChatMessage{llm.UserMessage(text)}

	var final string
	for {
		if err := ctx.Err(); err != nil {
			return a.failed(ctx, resp, start, err)
		}

		out, err := a.complete(ctx, &resp, llm.Request{
			Model:       a.model,
			Messages:    conversation,
			Tools:       defs,
			ToolChoice:  llm.ToolChoiceAuto,
			Temperature: llm.Temperature(a.cfg.DecisionTemperature),
		})
		if err != nil {
			return a.failed(ctx, resp, start, err)
		}

		if len(out.ToolCalls) == 0 {
			final = out.Content
			break
		}

		if resp.Iterations >= a.cfg.MaxToolIterations {
			resp.HitLimit = true
			a.logger.Warn("tool iteration cap reached", "iterations", resp.Iterations, "pending", len(out.ToolCalls))
			a.observer.Notice(fmt.Sprintf("Reached the limit of %d tool iterations, asking for a summary.", a.cfg.MaxToolIterations))

			// The pending calls are never answered, so only their text goes back.
			if strings.TrimSpace(out.Content) != "" {
				conversation = append(conversation, llm.AssistantMessage(out.Content))
			}
			conversation = append(conversation, llm.UserMessage(finalSummaryPrompt))

			summary, err := a.complete(ctx, &resp, llm.Request{
				Model:       a.model,
				Messages:    conversation,
				Tools:       defs,
				ToolChoice:  llm.ToolChoiceNone,
				Temperature: llm.Temperature(a.cfg.SummaryTemperature),
			})
			if err != nil {
				return a.failed(ctx, resp, start, err)
			}
			final = summary.Content
			break
		}

		assistant := llm.ChatMessage{
			Role:      llm.RoleAssistant,
			Content:   out.Content,
			ToolCalls: out.ToolCalls,
		}
		conversation = append(conversation, assistant)
		turn = append(turn, assistant)

		for _, call := range out.ToolCalls {
			a.observer.ToolStarted(call)
			msg, outcome := a.dispatcher.Dispatch(ctx, call)
			a.recordOutcome(ctx, outcome)
			resp.ToolCalls = append(resp.ToolCalls, outcome.Record)
			conversation = append(conversation, msg)
			turn = append(turn, msg)
		}
		resp.Iterations++
	}

	if strings.TrimSpace(final) == "" {
		final = EmptyResponsePlaceholder
		resp.Empty = true
		a.stats.EmptyResponses++
		a.logger.Warn("empty response from model", "model", a.model)
	}

	turn = append(turn, llm.AssistantMessage(final))
	a.history.Append(turn...)
	a.persist(ctx)

	resp.Content = final
	resp.Duration = a.now().Sub(start)
	return resp, nil
}

func (a *Agent) systemPrompt() string {
	if a.cfg.SystemPrompt != "" {
		return a.cfg.SystemPrompt
	}
	return DefaultSystemPrompt(a.cfg.WorkingDirectory)
}

func (a *Agent) complete(ctx context.Context, resp *Response, req llm.Request) (llm.LLMResponse, error) {
	out, err := a.client.Send(ctx, req)
	if err != nil {
		return llm.LLMResponse{}, err
	}
	resp.addUsage(out.Usage)
	a.stats.recordUsage(out.Usage)
	return out, nil
}

func (a *Agent) recordOutcome(ctx context.Context, o Outcome) {
	a.stats.recordCall(o)
	a.tools.add(o.Record)
	a.observer.ToolFinished(o)

	if a.store == nil {
		return
	}
	if err := a.store.LogToolCall(context.WithoutCancel(ctx), a.sessionID, o.Record); err != nil {
		a.logger.Warn("failed to journal tool call", "tool", o.Record.Tool, "error", err)
	}
}

func (a *Agent) failed(ctx context.Context, resp Response, start time.Time, err error) (Response, error) {
	a.logger.Error("turn failed", "error", err)
	if a.store != nil {
		if jerr := a.store.LogError(context.WithoutCancel(ctx), a.sessionID, err, "processMessage"); jerr != nil {
			a.logger.Warn("failed to journal error", "error", jerr)
		}
	}
	resp.Duration = a.now().Sub(start)
	return resp, fmt.Errorf("process message: %w", err)
}

func (a *Agent) persist(ctx context.Context) {
	if a.store == nil {
		return
	}
	if err := a.store.Save(context.WithoutCancel(ctx), a.sessionID, a.history.Entries()); err != nil {
		a.logger.Warn("failed to save conversation", "session", a.sessionID, "error", err)
	}
}
