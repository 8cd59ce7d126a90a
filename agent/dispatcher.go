// Tool call dispatch.
//
// Information Hiding:
// - Argument parsing and the closed registry lookup
// - Repetition tracking across calls
// - Error classification into tool_error envelopes
// - Panic and timeout containment via the tool executor

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/richinex/lampcode/internal/argjson"
	"github.com/richinex/lampcode/llm"
	"github.com/richinex/lampcode/model"
	"github.com/richinex/lampcode/tools"
)

// Outcome describes one dispatched call.
type Outcome struct {
	Record           model.ToolRecord
	Result           tools.Result // nil when the call failed
	Repetitions      int          // identical calls in the window, this one included
	Warning          string       // repetition warning shown to the model
	ZeroReplacements int
	UnknownTool      bool
}

// Failed reports whether the call produced a tool_error.
func (o Outcome) Failed() bool {
	return o.Record.Status == model.ToolError
}

// Dispatcher validates and runs model-requested tool calls. Failures never
// escape: every call yields exactly one tool result message.
type Dispatcher struct {
	registry *tools.Registry
	executor *tools.Executor
	guard    *RepetitionGuard
	paths    Suggester
	logger   *slog.Logger
	now      func() time.Time
}

// NewDispatcher creates a dispatcher over a closed registry.
func NewDispatcher(registry *tools.Registry, executor *tools.Executor, guard *RepetitionGuard, paths Suggester, logger *slog.Logger) *Dispatcher {
	if executor == nil {
		executor = tools.NewExecutor(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		executor: executor,
		guard:    guard,
		paths:    paths,
		logger:   logger,
		now:      time.Now,
	}
}

// Definitions returns the registry's tools in wire form.
func (d *Dispatcher) Definitions() []llm.ToolDefinition {
	metas := d.registry.List()
	defs := make([]llm.ToolDefinition, 0, len(metas))
	for _, m := range metas {
		defs = append(defs, llm.ToolDefinition{
			Name:        m.Name,
			Description: m.Description,
			Parameters:  m.Parameters,
		})
	}
	return defs
}

// Dispatch runs one call and returns the tool result message for it.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall) (llm.ChatMessage, Outcome) {
	start := d.now()
	out := Outcome{Record: model.ToolRecord{
		Timestamp: start,
		Tool:      call.Name,
		Args:      call.Arguments,
	}}

	args, recovered, err := parseArguments(call.Arguments)
	if err != nil {
		d.logger.Warn("failed to parse tool arguments", "tool", call.Name, "error", err)
		return d.fail(call, &out, start, err.Error(), hintInvalidJSON)
	}
	if recovered {
		d.logger.Debug("repaired tool arguments", "tool", call.Name)
	}
	out.Record.Args = args

	tool, err := d.registry.Lookup(call.Name)
	if err != nil {
		out.UnknownTool = true
		var unknown *tools.UnknownToolError
		hint := hintGeneric
		if errors.As(err, &unknown) {
			hint = hintUnknownTool + strings.Join(unknown.Available, ", ")
		}
		return d.fail(call, &out, start, fmt.Sprintf("Unknown tool: %s", call.Name), hint)
	}

	if err := d.executor.Validate(tool, args); err != nil {
		return d.fail(call, &out, start, err.Error(), suggestion(call.Name, args, err, d.paths))
	}

	if d.guard != nil {
		out.Repetitions, out.Warning = d.guard.Observe(call.Name, args)
		if out.Warning != "" {
			d.logger.Warn("repeated tool call", "tool", call.Name, "count", out.Repetitions)
		}
	}

	result, err := d.executor.Execute(ctx, tool, args)
	if err != nil {
		return d.fail(call, &out, start, err.Error(), suggestion(call.Name, args, err, d.paths))
	}

	out.Result = result
	out.Record.Status = model.ToolSuccess
	out.Record.ResultType = result.Kind()
	out.Record.Summary = Summarize(result)
	out.Record.DurationMs = d.now().Sub(start).Milliseconds()
	if edit, ok := result.(tools.EditFileResult); ok {
		out.ZeroReplacements = edit.ZeroReplacementOps()
	}

	content, err := tools.Encode(result)
	if err != nil {
		return d.fail(call, &out, start, err.Error(), hintGeneric)
	}
	if out.Warning != "" {
		content = withField(content, "repetition_warning", out.Warning)
	}
	return llm.ToolResultMessage(call.ID, call.Name, content), out
}

// Run executes a tool outside the model loop. Repetition tracking and
// error envelopes are skipped.
func (d *Dispatcher) Run(ctx context.Context, name string, args json.RawMessage) (tools.Result, error) {
	tool, err := d.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	parsed, _, err := parseArguments(args)
	if err != nil {
		return nil, err
	}
	return d.executor.Execute(ctx, tool, parsed)
}

func (d *Dispatcher) fail(call llm.ToolCall, out *Outcome, start time.Time, msg, hint string) (llm.ChatMessage, Outcome) {
	out.Result = nil
	out.Record.Status = model.ToolError
	out.Record.Error = msg
	out.Record.ResultType = tools.ErrorResult{}.Kind()
	out.Record.DurationMs = d.now().Sub(start).Milliseconds()

	envelope := tools.NewErrorResult(call.Name, call.Arguments, msg, hint)
	content, err := tools.Encode(envelope)
	if err != nil {
		content = fmt.Sprintf(`{"type":"tool_error","error":{"tool_name":%q,"status":"error","error_message":%q}}`, call.Name, msg)
	}
	if out.Warning != "" {
		content = withField(content, "repetition_warning", out.Warning)
	}
	return llm.ToolResultMessage(call.ID, call.Name, content), *out
}

// parseArguments accepts a JSON object, repairing fenced or wrapped
// objects. Empty or null arguments mean no arguments.
func parseArguments(raw json.RawMessage) (args json.RawMessage, recovered bool, err error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage(`{}`), false, nil
	}
	obj, recovered, err := argjson.Object(trimmed)
	if err != nil {
		return nil, false, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return obj, recovered, nil
}

// withField adds a top-level string field to an encoded JSON object.
func withField(content, key, value string) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return content
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return content
	}
	obj[key] = encoded
	out, err := json.Marshal(obj)
	if err != nil {
		return content
	}
	return string(out)
}
