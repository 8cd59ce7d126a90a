// Tool Executor.
//
// Information Hiding:
// - Validation before execution
// - Per-call timeout
// - Panic containment so no failure crosses the tool boundary

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultToolTimeout bounds a single tool call.
const DefaultToolTimeout = 30 * time.Second

// Executor runs tools with validation, a timeout and panic recovery.
type Executor struct {
	timeout time.Duration
}

// NewExecutor creates an executor. A zero timeout selects DefaultToolTimeout.
func NewExecutor(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &Executor{timeout: timeout}
}

// Validate checks args without running the tool.
func (e *Executor) Validate(tool Tool, args json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %q panicked: %v", tool.Metadata().Name, r)
		}
	}()
	return tool.Validate(args)
}

// Execute validates args and runs the tool once.
func (e *Executor) Execute(ctx context.Context, tool Tool, args json.RawMessage) (result Result, err error) {
	if err := e.Validate(tool, args); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("tool %q panicked: %v", tool.Metadata().Name, r)
		}
	}()

	return tool.Execute(ctx, args)
}
