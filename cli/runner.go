// Command execution for CLI commands.
//
// Information Hiding:
// - Settings resolution from flags, file and environment
// - Agent construction and journal lifetime
// - REPL input handling and built-in command dispatch

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/richinex/lampcode/agent"
	"github.com/richinex/lampcode/config"
	"github.com/richinex/lampcode/llm"
	"github.com/richinex/lampcode/storage"
)

// Options holds CLI execution options. Zero values keep the configured
// settings.
type Options struct {
	Provider  string
	WorkDir   string
	Model     string
	SessionID string
	MaxIter   int
	Verbose   bool
	NoLog     bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{}
}

// LoadSettings resolves settings for the workspace and applies flag
// overrides on top of the file and environment.
func LoadSettings(opts Options) (config.Settings, error) {
	s, err := config.Load(opts.Provider, opts.WorkDir)
	if err != nil {
		return config.Settings{}, err
	}
	if opts.Model != "" {
		s.LLM.Model = opts.Model
	}
	if opts.MaxIter > 0 {
		s.Agent.MaxToolIterations = opts.MaxIter
	}
	if opts.NoLog {
		s.Logging.Enabled = false
	}
	return s, nil
}

// newLogger writes diagnostics as text to w. Verbose forces debug level.
func newLogger(w io.Writer, level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// buildAgent constructs the agent for opts with output going to con.
func buildAgent(ctx context.Context, s config.Settings, opts Options, con *console) (*agent.Agent, error) {
	logger := newLogger(con.errOut, s.Logging.Level, opts.Verbose)
	a, err := agent.NewBuilder(s).
		Logger(logger).
		Observer(con).
		SessionID(opts.SessionID).
		Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start agent: %w", err)
	}
	return a, nil
}

// Chat starts the interactive session on stdin and stdout.
func Chat(ctx context.Context, opts Options) error {
	s, err := LoadSettings(opts)
	if err != nil {
		return err
	}
	con := newConsole(os.Stdout, os.Stderr, opts.Verbose)

	a, err := buildAgent(ctx, s, opts, con)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}()

	if opts.SessionID != "" {
		n, err := a.Resume(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		} else if n > 0 {
			fmt.Printf("Resuming session '%s' (%d messages)\n", opts.SessionID, n)
		}
	}

	sess := newSession(a, s, os.Stdin, con)
	return sess.run(ctx)
}

// RunOnce answers a single prompt and exits.
func RunOnce(ctx context.Context, prompt string, opts Options) error {
	s, err := LoadSettings(opts)
	if err != nil {
		return err
	}
	con := newConsole(os.Stdout, os.Stderr, opts.Verbose)

	a, err := buildAgent(ctx, s, opts, con)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.WithoutCancel(ctx)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}()

	if opts.SessionID != "" {
		if _, err := a.Resume(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	resp, err := a.ProcessMessage(ctx, prompt)
	if err != nil {
		return errors.New(describe(err))
	}
	con.printResponse(resp)
	if opts.Verbose {
		con.printStats(a.Stats())
	}
	return nil
}

// logStore is the journal surface the log commands need.
type logStore interface {
	Stats(ctx context.Context) (storage.Stats, error)
	Clear(ctx context.Context) (int64, error)
	Sessions(ctx context.Context) ([]storage.SessionInfo, error)
	Close() error
}

// openJournal opens the workspace journal for the log commands.
func openJournal(s config.Settings) (logStore, error) {
	j, err := storage.OpenJournal(s.JournalPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, nil
}

// session is one interactive REPL.
type session struct {
	agent    *agent.Agent
	settings config.Settings
	con      *console
	in       *bufio.Scanner
	cmds     []command
	openLogs func() (logStore, error)
}

func newSession(a *agent.Agent, s config.Settings, in io.Reader, con *console) *session {
	sess := &session{
		agent:    a,
		settings: s,
		con:      con,
		in:       bufio.NewScanner(in),
		cmds:     builtins(),
	}
	sess.openLogs = func() (logStore, error) { return openJournal(sess.settings) }
	return sess
}

// run reads input until EOF or an exit command, then prints the session
// statistics.
func (s *session) run(ctx context.Context) error {
	s.con.banner(s.agent.Model(), s.settings.Workspace)

	for {
		fmt.Fprint(s.con.out, "lamp> ")
		if !s.in.Scan() {
			break
		}

		input := strings.TrimSpace(s.in.Text())
		if input == "" {
			continue
		}

		if cmd, args, ok := s.lookup(input); ok {
			err := cmd.run(ctx, s, args)
			if errors.Is(err, errExit) {
				break
			}
			if err != nil {
				s.con.errorf("%v", err)
			}
			continue
		}

		s.ask(ctx, input)
		if ctx.Err() != nil {
			break
		}
	}

	s.con.printStats(s.agent.Stats())
	fmt.Fprintln(s.con.out, "Goodbye!")
	return s.in.Err()
}

// ask sends input to the agent and prints the answer.
func (s *session) ask(ctx context.Context, input string) {
	resp, err := s.agent.ProcessMessage(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			s.con.errorf("Interrupted.")
			return
		}
		s.con.errorf("%s", describe(err))
		return
	}
	s.con.printResponse(resp)
}

// describe renders a failed turn without the agent's wrapping.
func describe(err error) string {
	if inner := errors.Unwrap(err); inner != nil {
		err = inner
	}
	return llm.DescribeError(err)
}

// confirm asks a yes/no question on the session input. Anything but y or
// yes is no.
func (s *session) confirm(question string) bool {
	fmt.Fprintf(s.con.out, "%s (y/N) ", question)
	if !s.in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(s.in.Text()))
	return answer == "y" || answer == "yes"
}
