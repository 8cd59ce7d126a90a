// Built-in REPL commands.
//
// Information Hiding:
// - Command table and bare-word matching
// - Direct file reads and searches through the workspace tools
// - Model switching and configuration display

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/richinex/lampcode/config"
	"github.com/richinex/lampcode/tools"
)

const (
	readPreviewLines  = 30
	searchMaxResults  = 50
	searchPerFile     = 5
	historyShown      = 10
	changesShown      = 10
	historyArgPreview = 120
)

// errExit ends the REPL.
var errExit = errors.New("exit")

// command is a built-in recognized by its first word.
type command struct {
	names   []string
	usage   string
	summary string
	minArgs int
	run     func(ctx context.Context, s *session, args []string) error
}

func builtins() []command {
	return []command{
		{names: []string{"help"}, usage: "help", summary: "Show this help", run: cmdHelp},
		{names: []string{"exit", "quit"}, usage: "exit", summary: "Leave the session", run: cmdExit},
		{names: []string{"clear"}, usage: "clear", summary: "Clear the screen", run: cmdClear},
		{names: []string{"read"}, usage: "read <file>", summary: "Show the first lines of a file", minArgs: 1, run: cmdRead},
		{names: []string{"search"}, usage: "search <query>", summary: "Search the codebase for text", minArgs: 1, run: cmdSearch},
		{names: []string{"history"}, usage: "history", summary: "Show recent tool calls", run: cmdHistory},
		{names: []string{"changes"}, usage: "changes", summary: "Show recent workspace changes", run: cmdChanges},
		{names: []string{"stats"}, usage: "stats", summary: "Show session statistics", run: cmdStats},
		{names: []string{"tools"}, usage: "tools", summary: "List the tools offered to the model", run: cmdTools},
		{names: []string{"model"}, usage: "model [name]", summary: "Show or switch the model", run: cmdModel},
		{names: []string{"config"}, usage: "config [list models | set model <name>]", summary: "Show or change configuration", run: cmdConfig},
		{names: []string{"clear-logs"}, usage: "clear-logs [--force]", summary: "Delete the session journal", run: cmdClearLogs},
	}
}

// lookup matches input against the built-ins by its first word. Input that
// names a command without its required arguments is left for the model.
func (s *session) lookup(input string) (command, []string, bool) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return command{}, nil, false
	}
	word := strings.ToLower(fields[0])
	args := fields[1:]
	for _, cmd := range s.cmds {
		for _, name := range cmd.names {
			if name == word && len(args) >= cmd.minArgs {
				return cmd, args, true
			}
		}
	}
	return command{}, nil, false
}

func cmdHelp(_ context.Context, s *session, _ []string) error {
	out := s.con.out
	fmt.Fprintln(out, "Commands:")
	for _, cmd := range s.cmds {
		fmt.Fprintf(out, "  %-40s %s\n", cmd.usage, cmd.summary)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Anything else is sent to the model.")
	return nil
}

func cmdExit(context.Context, *session, []string) error {
	return errExit
}

func cmdClear(_ context.Context, s *session, _ []string) error {
	fmt.Fprint(s.con.out, "\033[H\033[2J")
	return nil
}

func cmdRead(ctx context.Context, s *session, args []string) error {
	path := strings.Join(args, " ")
	res, err := s.agent.RunTool(ctx, "read_file", map[string]any{"path": path})
	if err != nil {
		return err
	}
	file, ok := res.(tools.ReadFileResult)
	if !ok {
		return fmt.Errorf("unexpected result %s", res.Kind())
	}

	out := s.con.out
	fmt.Fprintf(out, "\nFile: %s (%d lines)\n\n", file.Path, file.TotalLines)
	lines := strings.Split(file.Content, "\n")
	shown := min(len(lines), readPreviewLines)
	for _, line := range lines[:shown] {
		fmt.Fprintln(out, line)
	}
	if rest := file.TotalLines - shown; rest > 0 {
		fmt.Fprintf(out, "... (%d more lines)\n", rest)
	}
	fmt.Fprintln(out)
	return nil
}

func cmdSearch(ctx context.Context, s *session, args []string) error {
	query := strings.Join(args, " ")
	res, err := s.agent.RunTool(ctx, "search_code", map[string]any{"query": query, "max_results": searchMaxResults})
	if err != nil {
		return err
	}
	found, ok := res.(tools.SearchCodeResult)
	if !ok {
		return fmt.Errorf("unexpected result %s", res.Kind())
	}

	out := s.con.out
	if len(found.Matches) == 0 {
		fmt.Fprintf(out, "No matches found for %q.\n", query)
		return nil
	}

	var order []string
	byFile := map[string][]tools.SearchMatch{}
	for _, m := range found.Matches {
		if _, seen := byFile[m.File]; !seen {
			order = append(order, m.File)
		}
		byFile[m.File] = append(byFile[m.File], m)
	}

	fmt.Fprintf(out, "\nFound %d matches in %d files:\n", len(found.Matches), len(order))
	for _, file := range order {
		matches := byFile[file]
		fmt.Fprintf(out, "\n%s\n", file)
		for _, m := range matches[:min(len(matches), searchPerFile)] {
			fmt.Fprintf(out, "  %d: %s\n", m.Line, strings.TrimSpace(m.Snippet))
		}
		if extra := len(matches) - searchPerFile; extra > 0 {
			fmt.Fprintf(out, "  ... and %d more\n", extra)
		}
	}
	fmt.Fprintln(out)
	return nil
}

func cmdHistory(_ context.Context, s *session, _ []string) error {
	out := s.con.out
	records := s.agent.ToolHistory()
	if len(records) == 0 {
		fmt.Fprintln(out, "No tool calls have been recorded yet.")
		return nil
	}

	fmt.Fprintln(out, "Recent tool calls (newest first):")
	for i, shown := len(records)-1, 0; i >= 0 && shown < historyShown; i, shown = i-1, shown+1 {
		rec := records[i]
		fmt.Fprintf(out, "\n[%s] %s\n", rec.Timestamp.Format("15:04:05"), rec.Tool)
		status := string(rec.Status)
		if rec.ResultType != "" {
			status += " (" + rec.ResultType + ")"
		}
		fmt.Fprintf(out, "  Status: %s\n", status)
		fmt.Fprintf(out, "  Duration: %dms\n", rec.DurationMs)
		for _, line := range rec.Summary {
			fmt.Fprintf(out, "  %s\n", line)
		}
		if len(rec.Args) > 0 {
			fmt.Fprintf(out, "  Args: %s\n", truncateString(string(rec.Args), historyArgPreview))
		}
		if rec.Error != "" {
			fmt.Fprintf(out, "  Error: %s\n", rec.Error)
		}
	}
	fmt.Fprintln(out)
	return nil
}

func cmdChanges(_ context.Context, s *session, _ []string) error {
	out := s.con.out
	changes := s.agent.RecentChanges(changesShown)
	if len(changes) == 0 {
		fmt.Fprintln(out, "No workspace changes recorded yet.")
		return nil
	}
	fmt.Fprintln(out, "Recent changes:")
	for _, ch := range changes {
		line := fmt.Sprintf("  [%s] %s", ch.Timestamp.Format("15:04:05"), ch.Type)
		if ch.Path != "" {
			line += " " + ch.Path
		}
		if ch.Count > 0 {
			line += fmt.Sprintf(" (%d files)", ch.Count)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func cmdStats(_ context.Context, s *session, _ []string) error {
	st := s.agent.Stats()
	if st.LLMCalls == 0 && st.TotalToolCalls == 0 {
		fmt.Fprintln(s.con.out, "No activity in this session yet.")
		return nil
	}
	s.con.printStats(st)
	return nil
}

func cmdTools(_ context.Context, s *session, _ []string) error {
	printTools(s.con.out, s.agent.Tools(), false)
	return nil
}

func cmdModel(_ context.Context, s *session, args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(s.con.out, "Current model: %s\n", s.agent.Model())
		return nil
	}
	return s.switchModel(args[0])
}

func cmdConfig(ctx context.Context, s *session, args []string) error {
	switch {
	case len(args) == 0:
		return s.showConfig(ctx)
	case len(args) == 2 && args[0] == "list" && args[1] == "models":
		printModels(s.con.out, s.agent.Model())
		return nil
	case len(args) == 3 && args[0] == "set" && args[1] == "model":
		return s.switchModel(args[2])
	default:
		return errors.New("usage: config [list models | set model <name>]")
	}
}

func (s *session) switchModel(id string) error {
	if err := s.agent.SetModel(id); err != nil {
		return err
	}
	s.settings.LLM.Model = id
	fmt.Fprintf(s.con.out, "Model changed to: %s\n", id)
	return nil
}

func (s *session) showConfig(ctx context.Context) error {
	out := s.con.out
	profile := s.agent.Profile()

	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Provider: %s\n", s.settings.LLM.Provider)
	fmt.Fprintf(out, "  Model: %s\n", s.agent.Model())
	fmt.Fprintf(out, "  Max input tokens: %d\n", profile.MaxInputTokens)
	fmt.Fprintf(out, "  Caching: %s\n", cachingMode(profile))

	key := "set"
	if _, err := config.APIKeyFor(s.settings.LLM.Provider); err != nil {
		key = "missing"
	}
	fmt.Fprintf(out, "  API key: %s\n", key)
	fmt.Fprintf(out, "  Working directory: %s\n", s.settings.Workspace)

	if res, err := s.agent.RunTool(ctx, "list_context", struct{}{}); err == nil {
		if list, ok := res.(tools.ListContextResult); ok {
			fmt.Fprintf(out, "  Files in context: %d\n", list.Count)
		}
	}

	journal := "disabled"
	if s.settings.Logging.Enabled {
		journal = s.settings.JournalPath()
	}
	fmt.Fprintf(out, "  Journal: %s\n", journal)
	fmt.Fprintf(out, "  Session: %s\n", s.agent.SessionID())
	return nil
}

func cmdClearLogs(ctx context.Context, s *session, args []string) error {
	force := false
	for _, a := range args {
		if a == "--force" || a == "-f" {
			force = true
		}
	}

	logs, err := s.openLogs()
	if err != nil {
		return err
	}
	defer logs.Close()

	st, err := logs.Stats(ctx)
	if err != nil {
		return err
	}
	printJournalStats(s.con.out, st)
	if st.Sessions == 0 && st.ToolCalls == 0 && st.Errors == 0 {
		fmt.Fprintln(s.con.out, "Nothing to delete.")
		return nil
	}

	if !force && !s.confirm("Delete all journal records?") {
		fmt.Fprintln(s.con.out, "Cancelled.")
		return nil
	}
	n, err := logs.Clear(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.con.out, "Deleted %d records.\n", n)
	return nil
}
