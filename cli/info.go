// Listing and maintenance commands that run without a model.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/richinex/lampcode/config"
	"github.com/richinex/lampcode/llm"
	"github.com/richinex/lampcode/storage"
	"github.com/richinex/lampcode/tools"
)

// ListTools lists all available tools.
func ListTools(verbose bool) error {
	registry, err := tools.ForWorkspace(tools.NewWorkspace(nil, nil, nil, nil))
	if err != nil {
		return err
	}
	var defs []llm.ToolDefinition
	for _, meta := range registry.List() {
		defs = append(defs, llm.ToolDefinition{Name: meta.Name, Description: meta.Description, Parameters: meta.Parameters})
	}
	printTools(os.Stdout, defs, verbose)
	return nil
}

func printTools(w io.Writer, defs []llm.ToolDefinition, verbose bool) {
	fmt.Fprintln(w, "Available tools:")
	fmt.Fprintln(w)

	for _, def := range defs {
		fmt.Fprintf(w, "  %s\n", def.Name)
		fmt.Fprintf(w, "    %s\n", def.Description)

		if verbose {
			printParameters(w, def.Parameters)
		}
		fmt.Fprintln(w)
	}
}

// printParameters prints the top-level properties of a JSON schema.
// Required properties are starred.
func printParameters(w io.Writer, schema map[string]any) {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return
	}
	var required []string
	switch r := schema["required"].(type) {
	case []string:
		required = r
	case []any:
		for _, v := range r {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "    Parameters:")
	for _, name := range names {
		p, _ := props[name].(map[string]any)
		req := ""
		if slices.Contains(required, name) {
			req = "*"
		}
		typ, _ := p["type"].(string)
		desc, _ := p["description"].(string)
		fmt.Fprintf(w, "      %s%s: %s - %s\n", name, req, typ, desc)
	}
}

// ListModels prints the profiled models, marking the configured one.
func ListModels(opts Options) error {
	s, err := LoadSettings(opts)
	if err != nil {
		return err
	}
	printModels(os.Stdout, s.LLM.Model)
	return nil
}

func printModels(w io.Writer, current string) {
	fmt.Fprintln(w, "Available models:")
	for _, name := range config.AvailableModels() {
		marker := "  "
		if name == current {
			marker = "→ "
		}
		p := config.LookupProfile(name)
		fmt.Fprintf(w, "%s%s\n", marker, name)
		fmt.Fprintf(w, "    Max tokens: %d, Caching: %s\n", p.MaxInputTokens, cachingMode(p))
	}
	if !slices.Contains(config.AvailableModels(), current) {
		fmt.Fprintf(w, "\nCurrent model %s has no profile; conservative defaults apply.\n", current)
	}
}

// cachingMode names how prompt caching works for a profile.
func cachingMode(p config.ModelProfile) string {
	switch {
	case !p.SupportsCaching:
		return "None"
	case p.AutoCaching:
		return "Auto"
	default:
		return fmt.Sprintf("Manual (%d breakpoints)", p.Breakpoints())
	}
}

// ShowConfig prints the resolved settings as YAML.
func ShowConfig(opts Options) error {
	s, err := LoadSettings(opts)
	if err != nil {
		return err
	}
	data, err := s.YAML()
	if err != nil {
		return err
	}
	fmt.Printf("# workspace: %s\n", s.Workspace)
	_, err = os.Stdout.Write(data)
	return err
}

// InitConfig writes the resolved settings to the workspace config file.
// An existing file is kept unless force is set.
func InitConfig(opts Options, force bool) error {
	s, err := LoadSettings(opts)
	if err != nil {
		return err
	}
	path := filepath.Join(s.LogDir(), config.FileName)
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.WriteFile(s, path); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// LogStats prints journal statistics.
func LogStats(ctx context.Context, opts Options) error {
	logs, err := openLogsFor(opts)
	if err != nil {
		return err
	}
	defer logs.Close()

	st, err := logs.Stats(ctx)
	if err != nil {
		return err
	}
	printJournalStats(os.Stdout, st)
	return nil
}

// ListSessions prints the journal's sessions, newest first.
func ListSessions(ctx context.Context, opts Options) error {
	logs, err := openLogsFor(opts)
	if err != nil {
		return err
	}
	defer logs.Close()

	sessions, err := logs.Sessions(ctx)
	if err != nil {
		return err
	}
	printSessions(os.Stdout, sessions)
	return nil
}

// ClearLogs deletes every journal record. Without force the caller is
// expected to have confirmed.
func ClearLogs(ctx context.Context, opts Options) error {
	logs, err := openLogsFor(opts)
	if err != nil {
		return err
	}
	defer logs.Close()

	n, err := logs.Clear(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d records.\n", n)
	return nil
}

func openLogsFor(opts Options) (logStore, error) {
	s, err := LoadSettings(opts)
	if err != nil {
		return nil, err
	}
	return openJournal(s)
}

func printJournalStats(w io.Writer, st storage.Stats) {
	fmt.Fprintln(w, "Journal:")
	fmt.Fprintf(w, "  Path: %s\n", st.Path)
	fmt.Fprintf(w, "  Size: %s\n", humanize.Bytes(uint64(max(st.SizeBytes, 0))))
	fmt.Fprintf(w, "  Sessions: %d\n", st.Sessions)
	fmt.Fprintf(w, "  Messages: %d\n", st.Messages)
	fmt.Fprintf(w, "  Tool calls: %d (%d failed)\n", st.ToolCalls, st.FailedToolCalls)
	fmt.Fprintf(w, "  Changes: %d\n", st.Changes)
	fmt.Fprintf(w, "  Errors: %d\n", st.Errors)
}

func printSessions(w io.Writer, sessions []storage.SessionInfo) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return
	}
	for _, info := range sessions {
		state := "open"
		if info.EndedAt != "" {
			state = "ended " + info.EndedAt
		}
		fmt.Fprintf(w, "%s  %s\n", info.ID, info.Model)
		fmt.Fprintf(w, "    updated %s, %s\n", info.UpdatedAt, state)
		fmt.Fprintf(w, "    %d messages, %d tool calls, %d tokens\n", info.Messages, info.ToolCalls, info.TotalTokens)
	}
}
