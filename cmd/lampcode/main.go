// Package main provides the lampcode CLI entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/richinex/lampcode/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider  string
	workDir   string
	modelName string
	sessionID string
	maxIter   int
	verbose   bool
	noLog     bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "lampcode",
		Short: "Chat with your codebase",
		Long: `An interactive coding assistant that reads, searches and edits files in
the working directory through a fixed set of sandboxed tools.

Run without a subcommand to start a chat session.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(cmd.Context(), options())
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openrouter, openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "w", "", "Working directory (default: LAMPCODE_WORKDIR or the current directory)")
	rootCmd.PersistentFlags().StringVarP(&modelName, "model", "m", "", "Model id (overrides config and environment)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "Session ID to resume or create")
	rootCmd.PersistentFlags().IntVar(&maxIter, "max-iter", 0, "Maximum tool iterations per message (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")
	rootCmd.PersistentFlags().BoolVar(&noLog, "no-log", false, "Disable the on-disk session journal")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(logsCmd())
	rootCmd.AddCommand(configCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider:  provider,
		WorkDir:   workDir,
		Model:     modelName,
		SessionID: sessionID,
		MaxIter:   maxIter,
		Verbose:   verbose,
		NoLog:     noLog,
	}
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session in the working directory.

Type 'help' inside the session for built-in commands. Use --session to
resume a stored conversation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(cmd.Context(), options())
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [prompt]",
		Short: "Answer a single prompt and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunOnce(cmd.Context(), strings.Join(args, " "), options())
		},
	}
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(verboseTools)
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models with known context and caching profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListModels(options())
		},
	}
}

func logsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect or clear the session journal",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show journal statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.LogStats(cmd.Context(), options())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListSessions(cmd.Context(), options())
		},
	})

	var force bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every journal record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirm("Delete all journal records?") {
				fmt.Println("Cancelled.")
				return nil
			}
			return cli.ClearLogs(cmd.Context(), options())
		},
	}
	clearCmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	cmd.AddCommand(clearCmd)

	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ShowConfig(options())
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the resolved settings to the workspace config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.InitConfig(options(), force)
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
	cmd.AddCommand(initCmd)

	return cmd
}

func confirm(question string) bool {
	fmt.Printf("%s (y/N) ", question)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
