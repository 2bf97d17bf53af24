// Package main provides the ragchat CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/ragchat/chat"
	"github.com/richinex/ragchat/cli"
	"github.com/richinex/ragchat/keywords"
	"github.com/richinex/ragchat/retrieval"
)

var (
	// Global flags
	configPath string
	baseURL    string
	verbose    bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "ragchat",
		Short: "Chat with a local model, grounded in your own documents",
		Long: `A terminal client for a local chat server with document retrieval.

Retrieval modes:
- raw: search with the question as typed
- heuristic: search with keywords extracted locally
- llm: search with keywords summarized by a model (falls back to raw)

Settings come from an optional TOML file, then RAGCHAT_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Chat server URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show retrieval traces and info logs")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(uploadCmd())
	rootCmd.AddCommand(keywordsCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(journalCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Turn failures have already been printed by the chat view.
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		stop()
		os.Exit(1)
	}
}

// turnFlags holds the per-turn flags shared by chat and ask.
type turnFlags struct {
	stream        bool
	noThink       bool
	showReasoning bool
	rag           bool
	ragMode       string
	topK          int
	journal       string
}

func (f *turnFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.stream, "stream", true, "Stream the answer as it is generated")
	cmd.Flags().BoolVar(&f.noThink, "no-think", false, "Ask the model to answer without reasoning first")
	cmd.Flags().BoolVar(&f.showReasoning, "show-reasoning", false, "Print reasoning blocks instead of hiding them")
	cmd.Flags().BoolVar(&f.rag, "rag", false, "Ground answers in indexed documents (overrides config)")
	cmd.Flags().StringVar(&f.ragMode, "rag-mode", "", "Retrieval query mode: raw, heuristic or llm (overrides config)")
	cmd.Flags().IntVar(&f.topK, "top-k", 0, "Number of chunks to retrieve (overrides config)")
	cmd.Flags().StringVar(&f.journal, "journal", "", "SQLite file for the turn journal (overrides config)")
}

// options applies the flags the user set on top of the configured defaults.
func (f *turnFlags) options(cmd *cobra.Command, app *cli.App) (chat.Options, error) {
	opts := app.TurnOptions()
	opts.Stream = f.stream
	if f.noThink {
		opts.EnableThinking = false
	}
	opts.ShowReasoning = f.showReasoning
	if cmd.Flags().Changed("rag") {
		opts.Retrieval = f.rag
	}
	if f.ragMode != "" {
		mode, err := retrieval.ParseMode(f.ragMode)
		if err != nil {
			return chat.Options{}, err
		}
		opts.Mode = mode
		opts.Retrieval = true
	}
	if f.topK != 0 {
		if f.topK < 0 {
			return chat.Options{}, fmt.Errorf("--top-k must be positive, got %d", f.topK)
		}
		opts.TopK = f.topK
	}
	return opts, nil
}

func newApp(journal string) (*cli.App, error) {
	return cli.NewApp(cli.Options{
		ConfigPath: configPath,
		BaseURL:    baseURL,
		Journal:    journal,
		Verbose:    verbose,
	})
}

func chatCmd() *cobra.Command {
	var flags turnFlags

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session. The conversation is kept in memory
until the command exits. Type 'exit' or 'quit' to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(flags.journal)
			if err != nil {
				return err
			}
			defer app.Close()

			opts, err := flags.options(cmd, app)
			if err != nil {
				return err
			}
			return cli.Chat(cmd.Context(), app, opts, os.Stdin, os.Stdout)
		},
	}

	flags.register(cmd)
	return cmd
}

func askCmd() *cobra.Command {
	var flags turnFlags

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(flags.journal)
			if err != nil {
				return err
			}
			defer app.Close()

			opts, err := flags.options(cmd, app)
			if err != nil {
				return err
			}
			return cli.Ask(cmd.Context(), app, strings.Join(args, " "), opts, os.Stdout)
		},
	}

	flags.register(cmd)
	return cmd
}

func uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload [file]",
		Short: "Upload a document for indexing",
		Long: `Upload a document for indexing. Text files are converted to UTF-8 with
LF line endings first (UTF-8, UTF-8 with BOM, UTF-16 with BOM and GB18030
are recognized). Other files are sent unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp("")
			if err != nil {
				return err
			}
			defer app.Close()

			return cli.Upload(cmd.Context(), app, args[0], os.Stdout)
		},
	}
}

func keywordsCmd() *cobra.Command {
	var maxTokens int

	cmd := &cobra.Command{
		Use:   "keywords [query]",
		Short: "Print the keyword query the heuristic mode would search with",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.Keywords(strings.Join(args, " "), maxTokens, verbose, os.Stdout)
			return nil
		},
	}

	cmd.Flags().IntVarP(&maxTokens, "max", "n", keywords.DefaultMaxTokens, "Maximum number of keywords")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the document index and the server's tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp("")
			if err != nil {
				return err
			}
			defer app.Close()

			return cli.Status(cmd.Context(), app, os.Stdout)
		},
	}
}

func journalCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "journal [session-id]",
		Short: "List journaled sessions, or the turns of one session",
		Long: `List the sessions recorded in the turn journal, most recent first.
With a session id, print each turn's retrieval and throughput summary
(add --verbose for the retrieval trace). Message text is never journaled.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(path)
			if err != nil {
				return err
			}
			defer app.Close()

			sessionID := ""
			if len(args) == 1 {
				sessionID = args[0]
			}
			return cli.Journal(cmd.Context(), app, sessionID, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&path, "journal", "", "SQLite journal file (overrides config)")
	return cmd
}
