// Wiring of the client components from settings.
//
// Information Hiding:
// - Keyword backend selection hidden
// - Journal and logger lifetimes hidden

package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/richinex/ragchat/chat"
	"github.com/richinex/ragchat/completion"
	"github.com/richinex/ragchat/config"
	"github.com/richinex/ragchat/internal/logging"
	"github.com/richinex/ragchat/llm"
	"github.com/richinex/ragchat/mcp"
	"github.com/richinex/ragchat/retrieval"
	"github.com/richinex/ragchat/storage"
	"github.com/richinex/ragchat/upload"
)

// Options holds CLI execution options.
type Options struct {
	ConfigPath string
	// BaseURL and Journal override the settings when non-empty.
	BaseURL string
	Journal string
	Verbose bool
}

// App bundles the components every command needs.
type App struct {
	Settings   config.Settings
	Log        *zap.Logger
	Completion *completion.Client
	MCP        *mcp.Client
	Tool       *mcp.RagTool
	Retriever  *retrieval.Orchestrator
	Uploader   *upload.Uploader
	Journal    storage.Journal
	Verbose    bool
}

// NewApp loads settings and builds the components. The caller must Close
// the app.
func NewApp(opts Options) (*App, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.BaseURL != "" {
		settings.Server.BaseURL = opts.BaseURL
	}
	if opts.Journal != "" {
		settings.Journal.Path = opts.Journal
	}
	return newApp(settings, opts.Verbose)
}

func newApp(settings config.Settings, verbose bool) (*App, error) {
	level := settings.Log.Level
	if verbose && (level == "warn" || level == "error") {
		level = "info"
	}
	log, err := logging.New(logging.Options{Level: level, File: settings.Log.File})
	if err != nil {
		return nil, err
	}

	var journal storage.Journal = storage.NopJournal{}
	if settings.Journal.Path != "" {
		j, err := storage.OpenSqliteJournal(settings.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		journal = j
	}

	base := settings.Server.BaseURL
	completionClient := completion.NewClient(base, log)
	mcpClient := mcp.NewClient(base, log)
	tool := mcp.NewRagTool(mcpClient, log)

	summarizer := newSummarizer(settings, completionClient, log)

	return &App{
		Settings:   settings,
		Log:        log,
		Completion: completionClient,
		MCP:        mcpClient,
		Tool:       tool,
		Retriever:  retrieval.NewOrchestrator(tool, summarizer, log),
		Uploader:   upload.NewUploader(base, settings.Upload.Timeout.Duration, log),
		Journal:    journal,
		Verbose:    verbose,
	}, nil
}

// newSummarizer returns the keyword model of the llm retrieval mode, or nil
// when a hosted provider is selected but not usable. A nil summarizer makes
// the llm mode fall back to the query itself. A keyword base URL lets the
// openai provider run without an API key.
func newSummarizer(s config.Settings, client *completion.Client, log *zap.Logger) retrieval.Summarizer {
	model := s.KeywordModel()
	if s.Keywords.Provider == config.KeywordBackendServer {
		return retrieval.NewCachedSummarizer(retrieval.NewCompletionSummarizer(client, model))
	}

	providerType, err := llm.ParseProviderType(s.Keywords.Provider)
	if err != nil {
		log.Warn("keyword provider unusable", zap.Error(err))
		return nil
	}
	apiKey, err := config.APIKeyFor(s.Keywords.Provider)
	if err != nil && s.Keywords.BaseURL == "" {
		log.Warn("keyword provider unusable",
			zap.String("provider", providerType.String()),
			zap.String("env", providerType.EnvVar()),
			zap.Error(err))
		return nil
	}
	provider, err := providerType.Model(model).
		BaseURL(s.Keywords.BaseURL).
		MaxTokens(uint32(s.Keywords.MaxTokens)).
		Temperature(float32(s.Keywords.Temperature)).
		APIKey(apiKey)
	if err != nil {
		log.Warn("keyword provider unusable", zap.String("provider", providerType.String()), zap.Error(err))
		return nil
	}
	return retrieval.NewCachedSummarizer(retrieval.NewProviderSummarizer(provider))
}

// NewSession starts a chat session using the app's settings.
func (a *App) NewSession() *chat.Session {
	cfg := chat.Config{
		Model:       a.Settings.Server.Model,
		Temperature: a.Settings.Sampling.Temperature,
		TopP:        a.Settings.Sampling.TopP,
		MaxTokens:   a.Settings.Sampling.MaxTokens,
	}
	return chat.NewSession(cfg, a.Completion, a.Retriever).
		WithJournal(a.Journal).
		WithLogger(a.Log)
}

// TurnOptions returns the per-turn defaults from the settings.
func (a *App) TurnOptions() chat.Options {
	opts := chat.DefaultOptions()
	opts.Retrieval = a.Settings.Retrieval.Enabled
	opts.Mode = retrieval.Mode(a.Settings.Retrieval.Mode)
	opts.TopK = a.Settings.Retrieval.TopK
	return opts
}

// Close releases the journal and flushes the logger.
func (a *App) Close() error {
	_ = a.Log.Sync()
	return a.Journal.Close()
}
