// Agent builder for wiring settings into a ready session.
//
// Information Hiding:
// - Construction order of guard, scanner, cache, tools and provider
// - Journal selection, retention cleanup and change forwarding
// - Default value application

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/lampcode/config"
	"github.com/richinex/lampcode/contextcache"
	"github.com/richinex/lampcode/internal/pathguard"
	"github.com/richinex/lampcode/internal/scanner"
	"github.com/richinex/lampcode/llm"
	"github.com/richinex/lampcode/storage"
	"github.com/richinex/lampcode/tools"
)

// Builder provides fluent configuration for creating an agent session.
// Usage: agent.NewBuilder(settings).Observer(o).Build(ctx)
type Builder struct {
	settings     config.Settings
	provider     llm.Provider
	store        storage.Store
	observer     Observer
	logger       *slog.Logger
	sessionID    string
	systemPrompt string
	toolTimeout  time.Duration
}

// NewBuilder creates a builder from loaded settings.
func NewBuilder(settings config.Settings) *Builder {
	return &Builder{settings: settings}
}

// Provider replaces the provider built from settings.
func (b *Builder) Provider(p llm.Provider) *Builder {
	b.provider = p
	return b
}

// Store replaces the journal opened from settings. The caller keeps
// ownership and closes it.
func (b *Builder) Store(s storage.Store) *Builder {
	b.store = s
	return b
}

// Observer sets the tool activity observer.
func (b *Builder) Observer(o Observer) *Builder {
	b.observer = o
	return b
}

// Logger sets the diagnostics logger.
func (b *Builder) Logger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// SessionID reuses a session id, for resuming. A fresh id is generated
// otherwise.
func (b *Builder) SessionID(id string) *Builder {
	b.sessionID = id
	return b
}

// SystemPrompt replaces the built-in system prompt.
func (b *Builder) SystemPrompt(prompt string) *Builder {
	b.systemPrompt = prompt
	return b
}

// ToolTimeout bounds each tool call.
func (b *Builder) ToolTimeout(d time.Duration) *Builder {
	b.toolTimeout = d
	return b
}

// Build creates the agent and opens its journal session.
func (b *Builder) Build(ctx context.Context) (*Agent, error) {
	s := b.settings
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	guard, err := pathguard.New(s.Workspace)
	if err != nil {
		return nil, fmt.Errorf("workspace: %w", err)
	}
	sc := scanner.New(guard.Root())

	cache := contextcache.New(guard, sc, cacheOptions(s.Context), logger)
	if err := cache.Load(ctx); err != nil {
		logger.Warn("initial project scan failed", "error", err)
	}

	registry, err := tools.ForWorkspace(tools.NewWorkspace(guard, sc, cache, logger))
	if err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	provider := b.provider
	if provider == nil {
		if provider, err = NewProvider(s.LLM); err != nil {
			return nil, err
		}
	}
	client := llm.NewClient(provider).
		WithRetryPolicy(retryPolicy(s.LLM)).
		WithLogger(logger)

	store, owned := b.store, false
	if store == nil {
		store, owned = openStore(ctx, s, logger), true
	}

	sessionID := b.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	cache.OnChange(func(ch contextcache.Change) {
		rec := storage.ChangeRecord{
			Type:      string(ch.Type),
			Path:      ch.Path,
			Count:     ch.Count,
			Timestamp: ch.Timestamp,
		}
		if err := store.LogChange(context.Background(), sessionID, rec); err != nil {
			logger.Warn("failed to journal change", "path", ch.Path, "error", err)
		}
	})

	cfg := ConfigFromSettings(s)
	cfg.SystemPrompt = b.systemPrompt

	dispatcher := NewDispatcher(
		registry,
		tools.NewExecutor(b.toolTimeout),
		NewRepetitionGuard(cfg.RepetitionWindow, cfg.RepetitionThreshold),
		cache,
		logger,
	)

	modelID := s.LLM.Model
	if modelID == "" {
		modelID = provider.Model()
	}

	a := New(client, dispatcher, cfg).
		WithLogger(logger).
		WithObserver(b.observer).
		WithContext(cache).
		WithStore(store, sessionID).
		WithModel(modelID, ValidatorFor(s.LLM.Provider))
	if owned {
		a.closer = store.Close
	}

	if err := a.Start(ctx); err != nil {
		if owned {
			_ = store.Close()
		}
		return nil, err
	}
	logger.Debug("agent ready",
		"workspace", guard.Root(),
		"provider", provider.Name(),
		"model", modelID,
		"session", sessionID,
		"tracked_files", cache.Len(),
	)
	return a, nil
}

// NewProvider builds the configured provider, reading its API key from the
// environment.
func NewProvider(cfg config.LLMConfig) (llm.Provider, error) {
	pt, err := llm.ParseProviderType(cfg.Provider)
	if err != nil {
		return nil, err
	}
	provider, err := pt.Model(cfg.Model).
		MaxTokens(cfg.MaxTokens).
		Temperature(float32(cfg.Temperature)).
		Timeout(cfg.Timeout).
		FromEnv()
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	return provider, nil
}

// ValidatorFor returns the model switch rule for a provider. OpenRouter ids
// must have a known profile; native provider ids are passed through and
// profiled by family.
func ValidatorFor(provider string) ModelValidator {
	if provider == llm.ProviderOpenRouter.String() {
		return config.ValidateModel
	}
	return func(id string) error {
		if id == "" {
			return fmt.Errorf("%w: empty model id", config.ErrUnknownModel)
		}
		return nil
	}
}

func retryPolicy(cfg config.LLMConfig) llm.RetryPolicy {
	p := llm.DefaultRetryPolicy()
	p.MaxRetries = cfg.MaxRetries
	return p
}

func cacheOptions(c config.ContextConfig) contextcache.Options {
	opts := contextcache.DefaultOptions()
	if c.ScanLimit > 0 {
		opts.ScanLimit = c.ScanLimit
	}
	if c.MaxFiles > 0 {
		opts.Selection.MaxFiles = c.MaxFiles
	}
	if c.SnippetLength > 0 {
		opts.Selection.SnippetLength = c.SnippetLength
	}
	if c.ShrinkRatio > 0 && c.ShrinkRatio < 1 {
		opts.Selection.ShrinkRatio = c.ShrinkRatio
	}
	if c.MinSnippet > 0 {
		opts.Selection.MinSnippet = c.MinSnippet
	}
	return opts
}

// openStore opens the on-disk journal, pruning sessions past retention.
// Without logging, or when the journal cannot be opened, the session is
// kept in memory.
func openStore(ctx context.Context, s config.Settings, logger *slog.Logger) storage.Store {
	if !s.Logging.Enabled {
		return storage.NewInMemoryStorage()
	}
	journal, err := storage.OpenJournal(s.JournalPath())
	if err != nil {
		logger.Warn("journal unavailable, continuing without it", "path", s.JournalPath(), "error", err)
		return storage.NewInMemoryStorage()
	}
	if days := s.Logging.RetentionDays; days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		removed, err := journal.Cleanup(ctx, cutoff)
		if err != nil {
			logger.Warn("journal cleanup failed", "error", err)
		} else if removed > 0 {
			logger.Debug("pruned old sessions", "count", removed, "retention_days", days)
		}
	}
	return journal
}
