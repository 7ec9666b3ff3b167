package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/okrsync/internal/agent"
	"github.com/MikeSquared-Agency/okrsync/internal/anthropic"
	"github.com/MikeSquared-Agency/okrsync/internal/calllog"
	"github.com/MikeSquared-Agency/okrsync/internal/config"
	"github.com/MikeSquared-Agency/okrsync/internal/gemini"
	"github.com/MikeSquared-Agency/okrsync/internal/llm"
	"github.com/MikeSquared-Agency/okrsync/internal/objectstore"
	"github.com/MikeSquared-Agency/okrsync/internal/pipeline"
	"github.com/MikeSquared-Agency/okrsync/internal/slack"
	"github.com/MikeSquared-Agency/okrsync/internal/store"
	"github.com/MikeSquared-Agency/okrsync/internal/transform"
)

// app holds the wired pipeline and everything that needs closing.
type app struct {
	pipeline *pipeline.Pipeline
	db       *store.Store
	closers  []func()
}

// closeFirst registers fn to run before every closer already held.
func (a *app) closeFirst(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newCompleter(ctx context.Context, cfg config.Config) (llm.Completer, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for provider %s", cfg.LLMProvider)
		}
		c, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, "")
		if err != nil {
			return nil, err
		}
		slog.Info("gemini client ready", "model", c.Model())
		return c, nil
	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for provider %s", cfg.LLMProvider)
		}
		c := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		slog.Info("anthropic client ready", "model", c.Model())
		return c, nil
	}
	return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
}

func newObjectStore(ctx context.Context, cfg config.Config) (objectstore.Store, func(), error) {
	if cfg.RedisURL == "" {
		slog.Info("object store ready", "backend", "memory")
		return objectstore.NewMemory(), func() {}, nil
	}
	rs, err := objectstore.DialRedis(ctx, cfg.RedisURL, cfg.ObjectTTL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("object store ready", "backend", "redis", "ttl", cfg.ObjectTTL)
	return rs, func() { _ = rs.Close() }, nil
}

// buildApp wires the pipeline from configuration. publisher may be nil.
func buildApp(ctx context.Context, cfg config.Config, publisher pipeline.Publisher) (*app, error) {
	logger := slog.Default()
	a := &app{}

	completer, err := newCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objects, closeObjects, err := newObjectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeObjects)

	// Durable call log (optional).
	var sink calllog.Sink
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			a.Close()
			return nil, err
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
		sink = db
		slog.Info("database connected, call logs persisted")
	}

	var notifier pipeline.Notifier
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		notifier = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger)
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	} else {
		slog.Warn("slack not configured, running without change digests")
	}

	detector := pipeline.BraceDetector
	if cfg.StrictDetector {
		detector = pipeline.JSONDetector
	}

	a.pipeline = pipeline.New(pipeline.Deps{
		Store:       objects,
		Engine:      transform.New(objects, completer, logger),
		Agent:       agent.New(completer, cfg.HistoryLimit, logger),
		Publisher:   publisher,
		Notifier:    notifier,
		Calls:       calllog.NewRecorder(cfg.CallLogSize, sink, logger),
		Detector:    detector,
		CallTimeout: cfg.CallTimeout,
		Logger:      logger,
	})
	return a, nil
}
