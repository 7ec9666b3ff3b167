package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/okrsync/internal/api"
	"github.com/MikeSquared-Agency/okrsync/internal/config"
	"github.com/MikeSquared-Agency/okrsync/internal/hermes"
	"github.com/MikeSquared-Agency/okrsync/internal/pipeline"
)

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and event subscribers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return serve(cfg)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides OKRSYNC_PORT)")
	return cmd
}

func serve(cfg config.Config) error {
	setupLogging(cfg.LogLevel, os.Stdout)
	slog.Info("okrsync starting", "port", cfg.Port, "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// NATS/Hermes (optional)
	var hermesClient *hermes.Client
	var publisher pipeline.Publisher
	if cfg.NatsURL != "" {
		c, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			return err
		}
		hermesClient, publisher = c, c
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set, running without event bus")
	}

	a, err := buildApp(ctx, cfg, publisher)
	if err != nil {
		if hermesClient != nil {
			hermesClient.Close()
		}
		return err
	}
	// The bus drains before the pools its handlers use are closed.
	if hermesClient != nil {
		a.closeFirst(hermesClient.Close)
	}
	defer a.Close()

	if err := a.pipeline.Start(ctx); err != nil {
		slog.Warn("chat updates disabled", "error", err)
	}

	if hermesClient != nil {
		if err := hermesClient.Subscribe(hermes.SubjectCSVUploaded, a.pipeline.HandleCSVUploaded); err != nil {
			return err
		}
		if err := hermesClient.Subscribe(hermes.SubjectChatUtterance, a.pipeline.HandleChatUtterance); err != nil {
			return err
		}
		if err := hermesClient.Announce(version, a.pipeline.ChatEnabled()); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	var history api.CallHistory
	if a.db != nil {
		history = a.db
	}
	srv := api.NewServer(cfg.Port, cfg.APIToken, version, a.pipeline, history)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	slog.Info("okrsync ready", "port", cfg.Port, "chat_enabled", a.pipeline.ChatEnabled())

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		if err != nil {
			slog.Error("HTTP server error", "error", err)
			return err
		}
	}

	slog.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	cancel()
	slog.Info("okrsync stopped")
	return nil
}
