package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/padfleet/status-monitor/internal/api"
	"github.com/padfleet/status-monitor/internal/config"
	"github.com/padfleet/status-monitor/internal/feed"
	"github.com/padfleet/status-monitor/internal/status"
)

var (
	serveOrigin     string
	servePort       int
	serveNoFallback bool
)

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Connect to the status feed and serve the local dashboard",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().StringVar(&serveOrigin, "origin", "", "dashboard origin, overrides config (e.g. https://admin.example.com)")
	cmd.Flags().IntVarP(&servePort, "port", "p", 0, "local HTTP port, overrides config")
	cmd.Flags().BoolVar(&serveNoFallback, "no-fallback", false, "disable HTTP polling while the feed is down")

	return cmd
}

func applyServeOverrides(cfg *config.Config) error {
	if serveOrigin != "" {
		cfg.Dashboard.Origin = serveOrigin
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	return cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyServeOverrides(cfg); err != nil {
		return err
	}

	logBuf := api.NewLogBuffer(cfg.Log.BufferSize)
	logger := setupLogger(cfg.Log.Level, logBuf)
	events := api.NewEventBuffer(cfg.Log.EventBuffer)

	if cfg.ConfigPath != "" {
		logger.Info().Str("path", cfg.ConfigPath).Msg("Loaded configuration")
	}

	// context cancellation on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	board := status.NewBoard(logger)

	manager, err := feed.NewManager(feed.Options{
		Origin: cfg.Dashboard.Origin,
		Path:   cfg.Feed.Path,
		Token:  cfg.Dashboard.Token,
		Backoff: feed.Backoff{
			Base:        cfg.Feed.ReconnectDelay,
			Max:         cfg.Feed.MaxReconnect,
			MaxAttempts: cfg.Feed.MaxAttempts,
		},
		HandshakeTimeout: cfg.Feed.HandshakeTimeout,
		WriteTimeout:     cfg.Feed.WriteTimeout,
		IdleTimeout:      cfg.Feed.IdleTimeout,
		// stop reconnecting once we are shutting down
		ShouldReconnect: func() bool { return ctx.Err() == nil },
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	manager.OnMessage(board.HandleMessage)
	manager.OnStateChange(func(ev feed.StateEvent) {
		events.Record(ev)
		if ev.Connected() {
			logger.Info().Int("devices", board.Len()).Msg("Live updates active")
		}
	})

	deps := api.Deps{
		Feed:   manager,
		Board:  board,
		Logs:   logBuf,
		Events: events,
		Logger: logger,
	}

	var poller *feed.Poller
	if !serveNoFallback {
		poller, err = feed.NewPoller(feed.PollerOptions{
			Origin:   cfg.Dashboard.Origin,
			Path:     cfg.Dashboard.FallbackPath,
			Token:    cfg.Dashboard.Token,
			Interval: cfg.Dashboard.PollInterval,
			Timeout:  cfg.Dashboard.RequestTimeout,
			Logger:   logger,
		}, manager)
		if err != nil {
			return err
		}
		poller.OnSnapshot = func(records json.RawMessage) {
			if err := board.ApplySnapshot(records); err != nil {
				logger.Warn().Err(err).Msg("Dropping fallback snapshot")
			}
		}
		deps.Poller = poller
	}

	server := api.NewServer(cfg, deps)

	logger.Info().
		Str("origin", cfg.Dashboard.Origin).
		Str("endpoint", manager.Endpoint()).
		Int("port", cfg.Server.Port).
		Msg("Pad monitor starting")

	manager.Connect()
	if poller != nil {
		poller.Start(ctx)
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var g errgroup.Group
	g.Go(func() error {
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if poller != nil {
			poller.Stop()
		}
		manager.Disconnect("shutdown")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Shutdown incomplete")
		return err
	}
	logger.Info().Msg("Pad monitor stopped")
	return nil
}
