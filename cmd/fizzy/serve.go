package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fizzyhq/fizzy/internal/broadcast"
	"github.com/fizzyhq/fizzy/internal/config"
	"github.com/fizzyhq/fizzy/internal/entropy"
	"github.com/fizzyhq/fizzy/internal/events"
	"github.com/fizzyhq/fizzy/internal/export"
	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/notify"
	"github.com/fizzyhq/fizzy/internal/queue"
	"github.com/fizzyhq/fizzy/internal/server"
	"github.com/fizzyhq/fizzy/internal/store/postgres"
	"github.com/fizzyhq/fizzy/internal/webhook"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the fizzy server",
	GroupID: "system",
	// Override PersistentPreRunE so we don't build an HTTP client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Event bus mirroring is optional; without NATS, events stay in
		// Postgres only.
		var publisher events.Publisher
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = pub
			logger.Info("event bus enabled", "nats_url", cfg.NATSURL)
		} else {
			publisher = &events.NoopPublisher{}
			logger.Info("event bus disabled (FIZZY_NATS_URL not set)")
		}

		recorder := events.NewRecorder(cfg.MaxAttempts, cfg.NATSURL != "")
		hub := broadcast.NewHub()

		// Job handlers: each fan-out concern consumes its own job kind.
		generator := notify.NewGenerator(store, logger)
		relay := webhook.NewRelay(store, cfg.WebhookTimeout, cfg.MaxAttempts, logger)
		dispatcher := broadcast.NewDispatcher(hub, logger)

		runner := queue.NewRunner(store, cfg.Workers, cfg.PollInterval, cfg.JobTimeout, logger)
		runner.Register(model.JobKindNotify, generator.HandleJob)
		runner.Register(model.JobKindWebhookFanOut, relay.HandleFanOut)
		runner.Register(model.JobKindWebhookDeliver, relay.HandleDeliver)
		runner.Register(model.JobKindBroadcast, dispatcher.HandleJob)
		runner.Register(model.JobKindPublish, events.HandlePublish(store, publisher))
		runner.Start()
		logger.Info("job runner started", "workers", cfg.Workers)

		fizzyServer := server.NewFizzyServer(store, recorder, hub, logger)
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: fizzyServer.NewHTTPHandler(cfg.AuthToken),
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Entropy sweeper postpones idle cards on a timer.
		var sweeper *entropy.Sweeper
		if cfg.EntropyInterval > 0 {
			sweeper = entropy.NewSweeper(store, recorder, cfg.EntropyInterval, cfg.EntropyIdleAfter, cfg.EntropyPostpone, logger)
			sweeper.Start()
			logger.Info("entropy sweeper started",
				"interval", cfg.EntropyInterval,
				"idle_after", cfg.EntropyIdleAfter,
			)
		}

		// Export scheduler streams the event log to configured destinations.
		var scheduler *export.Scheduler
		if cfg.ExportInterval > 0 {
			var dests []export.Destination

			if cfg.ExportS3Bucket != "" {
				s3Dest, err := export.NewS3Destination(
					context.Background(),
					cfg.ExportS3Bucket,
					cfg.ExportS3Key,
					cfg.ExportS3Region,
					cfg.ExportS3Endpoint,
				)
				if err != nil {
					logger.Error("failed to create S3 export destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("export S3 destination enabled", "bucket", cfg.ExportS3Bucket, "key", cfg.ExportS3Key)
				}
			}

			if cfg.ExportDir != "" {
				dests = append(dests, export.NewDirDestination(cfg.ExportDir, "events.jsonl"))
				logger.Info("export dir destination enabled", "dir", cfg.ExportDir)
			}

			if len(dests) > 0 {
				scheduler = export.NewScheduler(store, dests, cfg.ExportInterval, logger)
				scheduler.Start()
				logger.Info("export scheduler started", "interval", cfg.ExportInterval)
			}
		}

		logger.Info("fizzy server started", "http_addr", cfg.HTTPAddr)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown: stop intake first, then the workers, then the
		// background loops.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		runner.Stop()
		logger.Info("job runner stopped")

		if sweeper != nil {
			sweeper.Stop()
			logger.Info("entropy sweeper stopped")
		}
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("export scheduler stopped")
		}

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
