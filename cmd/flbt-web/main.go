// Package main provides the HTTP and WebSocket front end for a flbt session.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LucasAlfare/FL-BT/internal/bus"
	"github.com/LucasAlfare/FL-BT/internal/client"
	"github.com/LucasAlfare/FL-BT/internal/config"
	"github.com/LucasAlfare/FL-BT/internal/journal"
	"github.com/LucasAlfare/FL-BT/internal/metrics"
	"github.com/LucasAlfare/FL-BT/internal/server"
	"github.com/LucasAlfare/FL-BT/internal/service"
	"github.com/joho/godotenv"
)

// version is set at build time.
var version = "0.1.0"

func main() {
	wipeHistory := flag.Bool("wipe", false, "delete all journaled history on startup (testing only)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()

	logger, logCleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel, cfg.LogLevel)
	defer func() {
		if err := logCleanup(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	}()
	slog.SetDefault(logger)

	if err := run(cfg, logger, *wipeHistory); err != nil {
		logger.Error("flbt-web stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger, wipeHistory bool) error {
	profile, err := client.ParseProfile(cfg.APIProfile)
	if err != nil {
		return err
	}
	if err := service.EnsureDestDir(cfg.DestDir); err != nil {
		return err
	}

	var sinks []service.Sink

	j, err := journal.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Warn("history disabled", "backend", cfg.HistoryBackend, "error", err)
	} else if j != nil {
		if wipeHistory {
			if err := journal.Wipe(context.Background(), j); err != nil {
				return err
			}
			logger.Info("history wiped")
		}
		defer j.Close()
		sinks = append(sinks, journal.Sink(j))
	}

	if cfg.NATSURL != "" {
		nc, err := bus.Connect(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			logger.Warn("event publishing disabled", "url", cfg.NATSURL, "error", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := nc.Flush(ctx); err != nil {
					logger.Warn("failed to flush events", "error", err)
				}
				nc.Close()
			}()
			sinks = append(sinks, nc)
		}
	}

	collector := metrics.NewCollector()
	sess := service.NewSession(service.Options{
		Service:        client.New(cfg.ServerURL, profile),
		DestDir:        cfg.DestDir,
		PollInterval:   cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
		FetchTimeout:   cfg.FetchTimeout,
		Logger:         logger,
		Metrics:        collector,
		Sinks:          sinks,
	})
	defer sess.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.WebPort,
		Handler:      server.New(sess, collector, version, logger).Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting flbt-web", "port", cfg.WebPort, "service", cfg.ServerURL, "profile", profile)
		logger.Info("snapshot stream available", "url", fmt.Sprintf("ws://localhost:%s/ws", cfg.WebPort))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("shutting down server...")

	// Closing the session first ends open websocket streams.
	sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
