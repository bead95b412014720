package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/pulsebot/internal/eventlog"
	"github.com/user/pulsebot/internal/export"
	"github.com/user/pulsebot/internal/metrics"
	"github.com/user/pulsebot/internal/pipeline"
	"github.com/user/pulsebot/internal/status"
	"github.com/user/pulsebot/internal/telegram"
	"github.com/user/pulsebot/internal/version"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the pulsebot daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, "pulsebot.pid")
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	// Sinks
	collector := metrics.NewCollector()
	events := eventlog.New(filepath.Join(cfg.DataDir, "telemetry"))

	// Export pipeline
	tokens := export.NewTokenManager(
		cfg.Telemetry.TokenEndpoint,
		cfg.Telemetry.ClientID,
		cfg.Telemetry.ClientSecret,
	)
	exporter := export.NewClient(export.Config{
		Enabled:    cfg.Telemetry.Enabled,
		Endpoint:   cfg.Telemetry.Endpoint,
		BotVersion: version.Version,
	}, tokens)

	pipe := pipeline.New(pipeline.Settings{
		QueueCapacity:   cfg.Telemetry.QueueCapacity,
		BatchSize:       cfg.Telemetry.BatchSize,
		ConsumeInterval: cfg.Telemetry.ConsumeEvery(),
		FlushInterval:   cfg.Telemetry.FlushEvery(),
	}, exporter, events, collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pipe.Start(ctx); err != nil {
		return fmt.Errorf("start telemetry pipeline: %w", err)
	}
	defer pipe.Stop()

	g, gctx := errgroup.WithContext(ctx)

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, pipe, collector)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		g.Go(func() error {
			adapter.Start(gctx)
			return nil
		})
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	// Status HTTP server
	if cfg.HTTP.Enabled {
		statusSrv := status.NewServer(collector, events)
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: statusSrv,
		}
		g.Go(func() error {
			slog.Info("status server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			httpServer.Close()
			return nil
		})
	}

	slog.Info("pulsebot started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"telemetry_enabled", cfg.Telemetry.Enabled,
		"pid_file", pidPath,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Drain and flush what we have before the process image is replaced.
			pipe.Stop()
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				return fmt.Errorf("re-exec: %w", err)
			}
		}

		// SIGINT or SIGTERM: stop producers first, then let the deferred
		// pipeline Stop drain and flush.
		slog.Info("shutting down", "signal", sig)
		cancel()
		if err := g.Wait(); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		return nil
	}
}
