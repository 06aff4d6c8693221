package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flux-framework/flux-cron-go/internal/audit"
	"github.com/flux-framework/flux-cron-go/internal/config"
	"github.com/flux-framework/flux-cron-go/internal/gateway"
	"github.com/flux-framework/flux-cron-go/internal/reactor"
	"github.com/flux-framework/flux-cron-go/pkg/eventbus"
	"github.com/flux-framework/flux-cron-go/pkg/executor"
	"github.com/flux-framework/flux-cron-go/pkg/manager"
)

// newServeCmd creates the `fluxcron serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the cron daemon and its HTTP gateway",
		Long: `Start fluxcron as a long-running daemon: a single-goroutine reactor
drives entry triggers, dispatches tasks through the local executor, and an
HTTP gateway exposes create/list/start/stop/delete/sync over JSON.

Examples:
  fluxcron serve
  fluxcron serve --config ./fluxcron.yaml`,
		RunE: runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	var cfg *config.Config
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.DefaultConfig()
	}

	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := reactor.New()
	go r.Run(ctx)

	bus := eventbus.New()
	exec := executor.NewLocal(executor.Config{
		Shell:          cfg.Executor.Shell,
		MaxOutputBytes: cfg.Executor.MaxOutputBytes,
	})
	mgr := manager.New(r, exec, bus, cfg.Cwd)

	if cfg.Sync.Topic != "" {
		if err := mgr.Sync(cfg.Sync.Topic, cfg.Sync.Epsilon); err != nil {
			logger.Warn("failed to enable sync gating", "error", err)
		} else {
			logger.Info("sync gating enabled", "topic", cfg.Sync.Topic, "epsilon", cfg.Sync.Epsilon)
		}
	}

	var auditLog *audit.Log
	if cfg.Audit.Enabled {
		al, err := audit.Open(audit.Config{Path: cfg.Audit.Path})
		if err != nil {
			logger.Error("failed to open audit log", "error", err)
		} else {
			auditLog = al
			defer auditLog.Close()
			logger.Info("audit log enabled", "path", cfg.Audit.Path)
		}
	}

	if cfg.SeedEntries != "" {
		seeds, err := config.LoadSeedEntries(cfg.SeedEntries)
		if err != nil {
			logger.Error("failed to load seed entries", "error", err, "path", cfg.SeedEntries)
		}
		for _, seed := range seeds {
			if _, err := mgr.Create(seed.ToCreateRequest()); err != nil {
				logger.Error("failed to create seed entry", "error", err, "name", seed.Name)
				continue
			}
			logger.Info("seed entry created", "name", seed.Name)
		}
	}

	gw := gateway.New(mgr, gateway.Config{Address: cfg.Listen}, logger)
	if err := gw.Start(); err != nil {
		return fmt.Errorf("starting gateway: %w", err)
	}

	logger.Info("fluxcron running. Press Ctrl+C to stop.", "listen", cfg.Listen)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	done := make(chan struct{})
	go func() {
		_ = gw.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}
