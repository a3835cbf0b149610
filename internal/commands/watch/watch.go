// Package watch implements the `watch` subcommand (§6): runs the
// continuous learner daemon (C15) in the foreground until interrupted.
// Background mode is handled by cmd/deskautomata, which re-execs this same
// binary as a detached child (mirroring the teacher's
// --controller-child respawn in cmd/conductor/main.go).
package watch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kazuyaegusa/deskautomata/internal/capture"
	"github.com/kazuyaegusa/deskautomata/internal/catalog"
	"github.com/kazuyaegusa/deskautomata/internal/commands/shared"
	"github.com/kazuyaegusa/deskautomata/internal/config"
	"github.com/kazuyaegusa/deskautomata/internal/daemon"
	"github.com/kazuyaegusa/deskautomata/internal/extractor"
	"github.com/kazuyaegusa/deskautomata/internal/feedback"
	"github.com/kazuyaegusa/deskautomata/internal/log"
	"github.com/kazuyaegusa/deskautomata/internal/oracle"
	"github.com/kazuyaegusa/deskautomata/internal/refine"
	"github.com/kazuyaegusa/deskautomata/internal/segment"
	"github.com/kazuyaegusa/deskautomata/internal/workflow"
)

// BackgroundFlagName is the flag cmd/deskautomata checks for before cobra
// parsing, matching the teacher's pre-cobra --controller-child scan.
const BackgroundFlagName = "--background"

// NewWatchCommand creates the `watch` command. Background respawn itself
// lives in main, since it must happen before any cobra flag parsing.
func NewWatchCommand() *cobra.Command {
	var background bool
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the continuous learner daemon until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if background {
				fmt.Println("already running detached; use --background only from the foreground invocation")
			}
			return runWatch(cmd.Context(), metricsAddr)
		},
	}

	cmd.Flags().BoolVar(&background, "background", false, "detach into a background process (handled by the top-level binary)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus /metrics on this address (e.g. :9090)")

	return cmd
}

// runWatch builds and runs the daemon until SIGINT/SIGTERM, exiting 0.
func runWatch(ctx context.Context, metricsAddr string) error {
	logger := log.New(log.FromEnv())
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := syscall.Setpriority(syscall.PRIO_PROCESS, 0, 19); err != nil {
		logger.Warn("could not lower scheduling priority", "error", err)
	}

	ingest, err := capture.New(cfg.Pipeline.WatchDir, "", logger)
	if err != nil {
		return shared.NewFailure("open capture directory", err)
	}

	store, err := workflow.NewStore(cfg.Pipeline.SkillsDir, logger)
	if err != nil {
		return shared.NewFailure("open workflow store", err)
	}
	feedbacks, err := feedback.NewStore(filepath.Join(cfg.Pipeline.SkillsDir, "feedback"), logger)
	if err != nil {
		return shared.NewFailure("open feedback store", err)
	}

	provider := shared.OracleProvider(cfg, "")
	adapter := oracle.NewAdapter(provider, oracle.DefaultRetryConfig(), 1.0, logger)

	ex := extractor.New(adapter, store, segment.Config{
		GapSeconds: time.Duration(cfg.Pipeline.SessionGap * float64(time.Second)),
		MaxRecords: cfg.Pipeline.SessionMax,
	}, logger)
	refiner := refine.New(store, feedbacks, logger)
	reporter := catalog.New(store, feedbacks, logger)

	stateDir, err := config.StateDir()
	if err != nil {
		return shared.NewFailure("resolve state directory", err)
	}

	d := daemon.New(daemon.Config{
		PollInterval: time.Duration(cfg.Pipeline.PollSeconds * float64(time.Second)),
		CPULimit:     cfg.Pipeline.CPULimit / 100.0,
		MemLimitMB:   cfg.Pipeline.MemLimitMB,
		StoreDir:     cfg.Pipeline.SkillsDir,
		ReportDir:    filepath.Join(stateDir, "reports"),
	}, ingest, ex, refiner, reporter, nil, logger)

	if metricsAddr != "" {
		server := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			server.Close()
		}()
		logger.Info("serving prometheus metrics", "addr", metricsAddr)
	}

	d.Start(ctx)
	logger.Info("continuous learner daemon started", "watch_dir", cfg.Pipeline.WatchDir, "poll_seconds", cfg.Pipeline.PollSeconds)

	<-ctx.Done()
	d.Stop()
	logger.Info("continuous learner daemon stopped")
	return nil
}
