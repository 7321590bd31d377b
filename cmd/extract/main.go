// The extract command turns a Bradesco investment statement PDF into the
// CSV and JSON outputs, once per invocation or on a schedule with --watch.
//
// Usage:
//
//	extract [--watch] [statement.pdf]
//
// The positional argument overrides INPUT_PDF from the environment.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/widia-io/investiment-scrapper-v2/internal/pipeline"
	"github.com/widia-io/investiment-scrapper-v2/pkg/config"
	"github.com/widia-io/investiment-scrapper-v2/pkg/cron"
)

// Exit codes. Partial means the run produced outputs but some records
// stayed incomplete and were left out of the totals.
const (
	exitOK      = 0
	exitFailure = 1
	exitNoData  = 2
	exitPartial = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	watch := flag.Bool("watch", false, "re-run the extraction on WATCH_SCHEDULE until interrupted")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		return exitFailure
	}
	if path := flag.Arg(0); path != "" {
		cfg.Input.PDFPath = path
	}

	ctx := context.Background()
	deps, err := buildDependencies(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to wire dependencies", slog.Any("error", err))
		return exitFailure
	}
	defer deps.Close()

	if *watch {
		return runWatch(cfg, deps, logger)
	}
	return runOnce(ctx, deps, logger)
}

func runOnce(ctx context.Context, deps *Dependencies, logger *slog.Logger) int {
	report, err := deps.Pipeline.Run(ctx)
	if err != nil {
		logger.Error("extraction failed", slog.Any("error", err))
		if errors.Is(err, pipeline.ErrNoDataExtracted) {
			return exitNoData
		}
		return exitFailure
	}

	deps.FinishRun(report, logger)
	if report.Partial() {
		return exitPartial
	}
	return exitOK
}

// runWatch serves metrics, runs one extraction immediately and then keeps
// re-running on the configured schedule until SIGINT or SIGTERM.
func runWatch(cfg *config.Config, deps *Dependencies, logger *slog.Logger) int {
	if cfg.Watch.MetricsEnabled {
		go func() {
			if err := deps.Recorder.Serve(cfg.Watch.MetricsPort); err != nil {
				logger.Error("metrics server stopped", slog.Any("error", err))
			}
		}()
		logger.Info("metrics server listening", slog.Int("port", cfg.Watch.MetricsPort))
	}

	sched := cron.NewScheduler(cfg.Watch.Schedule, func(ctx context.Context) {
		report, err := deps.Pipeline.Run(ctx)
		if err != nil {
			logger.Error("scheduled extraction failed", slog.Any("error", err))
			return
		}
		deps.FinishRun(report, logger)
	}, logger)

	if err := sched.Start(); err != nil {
		logger.Error("failed to start watch scheduler", slog.Any("error", err))
		return exitFailure
	}
	sched.RunNow()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down watch mode")
	<-sched.Stop().Done()

	return exitOK
}
