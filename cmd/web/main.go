// Command web serves the latest disposal-watch report over HTTP, runs scans
// on demand or on a schedule and exposes Prometheus metrics.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/M1229012/Stock-V116-sub000/internal/app"
	"github.com/M1229012/Stock-V116-sub000/internal/config"
	"github.com/M1229012/Stock-V116-sub000/internal/infrastructure"
	"github.com/M1229012/Stock-V116-sub000/internal/services"
)

func main() {
	scanOnStart := flag.Bool("scan-on-start", false, "run a scan as soon as the server is up")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	components, err := app.Build(context.Background(), cfg, logger, nil)
	if err != nil {
		logger.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	application := app.NewApplication(components)

	if *scanOnStart {
		go func() {
			ctx := infrastructure.EnsureTraceID(context.Background())
			if _, err := components.Scan.Run(ctx, services.TriggerManual); err != nil {
				logger.Warn("startup scan failed", slog.String("error", err.Error()))
			}
		}()
	}

	if err := application.Run(); err != nil {
		logger.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
