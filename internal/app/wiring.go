package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/M1229012/Stock-V116-sub000/internal/bulletin"
	"github.com/M1229012/Stock-V116-sub000/internal/clause"
	"github.com/M1229012/Stock-V116-sub000/internal/config"
	"github.com/M1229012/Stock-V116-sub000/internal/exporter"
	"github.com/M1229012/Stock-V116-sub000/internal/infrastructure"
	"github.com/M1229012/Stock-V116-sub000/internal/market"
	"github.com/M1229012/Stock-V116-sub000/internal/notify"
	"github.com/M1229012/Stock-V116-sub000/internal/risk"
	"github.com/M1229012/Stock-V116-sub000/internal/scraper"
	"github.com/M1229012/Stock-V116-sub000/internal/services"
	"github.com/M1229012/Stock-V116-sub000/internal/simulator"
	"github.com/M1229012/Stock-V116-sub000/internal/store"
	"github.com/M1229012/Stock-V116-sub000/internal/watch"
)

const AppName = "Disposal Watch"

// Version is reported by /api/health and the startup log.
var Version = infrastructure.ServiceVersion

// Components is the wired scan pipeline shared by both entry points.
type Components struct {
	Config  *config.Config
	Logger  *slog.Logger
	OTel    *infrastructure.OTelProviders
	Metrics *infrastructure.ScanMetrics
	Store   store.Store
	Scan    *services.ScanService
	Reports *services.ReportService

	scraper *scraper.Scraper
}

// Build wires every component from cfg. Spans go to traceOut (stdout when
// nil).
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, traceOut io.Writer) (*Components, error) {
	if logger == nil {
		logger = slog.Default()
	}

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, traceOut, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.NewScanMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	st, err := NewStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	rules := clause.NewRules(cfg.Rules.CountingClauses, cfg.Rules.SpecialClauses, cfg.Rules.ExtendingClauses)
	sim, err := simulator.New(cfg.Rules.Tracks, rules, cfg.Rules.WindowSize, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid rule tracks: %w", err)
	}
	marketClient := market.NewClient(cfg.Market, logger)
	engine := watch.NewEngine(rules, sim, risk.NewScorer(cfg.Risk, logger), marketClient,
		watch.Options{SafeHarbor: cfg.Rules.SafeHarbor, Concurrency: cfg.Scan.Concurrency}, logger)

	c := &Components{
		Config:  cfg,
		Logger:  logger,
		OTel:    providers,
		Metrics: metrics,
		Store:   st,
		Reports: services.NewReportService(logger),
	}

	var notifier services.Notifier
	if cfg.Notify.Enabled {
		var concentration notify.ConcentrationSource
		if cfg.Scraper.Enabled {
			c.scraper = scraper.New(cfg.Scraper, logger)
			concentration = c.scraper
		}
		notifier = notify.NewDiscord(cfg.Notify, concentration, logger)
	}

	var exports []store.ReportSink
	if cfg.Store.CSVDir != "" {
		exports = append(exports, exporter.NewCSVWriter(cfg.Store.CSVDir, logger))
	}

	c.Scan = services.NewScanService(cfg.Scan, cfg.Bulletin.DisposalLookback, services.ScanDeps{
		Calendar: marketClient,
		Bulletin: bulletin.NewClient(cfg.Bulletin, logger),
		Store:    st,
		Engine:   engine,
		Notifier: notifier,
		Reports:  c.Reports,
		Exports:  exports,
		Metrics:  metrics,
	}, logger)

	logger.InfoContext(ctx, "components wired",
		slog.String("store", cfg.Store.Backend),
		slog.Int("tracks", len(cfg.Rules.Tracks)),
		slog.Bool("safe_harbor", cfg.Rules.SafeHarbor),
		slog.Bool("notify", cfg.Notify.Enabled),
		slog.Bool("scraper", c.scraper != nil))
	return c, nil
}

// NewStore opens the configured backend.
func NewStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Store, error) {
	names := store.SheetNames{Log: cfg.LogSheet, Disposal: cfg.DisposalSheet, Report: cfg.ReportSheet}
	switch cfg.Backend {
	case "excel":
		return store.NewExcelStore(cfg.ExcelPath, names, logger), nil
	case "sheets":
		st, err := store.NewSheetsStore(ctx, cfg.SpreadsheetID, cfg.CredentialsFile, names, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Close stops the browser and flushes telemetry.
func (c *Components) Close(ctx context.Context) error {
	if c.scraper != nil {
		c.scraper.Close()
	}
	var errs []error
	if c.OTel != nil {
		if err := c.OTel.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
