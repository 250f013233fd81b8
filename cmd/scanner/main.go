// Command scanner runs one disposal-watch evaluation and exits. It is meant
// to be started by a scheduler after the exchanges publish the day's
// attention bulletin.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/M1229012/Stock-V116-sub000/internal/app"
	"github.com/M1229012/Stock-V116-sub000/internal/config"
	"github.com/M1229012/Stock-V116-sub000/internal/infrastructure"
	"github.com/M1229012/Stock-V116-sub000/internal/services"
	"github.com/M1229012/Stock-V116-sub000/internal/watch"
)

type options struct {
	configFile string
	evalDate   string
	noIngest   bool
	print      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configFile, "config", "", "YAML configuration file (overrides DISPO_CONFIG_FILE)")
	flag.StringVar(&opts.evalDate, "date", "", "evaluation date YYYY-MM-DD (defaults to the latest trading day)")
	flag.BoolVar(&opts.noIngest, "no-ingest", false, "skip appending today's attention bulletin to the log")
	flag.BoolVar(&opts.print, "print", false, "print the report table to stdout")
	flag.Parse()

	if err := run(opts); err != nil {
		slog.Error("scan failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(opts options) error {
	if opts.configFile != "" {
		os.Setenv("DISPO_CONFIG_FILE", opts.configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyOptions(cfg, opts); err != nil {
		return err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	ctx := infrastructure.EnsureTraceID(context.Background())
	components, err := app.Build(ctx, cfg, logger, io.Discard)
	if err != nil {
		return err
	}
	defer components.Close(context.Background())

	report, err := components.Scan.Run(ctx, services.TriggerManual)
	if err != nil {
		return err
	}
	if opts.print {
		return printReport(os.Stdout, report)
	}
	return nil
}

// applyOptions lays command-line flags over the loaded configuration.
func applyOptions(cfg *config.Config, opts options) error {
	if opts.evalDate != "" {
		cfg.Scan.EvalDate = opts.evalDate
	}
	if opts.noIngest {
		cfg.Scan.Ingest = false
	}
	// a one-shot run has nothing to serve metrics to
	cfg.Telemetry.MetricsEnabled = false
	return cfg.Validate()
}

func printReport(w io.Writer, report *services.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(watch.Header[:12], "\t"))
	for _, row := range report.Values() {
		fmt.Fprintln(tw, strings.Join(row[:12], "\t"))
	}
	return tw.Flush()
}
