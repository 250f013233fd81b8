package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/M1229012/Stock-V116-sub000/internal/config"
	"github.com/M1229012/Stock-V116-sub000/internal/infrastructure"
	"github.com/M1229012/Stock-V116-sub000/internal/store"
	"github.com/M1229012/Stock-V116-sub000/internal/watch"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

const tracerName = "github.com/M1229012/Stock-V116-sub000/internal/services"

// Scan triggers.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerAPI       = "api"
)

// CalendarSource lists recent trading days in ascending order.
type CalendarSource interface {
	TradingCalendar(ctx context.Context, n int) ([]time.Time, error)
}

// BulletinSource reads the exchanges' announcements.
type BulletinSource interface {
	Attention(ctx context.Context, date time.Time) ([]domain.LogRow, error)
	DisposalPeriods(ctx context.Context, from, to time.Time) ([]domain.DisposalPeriod, error)
}

// Evaluator turns a snapshot into report rows.
type Evaluator interface {
	Evaluate(ctx context.Context, snap watch.Snapshot) ([]watch.Row, error)
}

// Notifier is told about every completed report.
type Notifier interface {
	Notify(ctx context.Context, evalDate time.Time, rows []watch.Row) error
}

// ScanDeps are the collaborators of a scan. Bulletin, Notifier, Reports,
// Exports and Metrics are optional.
type ScanDeps struct {
	Calendar CalendarSource
	Bulletin BulletinSource
	Store    store.Store
	Engine   Evaluator
	Notifier Notifier
	Reports  *ReportService
	// Exports receive a copy of the report after the store; their failures
	// are logged only.
	Exports []store.ReportSink
	Metrics *infrastructure.ScanMetrics
}

// ScanService runs one evaluation end to end.
type ScanService struct {
	cfg              config.ScanConfig
	disposalLookback int
	deps             ScanDeps
	running          atomic.Bool
	tracer           trace.Tracer
	logger           *slog.Logger
}

// NewScanService creates a scan service. disposalLookback is the number of
// calendar days of disposal announcements refreshed on each run.
func NewScanService(cfg config.ScanConfig, disposalLookback int, deps ScanDeps, logger *slog.Logger) *ScanService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanService{
		cfg:              cfg,
		disposalLookback: disposalLookback,
		deps:             deps,
		tracer:           otel.Tracer(tracerName),
		logger:           logger.With(slog.String("service", "scan")),
	}
}

// Running reports whether a scan is in progress.
func (s *ScanService) Running() bool {
	return s.running.Load()
}

// Run executes a scan. It fails fast with ErrScanRunning when another scan
// is active.
func (s *ScanService) Run(ctx context.Context, trigger string) (report *Report, err error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrScanRunning
	}
	defer s.running.Store(false)

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	ctx = infrastructure.EnsureTraceID(ctx)
	ctx, span := s.tracer.Start(ctx, "scan.Run", trace.WithAttributes(attribute.String("trigger", trigger)))
	defer span.End()

	start := time.Now()
	s.deps.Metrics.RecordActive(ctx, 1)
	defer func() {
		s.deps.Metrics.RecordActive(ctx, -1)
		var byLevel map[string]int
		if report != nil {
			byLevel = make(map[string]int, len(report.Summary))
			for level, n := range report.Summary {
				byLevel[string(level)] = n
			}
		}
		s.deps.Metrics.RecordScan(ctx, trigger, time.Since(start), byLevel, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan failed")
			s.logger.ErrorContext(ctx, "scan failed",
				slog.String("trigger", trigger),
				slog.String("error", err.Error()))
		}
	}()

	s.logger.InfoContext(ctx, "scan started", slog.String("trigger", trigger))

	calendar, evalDate, err := s.calendar(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("eval_date", domain.DateKey(evalDate)))

	ingested := 0
	if s.cfg.Ingest {
		ingested = s.ingest(ctx, evalDate)
	}
	s.refreshPeriods(ctx, evalDate)

	log, err := s.deps.Store.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read historical log: %w", err)
	}
	periods, err := s.deps.Store.ReadPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read disposal periods: %w", err)
	}

	rows, err := s.deps.Engine.Evaluate(ctx, watch.Snapshot{
		Calendar: calendar,
		Log:      log,
		Periods:  periods,
		EvalDate: evalDate,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	report = &Report{
		EvalDate:    evalDate,
		GeneratedAt: time.Now(),
		Trigger:     trigger,
		Ingested:    ingested,
		Summary:     summarize(rows),
		Rows:        rows,
	}
	rendered := store.Report{
		EvalDate: evalDate,
		Header:   watch.Header,
		Rows:     report.Values(),
	}
	if err := s.deps.Store.WriteReport(ctx, rendered); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	for _, sink := range s.deps.Exports {
		if xerr := sink.WriteReport(ctx, rendered); xerr != nil {
			s.logger.WarnContext(ctx, "report export failed", slog.String("error", xerr.Error()))
		}
	}
	if s.deps.Reports != nil {
		s.deps.Reports.Publish(report)
	}

	if s.deps.Notifier != nil {
		if nerr := s.deps.Notifier.Notify(ctx, evalDate, rows); nerr != nil {
			s.deps.Metrics.RecordFetchError(ctx, "notify")
			s.logger.WarnContext(ctx, "notification failed", slog.String("error", nerr.Error()))
		}
	}

	s.logger.InfoContext(ctx, "scan completed",
		slog.String("trigger", trigger),
		slog.String("eval_date", domain.DateKey(evalDate)),
		slog.Int("rows", len(rows)),
		slog.Int("ingested", ingested),
		slog.Duration("duration", time.Since(start)))
	return report, nil
}

// calendar fetches trading days and resolves the evaluation date. A pinned
// date drops later sessions from the calendar.
func (s *ScanService) calendar(ctx context.Context) ([]time.Time, time.Time, error) {
	days, err := s.deps.Calendar.TradingCalendar(ctx, s.cfg.CalendarDays)
	if err != nil {
		s.deps.Metrics.RecordFetchError(ctx, "calendar")
		return nil, time.Time{}, fmt.Errorf("failed to load trading calendar: %w", err)
	}
	if len(days) == 0 {
		return nil, time.Time{}, ErrEmptyCalendar
	}
	if s.cfg.EvalDate == "" {
		return days, domain.Day(days[len(days)-1]), nil
	}

	evalDate, err := domain.ParseDate(s.cfg.EvalDate)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("invalid evaluation date: %w", err)
	}
	evalDate = domain.Day(evalDate)
	end := len(days)
	for end > 0 && domain.Day(days[end-1]).After(evalDate) {
		end--
	}
	return days[:end], evalDate, nil
}

// ingest appends the evaluation day's bulletin rows not already logged.
func (s *ScanService) ingest(ctx context.Context, evalDate time.Time) int {
	if s.deps.Bulletin == nil {
		return 0
	}
	fetched, err := s.deps.Bulletin.Attention(ctx, evalDate)
	if err != nil {
		s.deps.Metrics.RecordFetchError(ctx, "bulletin")
		s.logger.WarnContext(ctx, "attention bulletin unavailable, using stored log",
			slog.String("error", err.Error()))
		return 0
	}
	existing, err := s.deps.Store.Read(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "cannot read log for ingestion", slog.String("error", err.Error()))
		return 0
	}

	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r.Key()] = true
	}
	var fresh []domain.LogRow
	for _, r := range watch.Dedupe(fetched) {
		if !seen[r.Key()] {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return 0
	}
	if err := s.deps.Store.Append(ctx, fresh); err != nil {
		s.logger.WarnContext(ctx, "failed to append bulletin rows", slog.String("error", err.Error()))
		return 0
	}
	s.logger.InfoContext(ctx, "bulletin ingested",
		slog.String("date", domain.DateKey(evalDate)),
		slog.Int("fetched", len(fetched)),
		slog.Int("appended", len(fresh)))
	return len(fresh)
}

func (s *ScanService) refreshPeriods(ctx context.Context, evalDate time.Time) {
	if s.deps.Bulletin == nil {
		return
	}
	from := evalDate.AddDate(0, 0, -s.disposalLookback)
	periods, err := s.deps.Bulletin.DisposalPeriods(ctx, from, evalDate)
	if err != nil {
		s.deps.Metrics.RecordFetchError(ctx, "disposal")
		s.logger.WarnContext(ctx, "disposal announcements unavailable, using stored periods",
			slog.String("error", err.Error()))
		return
	}
	if err := s.deps.Store.AppendPeriods(ctx, periods); err != nil {
		s.logger.WarnContext(ctx, "failed to store disposal periods", slog.String("error", err.Error()))
	}
}
