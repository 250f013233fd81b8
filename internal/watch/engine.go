package watch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/M1229012/Stock-V116-sub000/internal/clause"
	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
	"github.com/M1229012/Stock-V116-sub000/internal/exclusion"
	"github.com/M1229012/Stock-V116-sub000/internal/risk"
	"github.com/M1229012/Stock-V116-sub000/internal/simulator"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

const (
	component       = "watch"
	instrumentation = "github.com/M1229012/Stock-V116-sub000/internal/watch"
	shortWindow     = 10
)

// QuoteSource supplies market snapshots. Implementations may be slow and
// rate limited; a failure only degrades the affected stock.
type QuoteSource interface {
	// Quote returns the snapshot as of evalDate: no bar after it, and
	// fundamentals and day-trade figures for its last session.
	Quote(ctx context.Context, code string, market domain.Market, evalDate time.Time) (domain.MarketQuote, error)
}

// Snapshot is the externally supplied state for one run.
type Snapshot struct {
	Calendar []time.Time // strictly ascending trading dates
	Log      []domain.LogRow
	Periods  []domain.DisposalPeriod
	EvalDate time.Time
}

// Options configures an Engine.
type Options struct {
	SafeHarbor  bool
	Concurrency int
}

// Engine evaluates flagged stocks.
type Engine struct {
	rules     *clause.Rules
	simulator *simulator.Simulator
	scorer    *risk.Scorer
	quotes    QuoteSource
	opts      Options
	logger    *slog.Logger
	tracer    trace.Tracer

	evaluated metric.Int64Counter
	degraded  metric.Int64Counter
}

// NewEngine wires an engine. quotes may be nil, in which case every stock is
// scored without market data.
func NewEngine(rules *clause.Rules, sim *simulator.Simulator, scorer *risk.Scorer, quotes QuoteSource, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	meter := otel.Meter(instrumentation)
	evaluated, _ := meter.Int64Counter("watch.stocks.evaluated",
		metric.WithDescription("Stocks evaluated, by risk level"))
	degraded, _ := meter.Int64Counter("watch.stocks.degraded",
		metric.WithDescription("Stocks evaluated with degraded fields"))

	return &Engine{
		rules:     rules,
		simulator: sim,
		scorer:    scorer,
		quotes:    quotes,
		opts:      opts,
		logger:    logger.With(slog.String("component", component)),
		tracer:    otel.Tracer(instrumentation),
		evaluated: evaluated,
		degraded:  degraded,
	}
}

// Evaluate produces one Row per stock cited inside the window that ends at
// the evaluation date.
func (e *Engine) Evaluate(ctx context.Context, snap Snapshot) ([]Row, error) {
	ctx, span := e.tracer.Start(ctx, "watch.Evaluate",
		trace.WithAttributes(attribute.String("eval_date", domain.DateKey(snap.EvalDate))))
	defer span.End()

	start := time.Now()
	window, err := e.windowDates(snap)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid snapshot")
		return nil, err
	}

	exclusions, err := exclusion.Build(snap.Calendar, snap.Periods)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid disposal periods")
		return nil, err
	}

	order, stocks := groupByStock(Dedupe(snap.Log))
	candidates := make([]*stockInfo, 0, len(order))
	for _, code := range order {
		info := stocks[code]
		for _, d := range window {
			if _, ok := info.records[domain.DateKey(d)]; ok {
				candidates = append(candidates, info)
				break
			}
		}
	}

	e.logger.InfoContext(ctx, "evaluating flagged stocks",
		slog.String("eval_date", domain.DateKey(snap.EvalDate)),
		slog.Int("log_rows", len(snap.Log)),
		slog.Int("stocks", len(order)),
		slog.Int("candidates", len(candidates)),
		slog.Int("disposal_periods", len(snap.Periods)))

	rows := make([]Row, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, info := range candidates {
		g.Go(func() error {
			rows[i] = e.evaluateStock(gctx, info, window, exclusions, snap.EvalDate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("evaluation cancelled: %w", err)
	}

	span.SetAttributes(attribute.Int("rows", len(rows)))
	e.logger.InfoContext(ctx, "evaluation completed",
		slog.Int("rows", len(rows)),
		slog.Duration("duration", time.Since(start)))
	return rows, nil
}

// windowDates returns the trailing simulator window ending at the evaluation date.
func (e *Engine) windowDates(snap Snapshot) ([]time.Time, error) {
	if err := exclusion.ValidateCalendar(snap.Calendar); err != nil {
		return nil, err
	}

	eval := domain.Day(snap.EvalDate)
	idx := -1
	for i, d := range snap.Calendar {
		if domain.Day(d).Equal(eval) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperrors.NewContractError(component,
			fmt.Sprintf("evaluation date %s is not a trading day in the calendar", domain.DateKey(eval)))
	}

	size := e.simulator.WindowSize()
	if idx+1 < size {
		return nil, apperrors.NewContractError(component,
			fmt.Sprintf("calendar holds %d trading days up to %s, need %d", idx+1, domain.DateKey(eval), size))
	}

	window := make([]time.Time, size)
	for i := range window {
		window[i] = domain.Day(snap.Calendar[idx-size+1+i])
	}
	return window, nil
}

func (e *Engine) evaluateStock(ctx context.Context, info *stockInfo, window []time.Time, exclusions *exclusion.Map, evalDate time.Time) Row {
	ctx, span := e.tracer.Start(ctx, "watch.evaluateStock",
		trace.WithAttributes(attribute.String("stock", info.code)))
	defer span.End()

	row := Row{Code: info.code, Name: info.name, Market: info.market}

	days := make([]simulator.Day, len(window))
	for i, d := range window {
		day := simulator.Day{Date: d}
		if rec, ok := info.records[domain.DateKey(d)]; ok {
			day.Clauses = rec.Clauses
			day.Bit = e.rules.IsValidAccumulationDay(rec.Clauses) && !exclusions.IsExcluded(info.code, d)
			row.LastDate = d
		}
		days[i] = day
	}
	input := simulator.Input{
		Stock:      info.code,
		EvalDate:   evalDate,
		Window:     days,
		Exclusions: exclusions,
		SafeHarbor: e.opts.SafeHarbor,
	}

	// The row reports the same bits the simulation counts.
	bits := simulator.EffectiveBits(input)
	var bits30 strings.Builder
	for i, bit := range bits {
		if !bit {
			bits30.WriteByte('0')
			continue
		}
		bits30.WriteByte('1')
		row.Count30++
		if i >= len(bits)-shortWindow {
			row.Count10++
		}
	}
	row.Bits30 = bits30.String()
	row.Bits10 = row.Bits30[max(0, len(row.Bits30)-shortWindow):]
	for i := len(bits) - 1; i >= 0 && bits[i]; i-- {
		row.Streak++
	}

	result, err := e.simulator.Simulate(input)
	if err != nil {
		e.logger.ErrorContext(ctx, "simulation failed",
			slog.String("stock", info.code),
			slog.String("error", err.Error()))
		span.RecordError(err)
		span.SetStatus(codes.Error, "simulation failed")
		row.Degraded = true
		result = simulator.Result{
			Status: simulator.StatusUnreachable,
			Days:   simulator.SentinelDays,
			Reason: "模擬失敗：" + err.Error(),
		}
	}
	row.Simulation = result

	quote := domain.MarketQuote{Code: info.code}
	if e.quotes != nil {
		q, err := e.quotes.Quote(ctx, info.code, info.market, evalDate)
		if err != nil {
			e.logger.WarnContext(ctx, "market data unavailable",
				slog.String("stock", info.code),
				slog.String("error", err.Error()))
			row.Degraded = true
		} else {
			quote = asOf(q, evalDate)
		}
	}

	scoreDays := UnresolvedDays
	if result.Finite() {
		scoreDays = result.Days
	}
	row.Risk = e.scorer.Score(risk.Input{
		Stock:          info.code,
		Bars:           quote.Bars,
		Fundamentals:   quote.Fundamentals,
		DaysToDisposal: scoreDays,
		Status:         result.Status,
		DayTrade:       quote.DayTrade,
	})

	attrs := metric.WithAttributes(attribute.String("level", string(row.Risk.Level)))
	e.evaluated.Add(ctx, 1, attrs)
	if row.Degraded {
		e.degraded.Add(ctx, 1)
	}
	span.SetAttributes(
		attribute.String("status", result.Status.String()),
		attribute.String("level", string(row.Risk.Level)))
	return row
}

// asOf drops bars after evalDate. Fundamentals and day-trade figures that
// came with the dropped bars describe a later session and are cleared too.
func asOf(q domain.MarketQuote, evalDate time.Time) domain.MarketQuote {
	bars := domain.BarsThrough(q.Bars, evalDate)
	if len(bars) == len(q.Bars) {
		return q
	}
	return domain.MarketQuote{Code: q.Code, Bars: bars}
}
