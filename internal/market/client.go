// Package market fetches price history, the trading calendar and per-stock
// fundamentals used by the risk scorer.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/M1229012/Stock-V116-sub000/internal/config"
	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
	"github.com/M1229012/Stock-V116-sub000/internal/infrastructure"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

const (
	tracerName = "github.com/M1229012/Stock-V116-sub000/internal/market"
	// dayTradeAverageDays is the trailing average the day-trade ratio is compared to.
	dayTradeAverageDays = 6
)

// Client implements the quote source for the watch engine. Exchange-wide
// tables are fetched once per date and shared between stocks; a failed or
// unpublished table is remembered for RetryFailedAfter so it is not retried
// per stock, then fetched again.
type Client struct {
	http   *infrastructure.HTTPClient
	cfg    config.MarketConfig
	tracer trace.Tracer
	logger *slog.Logger
	now    func() time.Time

	group      singleflight.Group
	valuation  *tableCache[domain.Fundamentals]
	dayTrading *tableCache[float64]
}

// NewClient creates a market data client.
func NewClient(cfg config.MarketConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "market"))
	return &Client{
		http: infrastructure.NewHTTPClient(infrastructure.HTTPClientOptions{
			Timeout:    cfg.Timeout,
			RPS:        cfg.RPS,
			Burst:      cfg.Burst,
			MaxRetries: cfg.MaxRetries,
		}, logger),
		cfg:        cfg,
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
		now:        time.Now,
		valuation:  newTableCache[domain.Fundamentals](),
		dayTrading: newTableCache[float64](),
	}
}

// History returns daily bars for a provider symbol, oldest first. A non-zero
// end requests the HistoryRange window ending on that date instead of the
// most recent one, and drops any bar after it.
func (c *Client) History(ctx context.Context, symbol string, end time.Time) ([]domain.PriceBar, error) {
	q := url.Values{"interval": {"1d"}}
	if end.IsZero() {
		q.Set("range", c.cfg.HistoryRange)
	} else {
		last := domain.Day(end).AddDate(0, 0, 1)
		q.Set("period1", strconv.FormatInt(historyStart(last, c.cfg.HistoryRange).Unix(), 10))
		q.Set("period2", strconv.FormatInt(last.Unix(), 10))
	}
	var resp chartResponse
	if err := c.http.GetJSON(ctx, c.cfg.ChartURL+"/"+url.PathEscape(symbol)+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	bars, err := resp.bars()
	if err != nil {
		return nil, apperrors.NewMarketDataError(symbol, err)
	}
	return domain.BarsThrough(bars, end), nil
}

// historyStart steps back from end by a provider range such as "6mo", "1y",
// "3wk" or "90d". Unknown ranges fall back to six months.
func historyStart(end time.Time, r string) time.Time {
	r = strings.TrimSpace(r)
	for _, unit := range []struct {
		suffix string
		step   func(n int) time.Time
	}{
		{"mo", func(n int) time.Time { return end.AddDate(0, -n, 0) }},
		{"wk", func(n int) time.Time { return end.AddDate(0, 0, -7*n) }},
		{"y", func(n int) time.Time { return end.AddDate(-n, 0, 0) }},
		{"d", func(n int) time.Time { return end.AddDate(0, 0, -n) }},
	} {
		if num, ok := strings.CutSuffix(r, unit.suffix); ok {
			if n, err := strconv.Atoi(num); err == nil && n > 0 {
				return unit.step(n)
			}
		}
	}
	return end.AddDate(0, -6, 0)
}

// TradingCalendar returns the most recent n trading dates, ascending, derived
// from the benchmark index history.
func (c *Client) TradingCalendar(ctx context.Context, n int) ([]time.Time, error) {
	ctx, span := c.tracer.Start(ctx, "market.TradingCalendar")
	defer span.End()

	bars, err := c.History(ctx, c.cfg.CalendarSymbol, time.Time{})
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	if len(bars) == 0 {
		return nil, apperrors.NewMarketDataError("calendar symbol "+c.cfg.CalendarSymbol+" has no history", nil)
	}
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	calendar := make([]time.Time, len(bars))
	for i, b := range bars {
		calendar[i] = b.Date
	}
	span.SetAttributes(attribute.Int("days", len(calendar)))
	return calendar, nil
}

// Quote assembles bars, fundamentals and day-trade ratios for one stock as of
// evalDate; a zero evalDate means the latest session. Fundamentals and
// day-trade figures are best effort; only missing bars fail.
func (c *Client) Quote(ctx context.Context, code string, market domain.Market, evalDate time.Time) (domain.MarketQuote, error) {
	ctx, span := c.tracer.Start(ctx, "market.Quote", trace.WithAttributes(attribute.String("stock", code)))
	defer span.End()

	quote := domain.MarketQuote{Code: code}
	bars, err := c.History(ctx, code+market.TickerSuffix(), evalDate)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return quote, err
	}
	if len(bars) == 0 {
		return quote, apperrors.NewMarketDataError(fmt.Sprintf("no price history for %s", code), nil)
	}
	quote.Bars = bars

	last := bars[len(bars)-1].Date
	if vals, err := c.valuations(ctx, last); err != nil {
		c.logger.WarnContext(ctx, "valuation table unavailable",
			slog.String("date", domain.DateKey(last)),
			slog.String("error", err.Error()))
	} else {
		quote.Fundamentals = vals[code]
	}

	quote.DayTrade = c.dayTrade(ctx, code, bars)
	return quote, nil
}

// dayTrade computes today's day-trade share of volume and the average of the
// preceding sessions.
func (c *Client) dayTrade(ctx context.Context, code string, bars []domain.PriceBar) domain.DayTrade {
	var dt domain.DayTrade
	start := max(0, len(bars)-1-dayTradeAverageDays)

	var sum float64
	var n int
	for i := len(bars) - 1; i >= start; i-- {
		bar := bars[i]
		if bar.Volume <= 0 {
			continue
		}
		table, err := c.dayTradeTable(ctx, bar.Date)
		if err != nil {
			c.logger.WarnContext(ctx, "day-trade table unavailable",
				slog.String("date", domain.DateKey(bar.Date)),
				slog.String("error", err.Error()))
			continue
		}
		shares, ok := table[code]
		if !ok {
			continue
		}
		pct := shares / bar.Volume * 100
		if i == len(bars)-1 {
			dt.Today = pct
			dt.Reported = true
			continue
		}
		sum += pct
		n++
	}
	if n > 0 {
		dt.Avg6 = sum / float64(n)
	}
	return dt
}

func (c *Client) valuations(ctx context.Context, date time.Time) (map[string]domain.Fundamentals, error) {
	return cachedTable(ctx, c, c.valuation, "valuation", date, func(ctx context.Context) (map[string]domain.Fundamentals, error) {
		q := url.Values{"response": {"json"}, "date": {date.Format("20060102")}, "selectType": {"ALL"}}
		var resp exchangeResponse
		if err := c.http.GetJSON(ctx, c.cfg.ValuationURL+"?"+q.Encode(), &resp); err != nil {
			return nil, err
		}
		if err := resp.published(); err != nil {
			return nil, err
		}
		return valuations(resp), nil
	})
}

func (c *Client) dayTradeTable(ctx context.Context, date time.Time) (map[string]float64, error) {
	return cachedTable(ctx, c, c.dayTrading, "daytrade", date, func(ctx context.Context) (map[string]float64, error) {
		q := url.Values{"response": {"json"}, "date": {date.Format("20060102")}, "selectType": {"All"}}
		var resp exchangeResponse
		if err := c.http.GetJSON(ctx, c.cfg.DayTradeURL+"?"+q.Encode(), &resp); err != nil {
			return nil, err
		}
		if err := resp.published(); err != nil {
			return nil, err
		}
		return dayTradeShares(resp), nil
	})
}

// cachedTable serves an exchange table for date from cache, fetching it at
// most once across concurrent callers. Empty tables count as unpublished.
// Failures are remembered until RetryFailedAfter elapses, except when the
// caller's context ended, which says nothing about the provider.
func cachedTable[V any](ctx context.Context, c *Client, cache *tableCache[V], kind string, date time.Time,
	fetch func(context.Context) (map[string]V, error)) (map[string]V, error) {
	key := domain.DateKey(date)
	if e, ok := cache.get(key, c.now()); ok {
		return e.table, e.err
	}

	v, _, _ := c.group.Do(kind+":"+key, func() (any, error) {
		table, err := fetch(ctx)
		if err == nil && len(table) == 0 {
			err = errNotPublished
		}
		if err != nil {
			e := tableEntry[V]{err: err}
			if ctx.Err() == nil && c.cfg.RetryFailedAfter > 0 {
				e.expires = c.now().Add(c.cfg.RetryFailedAfter)
				cache.put(key, e)
			}
			return e, nil
		}
		e := tableEntry[V]{table: table}
		cache.put(key, e)
		return e, nil
	})
	e := v.(tableEntry[V])
	return e.table, e.err
}
