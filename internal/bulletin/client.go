// Package bulletin reads the exchanges' daily attention bulletins and
// disposal announcements.
package bulletin

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/M1229012/Stock-V116-sub000/internal/config"
	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
	"github.com/M1229012/Stock-V116-sub000/internal/infrastructure"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

const tracerName = "github.com/M1229012/Stock-V116-sub000/internal/bulletin"

type twseResponse struct {
	Stat string `json:"stat"`
	table
}

type tpexResponse struct {
	Stat   string  `json:"stat"`
	Tables []table `json:"tables"`
}

// Client fetches TWSE and TPEx announcements.
type Client struct {
	http   *infrastructure.HTTPClient
	cfg    config.BulletinConfig
	tracer trace.Tracer
	logger *slog.Logger
}

// NewClient creates a bulletin client.
func NewClient(cfg config.BulletinConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "bulletin"))
	return &Client{
		http: infrastructure.NewHTTPClient(infrastructure.HTTPClientOptions{
			Timeout:    cfg.Timeout,
			RPS:        cfg.RPS,
			Burst:      cfg.Burst,
			MaxRetries: cfg.MaxRetries,
		}, logger),
		cfg:    cfg,
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}
}

// Attention returns both markets' attention citations published on date.
func (c *Client) Attention(ctx context.Context, date time.Time) ([]domain.LogRow, error) {
	ctx, span := c.tracer.Start(ctx, "bulletin.Attention",
		trace.WithAttributes(attribute.String("date", domain.DateKey(date))))
	defer span.End()

	var twse, tpex []domain.LogRow
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		twse, err = c.twseAttention(gctx, date)
		return err
	})
	g.Go(func() error {
		var err error
		tpex, err = c.tpexAttention(gctx, date)
		return err
	})
	if err := g.Wait(); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	rows := append(twse, tpex...)
	span.SetAttributes(attribute.Int("rows", len(rows)))
	c.logger.InfoContext(ctx, "attention bulletin fetched",
		slog.String("date", domain.DateKey(date)),
		slog.Int("twse", len(twse)),
		slog.Int("tpex", len(tpex)))
	return rows, nil
}

// DisposalPeriods returns disposal announcements published in [from, to].
func (c *Client) DisposalPeriods(ctx context.Context, from, to time.Time) ([]domain.DisposalPeriod, error) {
	ctx, span := c.tracer.Start(ctx, "bulletin.DisposalPeriods")
	defer span.End()

	var twse, tpex []domain.DisposalPeriod
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		twse, err = c.twseDisposal(gctx, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		tpex, err = c.tpexDisposal(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	periods := append(twse, tpex...)
	span.SetAttributes(attribute.Int("periods", len(periods)))
	c.logger.InfoContext(ctx, "disposal announcements fetched",
		slog.String("from", domain.DateKey(from)),
		slog.String("to", domain.DateKey(to)),
		slog.Int("periods", len(periods)))
	return periods, nil
}

func (c *Client) twseAttention(ctx context.Context, date time.Time) ([]domain.LogRow, error) {
	day := date.Format("20060102")
	resp, err := c.fetchTWSE(ctx, c.cfg.TWSEAttentionURL, url.Values{
		"response":  {"json"},
		"querytype": {"1"},
		"startDate": {day},
		"endDate":   {day},
	})
	if err != nil || resp == nil {
		return nil, err
	}
	rows, err := attentionRows(resp.table, domain.MarketTWSE, date)
	if err != nil {
		return nil, apperrors.NewParsingError("twse attention bulletin", err)
	}
	return rows, nil
}

func (c *Client) twseDisposal(ctx context.Context, from, to time.Time) ([]domain.DisposalPeriod, error) {
	resp, err := c.fetchTWSE(ctx, c.cfg.TWSEDisposalURL, url.Values{
		"response":  {"json"},
		"startDate": {from.Format("20060102")},
		"endDate":   {to.Format("20060102")},
	})
	if err != nil || resp == nil {
		return nil, err
	}
	periods, err := disposalPeriods(resp.table)
	if err != nil {
		return nil, apperrors.NewParsingError("twse disposal announcements", err)
	}
	return periods, nil
}

func (c *Client) tpexAttention(ctx context.Context, date time.Time) ([]domain.LogRow, error) {
	tables, err := c.fetchTPEx(ctx, c.cfg.TPExAttentionURL, url.Values{
		"response": {"json"},
		"date":     {date.Format("2006/01/02")},
	})
	if err != nil {
		return nil, err
	}
	var rows []domain.LogRow
	for _, t := range tables {
		r, err := attentionRows(t, domain.MarketTPEx, date)
		if err != nil {
			return nil, apperrors.NewParsingError("tpex attention bulletin", err)
		}
		rows = append(rows, r...)
	}
	return rows, nil
}

func (c *Client) tpexDisposal(ctx context.Context, from, to time.Time) ([]domain.DisposalPeriod, error) {
	tables, err := c.fetchTPEx(ctx, c.cfg.TPExDisposalURL, url.Values{
		"response":  {"json"},
		"startDate": {from.Format("2006/01/02")},
		"endDate":   {to.Format("2006/01/02")},
	})
	if err != nil {
		return nil, err
	}
	var periods []domain.DisposalPeriod
	for _, t := range tables {
		p, err := disposalPeriods(t)
		if err != nil {
			return nil, apperrors.NewParsingError("tpex disposal announcements", err)
		}
		periods = append(periods, p...)
	}
	return periods, nil
}

// fetchTWSE returns nil without error when the exchange reports no data.
func (c *Client) fetchTWSE(ctx context.Context, base string, q url.Values) (*twseResponse, error) {
	var resp twseResponse
	if err := c.http.GetJSON(ctx, base+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if !strings.EqualFold(resp.Stat, "OK") {
		if len(resp.Data) == 0 {
			c.logger.DebugContext(ctx, "twse feed has no data", slog.String("stat", resp.Stat))
			return nil, nil
		}
		return nil, apperrors.NewParsingError(fmt.Sprintf("twse feed stat %q", resp.Stat), nil)
	}
	return &resp, nil
}

func (c *Client) fetchTPEx(ctx context.Context, base string, q url.Values) ([]table, error) {
	var resp tpexResponse
	if err := c.http.GetJSON(ctx, base+"?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if !strings.EqualFold(resp.Stat, "ok") && len(resp.Tables) == 0 {
		c.logger.DebugContext(ctx, "tpex feed has no data", slog.String("stat", resp.Stat))
		return nil, nil
	}
	return resp.Tables, nil
}
