// Package notify posts the high-risk part of a report to a Discord webhook.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/M1229012/Stock-V116-sub000/internal/config"
	"github.com/M1229012/Stock-V116-sub000/internal/infrastructure"
	"github.com/M1229012/Stock-V116-sub000/internal/risk"
	"github.com/M1229012/Stock-V116-sub000/internal/scraper"
	"github.com/M1229012/Stock-V116-sub000/internal/watch"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

// maxMessageRunes is Discord's content limit per message.
const maxMessageRunes = 2000

// ConcentrationSource annotates a stock with its large-holder share.
type ConcentrationSource interface {
	Concentration(ctx context.Context, code string) (scraper.Concentration, error)
}

// Discord sends report summaries to a webhook.
type Discord struct {
	http          *infrastructure.HTTPClient
	cfg           config.NotifyConfig
	concentration ConcentrationSource
	logger        *slog.Logger
}

type webhookMessage struct {
	Content string `json:"content"`
}

// NewDiscord creates a notifier. concentration may be nil.
func NewDiscord(cfg config.NotifyConfig, concentration ConcentrationSource, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "notify"))
	return &Discord{
		http: infrastructure.NewHTTPClient(infrastructure.HTTPClientOptions{
			Timeout:    cfg.Timeout,
			MaxRetries: 2,
		}, logger),
		cfg:           cfg,
		concentration: concentration,
		logger:        logger,
	}
}

// Notify posts the 高 rows of an evaluation. Nothing is sent when the
// notifier is disabled or no row is high risk.
func (d *Discord) Notify(ctx context.Context, evalDate time.Time, rows []watch.Row) error {
	if !d.cfg.Enabled {
		return nil
	}
	high := HighRisk(rows)
	if len(high) == 0 {
		d.logger.InfoContext(ctx, "no high risk stocks, skipping notification")
		return nil
	}

	lines := make([]string, 0, len(high)+2)
	lines = append(lines, fmt.Sprintf("**處置預估 %s** 高風險 %d 檔", domain.DateKey(evalDate), len(high)))
	for i, r := range high {
		if i == d.cfg.MaxRows {
			lines = append(lines, fmt.Sprintf("…另有 %d 檔", len(high)-i))
			break
		}
		lines = append(lines, d.line(ctx, r))
	}

	for _, msg := range chunk(lines, maxMessageRunes) {
		if _, err := d.http.PostJSON(ctx, d.cfg.WebhookURL, webhookMessage{Content: msg}); err != nil {
			return fmt.Errorf("failed to post discord message: %w", err)
		}
	}
	d.logger.InfoContext(ctx, "notification sent", slog.Int("stocks", len(high)))
	return nil
}

func (d *Discord) line(ctx context.Context, r watch.Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "`%s` %s | 預估 %s 日", r.Code, r.Name, r.EstimatedDays())
	if r.Risk.Trigger != "" {
		fmt.Fprintf(&b, " | %s", r.Risk.Trigger)
	}
	if r.Risk.HasQuote {
		fmt.Fprintf(&b, " | 價 %.2f 警戒 %.2f", r.Risk.Price, r.Risk.WarningPrice)
	}
	if d.concentration != nil {
		c, err := d.concentration.Concentration(ctx, r.Code)
		if err != nil {
			d.logger.WarnContext(ctx, "concentration lookup failed",
				slog.String("code", r.Code), slog.String("error", err.Error()))
		} else {
			fmt.Fprintf(&b, " | 千張大戶 %.2f%% (%+.2f)", c.LargeHolderPct, c.Change)
		}
	}
	return b.String()
}

// HighRisk returns the 高 rows ordered by fewest estimated days, keeping
// report order among equals.
func HighRisk(rows []watch.Row) []watch.Row {
	var out []watch.Row
	for _, r := range rows {
		if r.Risk.Level == risk.LevelHigh {
			out = append(out, r)
		}
	}
	days := func(r watch.Row) int {
		if r.Simulation.Finite() {
			return r.Simulation.Days
		}
		return watch.UnresolvedDays
	}
	// insertion sort keeps the order stable
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && days(out[j]) < days(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// chunk joins lines into messages no longer than limit runes.
func chunk(lines []string, limit int) []string {
	var (
		out []string
		cur strings.Builder
		n   int
	)
	for _, l := range lines {
		ln := utf8.RuneCountInString(l)
		if n > 0 && n+1+ln > limit {
			out = append(out, cur.String())
			cur.Reset()
			n = 0
		}
		if n > 0 {
			cur.WriteByte('\n')
			n++
		}
		cur.WriteString(l)
		n += ln
	}
	if n > 0 {
		out = append(out, cur.String())
	}
	return out
}
