// Package scraper reads weekly shareholder concentration tables with a
// headless Chrome session.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/M1229012/Stock-V116-sub000/internal/config"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

// ErrNoData is returned when the page has no usable concentration rows.
var ErrNoData = errors.New("no concentration data")

// rowsScript returns every table row as a list of trimmed cell texts.
const rowsScript = `Array.from(document.querySelectorAll('table tr')).map(tr =>
	Array.from(tr.querySelectorAll('th,td')).map(td => td.innerText.trim()))`

// Concentration is the share held by holders of more than 1000 lots.
type Concentration struct {
	Code           string    `json:"code"`
	Date           time.Time `json:"date"`
	LargeHolderPct float64   `json:"large_holder_pct"`
	// Change is the difference from the previous week, in percentage points.
	Change float64 `json:"change"`
}

type fetchFunc func(ctx context.Context, pageURL string) ([][]string, error)

// Scraper drives one shared browser; each lookup opens its own tab.
type Scraper struct {
	cfg    config.ScraperConfig
	fetch  fetchFunc
	logger *slog.Logger

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
}

// New creates a scraper. The browser is started on first use.
func New(cfg config.ScraperConfig, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scraper{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scraper")),
	}
	s.fetch = s.fetchRows
	return s
}

// Concentration looks up the latest weekly figure for code.
func (s *Scraper) Concentration(ctx context.Context, code string) (Concentration, error) {
	pageURL := s.cfg.URL + "?" + url.Values{"stock": {code}}.Encode()

	start := time.Now()
	rows, err := s.fetch(ctx, pageURL)
	if err != nil {
		return Concentration{}, fmt.Errorf("scrape %s: %w", code, err)
	}
	c, err := parseConcentration(rows)
	if err != nil {
		return Concentration{}, fmt.Errorf("scrape %s: %w", code, err)
	}
	c.Code = code

	s.logger.DebugContext(ctx, "concentration scraped",
		slog.String("code", code),
		slog.String("date", domain.DateKey(c.Date)),
		slog.Float64("large_holder_pct", c.LargeHolderPct),
		slog.Duration("elapsed", time.Since(start)))
	return c, nil
}

// Close shuts the browser down.
func (s *Scraper) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelBrowser != nil {
		s.cancelBrowser()
		s.cancelBrowser = nil
		s.browserCtx = nil
	}
}

func (s *Scraper) browser() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browserCtx != nil {
		return s.browserCtx
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", s.cfg.Headless))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelCtx := chromedp.NewContext(allocCtx)
	s.browserCtx = browserCtx
	s.cancelBrowser = func() {
		cancelCtx()
		cancelAlloc()
	}
	return browserCtx
}

func (s *Scraper) fetchRows(ctx context.Context, pageURL string) ([][]string, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browser())
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, s.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var rows [][]string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("table", chromedp.ByQuery),
		chromedp.Evaluate(rowsScript, &rows),
	)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// parseConcentration finds the >1000 lot percentage column and returns the
// two most recent weeks.
func parseConcentration(rows [][]string) (Concentration, error) {
	dateCol, pctCol := -1, -1
	for _, row := range rows {
		for i, cell := range row {
			switch {
			case strings.Contains(cell, "日期"):
				dateCol = i
			case strings.Contains(cell, "1000") && strings.Contains(cell, "百分比"):
				pctCol = i
			}
		}
		if dateCol >= 0 && pctCol >= 0 {
			break
		}
		dateCol, pctCol = -1, -1
	}
	if dateCol < 0 || pctCol < 0 {
		return Concentration{}, fmt.Errorf("%w: header not found", ErrNoData)
	}

	type week struct {
		date time.Time
		pct  float64
	}
	var weeks []week
	for _, row := range rows {
		if len(row) <= dateCol || len(row) <= pctCol {
			continue
		}
		raw := strings.TrimSpace(row[dateCol])
		if len(raw) != 8 {
			continue
		}
		date, err := domain.ParseDate(raw)
		if err != nil {
			continue
		}
		pct, err := parsePercent(row[pctCol])
		if err != nil {
			continue
		}
		weeks = append(weeks, week{date: date, pct: pct})
	}
	if len(weeks) == 0 {
		return Concentration{}, ErrNoData
	}

	sort.Slice(weeks, func(i, j int) bool { return weeks[i].date.After(weeks[j].date) })
	c := Concentration{Date: weeks[0].date, LargeHolderPct: weeks[0].pct}
	if len(weeks) > 1 {
		c.Change = weeks[0].pct - weeks[1].pct
	}
	return c, nil
}

func parsePercent(s string) (float64, error) {
	s = strings.NewReplacer("%", "", ",", "", " ", "").Replace(s)
	return strconv.ParseFloat(s, 64)
}
