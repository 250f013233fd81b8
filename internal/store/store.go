// Package store persists the historical citation log, known disposal periods
// and the generated report, either in a local Excel workbook or in Google
// Sheets.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

// HistoricalLogStore holds one attention citation per (stock, date).
type HistoricalLogStore interface {
	Read(ctx context.Context) ([]domain.LogRow, error)
	Append(ctx context.Context, rows []domain.LogRow) error
}

// PeriodStore keeps disposal periods beyond what the exchanges still publish.
type PeriodStore interface {
	ReadPeriods(ctx context.Context) ([]domain.DisposalPeriod, error)
	AppendPeriods(ctx context.Context, periods []domain.DisposalPeriod) error
}

// ReportSink receives the rendered report of one evaluation.
type ReportSink interface {
	WriteReport(ctx context.Context, report Report) error
}

// Store is everything a scan needs from persistence.
type Store interface {
	HistoricalLogStore
	PeriodStore
	ReportSink
}

// Report is a rendered evaluation; Header is written as the first row.
type Report struct {
	EvalDate time.Time
	Header   []string
	Rows     [][]string
}

// SheetNames names the tabs used by both backends.
type SheetNames struct {
	Log      string
	Disposal string
	Report   string
}

var (
	logHeader    = []string{"日期", "市場", "代號", "名稱", "注意交易資訊"}
	periodHeader = []string{"代號", "名稱", "處置開始", "處置結束"}
)

func logRowCells(r domain.LogRow) []string {
	return []string{domain.DateKey(r.Date), string(r.Market), r.Code, r.Name, r.ClauseText}
}

func periodCells(p domain.DisposalPeriod) []string {
	return []string{p.Code, p.Name, domain.DateKey(p.Start), domain.DateKey(p.End)}
}

func pad(cells []string, n int) []string {
	for len(cells) < n {
		cells = append(cells, "")
	}
	return cells
}

func isHeader(cells []string, header []string) bool {
	return len(cells) > 0 && strings.TrimSpace(cells[0]) == header[0]
}

// parseLogRows decodes sheet rows, skipping the header and blank lines.
func parseLogRows(rows [][]string) ([]domain.LogRow, error) {
	out := make([]domain.LogRow, 0, len(rows))
	for i, cells := range rows {
		if isHeader(cells, logHeader) {
			continue
		}
		cells = pad(cells, len(logHeader))
		if strings.TrimSpace(cells[0]) == "" && strings.TrimSpace(cells[2]) == "" {
			continue
		}
		date, err := domain.ParseDate(cells[0])
		if err != nil {
			return nil, fmt.Errorf("log row %d: %w", i+1, err)
		}
		out = append(out, domain.LogRow{
			Date:       date,
			Market:     domain.Market(strings.TrimSpace(cells[1])),
			Code:       strings.TrimSpace(cells[2]),
			Name:       strings.TrimSpace(cells[3]),
			ClauseText: strings.TrimSpace(cells[4]),
		})
	}
	return out, nil
}

func parsePeriodRows(rows [][]string) ([]domain.DisposalPeriod, error) {
	out := make([]domain.DisposalPeriod, 0, len(rows))
	for i, cells := range rows {
		if isHeader(cells, periodHeader) {
			continue
		}
		cells = pad(cells, len(periodHeader))
		if strings.TrimSpace(cells[0]) == "" {
			continue
		}
		start, err := domain.ParseDate(cells[2])
		if err != nil {
			return nil, fmt.Errorf("disposal row %d: %w", i+1, err)
		}
		end, err := domain.ParseDate(cells[3])
		if err != nil {
			return nil, fmt.Errorf("disposal row %d: %w", i+1, err)
		}
		out = append(out, domain.DisposalPeriod{
			Code:  strings.TrimSpace(cells[0]),
			Name:  strings.TrimSpace(cells[1]),
			Start: start,
			End:   end,
		})
	}
	return out, nil
}

// newPeriods filters out periods already stored.
func newPeriods(existing, incoming []domain.DisposalPeriod) []domain.DisposalPeriod {
	key := func(p domain.DisposalPeriod) string {
		return p.Code + "|" + domain.DateKey(p.Start) + "|" + domain.DateKey(p.End)
	}
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[key(p)] = true
	}
	var out []domain.DisposalPeriod
	for _, p := range incoming {
		if k := key(p); !seen[k] {
			seen[k] = true
			out = append(out, p)
		}
	}
	return out
}
