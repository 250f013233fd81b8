package services

import (
	"log/slog"
	"sync"
	"time"

	"github.com/M1229012/Stock-V116-sub000/internal/risk"
	"github.com/M1229012/Stock-V116-sub000/internal/watch"
)

// Report is one completed evaluation.
type Report struct {
	EvalDate    time.Time          `json:"eval_date"`
	GeneratedAt time.Time          `json:"generated_at"`
	Trigger     string             `json:"trigger"`
	Ingested    int                `json:"ingested"`
	Summary     map[risk.Level]int `json:"summary"`
	Rows        []watch.Row        `json:"rows"`
}

// Values renders the rows in watch.Header order.
func (r *Report) Values() [][]string {
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Values()
	}
	return out
}

func summarize(rows []watch.Row) map[risk.Level]int {
	summary := map[risk.Level]int{risk.LevelHigh: 0, risk.LevelMedium: 0, risk.LevelLow: 0}
	for _, r := range rows {
		summary[r.Risk.Level]++
	}
	return summary
}

// ReportService holds the latest report in memory.
type ReportService struct {
	mu     sync.RWMutex
	latest *Report
	logger *slog.Logger
}

// NewReportService creates an empty report cache.
func NewReportService(logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{logger: logger.With(slog.String("service", "report"))}
}

// Publish replaces the latest report.
func (s *ReportService) Publish(r *Report) {
	s.mu.Lock()
	s.latest = r
	s.mu.Unlock()

	s.logger.Info("report published",
		slog.Time("eval_date", r.EvalDate),
		slog.Int("rows", len(r.Rows)))
}

// Latest returns the most recent report, optionally narrowed to one risk
// level. The returned report is a copy.
func (s *ReportService) Latest(level risk.Level) (*Report, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil {
		return nil, ErrNoReport
	}

	out := *latest
	out.Rows = make([]watch.Row, 0, len(latest.Rows))
	for _, r := range latest.Rows {
		if level == "" || r.Risk.Level == level {
			out.Rows = append(out.Rows, r)
		}
	}
	return &out, nil
}
