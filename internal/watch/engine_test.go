package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M1229012/Stock-V116-sub000/internal/clause"
	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
	"github.com/M1229012/Stock-V116-sub000/internal/risk"
	"github.com/M1229012/Stock-V116-sub000/internal/simulator"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

type fakeQuotes struct {
	mu     sync.Mutex
	quotes map[string]domain.MarketQuote
	errs   map[string]error
	calls  []string
	dates  []time.Time
}

func (f *fakeQuotes) Quote(_ context.Context, code string, _ domain.Market, evalDate time.Time) (domain.MarketQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, code)
	f.dates = append(f.dates, evalDate)
	if err := f.errs[code]; err != nil {
		return domain.MarketQuote{}, err
	}
	return f.quotes[code], nil
}

// tradingDays returns n consecutive weekdays starting at 2024-01-01.
func tradingDays(n int) []time.Time {
	out := make([]time.Time, 0, n)
	for d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); len(out) < n; d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

var sixInThirty = simulator.Track{Name: "最近30個營業日內6日", Window: 30, Threshold: 6}

func newEngine(t *testing.T, quotes QuoteSource, opts Options, tracks ...simulator.Track) *Engine {
	t.Helper()
	if len(tracks) == 0 {
		tracks = simulator.DefaultTracks
	}
	rules := clause.DefaultRules()
	sim, err := simulator.New(tracks, rules, simulator.DefaultWindowSize, nil)
	require.NoError(t, err)
	return NewEngine(rules, sim, risk.NewScorer(risk.DefaultParams(), nil), quotes, opts, nil)
}

// cite builds log rows for code on the given 1-based calendar positions.
func cite(calendar []time.Time, code, name, text string, days ...int) []domain.LogRow {
	rows := make([]domain.LogRow, len(days))
	for i, d := range days {
		rows[i] = domain.LogRow{
			Date:       calendar[d-1],
			Market:     domain.MarketTWSE,
			Code:       code,
			Name:       name,
			ClauseText: text,
		}
	}
	return rows
}

func flatBars(n int, close, volume float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, n)
	for i := range bars {
		bars[i] = domain.PriceBar{Close: close, Open: close, High: close, Low: close, Volume: volume}
	}
	return bars
}

func TestEvaluateFourOccurrences(t *testing.T) {
	calendar := tradingDays(30)
	snap := Snapshot{
		Calendar: calendar,
		Log:      cite(calendar, "3324", "雙鴻", "第3款", 5, 12, 19, 26),
		EvalDate: calendar[29],
	}

	rows, err := newEngine(t, nil, Options{Concurrency: 2}, sixInThirty).Evaluate(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "3324", row.Code)
	assert.Equal(t, "雙鴻", row.Name)
	assert.Equal(t, 4, row.Count30)
	assert.Equal(t, 1, row.Count10)
	assert.Equal(t, 0, row.Streak)
	assert.Equal(t, calendar[25], row.LastDate)
	assert.Len(t, row.Bits30, 30)
	assert.Equal(t, "0000010000", row.Bits10)

	assert.Equal(t, simulator.StatusEstimated, row.Simulation.Status)
	assert.Equal(t, 2, row.Simulation.Days)
	assert.Equal(t, "2", row.EstimatedDays())
	require.NotNil(t, row.Simulation.Track)
	assert.Equal(t, 6, row.Simulation.Track.Threshold)
	assert.Contains(t, row.Simulation.Reason, "最近30個營業日內6日")

	assert.Equal(t, risk.LevelMedium, row.Risk.Level)
	assert.Equal(t, "再2日可能處置", row.Risk.Trigger)
	assert.False(t, row.Risk.HasQuote)
	assert.False(t, row.Degraded)
}

func TestEvaluateSpecialRiskOnEvaluationDay(t *testing.T) {
	calendar := tradingDays(30)
	log := cite(calendar, "6202", "盛群", "第1款", 3, 8)
	log = append(log, cite(calendar, "6202", "盛群", "第14款", 30)...)

	rows, err := newEngine(t, nil, Options{}).Evaluate(context.Background(), Snapshot{
		Calendar: calendar,
		Log:      log,
		EvalDate: calendar[29],
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, simulator.StatusNotSimulable, rows[0].Simulation.Status)
	assert.Equal(t, "N/A", rows[0].EstimatedDays())
	assert.Equal(t, risk.LevelHigh, rows[0].Risk.Level)
	assert.Contains(t, rows[0].Risk.Trigger, "特殊風險")
	// Clause 14 alone does not count toward accumulation.
	assert.Equal(t, 2, rows[0].Count30)
}

func TestEvaluateExcludesDisposalDays(t *testing.T) {
	calendar := tradingDays(30)
	snap := Snapshot{
		Calendar: calendar,
		Log:      cite(calendar, "2330", "台積電", "第1款", 12, 20),
		Periods: []domain.DisposalPeriod{
			{Code: "2330", Start: calendar[9], End: calendar[14]},
		},
		EvalDate: calendar[29],
	}

	rows, err := newEngine(t, nil, Options{}).Evaluate(context.Background(), snap)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, 1, row.Count30)
	assert.Equal(t, byte('0'), row.Bits30[11])
	assert.Equal(t, byte('1'), row.Bits30[19])
	// The excluded citation still marks the stock as a candidate.
	assert.Equal(t, calendar[19], row.LastDate)
}

func TestEvaluateSafeHarborDropsDaysBeforeRelease(t *testing.T) {
	calendar := tradingDays(30)
	log := cite(calendar, "2603", "長榮", "第1款", 2, 4, 6, 8, 25)
	snap := Snapshot{
		Calendar: calendar,
		Log:      log,
		Periods:  []domain.DisposalPeriod{{Code: "2603", Start: calendar[9], End: calendar[18]}},
		EvalDate: calendar[29],
	}

	plain, err := newEngine(t, nil, Options{}, sixInThirty).Evaluate(context.Background(), snap)
	require.NoError(t, err)
	harbor, err := newEngine(t, nil, Options{SafeHarbor: true}, sixInThirty).Evaluate(context.Background(), snap)
	require.NoError(t, err)

	require.Len(t, plain, 1)
	require.Len(t, harbor, 1)
	assert.Equal(t, 1, plain[0].Simulation.Days)
	assert.Equal(t, 5, harbor[0].Simulation.Days)

	assert.Equal(t, 5, plain[0].Count30)
	assert.Equal(t, "010101010000000000000000100000", plain[0].Bits30)

	// Days before the release no longer count, in the row as in the simulation.
	assert.Equal(t, 1, harbor[0].Count30)
	assert.Equal(t, 1, harbor[0].Count10)
	assert.Equal(t, 0, harbor[0].Streak)
	assert.Equal(t, "000000000000000000000000100000", harbor[0].Bits30)
	assert.Equal(t, "0000100000", harbor[0].Bits10)
	assert.Equal(t, calendar[24], harbor[0].LastDate)
}

func TestEvaluateSafeHarborStreak(t *testing.T) {
	calendar := tradingDays(30)
	snap := Snapshot{
		Calendar: calendar,
		Log:      cite(calendar, "2603", "長榮", "第1款", 26, 27, 28, 29, 30),
		Periods:  []domain.DisposalPeriod{{Code: "2603", Start: calendar[20], End: calendar[26]}},
		EvalDate: calendar[29],
	}

	plain, err := newEngine(t, nil, Options{}, sixInThirty).Evaluate(context.Background(), snap)
	require.NoError(t, err)
	harbor, err := newEngine(t, nil, Options{SafeHarbor: true}, sixInThirty).Evaluate(context.Background(), snap)
	require.NoError(t, err)

	require.Len(t, plain, 1)
	require.Len(t, harbor, 1)
	// Positions 26 and 27 fall inside the disposal period either way.
	assert.Equal(t, 3, plain[0].Streak)
	assert.Equal(t, 3, harbor[0].Streak)
	assert.Equal(t, 3, harbor[0].Count10)
}

func TestEvaluateWithQuotes(t *testing.T) {
	calendar := tradingDays(30)
	quotes := &fakeQuotes{
		quotes: map[string]domain.MarketQuote{
			"3324": {Code: "3324", Bars: flatBars(61, 100, 1000)},
		},
		errs: map[string]error{"2454": errors.New("timeout")},
	}
	log := cite(calendar, "3324", "雙鴻", "第3款", 5, 12, 19, 26)
	log = append(log, cite(calendar, "2454", "聯發科", "第2款", 29)...)

	rows, err := newEngine(t, quotes, Options{Concurrency: 4}).Evaluate(context.Background(), Snapshot{
		Calendar: calendar,
		Log:      log,
		EvalDate: calendar[29],
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.ElementsMatch(t, []string{"3324", "2454"}, quotes.calls)

	withQuote := rows[0]
	assert.Equal(t, "3324", withQuote.Code)
	assert.True(t, withQuote.Risk.HasQuote)
	assert.InDelta(t, 100, withQuote.Risk.Price, 1e-9)
	assert.InDelta(t, 132, withQuote.Risk.WarningPrice, 1e-9)
	assert.InDelta(t, 5000, withQuote.Risk.WarningVolume, 1e-9)
	assert.False(t, withQuote.Degraded)

	failed := rows[1]
	assert.Equal(t, "2454", failed.Code)
	assert.True(t, failed.Degraded)
	assert.False(t, failed.Risk.HasQuote)
	values := failed.Values()
	assert.Empty(t, values[12])
	assert.Empty(t, values[13])
}

// datedBars builds one bar per day; closes step up after pivot.
func datedBars(days []time.Time, pivot time.Time, before, after float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, len(days))
	for i, d := range days {
		c := before
		if d.After(pivot) {
			c = after
		}
		bars[i] = domain.PriceBar{Date: d, Close: c, Open: c, High: c, Low: c, Volume: 1000}
	}
	return bars
}

func TestEvaluatePinnedDateIgnoresLaterBars(t *testing.T) {
	calendar := tradingDays(40)
	evalDate := calendar[34]
	quotes := &fakeQuotes{
		quotes: map[string]domain.MarketQuote{
			// A source that ignores the evaluation date.
			"3324": {
				Code:         "3324",
				Bars:         datedBars(calendar, evalDate, 100, 200),
				Fundamentals: domain.Fundamentals{PE: 30, PB: 4},
				DayTrade:     domain.DayTrade{Today: 55, Avg6: 10, Reported: true},
			},
			"2330": {
				Code:         "2330",
				Bars:         datedBars(calendar[:35], evalDate, 50, 50),
				Fundamentals: domain.Fundamentals{PE: 12, PB: 2},
				DayTrade:     domain.DayTrade{Today: 8, Avg6: 6, Reported: true},
			},
		},
	}
	log := cite(calendar, "3324", "雙鴻", "第3款", 30)
	log = append(log, cite(calendar, "2330", "台積電", "第1款", 31)...)

	rows, err := newEngine(t, quotes, Options{}).Evaluate(context.Background(), Snapshot{
		Calendar: calendar,
		Log:      log,
		EvalDate: evalDate,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Len(t, quotes.dates, 2)
	for _, d := range quotes.dates {
		assert.Equal(t, evalDate, d)
	}

	byCode := map[string]Row{}
	for _, r := range rows {
		byCode[r.Code] = r
	}

	late := byCode["3324"].Risk
	require.True(t, late.HasQuote)
	assert.InDelta(t, 100, late.Price, 1e-9)
	// Figures delivered with the later bars belong to another session.
	assert.Zero(t, late.PE)
	assert.Zero(t, late.DayTradePct)
	assert.False(t, late.HasDayTrade)

	onTime := byCode["2330"].Risk
	require.True(t, onTime.HasQuote)
	assert.InDelta(t, 50, onTime.Price, 1e-9)
	assert.InDelta(t, 12, onTime.PE, 1e-9)
	assert.InDelta(t, 8, onTime.DayTradePct, 1e-9)
	assert.True(t, onTime.HasDayTrade)
}

func TestEvaluateCandidateSelection(t *testing.T) {
	calendar := tradingDays(40)
	log := cite(calendar, "1101", "台泥", "第1款", 3)                 // before the window
	log = append(log, cite(calendar, "2317", "鴻海", "第9款", 35)...) // informational only
	log = append(log, cite(calendar, "2330", "台積電", "第1款", 40)...)

	rows, err := newEngine(t, nil, Options{}).Evaluate(context.Background(), Snapshot{
		Calendar: calendar,
		Log:      log,
		EvalDate: calendar[39],
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "2317", rows[0].Code)
	assert.Equal(t, simulator.StatusUnreachable, rows[0].Simulation.Status)
	assert.Equal(t, "99", rows[0].EstimatedDays())
	assert.Equal(t, 0, rows[0].Count30)

	assert.Equal(t, "2330", rows[1].Code)
	assert.Equal(t, 1, rows[1].Streak)
}

func TestEvaluateMergesDuplicateCitations(t *testing.T) {
	calendar := tradingDays(30)
	log := cite(calendar, "3324", "雙鴻", "第1款", 30)
	log = append(log, cite(calendar, "3324", "雙鴻", "第14款", 30)...)

	rows, err := newEngine(t, nil, Options{}).Evaluate(context.Background(), Snapshot{
		Calendar: calendar,
		Log:      log,
		EvalDate: calendar[29],
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, simulator.StatusNotSimulable, rows[0].Simulation.Status)
}

func TestEvaluateRejectsBadSnapshot(t *testing.T) {
	engine := newEngine(t, nil, Options{})
	calendar := tradingDays(30)

	tests := []struct {
		name string
		snap Snapshot
	}{
		{
			name: "evaluation date missing from calendar",
			snap: Snapshot{Calendar: calendar, EvalDate: calendar[29].AddDate(0, 0, 7)},
		},
		{
			name: "calendar too short",
			snap: Snapshot{Calendar: calendar[:20], EvalDate: calendar[19]},
		},
		{
			name: "calendar not ascending",
			snap: Snapshot{Calendar: append([]time.Time{calendar[5]}, calendar...), EvalDate: calendar[29]},
		},
		{
			name: "disposal period ends before it starts",
			snap: Snapshot{
				Calendar: calendar,
				Periods:  []domain.DisposalPeriod{{Code: "2330", Start: calendar[10], End: calendar[5]}},
				EvalDate: calendar[29],
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Evaluate(context.Background(), tt.snap)
			require.Error(t, err)
			assert.True(t, apperrors.IsContractViolation(err))
		})
	}
}
