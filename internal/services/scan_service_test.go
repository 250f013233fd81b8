package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/M1229012/Stock-V116-sub000/internal/config"
	"github.com/M1229012/Stock-V116-sub000/internal/risk"
	"github.com/M1229012/Stock-V116-sub000/internal/simulator"
	"github.com/M1229012/Stock-V116-sub000/internal/store"
	"github.com/M1229012/Stock-V116-sub000/internal/watch"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

func date(d int) time.Time {
	return time.Date(2024, 10, d, 0, 0, 0, 0, time.UTC)
}

var (
	testCalendar = []time.Time{date(14), date(15), date(16), date(17)}
	testRows     = []watch.Row{
		{Code: "3324", Name: "雙鴻", Simulation: simulator.Result{Status: simulator.StatusEstimated, Days: 1}, Risk: risk.Assessment{Level: risk.LevelHigh}},
		{Code: "2330", Name: "台積電", Simulation: simulator.Result{Status: simulator.StatusUnreachable}, Risk: risk.Assessment{Level: risk.LevelLow}},
	}
)

type scanFixture struct {
	calendar *MockCalendar
	bulletin *MockBulletin
	engine   *MockEvaluator
	notifier *MockNotifier
	store    *memStore
	reports  *ReportService
}

func newFixture() *scanFixture {
	return &scanFixture{
		calendar: &MockCalendar{},
		bulletin: &MockBulletin{},
		engine:   &MockEvaluator{},
		notifier: &MockNotifier{},
		store:    &memStore{},
		reports:  NewReportService(nil),
	}
}

func (f *scanFixture) service(cfg config.ScanConfig) *ScanService {
	return NewScanService(cfg, 30, ScanDeps{
		Calendar: f.calendar,
		Bulletin: f.bulletin,
		Store:    f.store,
		Engine:   f.engine,
		Notifier: f.notifier,
		Reports:  f.reports,
	}, nil)
}

func scanConfig() config.ScanConfig {
	return config.ScanConfig{Concurrency: 2, Timeout: time.Minute, CalendarDays: 4, Ingest: true}
}

func TestScanRun(t *testing.T) {
	f := newFixture()
	f.store.log = []domain.LogRow{
		{Date: date(16), Market: domain.MarketTWSE, Code: "3324", Name: "雙鴻", ClauseText: "第1款"},
	}
	period := domain.DisposalPeriod{Code: "6202", Start: date(14), End: date(15)}

	f.calendar.On("TradingCalendar", mock.Anything, 4).Return(testCalendar, nil)
	f.bulletin.On("Attention", mock.Anything, date(17)).Return([]domain.LogRow{
		{Date: date(17), Market: domain.MarketTWSE, Code: "3324", Name: "雙鴻", ClauseText: "第1款"},
		{Date: date(17), Market: domain.MarketTWSE, Code: "3324", Name: "雙鴻", ClauseText: "第3款"},
		{Date: date(16), Market: domain.MarketTWSE, Code: "3324", Name: "雙鴻", ClauseText: "第1款"},
	}, nil)
	f.bulletin.On("DisposalPeriods", mock.Anything, date(17).AddDate(0, 0, -30), date(17)).
		Return([]domain.DisposalPeriod{period}, nil)
	f.engine.On("Evaluate", mock.Anything, mock.MatchedBy(func(s watch.Snapshot) bool {
		return s.EvalDate.Equal(date(17)) && len(s.Calendar) == 4 && len(s.Log) == 2 && len(s.Periods) == 1
	})).Return(testRows, nil)
	f.notifier.On("Notify", mock.Anything, date(17), testRows).Return(errors.New("webhook down"))

	report, err := f.service(scanConfig()).Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Ingested)
	assert.Equal(t, "第1款、第3款", f.store.log[1].ClauseText)
	assert.Equal(t, map[risk.Level]int{risk.LevelHigh: 1, risk.LevelMedium: 0, risk.LevelLow: 1}, report.Summary)

	require.Len(t, f.store.reports, 1)
	written := f.store.reports[0]
	assert.Equal(t, watch.Header, written.Header)
	require.Len(t, written.Rows, 2)
	assert.Equal(t, "3324", written.Rows[0][0])
	assert.Equal(t, "99", written.Rows[1][8])

	latest, err := f.reports.Latest("")
	require.NoError(t, err)
	assert.Equal(t, date(17), latest.EvalDate)

	mock.AssertExpectationsForObjects(t, f.calendar, f.bulletin, f.engine, f.notifier)
}

func TestScanPinnedEvalDate(t *testing.T) {
	f := newFixture()
	cfg := scanConfig()
	cfg.EvalDate = "2024-10-16"
	cfg.Ingest = false

	f.calendar.On("TradingCalendar", mock.Anything, 4).Return(testCalendar, nil)
	f.bulletin.On("DisposalPeriods", mock.Anything, mock.Anything, date(16)).Return(nil, errors.New("timeout"))
	f.engine.On("Evaluate", mock.Anything, mock.MatchedBy(func(s watch.Snapshot) bool {
		return s.EvalDate.Equal(date(16)) && len(s.Calendar) == 3
	})).Return([]watch.Row{}, nil)
	f.notifier.On("Notify", mock.Anything, date(16), []watch.Row{}).Return(nil)

	report, err := f.service(cfg).Run(context.Background(), TriggerScheduled)
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
	f.bulletin.AssertNotCalled(t, "Attention", mock.Anything, mock.Anything)
	f.engine.AssertExpectations(t)
}

func TestScanFailures(t *testing.T) {
	t.Run("calendar", func(t *testing.T) {
		f := newFixture()
		f.calendar.On("TradingCalendar", mock.Anything, 4).Return(nil, errors.New("yahoo down"))
		_, err := f.service(scanConfig()).Run(context.Background(), TriggerAPI)
		assert.ErrorContains(t, err, "yahoo down")
	})

	t.Run("empty calendar", func(t *testing.T) {
		f := newFixture()
		f.calendar.On("TradingCalendar", mock.Anything, 4).Return([]time.Time{}, nil)
		_, err := f.service(scanConfig()).Run(context.Background(), TriggerAPI)
		assert.ErrorIs(t, err, ErrEmptyCalendar)
	})

	t.Run("store", func(t *testing.T) {
		f := newFixture()
		f.store.readErr = errors.New("disk gone")
		cfg := scanConfig()
		cfg.Ingest = false
		f.calendar.On("TradingCalendar", mock.Anything, 4).Return(testCalendar, nil)
		f.bulletin.On("DisposalPeriods", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
		_, err := f.service(cfg).Run(context.Background(), TriggerAPI)
		assert.ErrorContains(t, err, "disk gone")
		f.engine.AssertNotCalled(t, "Evaluate", mock.Anything, mock.Anything)
	})

	t.Run("engine", func(t *testing.T) {
		f := newFixture()
		cfg := scanConfig()
		cfg.Ingest = false
		f.calendar.On("TradingCalendar", mock.Anything, 4).Return(testCalendar, nil)
		f.bulletin.On("DisposalPeriods", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
		f.engine.On("Evaluate", mock.Anything, mock.Anything).Return(nil, errors.New("bad calendar"))
		_, err := f.service(cfg).Run(context.Background(), TriggerAPI)
		assert.ErrorContains(t, err, "bad calendar")
		assert.Empty(t, f.store.reports)
		_, err = f.reports.Latest("")
		assert.ErrorIs(t, err, ErrNoReport)
	})
}

func TestScanRejectsConcurrentRun(t *testing.T) {
	f := newFixture()
	release := make(chan struct{})
	started := make(chan struct{})
	f.calendar.On("TradingCalendar", mock.Anything, 4).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil, errors.New("stopped"))

	svc := f.service(scanConfig())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Run(context.Background(), TriggerScheduled)
		done <- err
	}()

	<-started
	assert.True(t, svc.Running())
	_, err := svc.Run(context.Background(), TriggerAPI)
	assert.ErrorIs(t, err, ErrScanRunning)

	close(release)
	assert.Error(t, <-done)
	assert.False(t, svc.Running())
}

func TestScanExports(t *testing.T) {
	f := newFixture()
	cfg := scanConfig()
	cfg.Ingest = false

	f.calendar.On("TradingCalendar", mock.Anything, 4).Return(testCalendar, nil)
	f.bulletin.On("DisposalPeriods", mock.Anything, mock.Anything, date(17)).Return(nil, nil)
	f.engine.On("Evaluate", mock.Anything, mock.Anything).Return(testRows, nil)
	f.notifier.On("Notify", mock.Anything, date(17), testRows).Return(nil)

	broken := &MockSink{}
	broken.On("WriteReport", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	csv := &MockSink{}
	csv.On("WriteReport", mock.Anything, mock.MatchedBy(func(r store.Report) bool {
		return r.EvalDate.Equal(date(17)) && len(r.Rows) == 2
	})).Return(nil)

	svc := NewScanService(cfg, 30, ScanDeps{
		Calendar: f.calendar,
		Bulletin: f.bulletin,
		Store:    f.store,
		Engine:   f.engine,
		Notifier: f.notifier,
		Exports:  []store.ReportSink{broken, csv},
	}, nil)

	_, err := svc.Run(context.Background(), TriggerScheduled)
	require.NoError(t, err)
	require.Len(t, f.store.reports, 1)
	mock.AssertExpectationsForObjects(t, broken, csv)
}
