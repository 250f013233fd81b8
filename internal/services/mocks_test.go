package services

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/M1229012/Stock-V116-sub000/internal/store"
	"github.com/M1229012/Stock-V116-sub000/internal/watch"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

type MockCalendar struct {
	mock.Mock
}

func (m *MockCalendar) TradingCalendar(ctx context.Context, n int) ([]time.Time, error) {
	args := m.Called(ctx, n)
	days, _ := args.Get(0).([]time.Time)
	return days, args.Error(1)
}

type MockBulletin struct {
	mock.Mock
}

func (m *MockBulletin) Attention(ctx context.Context, date time.Time) ([]domain.LogRow, error) {
	args := m.Called(ctx, date)
	rows, _ := args.Get(0).([]domain.LogRow)
	return rows, args.Error(1)
}

func (m *MockBulletin) DisposalPeriods(ctx context.Context, from, to time.Time) ([]domain.DisposalPeriod, error) {
	args := m.Called(ctx, from, to)
	periods, _ := args.Get(0).([]domain.DisposalPeriod)
	return periods, args.Error(1)
}

type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) Evaluate(ctx context.Context, snap watch.Snapshot) ([]watch.Row, error) {
	args := m.Called(ctx, snap)
	rows, _ := args.Get(0).([]watch.Row)
	return rows, args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, evalDate time.Time, rows []watch.Row) error {
	return m.Called(ctx, evalDate, rows).Error(0)
}

// memStore is an in-memory store.Store.
type memStore struct {
	mu      sync.Mutex
	log     []domain.LogRow
	periods []domain.DisposalPeriod
	reports []store.Report
	readErr error
}

func (s *memStore) Read(context.Context) ([]domain.LogRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return append([]domain.LogRow(nil), s.log...), nil
}

func (s *memStore) Append(_ context.Context, rows []domain.LogRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, rows...)
	return nil
}

func (s *memStore) ReadPeriods(context.Context) ([]domain.DisposalPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DisposalPeriod(nil), s.periods...), nil
}

func (s *memStore) AppendPeriods(_ context.Context, periods []domain.DisposalPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = append(s.periods, periods...)
	return nil
}

func (s *memStore) WriteReport(_ context.Context, r store.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) WriteReport(ctx context.Context, r store.Report) error {
	return m.Called(ctx, r).Error(0)
}
