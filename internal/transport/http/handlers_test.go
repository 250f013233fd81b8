package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
	"github.com/M1229012/Stock-V116-sub000/internal/risk"
	"github.com/M1229012/Stock-V116-sub000/internal/services"
	"github.com/M1229012/Stock-V116-sub000/internal/simulator"
	"github.com/M1229012/Stock-V116-sub000/internal/watch"
)

type fakeScanner struct {
	running atomic.Bool
	calls   atomic.Int32
}

func (f *fakeScanner) Run(context.Context, string) (*services.Report, error) {
	f.calls.Add(1)
	return &services.Report{}, nil
}

func (f *fakeScanner) Running() bool { return f.running.Load() }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func publishedReports() *services.ReportService {
	reports := services.NewReportService(quietLogger())
	reports.Publish(&services.Report{
		EvalDate: time.Date(2024, 10, 17, 0, 0, 0, 0, time.UTC),
		Rows: []watch.Row{
			{Code: "3324", Name: "雙鴻", Simulation: simulator.Result{Status: simulator.StatusEstimated, Days: 1}, Risk: risk.Assessment{Level: risk.LevelHigh}},
			{Code: "2330", Name: "台積電", Simulation: simulator.Result{Status: simulator.StatusNotSimulable}, Risk: risk.Assessment{Level: risk.LevelMedium}},
		},
	})
	return reports
}

func newRouter(reports ReportProvider, scanner Scanner, scan *ScanHandler) chi.Router {
	eh := apperrors.NewErrorHandler(quietLogger())
	r := chi.NewRouter()
	r.Mount("/api/report", NewReportHandler(reports, eh, quietLogger()).Routes())
	if scan == nil {
		scan = NewScanHandler(scanner, nil, eh, quietLogger())
	}
	r.Mount("/api/scan", scan.Routes())
	r.Mount("/api/health", NewHealthHandler("1.16.0", scanner, reports).Routes())
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetReport(t *testing.T) {
	r := newRouter(publishedReports(), &fakeScanner{}, nil)

	rec := get(t, r, "/api/report?level="+url.QueryEscape("高"))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Rows []struct {
			Code string `json:"code"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "3324", body.Rows[0].Code)

	rec = get(t, r, "/api/report?format=table")
	require.Equal(t, http.StatusOK, rec.Code)
	var table TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	assert.Equal(t, "2024-10-17", table.EvalDate)
	assert.Equal(t, watch.Header, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "N/A", table.Rows[1][8])

	rec = get(t, r, "/api/report?format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "disposal_watch_2024-10-17.csv")
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(rec.Body.Bytes(), []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, watch.Header, records[0])
	assert.Equal(t, "3324", records[1][0])
}

func TestGetReportErrors(t *testing.T) {
	tests := []struct {
		name    string
		reports ReportProvider
		target  string
		status  int
	}{
		{"bad level", publishedReports(), "/api/report?level=extreme", http.StatusBadRequest},
		{"bad format", publishedReports(), "/api/report?format=xlsx", http.StatusBadRequest},
		{"no report yet", services.NewReportService(quietLogger()), "/api/report", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newRouter(tt.reports, &fakeScanner{}, nil), tt.target)
			assert.Equal(t, tt.status, rec.Code)

			var problem map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.EqualValues(t, tt.status, problem["status"])
		})
	}
}

func TestStartScan(t *testing.T) {
	scanner := &fakeScanner{}
	eh := apperrors.NewErrorHandler(quietLogger())
	var tasks sync.WaitGroup
	var started atomic.Int32
	run := func(ctx context.Context, task func(context.Context)) {
		started.Add(1)
		tasks.Add(1)
		go func() {
			defer tasks.Done()
			task(ctx)
		}()
	}
	scan := NewScanHandler(scanner, run, eh, quietLogger())
	r := newRouter(publishedReports(), scanner, scan)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scan", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"status":"started","trigger":"api"}`, rec.Body.String())

	tasks.Wait()
	assert.EqualValues(t, 1, started.Load())
	assert.EqualValues(t, 1, scanner.calls.Load())

	scanner.running.Store(true)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scan", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.EqualValues(t, 1, started.Load())
	assert.EqualValues(t, 1, scanner.calls.Load())
}

func TestHealthCheck(t *testing.T) {
	scanner := &fakeScanner{}
	scanner.running.Store(true)

	rec := get(t, newRouter(publishedReports(), scanner, nil), "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "1.16.0", health.Version)
	assert.True(t, health.ScanRunning)
	assert.Equal(t, "2024-10-17", health.LastEvalDate)

	rec = get(t, newRouter(services.NewReportService(quietLogger()), &fakeScanner{}, nil), "/api/health")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Empty(t, health.LastEvalDate)
}
