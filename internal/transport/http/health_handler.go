package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status       string    `json:"status"`
	Version      string    `json:"version"`
	Timestamp    time.Time `json:"timestamp"`
	Uptime       string    `json:"uptime"`
	ScanRunning  bool      `json:"scan_running"`
	LastEvalDate string    `json:"last_eval_date,omitempty"`
}

// HealthHandler reports service health.
type HealthHandler struct {
	version string
	started time.Time
	scanner Scanner
	reports ReportProvider
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string, scanner Scanner, reports ReportProvider) *HealthHandler {
	return &HealthHandler{
		version: version,
		started: time.Now(),
		scanner: scanner,
		reports: reports,
	}
}

// Routes mounts the health endpoints.
func (h *HealthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.HealthCheck)
	return r
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:      "ok",
		Version:     h.version,
		Timestamp:   time.Now(),
		Uptime:      time.Since(h.started).Round(time.Second).String(),
		ScanRunning: h.scanner.Running(),
	}
	if report, err := h.reports.Latest(""); err == nil {
		resp.LastEvalDate = domain.DateKey(report.EvalDate)
	}
	render.JSON(w, r, resp)
}
