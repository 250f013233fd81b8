package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
	"github.com/M1229012/Stock-V116-sub000/internal/services"
)

// ScanResponse acknowledges a scan request.
type ScanResponse struct {
	Status  string `json:"status"`
	Trigger string `json:"trigger"`
}

// Runner starts task in the background. The context handed to task ends
// when the owner shuts down, and the owner waits for task before releasing
// what it uses.
type Runner func(ctx context.Context, task func(context.Context))

// ScanHandler starts scans on demand.
type ScanHandler struct {
	scanner      Scanner
	run          Runner
	errorHandler *apperrors.ErrorHandler
	logger       *slog.Logger
}

// NewScanHandler creates a scan handler. A nil run starts scans on plain
// goroutines that nothing waits for.
func NewScanHandler(scanner Scanner, run Runner, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *ScanHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if run == nil {
		run = func(ctx context.Context, task func(context.Context)) { go task(ctx) }
	}
	return &ScanHandler{
		scanner:      scanner,
		run:          run,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "scan")),
	}
}

// Routes mounts the scan endpoints.
func (h *ScanHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.StartScan)
	return r
}

// StartScan handles POST /api/scan. The scan outlives the request.
func (h *ScanHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	if h.scanner.Running() {
		h.errorHandler.HandleError(w, r, apperrors.ErrScanRunning)
		return
	}

	h.run(context.WithoutCancel(r.Context()), func(ctx context.Context) {
		if _, err := h.scanner.Run(ctx, services.TriggerAPI); errors.Is(err, services.ErrScanRunning) {
			h.logger.WarnContext(ctx, "scan request lost race with another scan")
		}
	})

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, ScanResponse{Status: "started", Trigger: services.TriggerAPI})
}
