package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
	"github.com/M1229012/Stock-V116-sub000/internal/exporter"
	"github.com/M1229012/Stock-V116-sub000/internal/middleware"
	"github.com/M1229012/Stock-V116-sub000/internal/risk"
	"github.com/M1229012/Stock-V116-sub000/internal/services"
	"github.com/M1229012/Stock-V116-sub000/internal/watch"
	"github.com/M1229012/Stock-V116-sub000/pkg/contracts/domain"
)

const (
	formatRows  = "rows"
	formatTable = "table"
	formatCSV   = "csv"
)

var levels = []string{string(risk.LevelHigh), string(risk.LevelMedium), string(risk.LevelLow)}

// TableResponse is the report in its fixed column layout.
type TableResponse struct {
	EvalDate    string     `json:"eval_date"`
	GeneratedAt time.Time  `json:"generated_at"`
	Header      []string   `json:"header"`
	Rows        [][]string `json:"rows"`
}

// ReportHandler serves the latest report.
type ReportHandler struct {
	reports      ReportProvider
	query        *middleware.QueryParamValidator
	errorHandler *apperrors.ErrorHandler
	logger       *slog.Logger
}

// NewReportHandler creates a report handler.
func NewReportHandler(reports ReportProvider, errorHandler *apperrors.ErrorHandler, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{
		reports:      reports,
		query:        middleware.NewQueryParamValidator(logger, errorHandler),
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "report")),
	}
}

// Routes mounts the report endpoints.
func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetReport)
	return r
}

// GetReport handles GET /api/report
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	level, ok := h.query.ValidateEnum(w, r, "level", levels, "")
	if !ok {
		return
	}
	format, ok := h.query.ValidateEnum(w, r, "format", []string{formatRows, formatTable, formatCSV}, formatRows)
	if !ok {
		return
	}

	report, err := h.reports.Latest(risk.Level(level))
	if err != nil {
		if errors.Is(err, services.ErrNoReport) {
			err = apperrors.ErrReportNotFound
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	switch format {
	case formatCSV:
		h.writeCSV(w, r, report)
		return
	case formatTable:
		render.JSON(w, r, TableResponse{
			EvalDate:    domain.DateKey(report.EvalDate),
			GeneratedAt: report.GeneratedAt,
			Header:      watch.Header,
			Rows:        report.Values(),
		})
		return
	}
	render.JSON(w, r, report)
}

func (h *ReportHandler) writeCSV(w http.ResponseWriter, r *http.Request, report *services.Report) {
	filename := "disposal_watch_" + domain.DateKey(report.EvalDate) + ".csv"
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := exporter.WriteCSV(w, watch.Header, report.Values(), true); err != nil {
		h.logger.WarnContext(r.Context(), "failed to stream csv report", slog.String("error", err.Error()))
	}
}
