package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// ErrorHandler renders errors as problem documents.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates an error handler.
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger: logger.With(slog.String("component", "error_handler")),
	}
}

// HandleError logs err and writes its problem document. Client errors log at
// warn, everything else at error.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.ErrorToProblem(err, r)
	problem.TraceID = middleware.GetReqID(r.Context())

	level := slog.LevelError
	if problem.Status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", problem.TraceID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	_ = render.Render(w, r, problem)
}

// ErrorToProblem classifies err.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout,
			"The request took too long to process and was cancelled", path)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		kind, ok := apiErrorProblems[apiErr.Status]
		if !ok {
			kind = TypeInternal
		}
		problem := NewProblemDetails(apiErr.Status, kind, apiErr.Message, path)
		problem.ErrorCode = apiErr.Code
		problem.Details = apiErr.Details
		return problem
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if p, ok := appErrorProblems[appErr.Type]; ok {
			return NewProblemDetails(p.status, p.kind, appErr.Message, path)
		}
	}

	return NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		"An unexpected error occurred while processing your request", path)
}
