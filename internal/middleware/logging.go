package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
)

// StructuredLogger logs each completed request. Server errors log at error,
// client errors at warn. Requests to quiet paths log at debug.
func StructuredLogger(logger *slog.Logger, quiet ...string) func(next http.Handler) http.Handler {
	skip := make(map[string]bool, len(quiet))
	for _, p := range quiet {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= http.StatusInternalServerError:
				level = slog.LevelError
			case status >= http.StatusBadRequest:
				level = slog.LevelWarn
			case skip[r.URL.Path]:
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("remote_addr", r.RemoteAddr))
		})
	}
}

// Recoverer turns a panic into a 500 problem response.
func Recoverer(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				logger.ErrorContext(r.Context(), "panic recovered",
					slog.String("panic", fmt.Sprint(rvr)),
					slog.String("stack", string(debug.Stack())),
					slog.String("path", r.URL.Path))

				problem := apperrors.NewProblemDetails(http.StatusInternalServerError, apperrors.TypeInternal,
					"An unexpected error occurred", r.URL.Path)
				problem.TraceID = GetRequestID(r.Context())
				_ = render.Render(w, r, problem)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
