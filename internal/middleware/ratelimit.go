package middleware

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"

	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
)

// RateLimiter rejects requests beyond a global token bucket with 429 and a
// Retry-After telling the caller when the next token is due.
type RateLimiter struct {
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimiter allows rps requests per second with the given burst.
func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.With(slog.String("component", "rate_limiter")),
	}
}

// Handler implements the middleware.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		res := rl.limiter.ReserveN(now, 1)
		if res.OK() && res.DelayFrom(now) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		wait := rl.retryAfter(res, now)
		res.CancelAt(now)
		rl.logger.WarnContext(r.Context(), "rate limit exceeded",
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Int("retry_after", wait))

		w.Header().Set("Retry-After", strconv.Itoa(wait))
		problem := apperrors.NewProblemDetails(http.StatusTooManyRequests, apperrors.TypeRateLimited,
			fmt.Sprintf("Rate limit exceeded. Please retry after %d seconds", wait), r.URL.Path)
		problem.TraceID = GetRequestID(r.Context())
		_ = render.Render(w, r, problem)
	})
}

// retryAfter is the whole seconds until a token is available, at least one.
func (rl *RateLimiter) retryAfter(res *rate.Reservation, now time.Time) int {
	if !res.OK() {
		return 60
	}
	secs := int(math.Ceil(res.DelayFrom(now).Seconds()))
	return max(secs, 1)
}
