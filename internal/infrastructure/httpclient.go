package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
)

const (
	defaultUserAgent  = "Mozilla/5.0 (compatible; disposal-watch/1.16)"
	maxResponseBytes  = 16 << 20
	defaultBackoff    = 500 * time.Millisecond
	maxBackoffAttempt = 6
)

// HTTPClientOptions configures an HTTPClient.
type HTTPClientOptions struct {
	Timeout    time.Duration
	RPS        float64
	Burst      int
	MaxRetries int
	// Backoff is the first retry delay; it doubles on each attempt.
	Backoff time.Duration
}

// HTTPClient is a rate limited HTTP client that retries transient failures
// (transport errors, 429 and 5xx) with exponential backoff.
type HTTPClient struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    HTTPClientOptions
	logger  *slog.Logger
}

// NewHTTPClient creates a client. A non-positive RPS disables rate limiting.
func NewHTTPClient(opts HTTPClientOptions, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &HTTPClient{
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, opts.Burst),
		opts:    opts,
		logger:  logger,
	}
}

// StatusError is returned for a non-2xx response that was not retried away.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Get fetches url and returns the response body.
func (c *HTTPClient) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	return c.do(ctx, http.MethodGet, url, nil, header)
}

// GetJSON fetches url and decodes the JSON body into out.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.Get(ctx, url, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.NewParsingError("failed to decode "+url, err)
	}
	return nil
}

// PostJSON sends payload as JSON and returns the response body.
func (c *HTTPClient) PostJSON(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, url, data, http.Header{"Content-Type": []string{"application/json"}})
}

// PostForm sends an urlencoded form and returns the response body.
func (c *HTTPClient) PostForm(ctx context.Context, url string, form string) ([]byte, error) {
	return c.do(ctx, http.MethodPost, url, []byte(form),
		http.Header{"Content-Type": []string{"application/x-www-form-urlencoded"}})
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body []byte, header http.Header) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.opts.Backoff << min(attempt-1, maxBackoffAttempt)
			c.logger.WarnContext(ctx, "retrying request",
				slog.String("url", url),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()))
			select {
			case <-ctx.Done():
				return nil, apperrors.NewNetworkError("request cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, apperrors.NewNetworkError("rate limiter wait failed", err)
		}

		data, retry, err := c.once(ctx, method, url, body, header)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, apperrors.NewNetworkError(method+" "+url+" failed", lastErr)
}

// once performs a single request and reports whether a failure is transient.
func (c *HTTPClient) once(ctx context.Context, method, url string, body []byte, header http.Header) ([]byte, bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.DebugContext(ctx, "http request completed",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(data)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retry, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: snippet}
	}
	return data, false, nil
}
