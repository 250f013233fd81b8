package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apperrors "github.com/M1229012/Stock-V116-sub000/internal/errors"
	customMiddleware "github.com/M1229012/Stock-V116-sub000/internal/middleware"
	"github.com/M1229012/Stock-V116-sub000/internal/services"
	handlers "github.com/M1229012/Stock-V116-sub000/internal/transport/http"
)

// Rate limit of POST /api/scan.
const (
	scanRPS   = 1.0 / 60
	scanBurst = 2
)

// Application is the web server container.
type Application struct {
	*Components
	Router *chi.Mux
	Server *http.Server

	// lifetime ends at Stop; background work derives from it.
	lifetime context.Context
	end      context.CancelFunc
	wg       sync.WaitGroup
}

// NewApplication builds the router and server around wired components.
func NewApplication(c *Components) *Application {
	a := &Application{Components: c}
	a.lifetime, a.end = context.WithCancel(context.Background())
	a.setupRouter()
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", c.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  c.Config.Server.ReadTimeout,
		WriteTimeout: c.Config.Server.WriteTimeout,
		IdleTimeout:  c.Config.Server.IdleTimeout,
	}
	return a
}

func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apperrors.NewErrorHandler(a.Logger)

	// RequestID → RealIP → Telemetry → Logger → Recoverer
	r.Use(customMiddleware.RequestID)
	r.Use(middleware.RealIP)

	r.Group(func(r chi.Router) {
		r.Use(customMiddleware.Telemetry(a.Metrics))
		r.Use(customMiddleware.StructuredLogger(a.Logger, "/api/health"))
		r.Use(customMiddleware.Recoverer(a.Logger))

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.Mount("/report", handlers.NewReportHandler(a.Reports, errorHandler, a.Logger).Routes())
			r.Mount("/health", handlers.NewHealthHandler(Version, a.Scan, a.Reports).Routes())
			r.With(customMiddleware.NewRateLimiter(scanRPS, scanBurst, a.Logger).Handler).
				Mount("/scan", handlers.NewScanHandler(a.Scan, a.background, errorHandler, a.Logger).Routes())
		})
	})

	if a.OTel != nil && a.OTel.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTel.PrometheusHTTP)
	}

	a.Router = r
}

// Start serves HTTP and, when configured, runs scans on a fixed interval.
// cancel is called if the listener fails.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.Int("port", a.Config.Server.Port),
		slog.Duration("scan_interval", a.Config.Scan.Interval))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if a.Config.Scan.Interval > 0 {
		a.background(ctx, func(ctx context.Context) {
			a.schedule(ctx, a.Config.Scan.Interval)
		})
	}
	return nil
}

// background runs task on a goroutine that Stop waits for. The task's
// context ends with ctx or when the application stops.
func (a *Application) background(ctx context.Context, task func(context.Context)) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(a.lifetime, cancel)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()
		defer stop()
		task(ctx)
	}()
}

// schedule runs a scan every interval until ctx ends.
func (a *Application) schedule(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Scan.Run(ctx, services.TriggerScheduled); errors.Is(err, services.ErrScanRunning) {
				a.Logger.InfoContext(ctx, "scheduled scan skipped, another scan is running")
			}
		}
	}
}

// Stop shuts the server down, cancels and waits for background scans, then
// flushes telemetry and releases the components.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	err := a.Server.Shutdown(shutdownCtx)
	a.end()
	a.wg.Wait()
	if err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		a.Logger.ErrorContext(ctx, "error shutting down telemetry", slog.String("error", err.Error()))
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return nil
}

// Run serves until SIGINT or SIGTERM.
func (a *Application) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}
	<-ctx.Done()
	a.Logger.Info("received shutdown signal")

	return a.Stop(context.Background())
}
