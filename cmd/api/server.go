package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FACorreiaa/statement-ingest/pkg/middleware"
)

const healthTimeout = 2 * time.Second

// NewRouter builds the HTTP handler serving the import API, health and metrics
func NewRouter(d *Dependencies) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", d.healthz).Methods(http.MethodGet)
	if d.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	d.ImportHandler.RegisterRoutes(r)

	return middleware.Chain(r,
		middleware.RequestID,
		middleware.Recovery(d.Logger),
		middleware.Logger(d.Logger),
		middleware.CORS(d.Config.Server.CORSOrigins),
		middleware.RateLimit(float64(d.Config.Server.RateLimitPerSecond), d.Config.Server.RateLimitBurst),
	)
}

func (d *Dependencies) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := d.Ping(ctx); err != nil {
		d.Logger.Warn("health check failed", slog.Any("error", err))
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests for up to the configured shutdown timeout.
func Serve(ctx context.Context, d *Dependencies) error {
	srv := &http.Server{
		Addr:              d.Config.Server.Addr(),
		Handler:           NewRouter(d),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	if d.Scheduler != nil {
		if err := d.Scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start archive scheduler: %w", err)
		}
		defer func() { <-d.Scheduler.Stop().Done() }()
	}

	errCh := make(chan error, 1)
	go func() {
		d.Logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	d.Logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}
