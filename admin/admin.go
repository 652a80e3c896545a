// Package admin serves the http endpoints used by operators: prometheus metrics, health and snapshots
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tempbottle/tidis/lib/logger"
)

// Backend is what the admin endpoints operate on
type Backend interface {
	// Ping checks the storage can open a transaction
	Ping(ctx context.Context) error
	// Save writes a rdb snapshot and returns the number of keys
	Save(ctx context.Context) (int, error)
}

const requestTimeout = 30 * time.Second

// NewRouter wires the admin endpoints
func NewRouter(backend Backend) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := backend.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/save", func(w http.ResponseWriter, r *http.Request) {
		n, err := backend.Save(r.Context())
		if err != nil {
			logger.Errorf("admin save failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"keys": n})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Serve runs the admin http server on addr until ctx is done
func Serve(ctx context.Context, addr string, backend Backend) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(backend),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("admin listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return errors.Wrap(err, "admin server")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown admin server")
	}
	return nil
}
