// Package router exposes the watcher's operational HTTP surface.
package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/wolfman30/slotwatch/internal/http/middleware"
	"github.com/wolfman30/slotwatch/internal/reminders"
	"github.com/wolfman30/slotwatch/pkg/logging"
)

// LedgerReader returns the persisted reminder ledger.
type LedgerReader interface {
	Snapshot(ctx context.Context) (reminders.Ledger, error)
}

// Config holds the dependencies of the status router.
type Config struct {
	Logger         *logging.Logger
	MetricsHandler http.Handler
	Ledger         LedgerReader
	StartedAt      time.Time
}

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// New builds the status router.
func New(cfg *Config) http.Handler {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status: "ok",
			Uptime: time.Since(cfg.StartedAt).Round(time.Second).String(),
		})
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.Ledger != nil {
		r.Get("/ledger", ledgerHandler(cfg.Ledger, cfg.Logger))
		r.Get("/ledger/{doctorID}", doctorHandler(cfg.Ledger, cfg.Logger))
	}
	return r
}

func ledgerHandler(ledger LedgerReader, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := ledger.Snapshot(r.Context())
		if err != nil {
			logger.Error("ledger snapshot failed", "error", err)
			http.Error(w, "ledger unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func doctorHandler(ledger LedgerReader, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := ledger.Snapshot(r.Context())
		if err != nil {
			logger.Error("ledger snapshot failed", "error", err)
			http.Error(w, "ledger unavailable", http.StatusServiceUnavailable)
			return
		}
		entries, ok := snap[chi.URLParam(r, "doctorID")]
		if !ok {
			http.Error(w, "doctor not tracked", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
