package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ulroy-ai/ulroy-go/internal/json"
	"github.com/ulroy-ai/ulroy-go/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type connectedBus interface {
	Connected() bool
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type application struct {
	db      pinger
	cache   pinger
	bus     connectedBus
	indexer healthChecker
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", app.health)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	return r
}

func (app *application) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	check := func(name string, err error) {
		if err != nil {
			resp.Status = "unavailable"
			resp.Checks[name] = err.Error()
			app.logger.WarnContext(ctx, "Health check failed", "check", name, "error", err)
			return
		}
		resp.Checks[name] = "ok"
	}

	check("database", app.db.Ping(ctx))
	if app.cache != nil {
		check("cache", app.cache.Ping(ctx))
	}
	if !app.bus.Connected() {
		check("events", errBusDisconnected)
	} else {
		check("events", nil)
	}
	check("indexer", app.indexer.HealthCheck(ctx))

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	if err := json.Write(w, status, resp); err != nil {
		app.logger.ErrorContext(ctx, "Failed to write health response", "error", err)
	}
}

type healthError string

func (e healthError) Error() string { return string(e) }

const errBusDisconnected = healthError("nats connection is not established")
