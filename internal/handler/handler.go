package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"ml-server/internal/middleware"
)

// Pinger is satisfied by both backing stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	mongo   Pinger
	cache   Pinger
	logger  *slog.Logger
	started time.Time
	timeout time.Duration
}

func NewHandler(mongo, cache Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		mongo:   mongo,
		cache:   cache,
		logger:  logger,
		started: time.Now(),
		timeout: 2 * time.Second,
	}
}

// Liveness reports that the process is serving. It never touches the stores.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSONResponse(w, middleware.Response{Response: map[string]any{
		"status": "ok",
		"uptime": time.Since(h.started).Seconds(),
	}}, http.StatusOK)
}

// Readiness pings mongo then redis and answers 503 naming the first that fails.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := []struct {
		name string
		p    Pinger
	}{
		{"mongo", h.mongo},
		{"redis", h.cache},
	}

	for _, check := range checks {
		if err := check.p.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", "check", check.name, "error", err)
			middleware.WriteError(w, http.StatusServiceUnavailable, check.name+": "+err.Error())
			return
		}
	}

	middleware.WriteJSONResponse(w, middleware.Response{Response: map[string]string{"status": "ready"}}, http.StatusOK)
}
