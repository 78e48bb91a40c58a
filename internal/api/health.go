package api

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type pingFunc func(ctx context.Context) error

// dependency is one readiness probe. A nil probe means the backend is not
// configured. Critical dependencies fail readiness; the rest degrade it.
type dependency struct {
	name     string
	critical bool
	probe    pingFunc
}

type HealthHandler struct {
	deps    []dependency
	env     string
	version string
}

func NewHealthHandler(pgPool Pinger, rdb *redis.Client, env, version string) *HealthHandler {
	h := &HealthHandler{env: env, version: version}

	pg := dependency{name: "postgres", critical: true}
	if pgPool != nil {
		pg.probe = pgPool.Ping
	}
	cache := dependency{name: "redis"}
	if rdb != nil {
		cache.probe = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	h.deps = []dependency{pg, cache}
	return h
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{Status: "ok", Version: h.version, Env: h.env})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := ReadinessResponse{
		Status:       "ok",
		Version:      h.version,
		Env:          h.env,
		Dependencies: make(map[string]string, len(h.deps)),
	}
	for _, dep := range h.deps {
		state := dep.check(ctx)
		resp.Dependencies[dep.name] = state
		if state != "down" {
			continue
		}
		switch {
		case dep.critical:
			resp.Status = "error"
		case resp.Status == "ok":
			resp.Status = "degraded"
		}
	}

	code := http.StatusOK
	if resp.Status == "error" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (d dependency) check(ctx context.Context) string {
	if d.probe == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := d.probe(ctx); err != nil {
		return "down"
	}
	return "ok"
}
