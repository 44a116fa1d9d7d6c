// Package health contiene el controller para health checks.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/credengine/internal/http/helpers"
	"github.com/dropDatabas3/credengine/internal/observability/logger"
)

// Pinger es cualquier dependencia que pueda responder un ping (TTL store).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Component es el estado de una dependencia.
type Component struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Response de /readyz.
type Response struct {
	Status     string      `json:"status"` // "ready" | "unavailable"
	Version    string      `json:"version,omitempty"`
	Components []Component `json:"components"`
}

// HealthController maneja /healthz y /readyz.
type HealthController struct {
	deps    map[string]Pinger
	version string
	kid     string
	timeout time.Duration
}

// NewHealthController crea el controller. deps se chequean en /readyz.
func NewHealthController(deps map[string]Pinger, version, activeKID string) *HealthController {
	return &HealthController{deps: deps, version: version, kid: activeKID, timeout: 2 * time.Second}
}

// Healthz maneja GET /healthz (liveness, sin dependencias).
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz maneja GET /readyz
func (c *HealthController) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	resp := Response{Status: "ready", Version: c.version}
	for name, p := range c.deps {
		comp := Component{Name: name, Status: "ok"}
		if err := p.Ping(ctx); err != nil {
			comp.Status = "down"
			comp.Error = err.Error()
			resp.Status = "unavailable"
			log.Warn("dependency down", logger.String("component", name), logger.Err(err))
		}
		resp.Components = append(resp.Components, comp)
	}

	if c.version != "" {
		w.Header().Set("X-Service-Version", c.version)
	}
	if c.kid != "" {
		w.Header().Set("X-JWKS-KID", c.kid)
	}
	status := http.StatusOK
	if resp.Status == "unavailable" {
		status = http.StatusServiceUnavailable
	}
	helpers.WriteJSON(w, status, resp)
}
