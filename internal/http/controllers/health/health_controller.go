// Package health contiene el controller de health check.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/J4CIVY/bskmt-security/internal/http/helpers"
	"github.com/J4CIVY/bskmt-security/internal/security/secretbox"
)

// Pinger abstrae un backend con chequeo de conectividad.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthController responde /healthz con el estado de las dependencias.
type HealthController struct {
	store Pinger // puede ser nil (driver memory)
	cache Pinger
}

// NewHealthController crea el controller de health.
func NewHealthController(store, cache Pinger) *HealthController {
	return &HealthController{store: store, cache: cache}
}

type healthResponse struct {
	Status    string            `json:"status"` // ok | degraded
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Healthz maneja GET /healthz
func (c *HealthController) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	status := "ok"

	check := func(name string, p Pinger) {
		if p == nil {
			checks[name] = "skipped"
			return
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = "down"
			status = "degraded"
			return
		}
		checks[name] = "ok"
	}
	check("store", c.store)
	check("cache", c.cache)

	if secretbox.Ready() {
		checks["master_key"] = "ok"
	} else {
		checks["master_key"] = "missing"
		status = "degraded"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	helpers.WriteJSON(w, code, healthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
