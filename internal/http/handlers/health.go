package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck es una sonda nombrada contra una dependencia.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthHandler expone GET /healthz. Responde 200 con el detalle por
// dependencia, o 503 si alguna sonda falla.
type HealthHandler struct {
	Checks []HealthCheck
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	detail := make(map[string]string, len(h.Checks))
	for _, c := range h.Checks {
		if err := c.Probe(ctx); err != nil {
			detail[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		detail[c.Name] = "ok"
	}

	body := map[string]any{"status": "ok", "checks": detail}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	WriteJSON(w, status, body)
}
