package api

import (
	"net/http"

	"github.com/diresa-ti/legajos/internal/health"
)

// HealthHandlers exposes the liveness and readiness probes.
type HealthHandlers struct {
	checks *health.Registry
}

// NewHealthHandlers creates a HealthHandlers instance.
func NewHealthHandlers(checks *health.Registry) *HealthHandlers {
	return &HealthHandlers{checks: checks}
}

// Health handles GET /health: the process is up and serving.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r.Context(), http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready: every registered dependency must answer its
// probe for a 200; otherwise 503 with per-dependency detail.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	report := h.checks.Check(r.Context())

	status := http.StatusOK
	if !report.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r.Context(), status, report)
}
