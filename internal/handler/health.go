package handler

import (
	"net/http"

	"github.com/sakif/notes-app/internal/health"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// HandleLiveness answers as long as the process can serve HTTP.
//
// HTTP: GET /healthz
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.checker.Liveness(r.Context()))
}

// HandleReadiness pings SQLite and the code store. Any failure is a 503 so
// load balancers stop routing here.
//
// HTTP: GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	result := h.checker.Readiness(r.Context())

	status := http.StatusOK
	if !result.Up() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result)
}
