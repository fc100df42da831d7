package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/blueprints/pkg/metrics"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})}
}

// HandleHealth handles GET /healthz by serving the Prometheus exposition of
// the service registry. Answering at all means the process is healthy.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
