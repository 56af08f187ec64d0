package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	handler http.Handler
}

// NewMetricsHandler constructs a metrics handler over a prometheus registry.
func NewMetricsHandler(reg *prometheus.Registry) *MetricsHandler {
	var h http.Handler
	if reg != nil {
		h = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}
	return &MetricsHandler{handler: h}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.handler == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.handler.ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for readiness/liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
