package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MetricsJSON returns aggregate counters for UIs that do not scrape
// Prometheus.
func (h *Handlers) MetricsJSON(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}

	snap := h.metrics.Snapshot()
	avgMs := 0.0
	if snap.RequestCount > 0 {
		avgMs = snap.TotalDuration / float64(snap.RequestCount) * 1000
	}

	c.JSON(http.StatusOK, gin.H{
		"enabled":             true,
		"total_requests":      snap.TotalRequests,
		"total_errors":        snap.TotalErrors,
		"total_decisions":     snap.TotalDecisions,
		"total_blocked":       snap.TotalBlocked,
		"avg_request_time_ms": avgMs,
	})
}
