package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		// Process request
		c.Next()

		// Record metrics
		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordHTTPRequest(method, path, status, duration)
	}
}

// Timer measures operation duration against the decision histogram
type Timer struct {
	start   time.Time
	metrics *Metrics
	event   string
}

// NewTimer creates a new timer for a policy event
func NewTimer(metrics *Metrics, event string) *Timer {
	return &Timer{start: time.Now(), metrics: metrics, event: event}
}

// Stop records the decision outcome with the elapsed duration
func (t *Timer) Stop(verdict, reason string, blocked bool) {
	t.metrics.RecordDecision(t.event, verdict, reason, time.Since(t.start), blocked)
}
