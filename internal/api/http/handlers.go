// Package http exposes the engine's control API: security settings,
// policy checks, rule management, userscripts, and paywall techniques.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/voyx/engine/internal/engine"
	"github.com/voyx/engine/internal/infrastructure/monitoring"
	"github.com/voyx/engine/internal/settings"
	"github.com/voyx/engine/internal/userscript/capability"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	engine    *engine.Engine
	clipboard *capability.MemClipboard
	settings  *settings.Store
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(eng *engine.Engine, clipboard *capability.MemClipboard, store *settings.Store, metrics *monitoring.Metrics, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{engine: eng, clipboard: clipboard, settings: store, metrics: metrics, logger: logger}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Voyx Content Policy Engine",
		"version": "1.0.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	ruleReport := h.engine.Rules.LastReport()
	resp := gin.H{
		"status":         "healthy",
		"rules_loaded":   ruleReport != nil,
		"scripts_loaded": len(h.engine.Scripts.All()),
	}
	if h.settings != nil {
		if err := h.settings.LoadError(); err != nil {
			resp["status"] = "degraded"
			resp["settings_error"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func notFound(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, gin.H{"error": msg})
}

// requireURL pulls the url query parameter.
func requireURL(c *gin.Context) (string, bool) {
	url := c.Query("url")
	if url == "" {
		badRequest(c, "url parameter required")
		return "", false
	}
	return url, true
}
