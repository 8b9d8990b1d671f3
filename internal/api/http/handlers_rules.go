package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voyx/engine/internal/rules"
)

// ReloadRules re-reads every rule source and the scripts directory.
func (h *Handlers) ReloadRules(c *gin.Context) {
	ruleReport, scriptReport := h.engine.Reload()
	c.JSON(http.StatusOK, gin.H{
		"rules":   ruleReport,
		"scripts": scriptReport,
	})
}

// RulesStatus returns the last reload report with per-category counts.
func (h *Handlers) RulesStatus(c *gin.Context) {
	report := h.engine.Rules.LastReport()
	if report == nil {
		c.JSON(http.StatusOK, gin.H{"loaded": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loaded": true, "report": report})
}

// paywallTechniqueRequest adds a custom bypass technique.
type paywallTechniqueRequest struct {
	Name      string            `json:"name" binding:"required"`
	Action    string            `json:"action" binding:"required"`
	Patterns  []string          `json:"patterns"`
	Selectors []string          `json:"selectors"`
	Cookies   map[string]string `json:"cookies"`
	JS        string            `json:"js"`
}

// ListPaywallTechniques returns the active technique names.
func (h *Handlers) ListPaywallTechniques(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"enabled":    h.engine.Bypass.Enabled(),
		"techniques": h.engine.Bypass.Techniques(),
	})
}

// AddPaywallTechnique appends a custom technique.
func (h *Handlers) AddPaywallTechnique(c *gin.Context) {
	var req paywallTechniqueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and action required")
		return
	}

	kind := rules.ActionKind(req.Action)
	switch kind {
	case rules.ActionRemove, rules.ActionUnlockScroll, rules.ActionRevealHidden,
		rules.ActionSetCookie, rules.ActionCustomJS:
	default:
		badRequest(c, "unknown action: "+req.Action)
		return
	}

	h.engine.Bypass.Add(req.Name, req.Patterns, rules.Action{
		Kind:      kind,
		Selectors: req.Selectors,
		Cookies:   req.Cookies,
		JS:        req.JS,
	})
	c.JSON(http.StatusCreated, gin.H{"name": req.Name})
}

// RemovePaywallTechnique drops techniques by name.
func (h *Handlers) RemovePaywallTechnique(c *gin.Context) {
	h.engine.Bypass.Remove(c.Param("name"))
	c.Status(http.StatusNoContent)
}

// SetPaywallEnabled toggles the bypasser.
func (h *Handlers) SetPaywallEnabled(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		badRequest(c, "enabled required")
		return
	}
	h.engine.Bypass.SetEnabled(*req.Enabled)
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}
