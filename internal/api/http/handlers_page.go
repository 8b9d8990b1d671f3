package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voyx/engine/internal/paywall"
	"github.com/voyx/engine/internal/userscript"
)

// pageLoadedRequest reports a finished page load. HTML is optional;
// when present the response includes detected paywall markers.
type pageLoadedRequest struct {
	URL  string `json:"url" binding:"required"`
	HTML string `json:"html"`
}

// PageLoaded applies paywall techniques and injects matching scripts
// into a pooled sandbox runtime for the page.
func (h *Handlers) PageLoaded(c *gin.Context) {
	var req pageLoadedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "url required")
		return
	}

	report := h.engine.OnLoadFinished(c.Request.Context(), req.URL, nil)

	resp := gin.H{"report": report}
	if req.HTML != "" {
		resp["paywall_markers"] = paywall.DetectMarkers(req.HTML)
	}
	c.JSON(http.StatusOK, resp)
}

// PageScripts returns everything a shell-side web view should execute
// for a URL: paywall JS first, then matching userscripts in injection
// order, each already wrapped in its capability shim.
func (h *Handlers) PageScripts(c *gin.Context) {
	url, ok := requireURL(c)
	if !ok {
		return
	}

	var paywallJS []string
	if h.engine.Bypass != nil {
		paywallJS = h.engine.Bypass.ScriptsFor(url)
	}

	type injection struct {
		Name string `json:"name"`
		Code string `json:"code"`
	}
	scripts := []injection{}
	for _, s := range h.engine.Scripts.ScriptsMatching(url) {
		if code := userscript.InjectionCodeFor(s); code != "" {
			scripts = append(scripts, injection{Name: s.Name, Code: code})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"url":     url,
		"paywall": paywallJS,
		"scripts": scripts,
	})
}

// DetectPaywall inspects served HTML without running anything.
func (h *Handlers) DetectPaywall(c *gin.Context) {
	var req struct {
		HTML string `json:"html" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "html required")
		return
	}

	markers := paywall.DetectMarkers(req.HTML)
	c.JSON(http.StatusOK, gin.H{
		"detected": len(markers) > 0,
		"markers":  markers,
	})
}

// ReadClipboard returns the value last written through the clipboard
// capability, so the shell can mirror it into the system clipboard.
func (h *Handlers) ReadClipboard(c *gin.Context) {
	if h.clipboard == nil {
		notFound(c, "clipboard not configured")
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": h.clipboard.Read()})
}
