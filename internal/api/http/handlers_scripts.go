package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voyx/engine/internal/userscript"
)

// scriptView is the wire shape of one userscript.
type scriptView struct {
	Name     string         `json:"name"`
	Enabled  bool           `json:"enabled"`
	Metadata map[string]any `json:"metadata"`
	Code     string         `json:"code,omitempty"`
}

func viewOf(s *userscript.Userscript, withCode bool) scriptView {
	v := scriptView{
		Name:     s.Name,
		Enabled:  s.Enabled,
		Metadata: s.Metadata.Raw(),
	}
	if withCode {
		v.Code = s.Code
	}
	return v
}

// ListScripts returns every loaded script without code bodies.
func (h *Handlers) ListScripts(c *gin.Context) {
	all := h.engine.Scripts.All()
	views := make([]scriptView, 0, len(all))
	for _, s := range all {
		views = append(views, viewOf(s, false))
	}
	c.JSON(http.StatusOK, gin.H{
		"enabled": h.engine.Scripts.Enabled(),
		"scripts": views,
	})
}

// GetScript returns one script with its code.
func (h *Handlers) GetScript(c *gin.Context) {
	s, ok := h.engine.Scripts.Get(c.Param("name"))
	if !ok {
		notFound(c, "unknown script")
		return
	}
	c.JSON(http.StatusOK, viewOf(s, true))
}

// createScriptRequest writes a new script file.
type createScriptRequest struct {
	Name     string            `json:"name" binding:"required"`
	Code     string            `json:"code" binding:"required"`
	Metadata map[string]string `json:"metadata"`
	Include  []string          `json:"include"`
	Exclude  []string          `json:"exclude"`
}

// CreateScript writes a script file and loads it.
func (h *Handlers) CreateScript(c *gin.Context) {
	var req createScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name and code required")
		return
	}

	meta := userscript.NewMetadata()
	for key, value := range req.Metadata {
		meta.Add(key, value)
	}
	for _, p := range req.Include {
		meta.Add("include", p)
	}
	for _, p := range req.Exclude {
		meta.Add("exclude", p)
	}

	if err := h.engine.Scripts.Create(req.Name, req.Code, meta); err != nil {
		badRequest(c, err.Error())
		return
	}
	s, _ := h.engine.Scripts.Get(req.Name)
	if s == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "script was written but failed to parse"})
		return
	}
	c.JSON(http.StatusCreated, viewOf(s, false))
}

// DeleteScript removes a script and its settings.
func (h *Handlers) DeleteScript(c *gin.Context) {
	if err := h.engine.Scripts.Delete(c.Param("name")); err != nil {
		notFound(c, err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// SetScriptEnabled flips one script's toggle.
func (h *Handlers) SetScriptEnabled(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		badRequest(c, "enabled required")
		return
	}
	if err := h.engine.Scripts.SetEnabled(c.Param("name"), *req.Enabled); err != nil {
		notFound(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": c.Param("name"), "enabled": *req.Enabled})
}

// SetScriptsEnabled flips the master toggle.
func (h *Handlers) SetScriptsEnabled(c *gin.Context) {
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		badRequest(c, "enabled required")
		return
	}
	if err := h.engine.Scripts.SetGlobalEnabled(*req.Enabled); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}

// InstallScript downloads and installs a script from a URL.
func (h *Handlers) InstallScript(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "url required")
		return
	}

	name, err := h.engine.Scripts.InstallFromURL(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	s, _ := h.engine.Scripts.Get(name)
	if s == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "installed script failed to parse"})
		return
	}
	c.JSON(http.StatusCreated, viewOf(s, false))
}

// MatchScripts lists scripts that would run on a URL.
func (h *Handlers) MatchScripts(c *gin.Context) {
	url, ok := requireURL(c)
	if !ok {
		return
	}

	matching := h.engine.Scripts.ScriptsMatching(url)
	names := make([]string, 0, len(matching))
	for _, s := range matching {
		names = append(names, s.Name)
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "scripts": names})
}

// ReloadScripts re-reads the scripts directory.
func (h *Handlers) ReloadScripts(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Scripts.Reload())
}
