package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voyx/engine/internal/policy"
)

// GetSecurityConfig returns the active security settings.
func (h *Handlers) GetSecurityConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Config.Current())
}

// securityUpdate carries a partial settings update; only present fields
// are applied.
type securityUpdate struct {
	HTTPSOnly     *bool   `json:"https_only"`
	BlockAds      *bool   `json:"block_ads"`
	BlockTrackers *bool   `json:"block_trackers"`
	BlockPhishing *bool   `json:"block_phishing"`
	StrictPrivacy *bool   `json:"strict_privacy"`
	VPNEnabled    *bool   `json:"vpn_enabled"`
	VPNServer     *string `json:"vpn_server"`
}

// UpdateSecurityConfig applies a partial settings update.
func (h *Handlers) UpdateSecurityConfig(c *gin.Context) {
	var update securityUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	apply := func(v *bool, set func(bool) error) error {
		if v == nil {
			return nil
		}
		return set(*v)
	}

	cfg := h.engine.Config
	var err error
	for _, step := range []error{
		apply(update.HTTPSOnly, cfg.SetHTTPSOnly),
		apply(update.BlockAds, cfg.SetBlockAds),
		apply(update.BlockTrackers, cfg.SetBlockTrackers),
		apply(update.BlockPhishing, cfg.SetBlockPhishing),
		apply(update.StrictPrivacy, cfg.SetStrictPrivacy),
		apply(update.VPNEnabled, cfg.SetVPNEnabled),
	} {
		if step != nil {
			err = step
		}
	}
	if update.VPNServer != nil {
		if e := cfg.SetVPNServer(*update.VPNServer); e != nil {
			err = e
		}
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "some settings failed to persist",
			"config": cfg.Current(),
		})
		return
	}

	c.JSON(http.StatusOK, cfg.Current())
}

// SecurityStatus reports the indicator state for a URL.
func (h *Handlers) SecurityStatus(c *gin.Context) {
	url, ok := requireURL(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.engine.Status(url))
}

// policyCheckRequest asks for a decision on one URL.
type policyCheckRequest struct {
	URL   string `json:"url" binding:"required"`
	Event string `json:"event"`
}

// CheckPolicy runs the decision procedure for a URL.
func (h *Handlers) CheckPolicy(c *gin.Context) {
	var req policyCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "url required")
		return
	}

	event := policy.EventNavigate
	if req.Event == string(policy.EventRequest) {
		event = policy.EventRequest
	}

	var decision policy.Decision
	if event == policy.EventNavigate {
		decision = h.engine.OnNavigate(req.URL)
	} else {
		decision = h.engine.OnRequest(req.URL)
	}

	c.JSON(http.StatusOK, gin.H{
		"url":     req.URL,
		"event":   string(event),
		"verdict": decision.Verdict.String(),
		"reason":  string(decision.Reason),
	})
}
