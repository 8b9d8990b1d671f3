package policy

import (
	"strings"

	"go.uber.org/zap"

	"github.com/voyx/engine/internal/rules"
)

// Verdict is the outcome of a policy evaluation.
type Verdict int

const (
	Allow Verdict = iota
	Block
)

// String returns the verdict name.
func (v Verdict) String() string {
	if v == Block {
		return "block"
	}
	return "allow"
}

// Event names the navigation lifecycle point being evaluated.
type Event string

const (
	// EventNavigate is a top-level navigation. A Block verdict makes the
	// host substitute a blocked-page placeholder.
	EventNavigate Event = "navigate"
	// EventRequest is a sub-resource request. A Block verdict drops that
	// single request without affecting the page.
	EventRequest Event = "request"
)

// Reason explains a verdict for status reporting and metrics.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonInsecure Reason = "https_only"
	ReasonPhishing Reason = "phishing"
	ReasonAds      Reason = "ads_trackers"
	ReasonVPN      Reason = "vpn_bypass"
)

// Decision pairs a verdict with the reason it was reached.
type Decision struct {
	Verdict Verdict `json:"verdict"`
	Reason  Reason  `json:"reason,omitempty"`
}

// Engine is the policy decision procedure. It is a pure function of
// (url, event, config, snapshot); it holds no mutable state of its own.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates a decision engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Decide evaluates url against the snapshot in fixed precedence order,
// short-circuiting on the first applicable block:
//
//  1. HTTPS-only blocks insecure schemes and is never overridden.
//  2. Phishing rules block next and are never overridden by VPN state.
//  3. Ad/tracker rules block unless VPN routing is enabled, in which
//     case the URL is allowed through unconditionally. This mirrors the
//     shipped behavior: the VPN toggle acts as a full ad/tracker bypass.
func (e *Engine) Decide(url string, event Event, cfg SecurityConfig, snap *rules.Snapshot) Decision {
	if cfg.HTTPSOnly && !isSecure(url) {
		return e.blocked(url, event, ReasonInsecure)
	}

	if cfg.BlockPhishing {
		if r := snap.Set(rules.CategoryPhishing).MatchURL(url); r != nil {
			return e.blocked(url, event, ReasonPhishing)
		}
	}

	if cfg.BlockAds || cfg.BlockTrackers {
		if matchesAdOrTracker(url, snap) {
			if cfg.VPNEnabled {
				return Decision{Verdict: Allow, Reason: ReasonVPN}
			}
			return e.blocked(url, event, ReasonAds)
		}
	}

	return Decision{Verdict: Allow}
}

func (e *Engine) blocked(url string, event Event, reason Reason) Decision {
	e.logger.Debug("url blocked",
		zap.String("url", url),
		zap.String("event", string(event)),
		zap.String("reason", string(reason)),
	)
	return Decision{Verdict: Block, Reason: reason}
}

// matchesAdOrTracker consults both the ads and trackers rule sets; the
// two categories share one verdict path.
func matchesAdOrTracker(url string, snap *rules.Snapshot) bool {
	if snap.Set(rules.CategoryAds).MatchURL(url) != nil {
		return true
	}
	return snap.Set(rules.CategoryTrackers).MatchURL(url) != nil
}

// isSecure reports whether the URL scheme is https. Only plain http is
// treated as insecure; non-web schemes pass through untouched.
func isSecure(url string) bool {
	return !strings.HasPrefix(url, "http://")
}

// Status summarizes what the active rules know about one URL, for the
// shell's security indicator.
type Status struct {
	IsSecure    bool `json:"is_secure"`
	IsPhishing  bool `json:"is_phishing"`
	HasAds      bool `json:"has_ads"`
	HasTrackers bool `json:"has_trackers"`
}

// StatusFor reports the security status of a URL without blocking it.
func (e *Engine) StatusFor(url string, cfg SecurityConfig, snap *rules.Snapshot) Status {
	matches := matchesAdOrTracker(url, snap)
	return Status{
		IsSecure:    strings.HasPrefix(url, "https://"),
		IsPhishing:  snap.Set(rules.CategoryPhishing).MatchURL(url) != nil,
		HasAds:      cfg.BlockAds && matches,
		HasTrackers: cfg.BlockTrackers && matches,
	}
}
