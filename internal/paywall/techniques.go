// Package paywall detects and neutralizes common paywall constructions
// by injecting generated JavaScript after a page finishes loading.
package paywall

import (
	"github.com/voyx/engine/internal/pattern"
	"github.com/voyx/engine/internal/rules"
)

// Technique is one named bypass strategy. A technique with URL patterns
// fires only on matching pages; a technique with only selectors fires
// on every page, selector misses are harmless no-ops in the page.
type Technique struct {
	Name     string
	Patterns []string
	Action   rules.Action

	compiled []*pattern.Pattern
}

// techniquePatternOpts matches paywall URL patterns the same way
// blocklists are matched: regex search, case-insensitive.
var techniquePatternOpts = pattern.Options{
	Dialect:         pattern.Regex,
	CaseInsensitive: true,
}

func newTechnique(name string, patterns []string, action rules.Action) Technique {
	t := Technique{Name: name, Patterns: patterns, Action: action}
	for _, p := range patterns {
		t.compiled = append(t.compiled, pattern.Compile(p, techniquePatternOpts))
	}
	return t
}

// appliesTo reports whether the technique should run on url.
func (t *Technique) appliesTo(url string) bool {
	if len(t.compiled) == 0 {
		return true
	}
	for _, p := range t.compiled {
		if p.Matches(url) {
			return true
		}
	}
	return false
}

// premiumCookies mimic a logged-in subscriber on sites that gate
// content behind client-side cookie checks.
var premiumCookies = map[string]string{
	"subscription": "premium",
	"user_status":  "subscribed",
	"paywall":      "bypassed",
}

// evalStubJS blanks window.eval for a second so late-loading paywall
// scripts miss their window.
const evalStubJS = `window.old_eval = window.eval;
window.eval = function() {};
setTimeout(function() {
    window.eval = window.old_eval;
}, 1000);`

// builtinTechniques is the default strategy table, applied in order.
func builtinTechniques() []Technique {
	return []Technique{
		newTechnique("Overlay Removal", nil, rules.Action{
			Kind: rules.ActionRemove,
			Selectors: []string{
				".paywall-overlay",
				".subscription-overlay",
				".premium-content-blocker",
				`[class*="paywall"]`,
				`[class*="premium"]`,
				`[class*="subscribe"]`,
				".article-locked",
				".content-locked",
			},
		}),
		newTechnique("Modal Dismissal", nil, rules.Action{
			Kind: rules.ActionRemove,
			Selectors: []string{
				".modal-backdrop",
				".modal-overlay",
				".lightbox-overlay",
				".popup-overlay",
				".overlay-container",
			},
		}),
		newTechnique("Scroll Unlock", nil, rules.Action{
			Kind: rules.ActionUnlockScroll,
		}),
		newTechnique("Content Reveal", nil, rules.Action{
			Kind: rules.ActionRevealHidden,
			Selectors: []string{
				".blurred-content",
				".faded-content",
				".truncated-content",
				`[style*="blur"]`,
				`[style*="opacity: 0.5"]`,
			},
		}),
		newTechnique("Cookie Bypass", []string{
			`news\.com`,
			`washingtonpost\.com`,
			`nytimes\.com`,
			`wsj\.com`,
			`ft\.com`,
			`bloomberg\.com`,
		}, rules.Action{
			Kind:    rules.ActionSetCookie,
			Cookies: premiumCookies,
		}),
		newTechnique("Eval Stub", []string{
			`example\.com`,
		}, rules.Action{
			Kind: rules.ActionCustomJS,
			JS:   evalStubJS,
		}),
	}
}
