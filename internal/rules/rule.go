// Package rules implements ordered rule sets compiled from declarative
// sources: blocklist files, phishing lists, and paywall technique files.
package rules

import (
	"github.com/voyx/engine/internal/pattern"
)

// Category names a policy rule set.
type Category string

const (
	CategoryAds      Category = "ads"
	CategoryTrackers Category = "trackers"
	CategoryPhishing Category = "phishing"
	CategoryPaywall  Category = "paywall"
)

// ActionKind discriminates the closed set of rule actions.
type ActionKind string

const (
	ActionBlock        ActionKind = "block"
	ActionRemove       ActionKind = "remove"
	ActionUnlockScroll ActionKind = "unlock_scroll"
	ActionRevealHidden ActionKind = "reveal"
	ActionSetCookie    ActionKind = "set_cookies"
	ActionCustomJS     ActionKind = "custom_js"
)

// Action is the effect a matching rule produces. Only the fields relevant
// to the Kind are populated.
type Action struct {
	Kind      ActionKind
	Selectors []string          // remove, reveal
	Cookies   map[string]string // set_cookies
	JS        string            // custom_js
}

// Rule pairs a compiled pattern with an action. Rules are immutable after
// load; a reload replaces an entire source's rules at once.
type Rule struct {
	Pattern   *pattern.Pattern
	Action    Action
	SourceSet string
}

// RuleSet is a named, ordered sequence of rules sharing one category.
type RuleSet struct {
	Category Category
	Rules    []Rule
}

// MatchURL returns the first rule whose pattern matches url, in load
// order, or nil.
func (rs *RuleSet) MatchURL(url string) *Rule {
	if rs == nil {
		return nil
	}
	for i := range rs.Rules {
		if rs.Rules[i].Pattern.Matches(url) {
			return &rs.Rules[i]
		}
	}
	return nil
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rules)
}
