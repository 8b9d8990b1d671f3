package paywall

import (
	"fmt"
	"sort"
	"strings"

	"github.com/voyx/engine/internal/rules"
)

const unlockScrollJS = `document.body.style.overflow = 'auto';
document.body.style.position = 'static';
document.documentElement.style.overflow = 'auto';
document.documentElement.style.position = 'static';`

// JSFor renders the page-side code for one action. Unknown or
// incomplete actions render to "", which the caller skips.
func JSFor(action rules.Action) string {
	switch action.Kind {
	case rules.ActionRemove:
		return removalJS(action.Selectors)
	case rules.ActionUnlockScroll:
		return unlockScrollJS
	case rules.ActionRevealHidden:
		return revealJS(action.Selectors)
	case rules.ActionSetCookie:
		return cookieJS(action.Cookies)
	case rules.ActionCustomJS:
		return action.JS
	default:
		return ""
	}
}

func removalJS(selectors []string) string {
	var b strings.Builder
	for _, sel := range selectors {
		fmt.Fprintf(&b, "document.querySelectorAll('%s').forEach(function(el) { el.remove(); });\n",
			escapeSelector(sel))
	}
	return b.String()
}

func revealJS(selectors []string) string {
	var b strings.Builder
	for _, sel := range selectors {
		fmt.Fprintf(&b, `document.querySelectorAll('%s').forEach(function(el) {
    el.style.filter = 'none';
    el.style.opacity = '1';
    el.style.webkitFilter = 'none';
    el.classList.remove('blurred', 'faded', 'truncated');
});
`, escapeSelector(sel))
	}
	return b.String()
}

func cookieJS(cookies map[string]string) string {
	if len(cookies) == 0 {
		cookies = premiumCookies
	}
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b,
			"document.cookie = \"%s=%s; path=/; domain=\" + window.location.hostname;\n",
			name, cookies[name])
	}
	return b.String()
}

// escapeSelector keeps a CSS selector safe inside a single-quoted JS
// string literal.
func escapeSelector(sel string) string {
	sel = strings.ReplaceAll(sel, `\`, `\\`)
	sel = strings.ReplaceAll(sel, `'`, `\'`)
	return sel
}
