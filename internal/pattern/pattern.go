package pattern

import (
	"regexp"
	"strings"
)

// Dialect selects how a pattern source string is interpreted.
type Dialect int

const (
	// Glob treats * as any sequence and ? as any single character. The
	// compiled expression is anchored to the start of the URL unless the
	// source begins with *, and to the end unless it ends with *.
	Glob Dialect = iota
	// Regex treats the source as a raw regular expression evaluated with
	// search semantics (unanchored).
	Regex
)

// Options controls pattern compilation.
type Options struct {
	Dialect         Dialect
	CaseInsensitive bool
}

// Pattern is an immutable compiled matcher. A Pattern built from an empty
// or invalid source never matches; the compile error is retained so rule
// loaders can surface it in status reports.
type Pattern struct {
	source string
	re     *regexp.Regexp
	err    error
}

// Compile builds a Pattern from source. It never fails: a source that
// cannot be compiled yields a Pattern whose Matches always returns false.
func Compile(source string, opts Options) *Pattern {
	p := &Pattern{source: source}
	if source == "" {
		return p
	}

	expr := source
	if opts.Dialect == Glob {
		expr = globToRegex(source)
	}
	if opts.CaseInsensitive {
		expr = "(?i)" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		p.err = err
		return p
	}
	p.re = re
	return p
}

// globToRegex escapes regex metacharacters, then rewrites the escaped
// wildcards and applies the anchoring rules.
func globToRegex(source string) string {
	expr := regexp.QuoteMeta(source)
	expr = strings.ReplaceAll(expr, `\*`, `.*`)
	expr = strings.ReplaceAll(expr, `\?`, `.`)

	if !strings.HasPrefix(expr, ".*") {
		expr = "^" + expr
	}
	if !strings.HasSuffix(expr, ".*") {
		expr = expr + "$"
	}
	return expr
}

// Matches reports whether url matches the pattern. Search semantics: the
// expression may match anywhere in the URL unless it carries anchors.
func (p *Pattern) Matches(url string) bool {
	if p.re == nil {
		return false
	}
	return p.re.MatchString(url)
}

// Source returns the original pattern string.
func (p *Pattern) Source() string {
	return p.source
}

// Err returns the compile error, if any. A non-nil Err means the pattern
// was degraded to never-match rather than rejected.
func (p *Pattern) Err() error {
	return p.err
}
