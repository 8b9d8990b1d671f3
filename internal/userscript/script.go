package userscript

import (
	"github.com/voyx/engine/internal/pattern"
)

// Userscript is one named, independently toggleable unit of injectable
// code plus its parsed metadata. Identity is the name, derived from the
// filename with the .user.js suffix stripped.
type Userscript struct {
	Name     string
	Code     string
	Metadata *Metadata
	Enabled  bool

	include []*pattern.Pattern
	exclude []*pattern.Pattern
}

// newScript compiles include/exclude patterns up front so URL matching
// on the injection path is allocation-free. Userscript patterns keep the
// glob dialect and stay case-sensitive, unlike blocklist matching.
func newScript(name, code string, meta *Metadata, enabled bool) *Userscript {
	s := &Userscript{
		Name:     name,
		Code:     code,
		Metadata: meta,
		Enabled:  enabled,
	}
	opts := pattern.Options{Dialect: pattern.Glob}
	for _, p := range meta.Include() {
		s.include = append(s.include, pattern.Compile(p, opts))
	}
	for _, p := range meta.Exclude() {
		s.exclude = append(s.exclude, pattern.Compile(p, opts))
	}
	return s
}

// MatchesURL reports whether the script should run on url. An exclude
// match always wins over any include match; a script with no include
// patterns runs everywhere.
func (s *Userscript) MatchesURL(url string) bool {
	if !s.Enabled {
		return false
	}
	for _, p := range s.exclude {
		if p.Matches(url) {
			return false
		}
	}
	for _, p := range s.include {
		if p.Matches(url) {
			return true
		}
	}
	return len(s.include) == 0
}

// withEnabled returns a copy with the enabled flag set; scripts inside a
// snapshot are never mutated in place.
func (s *Userscript) withEnabled(enabled bool) *Userscript {
	clone := *s
	clone.Enabled = enabled
	return &clone
}
