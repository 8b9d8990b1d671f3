// Package userscript owns the set of user scripts, their declarative
// metadata, persisted enable state, and injectable code generation.
package userscript

import (
	"errors"
	"fmt"
	"strings"
)

// Metadata block marker lines, matched exactly after trimming.
const (
	metaOpen  = "// ==UserScript=="
	metaClose = "// ==/UserScript=="
)

// ErrUnterminatedMetadata is returned when a script opens a metadata
// block and never closes it. The script is skipped, not loaded headless.
var ErrUnterminatedMetadata = errors.New("metadata block not terminated")

// multiValued lists the keys that accumulate into a list. Every other
// key is a scalar with last-write-wins semantics.
var multiValued = map[string]bool{
	"include": true,
	"exclude": true,
	"grant":   true,
}

// Metadata is an ordered mapping from lowercase key to value. Values are
// string, bool (for valueless keys), or []string for multi-valued keys.
type Metadata struct {
	order  []string
	values map[string]any
}

// NewMetadata returns an empty metadata mapping.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]any)}
}

// Add records one metadata directive. Keys are lowercased; an empty
// value becomes boolean true.
func (m *Metadata) Add(key, value string) {
	key = strings.ToLower(key)

	if multiValued[key] {
		list, _ := m.values[key].([]string)
		if len(list) == 0 {
			m.order = append(m.order, key)
		}
		if value != "" {
			m.values[key] = append(list, value)
		} else if len(list) == 0 {
			m.values[key] = []string{}
		}
		return
	}

	if _, seen := m.values[key]; !seen {
		m.order = append(m.order, key)
	}
	if value == "" {
		m.values[key] = true
	} else {
		m.values[key] = value
	}
}

// Get returns the raw value for a key.
func (m *Metadata) Get(key string) (any, bool) {
	v, ok := m.values[strings.ToLower(key)]
	return v, ok
}

// GetString returns a scalar value, or "" when the key is absent or not
// a string.
func (m *Metadata) GetString(key string) string {
	if v, ok := m.values[strings.ToLower(key)].(string); ok {
		return v
	}
	return ""
}

// list returns a multi-valued key's entries.
func (m *Metadata) list(key string) []string {
	v, _ := m.values[key].([]string)
	return v
}

// Include returns the include URL patterns.
func (m *Metadata) Include() []string { return m.list("include") }

// Exclude returns the exclude URL patterns.
func (m *Metadata) Exclude() []string { return m.list("exclude") }

// Grants returns the capability grants declared by the script.
func (m *Metadata) Grants() []string { return m.list("grant") }

// Keys returns the keys in first-seen order.
func (m *Metadata) Keys() []string {
	return append([]string(nil), m.order...)
}

// Raw exports the mapping for round-trip serialization. List values stay
// lists, scalars stay scalars.
func (m *Metadata) Raw() map[string]any {
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		if list, ok := v.([]string); ok {
			out[k] = append([]string(nil), list...)
			continue
		}
		out[k] = v
	}
	return out
}

// Serialize renders the metadata back into a fenced block, preserving
// key order and expanding list values into repeated directives.
func (m *Metadata) Serialize() string {
	var b strings.Builder
	b.WriteString(metaOpen + "\n")
	for _, key := range m.order {
		switch v := m.values[key].(type) {
		case []string:
			for _, item := range v {
				fmt.Fprintf(&b, "// @%s %s\n", key, item)
			}
		case bool:
			fmt.Fprintf(&b, "// @%s\n", key)
		default:
			fmt.Fprintf(&b, "// @%s %s\n", key, v)
		}
	}
	b.WriteString(metaClose + "\n")
	return b.String()
}

// parseSource splits a script file into metadata and code. A file with
// no metadata block is all code. Directive lines have the form
// "// @key value"; anything else inside the block is ignored.
func parseSource(content string) (*Metadata, string, error) {
	lines := strings.Split(content, "\n")

	open := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == metaOpen {
			open = i
			break
		}
	}
	if open == -1 {
		return NewMetadata(), content, nil
	}

	meta := NewMetadata()
	for i := open + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == metaClose {
			code := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			return meta, code, nil
		}
		if !strings.HasPrefix(line, "// @") {
			continue
		}
		directive := strings.TrimPrefix(line, "// @")
		key, value := directive, ""
		if idx := strings.IndexAny(directive, " \t"); idx != -1 {
			key, value = directive[:idx], strings.TrimSpace(directive[idx+1:])
		}
		if key == "" {
			continue
		}
		meta.Add(key, value)
	}

	return nil, "", ErrUnterminatedMetadata
}
