package userscript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSourceNoBlock(t *testing.T) {
	meta, code, err := parseSource("console.log('hi');")
	require.NoError(t, err)
	assert.Empty(t, meta.Keys())
	assert.Equal(t, "console.log('hi');", code)
}

func TestParseSourceDirectives(t *testing.T) {
	src := `// ==UserScript==
// @Name   Mixed Case Key
// @version 2.1
// @include https://*.example.com/*
// @include *news*
// @exclude *login*
// @run-at
// not a directive, ignored
// ==/UserScript==

doWork();`

	meta, code, err := parseSource(src)
	require.NoError(t, err)

	assert.Equal(t, "Mixed Case Key", meta.GetString("name"))
	assert.Equal(t, "2.1", meta.GetString("version"))
	assert.Equal(t, []string{"https://*.example.com/*", "*news*"}, meta.Include())
	assert.Equal(t, []string{"*login*"}, meta.Exclude())

	v, ok := meta.Get("run-at")
	require.True(t, ok)
	assert.Equal(t, true, v)

	assert.Equal(t, "doWork();", code)
}

func TestParseSourceScalarLastWriteWins(t *testing.T) {
	src := `// ==UserScript==
// @version 1.0
// @version 2.0
// ==/UserScript==
x();`

	meta, _, err := parseSource(src)
	require.NoError(t, err)
	assert.Equal(t, "2.0", meta.GetString("version"))
	assert.Equal(t, []string{"version"}, meta.Keys())
}

func TestParseSourceUnterminated(t *testing.T) {
	_, _, err := parseSource("// ==UserScript==\n// @name x\ncode();")
	assert.ErrorIs(t, err, ErrUnterminatedMetadata)
}

func TestParseSourceTabSeparatedValue(t *testing.T) {
	meta, _, err := parseSource("// ==UserScript==\n// @name\tTabbed\n// ==/UserScript==\n")
	require.NoError(t, err)
	assert.Equal(t, "Tabbed", meta.GetString("name"))
}

func TestSerializeRoundTrip(t *testing.T) {
	meta := NewMetadata()
	meta.Add("name", "Round Trip")
	meta.Add("include", "*a*")
	meta.Add("include", "*b*")
	meta.Add("noframes", "")

	parsed, code, err := parseSource(meta.Serialize() + "\nbody();")
	require.NoError(t, err)
	assert.Equal(t, "body();", code)
	assert.Equal(t, meta.Keys(), parsed.Keys())
	assert.Equal(t, meta.Raw(), parsed.Raw())
}

func TestInjectionCode(t *testing.T) {
	s := newScript("dark-mode", "document.title = 'x';", NewMetadata(), true)

	code := InjectionCodeFor(s)
	assert.Contains(t, code, `"dark-mode"`)
	assert.Contains(t, code, "voyx")
	assert.Contains(t, code, "document.title = 'x';")

	disabled := s.withEnabled(false)
	assert.Empty(t, InjectionCodeFor(disabled))
}

func TestInjectionCodeEscapesName(t *testing.T) {
	s := newScript(`we"ird`, "x();", NewMetadata(), true)
	code := InjectionCodeFor(s)
	assert.NotContains(t, code, `"we"ird"`)
}
