package userscript

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyx/engine/internal/settings"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.json"))
	require.NoError(t, err)
	return NewRegistry(dir, store, resty.New(), nil), dir
}

func writeScript(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const darkModeScript = `// ==UserScript==
// @name        Dark Mode
// @version     1.0
// @include     *
// @exclude     *.ads.example.com*
// @grant       storage
// @grant       notify
// ==/UserScript==

document.body.style.background = '#111';`

func TestReloadParsesScripts(t *testing.T) {
	r, dir := newTestRegistry(t)
	writeScript(t, dir, "dark-mode.user.js", darkModeScript)

	report := r.Reload()
	assert.Equal(t, 1, report.Loaded)
	assert.Equal(t, 0, report.Skipped)

	s, ok := r.Get("dark-mode")
	require.True(t, ok)
	assert.Equal(t, "Dark Mode", s.Metadata.GetString("name"))
	assert.Equal(t, "1.0", s.Metadata.GetString("version"))
	assert.Equal(t, []string{"storage", "notify"}, s.Metadata.Grants())
	assert.True(t, s.Enabled)
	assert.Contains(t, s.Code, "background")
}

func TestIncludeExcludeMatching(t *testing.T) {
	r, dir := newTestRegistry(t)
	writeScript(t, dir, "dark-mode.user.js", darkModeScript)
	r.Reload()

	assert.Len(t, r.ScriptsMatching("https://site.example.com"), 1)
	assert.Empty(t, r.ScriptsMatching("https://x.ads.example.com/y"))
}

func TestScriptWithoutIncludeMatchesEverywhere(t *testing.T) {
	r, dir := newTestRegistry(t)
	writeScript(t, dir, "bare.user.js", "log('no metadata at all');")
	r.Reload()

	assert.Len(t, r.ScriptsMatching("https://anything.example/whatever"), 1)
}

func TestUnterminatedMetadataSkipsScript(t *testing.T) {
	r, dir := newTestRegistry(t)
	writeScript(t, dir, "broken.user.js", "// ==UserScript==\n// @name Broken\nlog('x');")
	writeScript(t, dir, "good.user.js", "log('ok');")

	report := r.Reload()
	assert.Equal(t, 1, report.Loaded)
	assert.Equal(t, 1, report.Skipped)

	_, ok := r.Get("broken")
	assert.False(t, ok)
	_, ok = r.Get("good")
	assert.True(t, ok)
}

func TestCreateRoundTripsMetadata(t *testing.T) {
	r, _ := newTestRegistry(t)

	meta := NewMetadata()
	meta.Add("name", "X")
	meta.Add("version", "1.0")
	meta.Add("include", "*")

	require.NoError(t, r.Create("x", "log('hi');", meta))
	r.Reload()

	s, ok := r.Get("x")
	require.True(t, ok)
	assert.Equal(t, "X", s.Metadata.GetString("name"))
	assert.Equal(t, "1.0", s.Metadata.GetString("version"))
	assert.Equal(t, []string{"*"}, s.Metadata.Include())
	assert.Equal(t, meta.Raw(), s.Metadata.Raw())
}

func TestCreateCollisionOverwrites(t *testing.T) {
	r, _ := newTestRegistry(t)

	require.NoError(t, r.Create("x", "log('first');", nil))
	require.NoError(t, r.Create("x", "log('second');", nil))

	scripts := r.All()
	require.Len(t, scripts, 1)
	assert.Contains(t, scripts[0].Code, "second")
}

func TestCreateRejectsPathEscapes(t *testing.T) {
	r, _ := newTestRegistry(t)

	assert.Error(t, r.Create("../evil", "x", nil))
	assert.Error(t, r.Create("a/b", "x", nil))
	assert.Error(t, r.Create("", "x", nil))
}

func TestSetEnabledPersistsAcrossReload(t *testing.T) {
	r, dir := newTestRegistry(t)
	writeScript(t, dir, "dark-mode.user.js", darkModeScript)
	r.Reload()

	require.NoError(t, r.SetEnabled("dark-mode", false))
	assert.Empty(t, r.ScriptsMatching("https://site.example.com"))

	// Reload re-parses file content; the toggle must survive.
	r.Reload()
	s, ok := r.Get("dark-mode")
	require.True(t, ok)
	assert.False(t, s.Enabled)
	assert.Empty(t, r.ScriptsMatching("https://site.example.com"))
}

func TestGlobalToggleGatesAllScripts(t *testing.T) {
	r, dir := newTestRegistry(t)
	writeScript(t, dir, "a.user.js", "log('a');")
	r.Reload()

	require.NoError(t, r.SetGlobalEnabled(false))
	assert.Empty(t, r.ScriptsMatching("https://site.example.com"))

	require.NoError(t, r.SetGlobalEnabled(true))
	assert.Len(t, r.ScriptsMatching("https://site.example.com"), 1)
}

func TestDeleteRemovesFileAndEntry(t *testing.T) {
	r, dir := newTestRegistry(t)
	writeScript(t, dir, "x.user.js", "log('x');")
	r.Reload()

	require.NoError(t, r.Delete("x"))
	_, ok := r.Get("x")
	assert.False(t, ok)
	_, err := os.Stat(filepath.Join(dir, "x.user.js"))
	assert.True(t, os.IsNotExist(err))
}

func TestReloadIdempotent(t *testing.T) {
	r, dir := newTestRegistry(t)
	writeScript(t, dir, "dark-mode.user.js", darkModeScript)

	urls := []string{
		"https://site.example.com",
		"https://x.ads.example.com/y",
		"https://other.example.org",
	}

	r.Reload()
	first := make([]int, len(urls))
	for i, u := range urls {
		first[i] = len(r.ScriptsMatching(u))
	}

	r.Reload()
	for i, u := range urls {
		assert.Equal(t, first[i], len(r.ScriptsMatching(u)), u)
	}
}

func TestNestedScriptDirsDiscovered(t *testing.T) {
	r, dir := newTestRegistry(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "community"), 0o755))
	writeScript(t, dir, filepath.Join("community", "nested.user.js"), "log('nested');")

	report := r.Reload()
	assert.Equal(t, 1, report.Loaded)
	_, ok := r.Get("community/nested")
	assert.True(t, ok)
}

func TestNestedScriptDoesNotShadowTopLevel(t *testing.T) {
	r, dir := newTestRegistry(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "community"), 0o755))
	writeScript(t, dir, "x.user.js", "log('top');")
	writeScript(t, dir, filepath.Join("community", "x.user.js"), "log('nested');")

	report := r.Reload()
	assert.Equal(t, 2, report.Loaded)

	top, ok := r.Get("x")
	require.True(t, ok)
	nested, ok := r.Get("community/x")
	require.True(t, ok)
	assert.Equal(t, "log('top');", top.Code)
	assert.Equal(t, "log('nested');", nested.Code)

	// Toggles are keyed per name, so disabling one leaves the other alone.
	require.NoError(t, r.SetEnabled("community/x", false))
	top, _ = r.Get("x")
	nested, _ = r.Get("community/x")
	assert.True(t, top.Enabled)
	assert.False(t, nested.Enabled)
}

func TestDeleteNestedScript(t *testing.T) {
	r, dir := newTestRegistry(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "community"), 0o755))
	writeScript(t, dir, filepath.Join("community", "x.user.js"), "log('nested');")
	r.Reload()

	require.NoError(t, r.Delete("community/x"))
	_, ok := r.Get("community/x")
	assert.False(t, ok)
	_, err := os.Stat(filepath.Join(dir, "community", "x.user.js"))
	assert.True(t, os.IsNotExist(err))

	// Path escapes are still rejected even though nested names are not.
	assert.Error(t, r.Delete("../x"))
	assert.Error(t, r.Delete(`community\x`))
}

func TestInstallFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(darkModeScript))
	}))
	defer srv.Close()

	r, _ := newTestRegistry(t)
	name, err := r.InstallFromURL(context.Background(), srv.URL+"/scripts/dark-mode.user.js")
	require.NoError(t, err)
	assert.Equal(t, "dark-mode", name)

	s, ok := r.Get("dark-mode")
	require.True(t, ok)
	assert.Equal(t, "Dark Mode", s.Metadata.GetString("name"))
}

func TestInstallFromURLIgnoresQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(darkModeScript))
	}))
	defer srv.Close()

	r, dir := newTestRegistry(t)
	name, err := r.InstallFromURL(context.Background(), srv.URL+"/scripts/dark-mode.user.js?token=1&ref=share")
	require.NoError(t, err)
	assert.Equal(t, "dark-mode", name)

	// The query string must not leak into the stored filename.
	_, err = os.Stat(filepath.Join(dir, "dark-mode.user.js"))
	assert.NoError(t, err)
}

func TestInstallFromURLRejectsBinary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte{0x7f, 'E', 'L', 'F', 0x00, 0x01, 0x02})
	}))
	defer srv.Close()

	r, _ := newTestRegistry(t)
	_, err := r.InstallFromURL(context.Background(), srv.URL+"/payload.user.js")
	assert.Error(t, err)
}

func TestEnsureExample(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.Reload()

	require.NoError(t, r.EnsureExample())
	s, ok := r.Get("example")
	require.True(t, ok)
	assert.Equal(t, "Example Userscript", s.Metadata.GetString("name"))

	// Second call is a no-op once scripts exist.
	require.NoError(t, r.EnsureExample())
	assert.Len(t, r.All(), 1)
}
