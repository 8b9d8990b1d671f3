package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBlocklistSkipsCommentsAndBlanks(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "easylist.txt", "! comment line\n\ndoubleclick\\.net\nads\\.example\\.com\n")

	loader := NewLoader(nil)
	set, err := loader.Load(Source{Path: path, Category: CategoryAds})
	require.NoError(t, err)
	require.Len(t, set, 2)

	rs := &RuleSet{Category: CategoryAds, Rules: set}
	assert.NotNil(t, rs.MatchURL("https://ad.DoubleClick.net/x"))
	assert.NotNil(t, rs.MatchURL("http://ads.example.com/banner.js"))
	assert.Nil(t, rs.MatchURL("https://example.org"))
	assert.Equal(t, "easylist.txt", set[0].SourceSet)
}

func TestLoadPhishingListSkipsEntriesWithoutURL(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "phishtank.json",
		`[{"url": "evil\\.example"}, {"target": "no url here"}, {"url": "phish\\.test"}]`)

	loader := NewLoader(nil)
	set, err := loader.Load(Source{Path: path, Category: CategoryPhishing})
	require.NoError(t, err)
	assert.Len(t, set, 2)

	rs := &RuleSet{Category: CategoryPhishing, Rules: set}
	assert.NotNil(t, rs.MatchURL("https://evil.example/login"))
	assert.Nil(t, rs.MatchURL("https://example.com"))
}

func TestDiscoverSourcesAppliesDefaultMapping(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ads.txt", "ads\n")
	writeFile(t, dir, "phish.json", "[]")
	writeFile(t, dir, "notes.md", "ignored")

	sources, err := DiscoverSources(dir)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, CategoryAds, sources[0].Category)
	assert.Equal(t, CategoryPhishing, sources[1].Category)
}

func TestManifestOverridesCategories(t *testing.T) {
	dir := t.TempDir()
	trackers := writeFile(t, dir, "trackers.txt", "tracker\\.example\n")
	manifest := writeFile(t, dir, "sources.yaml",
		"sources:\n  - path: "+trackers+"\n    category: trackers\n")

	m, err := LoadManifest(manifest)
	require.NoError(t, err)
	require.Len(t, m.Sources, 1)
	assert.Equal(t, CategoryTrackers, m.Sources[0].Category)
}

func TestReloadIsolatesFailingSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ads.txt", "doubleclick\\.net\n")
	writeFile(t, dir, "phish.json", "{not valid json")

	store := NewStore(NewLoader(nil), nil, func() ([]Source, error) {
		return DiscoverSources(dir)
	})
	report := store.Reload()

	// Ads load; phishing fails but does not abort the reload.
	assert.Equal(t, 1, report.Counts[CategoryAds])
	var phishErr string
	for _, s := range report.Sources {
		if s.Category == CategoryPhishing {
			phishErr = s.Error
		}
	}
	assert.NotEmpty(t, phishErr)

	snap := store.Current()
	assert.NotNil(t, snap.Set(CategoryAds).MatchURL("https://doubleclick.net/ad"))
	assert.Equal(t, 0, snap.Set(CategoryPhishing).Len())
}

func TestReloadRetainsPreviousCategoryOnFailure(t *testing.T) {
	dir := t.TempDir()
	phish := writeFile(t, dir, "phish.json", `[{"url": "evil\\.example"}]`)

	store := NewStore(NewLoader(nil), nil, func() ([]Source, error) {
		return DiscoverSources(dir)
	})
	store.Reload()
	require.NotNil(t, store.Current().Set(CategoryPhishing).MatchURL("https://evil.example"))

	// Corrupt the file; the previous phishing snapshot must survive.
	require.NoError(t, os.WriteFile(phish, []byte("{broken"), 0o644))
	store.Reload()
	assert.NotNil(t, store.Current().Set(CategoryPhishing).MatchURL("https://evil.example"))
}

func TestReloadIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ads.txt", "doubleclick\\.net\ntracker\\.example\n")

	store := NewStore(NewLoader(nil), nil, func() ([]Source, error) {
		return DiscoverSources(dir)
	})

	probes := []string{
		"https://doubleclick.net/x",
		"https://tracker.example/y",
		"https://clean.example/z",
	}

	store.Reload()
	first := make([]bool, len(probes))
	for i, u := range probes {
		first[i] = store.Current().Set(CategoryAds).MatchURL(u) != nil
	}

	store.Reload()
	for i, u := range probes {
		assert.Equal(t, first[i], store.Current().Set(CategoryAds).MatchURL(u) != nil, u)
	}
}

func TestTechniqueRulesMatchAllWithoutPatterns(t *testing.T) {
	set := TechniqueRules("Overlay Removal", nil, Action{Kind: ActionRemove, Selectors: []string{".paywall-overlay"}})
	require.Len(t, set, 1)
	assert.True(t, set[0].Pattern.Matches("https://anything.example"))
	assert.Equal(t, ActionRemove, set[0].Action.Kind)
}

func TestPaywallTechniqueFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "techniques.yaml", `
- name: Cookie Bypass
  action: set_cookies
  patterns:
    - news\.com
  cookies:
    subscription: premium
- name: Overlay Removal
  action: remove
  selectors:
    - ".paywall-overlay"
`)

	loader := NewLoader(nil)
	set, err := loader.Load(Source{Path: path, Category: CategoryPaywall})
	require.NoError(t, err)
	require.Len(t, set, 2)

	assert.Equal(t, ActionSetCookie, set[0].Action.Kind)
	assert.True(t, set[0].Pattern.Matches("https://news.com/article"))
	assert.Equal(t, "premium", set[0].Action.Cookies["subscription"])

	assert.Equal(t, ActionRemove, set[1].Action.Kind)
	assert.True(t, set[1].Pattern.Matches("https://anywhere.example"))
}
