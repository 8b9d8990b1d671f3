package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyx/engine/internal/infrastructure/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Rebase(t.TempDir())
	cfg.RateLimit.Enabled = false
	cfg.Sandbox.PoolSize = 1

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "online", decode(t, w)["status"])

	w = do(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestCorruptSettingsDoesNotBlockStartup(t *testing.T) {
	cfg := config.Default()
	cfg.Rebase(t.TempDir())
	cfg.RateLimit.Enabled = false
	cfg.Sandbox.PoolSize = 1

	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Paths.Settings), 0o755))
	require.NoError(t, os.WriteFile(cfg.Paths.Settings, []byte(`{"security": nope`), 0o644))

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	// The engine runs on defaults and the health report carries the
	// parse failure.
	w := do(t, srv, http.MethodPost, "/policy/check", map[string]any{"url": "https://example.com/"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "allow", decode(t, w)["verdict"])

	w = do(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body["settings_error"], "parse")
}

func TestPolicyCheckRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPut, "/security/config", map[string]any{"https_only": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPost, "/policy/check", map[string]any{"url": "http://example.com/"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "block", body["verdict"])
	assert.Equal(t, "https_only", body["reason"])

	w = do(t, srv, http.MethodPut, "/security/config", map[string]any{"https_only": false})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPost, "/policy/check", map[string]any{"url": "http://example.com/"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "allow", decode(t, w)["verdict"])
}

func TestBlocklistReload(t *testing.T) {
	srv := newTestServer(t)

	path := filepath.Join(srv.config.Paths.RulesDir, "ads.txt")
	require.NoError(t, os.WriteFile(path, []byte("doubleclick\\.net\n"), 0o644))

	w := do(t, srv, http.MethodPost, "/rules/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodPost, "/policy/check", map[string]any{
		"url":   "https://ads.doubleclick.net/pixel",
		"event": "request",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "block", body["verdict"])
	assert.Equal(t, "ads_trackers", body["reason"])
}

func TestScriptLifecycle(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/scripts", map[string]any{
		"name":    "greeter",
		"code":    "var greeted = true;",
		"include": []string{"*example.com*"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, srv, http.MethodGet, "/scripts/greeter", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["code"], "greeted")

	w = do(t, srv, http.MethodGet, "/scripts/match?url=https://example.com/page", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["scripts"], "greeter")

	w = do(t, srv, http.MethodDelete, "/scripts/greeter", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, srv, http.MethodGet, "/scripts/greeter", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExampleScriptSeeded(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/scripts", nil)
	require.Equal(t, http.StatusOK, w.Code)

	names := []string{}
	for _, raw := range decode(t, w)["scripts"].([]any) {
		names = append(names, raw.(map[string]any)["name"].(string))
	}
	assert.Contains(t, names, "example")
}

func TestPaywallDetect(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/paywall/detect", map[string]any{
		"html": `<html><body><div class="paywall-overlay"></div></body></html>`,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["detected"])
}

func TestPageLoaded(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/page/loaded", map[string]any{
		"url": "https://example.com/story",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Contains(t, body, "report")
}

func TestPageScripts(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/scripts", map[string]any{
		"name":    "reader",
		"code":    "var reading = true;",
		"include": []string{"*news.site*"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, srv, http.MethodGet, "/page/scripts?url=https://news.site/story", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)

	names := []string{}
	for _, raw := range body["scripts"].([]any) {
		names = append(names, raw.(map[string]any)["name"].(string))
	}
	assert.Contains(t, names, "reader")
	// Builtin selector techniques apply to every URL.
	assert.NotEmpty(t, body["paywall"])
}

func TestMetricsEndpoints(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/metrics/json", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
