package capability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageIsolatesScripts(t *testing.T) {
	s := NewFileStorage(t.TempDir())

	require.NoError(t, s.Set("a", "theme", "dark"))
	require.NoError(t, s.Set("b", "theme", "light"))

	v, ok, err := s.Get("a", "theme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dark", v)

	v, ok, err = s.Get("b", "theme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "light", v)
}

func TestStoragePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	s := NewFileStorage(dir)
	require.NoError(t, s.Set("a", "count", float64(3)))
	require.NoError(t, s.Set("a", "name", "x"))
	require.NoError(t, s.Delete("a", "name"))

	fresh := NewFileStorage(dir)
	v, ok, err := fresh.Get("a", "count")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(3), v)

	_, ok, err = fresh.Get("a", "name")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := fresh.List("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"count"}, keys)
}

func TestStorageMissingScriptIsEmpty(t *testing.T) {
	s := NewFileStorage(t.TempDir())

	_, ok, err := s.Get("ghost", "k")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := s.List("ghost")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestHTTPClientSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "POST", req.Method)
		assert.Equal(t, "1", req.Header.Get("X-Test"))
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	c := NewClient(nil)
	resp := c.Do(context.Background(), Request{
		Method:  "post",
		URL:     srv.URL,
		Headers: map[string]string{"X-Test": "1"},
		Body:    "ping",
	})

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "pong", resp.Body)
	assert.Equal(t, "text/plain", resp.Headers["Content-Type"])
	assert.Empty(t, resp.Error)
}

func TestHTTPClientRejectsBadRequests(t *testing.T) {
	c := NewClient(nil)

	resp := c.Do(context.Background(), Request{Method: "GET"})
	assert.Equal(t, 0, resp.Status)
	assert.NotEmpty(t, resp.Error)

	resp = c.Do(context.Background(), Request{Method: "GET", URL: "file:///etc/passwd"})
	assert.Equal(t, 0, resp.Status)
	assert.NotEmpty(t, resp.Error)
}

func TestNotifierStripsMarkup(t *testing.T) {
	var got Event
	n := NewNotifier(func(e Event) { got = e }, nil)

	require.NoError(t, n.Notify("a", `<script>alert(1)</script>Hi`, "<b>bold</b> text", 5000))

	assert.Equal(t, EventNotification, got.Type)
	assert.Equal(t, "a", got.Script)
	assert.Equal(t, "Hi", got.Payload["title"])
	assert.Equal(t, "bold text", got.Payload["text"])
	assert.Equal(t, 5000, got.Payload["timeout"])
}

func TestNotifierRejectsEmpty(t *testing.T) {
	n := NewNotifier(nil, nil)
	assert.Error(t, n.Notify("a", "<script></script>", "", 0))
}

func TestClipboardWriteAndEvent(t *testing.T) {
	var got Event
	c := NewClipboard(func(e Event) { got = e })

	require.NoError(t, c.Write("a", "copied"))
	assert.Equal(t, "copied", c.Read())
	assert.Equal(t, EventClipboard, got.Type)
}

func TestMenuRegisterAndClear(t *testing.T) {
	m := NewMenu(nil)

	cmd, err := m.Register("a", "Toggle")
	require.NoError(t, err)
	assert.NotEmpty(t, cmd.ID)

	other, err := m.Register("a", "Reset")
	require.NoError(t, err)
	assert.NotEqual(t, cmd.ID, other.ID)

	assert.Len(t, m.Commands("a"), 2)
	m.Clear("a")
	assert.Empty(t, m.Commands("a"))

	_, err = m.Register("a", "   ")
	assert.Error(t, err)
}
