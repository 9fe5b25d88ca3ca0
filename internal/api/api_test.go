package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxidized-project/oxidized/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIndexHealthCheck(t *testing.T) {
	srv := New(newTestStore(t), nil, "")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hello")
}

func TestListRequiresAPIKey(t *testing.T) {
	srv := New(newTestStore(t), nil, "secret")
	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/list?apikey=secret", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAddRequiresBearerToken(t *testing.T) {
	st := newTestStore(t)
	srv := New(st, nil, "secret")

	body, _ := json.Marshal(map[string]string{"info_hash": "abc123"})
	req := httptest.NewRequest(http.MethodPost, "/add", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/add", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	torrent := resp["torrent"].(map[string]any)
	assert.Equal(t, "ABC123", torrent["info_hash"])
}

func TestGetByInfoHashReportsSpeed(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.CreateTorrents(context.Background(), []string{"feed000000000000000000000000000000000a"}))

	srv := New(st, nil, "")
	req := httptest.NewRequest(http.MethodGet, "/FEED000000000000000000000000000000000A", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "speed")
}

func TestGetByInfoHashNotFound(t *testing.T) {
	srv := New(newTestStore(t), nil, "")
	req := httptest.NewRequest(http.MethodGet, "/0000000000000000000000000000000000000A", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTorznabCaps(t *testing.T) {
	srv := New(newTestStore(t), nil, "")
	req := httptest.NewRequest(http.MethodGet, "/api?t=caps", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/xml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `title="Oxidized"`)
	assert.Contains(t, w.Body.String(), `id="5040"`)
}

func TestTorznabSearch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.CreateTorrents(ctx, []string{"abc123"}))
	tr, err := st.FindTorrentByInfoHash(ctx, "abc123")
	require.NoError(t, err)
	_, err = st.UpdateTorrentInfo(ctx, tr.ID, "Ubuntu Server 24.04", 10, []string{"a.iso"})
	require.NoError(t, err)

	srv := New(st, nil, "")
	req := httptest.NewRequest(http.MethodGet, "/api?t=search&q=ubuntu", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Ubuntu Server 24.04")
	assert.Contains(t, w.Body.String(), "magnet:?xt=urn:btih:ABC123")
}
