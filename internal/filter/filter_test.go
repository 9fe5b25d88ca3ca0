package filter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterTest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("badword\nanotherbad\n"))
	}))
	defer server.Close()

	f := New(context.Background(), []string{server.URL})
	require.NotEmpty(t, f.words)

	assert.True(t, f.Test(context.Background(), "This has a BadWord in it"))
	assert.False(t, f.Test(context.Background(), "This is clean"))
}

func TestFilterFallsBackToNextMirror(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("filtered\n"))
	}))
	defer good.Close()

	f := New(context.Background(), []string{bad.URL, good.URL})
	assert.True(t, f.Test(context.Background(), "this is FILTERED content"))
}
