package trackers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		count int
		want  time.Duration
	}{
		{1, 0},
		{2, 0},
		{3, 30 * time.Second},
		{4, 60 * time.Second},
		{5, 120 * time.Second},
		{6, 240 * time.Second},
		{7, 300 * time.Second},
		{20, 300 * time.Second},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, BackoffDelay(c.count))
	}
}

func TestRecordFailureAndShouldSkip(t *testing.T) {
	r := NewRegistry(nil)
	uri := "udp://tracker.example.com:80/announce"

	assert.False(t, r.ShouldSkip(uri))

	for i := 0; i < 3; i++ {
		r.RecordFailure(uri)
	}
	assert.True(t, r.ShouldSkip(uri))

	r.RecordSuccess(uri)
	assert.False(t, r.ShouldSkip(uri))
}

func TestRefreshFallsBackToNextMirror(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# comment\nws://nope.example.com/\n"))
	}))
	defer good.Close()

	reg := NewRegistry([]string{bad.URL, good.URL})
	trackers, err := reg.refresh(context.Background())
	require.NoError(t, err)
	// ws:// entries never probe successfully, so the verified list is empty,
	// but the fetch itself must have fallen through to the second mirror.
	assert.Empty(t, trackers)
}

func TestRefreshAllMirrorsFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	reg := NewRegistry([]string{bad.URL})
	_, err := reg.refresh(context.Background())
	assert.Error(t, err)
}
