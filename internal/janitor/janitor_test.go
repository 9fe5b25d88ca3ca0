package janitor

import (
	"context"
	"testing"
	"time"

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

func TestRunStopsOnContextCancel(t *testing.T) {
	st := newTestStore(t)
	j := New(Config{Clean: true}, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop after context cancellation")
	}
}

func TestVacuumRunsWithoutError(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.Vacuum(context.Background()))
}
