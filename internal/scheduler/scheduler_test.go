package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxidized-project/oxidized/internal/domain"
	"github.com/oxidized-project/oxidized/internal/spider"
	"github.com/oxidized-project/oxidized/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDecodeHash(t *testing.T) {
	_, err := decodeHash("51A3B1D96B198C8BB6ACDE8EC357AE7359DB2AFC")
	require.NoError(t, err)

	_, err = decodeHash("not-a-hash")
	assert.Error(t, err)

	_, err = decodeHash("aabb")
	assert.Error(t, err)
}

func TestCutSchemeAndTrimAnnounceSuffix(t *testing.T) {
	scheme, rest, ok := cutScheme("udp://tracker.example:80/announce")
	require.True(t, ok)
	assert.Equal(t, "udp", scheme)
	assert.Equal(t, "tracker.example:80", trimAnnounceSuffix(rest))

	_, _, ok = cutScheme("not-a-uri")
	assert.False(t, ok)
}

func TestIngestSpiderTorrentSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	s := &Scheduler{store: st, inFlight: make(map[int64]struct{})}

	disc := spider.Torrent{
		Name:     "Example Release",
		InfoHash: "51A3B1D96B198C8BB6ACDE8EC357AE7359DB2AFC",
		Files:    []spider.File{{Size: 5_000_000, Path: "a.iso"}},
	}

	s.ingestSpiderTorrent(ctx, disc)

	found, err := st.FindTorrentByInfoHash(ctx, disc.InfoHash)
	require.NoError(t, err)
	assert.Equal(t, "Example Release", found.Name)
	assert.Equal(t, int64(5), found.Size)
	assert.NotNil(t, found.LastScrape)

	// second ingest of the same hash is a no-op, not a duplicate row
	s.ingestSpiderTorrent(ctx, disc)
	stats, err := st.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalTorrents)
}

func TestReleaseRemovesFromInFlight(t *testing.T) {
	s := &Scheduler{inFlight: map[int64]struct{}{1: {}, 2: {}, 3: {}}}
	s.release(1, 3)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, stillThere := s.inFlight[2]
	assert.True(t, stillThere)
	assert.Len(t, s.inFlight, 1)
}

func TestTickDispatchesDueTorrentAndClaimsInFlight(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	require.NoError(t, st.CreateTorrents(ctx, []string{"AAAA000000000000000000000000000000000A"}))
	tr, err := st.FindTorrentByInfoHash(ctx, "AAAA000000000000000000000000000000000A")
	require.NoError(t, err)

	s := New(Config{UpdateInfo: true, UpdateTrackers: true}, st, nil, nil, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		batch := <-s.infoQueue
		assert.Len(t, batch, 1)
		assert.Equal(t, tr.ID, batch[0].ID)
	}()

	tickCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	s.tick(tickCtx)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer tick did not dispatch the due torrent")
	}

	s.mu.Lock()
	_, inFlight := s.inFlight[tr.ID]
	s.mu.Unlock()
	assert.True(t, inFlight)
}

func TestInFlightIDs(t *testing.T) {
	s := &Scheduler{inFlight: map[int64]struct{}{5: {}, 9: {}}}
	ids := s.inFlightIDs()
	assert.ElementsMatch(t, []int64{5, 9}, ids)
}

func TestShouldDeleteStaleHonorsCleanFlagAndThreeDayWindow(t *testing.T) {
	fourDaysAgo := time.Now().UTC().Add(-4 * 24 * time.Hour)
	oneHourAgo := time.Now().UTC().Add(-time.Hour)

	s := &Scheduler{cfg: Config{Clean: true}}
	assert.True(t, s.shouldDeleteStale(domain.Torrent{LastStale: &fourDaysAgo}))
	assert.False(t, s.shouldDeleteStale(domain.Torrent{LastStale: &oneHourAgo}))
	assert.False(t, s.shouldDeleteStale(domain.Torrent{LastStale: nil}))

	s.cfg.Clean = false
	assert.False(t, s.shouldDeleteStale(domain.Torrent{LastStale: &fourDaysAgo}))
}

func TestScrapeChunkSkipsMalformedHashesWithoutTouchingRegistry(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	created, err := st.CreateTorrentResolved(ctx, "BBBB000000000000000000000000000000000B", "name", 1, nil)
	require.NoError(t, err)

	// registry is left nil deliberately: every torrent in the chunk has a
	// malformed info hash, so scrapeChunk must bail out before ever
	// touching the tracker registry.
	s := &Scheduler{
		store:    st,
		registry: nil,
		inFlight: map[int64]struct{}{created.ID: {}},
	}

	chunk := []domain.Torrent{{ID: created.ID, InfoHash: "not-a-valid-hash"}}

	assert.NotPanics(t, func() {
		s.scrapeChunk(ctx, chunk)
	})

	s.mu.Lock()
	_, stillInFlight := s.inFlight[created.ID]
	s.mu.Unlock()
	assert.False(t, stillInFlight)
}
