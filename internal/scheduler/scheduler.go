// Package scheduler is the indexer's producer/consumer pipeline: a single
// producer tick surveys the store for work, two consumer goroutines drain
// it — metadata resolution and tracker scraping — and a third ingests the
// spider's discoveries directly.
// Structure mirrors the original indexer's TorrentService fairing.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oxidized-project/oxidized/internal/domain"
	"github.com/oxidized-project/oxidized/internal/filter"
	"github.com/oxidized-project/oxidized/internal/resolver"
	"github.com/oxidized-project/oxidized/internal/scrape"
	"github.com/oxidized-project/oxidized/internal/spider"
	"github.com/oxidized-project/oxidized/internal/store"
	"github.com/oxidized-project/oxidized/internal/trackers"
)

const (
	producerInterval = 3 * time.Second
	trackerChunkSize = 10
	staleDeleteAfter = 3 * 24 * time.Hour
)

// Config toggles which background workers Run starts, mirroring the
// original service's per-task enable flags.
type Config struct {
	Spider         bool
	UpdateInfo     bool
	UpdateTrackers bool
	FilterNSFW     bool
	Clean          bool
}

// Scheduler owns the in-flight set and wires the store to the spider,
// resolver and tracker registry.
type Scheduler struct {
	cfg      Config
	store    *store.Store
	resolver *resolver.Resolver
	registry *trackers.Registry
	spider   *spider.Spider
	filter   *filter.Filter

	mu      sync.Mutex
	inFlight map[int64]struct{}

	infoQueue    chan []domain.Torrent
	trackerQueue chan []domain.Torrent
}

// New builds a scheduler. spider, resolver and registry may be nil when
// their corresponding Config flag is false.
func New(cfg Config, st *store.Store, rv *resolver.Resolver, reg *trackers.Registry, sp *spider.Spider, ft *filter.Filter) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		store:        st,
		resolver:     rv,
		registry:     reg,
		spider:       sp,
		filter:       ft,
		inFlight:     make(map[int64]struct{}),
		infoQueue:    make(chan []domain.Torrent),
		trackerQueue: make(chan []domain.Torrent),
	}
}

// Run starts the producer and every enabled consumer, blocking until ctx
// is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup

	if s.cfg.Spider && s.spider != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runSpiderConsumer(ctx)
		}()
	}
	if s.cfg.UpdateInfo && s.resolver != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runInfoConsumer(ctx)
		}()
	}
	if s.cfg.UpdateTrackers && s.registry != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runTrackerConsumer(ctx)
		}()
	}
	if s.cfg.UpdateInfo || s.cfg.UpdateTrackers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runProducer(ctx)
		}()
	}

	wg.Wait()
}

// runProducer surveys the store every three seconds and dispatches due
// work to the info and tracker consumer channels.
func (s *Scheduler) runProducer(ctx context.Context) {
	s.tick(ctx) // tokio::interval fires immediately on its first tick; time.Ticker does not

	ticker := time.NewTicker(producerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick surveys the store once for each enabled queue and dispatches due
// work to the matching consumer channel. InFlight is locked only around
// its own map mutations, never across the store query (I/O) or the
// channel send (which may block on a slow consumer) — holding a mutex
// across an await is the anti-pattern the concurrency model rules out.
func (s *Scheduler) tick(ctx context.Context) {
	ignore := s.inFlightIDs()

	if s.cfg.UpdateInfo {
		due, err := s.store.FindTorrentQueueInfo(ctx, ignore)
		if err != nil {
			log.Error().Err(err).Msg("querying info queue")
		} else if len(due) > 0 {
			s.claim(due)
			select {
			case s.infoQueue <- due:
			case <-ctx.Done():
			}
		}
	}

	if s.cfg.UpdateTrackers {
		due, err := s.store.FindTorrentQueueTrackers(ctx, ignore)
		if err != nil {
			log.Error().Err(err).Msg("querying tracker queue")
		} else {
			for start := 0; start < len(due); start += trackerChunkSize {
				end := start + trackerChunkSize
				if end > len(due) {
					end = len(due)
				}
				chunk := due[start:end]
				s.claim(chunk)
				select {
				case s.trackerQueue <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (s *Scheduler) inFlightIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.inFlight))
	for id := range s.inFlight {
		ids = append(ids, id)
	}
	return ids
}

// claim adds every torrent's id to InFlight under a single brief lock.
func (s *Scheduler) claim(batch []domain.Torrent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range batch {
		s.inFlight[t.ID] = struct{}{}
	}
}

func (s *Scheduler) release(ids ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.inFlight, id)
	}
}

// runSpiderConsumer ingests magneticod's discovery stream directly:
// magneticod has already resolved full metadata as part of its own DHT
// crawl, so these torrents skip the info-resolution queue entirely and
// go straight into the tracker-scrape queue.
func (s *Scheduler) runSpiderConsumer(ctx context.Context) {
	found, err := s.spider.Start()
	if err != nil {
		log.Error().Err(err).Msg("starting spider")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case disc, ok := <-found:
			if !ok {
				return
			}
			s.ingestSpiderTorrent(ctx, disc)
		}
	}
}

func (s *Scheduler) ingestSpiderTorrent(ctx context.Context, disc spider.Torrent) {
	exists, err := s.store.ExistsByInfoHash(ctx, disc.InfoHash)
	if err != nil {
		log.Error().Err(err).Str("info_hash", disc.InfoHash).Msg("checking torrent existence")
		return
	}
	if exists {
		return
	}

	if s.filter != nil && s.cfg.FilterNSFW && s.filter.Test(ctx, disc.Name) {
		return
	}

	lengths := make([]int64, 0, len(disc.Files))
	paths := make([]string, 0, len(disc.Files))
	for _, f := range disc.Files {
		lengths = append(lengths, f.Size)
		paths = append(paths, f.Path)
	}
	size := domain.SizeFromFileLengths(lengths)

	if _, err := s.store.CreateTorrentResolved(ctx, disc.InfoHash, disc.Name, size, paths); err != nil {
		log.Error().Err(err).Str("info_hash", disc.InfoHash).Msg("ingesting spider-discovered torrent")
	}
}

// runInfoConsumer resolves metadata for each torrent the producer sends,
// one at a time, mirroring the original indexer's consumer_info.
func (s *Scheduler) runInfoConsumer(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-s.infoQueue:
			if !ok {
				return
			}
			for _, t := range batch {
				s.resolveOne(ctx, t)
			}
		}
	}
}

func (s *Scheduler) resolveOne(ctx context.Context, t domain.Torrent) {
	defer s.release(t.ID)

	resolved, err := s.resolver.Resolve(ctx, t.InfoHash)
	if err != nil {
		// Resolution failures are left for the next tick rather than
		// deleted immediately; abandoned torrents are swept on their own
		// thirty-day schedule (store.DeleteAbandoned).
		log.Debug().Err(err).Str("info_hash", t.InfoHash).Msg("metadata resolution failed")
		return
	}

	if _, err := s.store.UpdateTorrentInfo(ctx, t.ID, resolved.Name, resolved.Size, resolved.Files); err != nil {
		log.Error().Err(err).Str("info_hash", t.InfoHash).Msg("storing resolved metadata")
	}
}

// runTrackerConsumer scrapes every cached tracker for each chunk the
// producer sends, correlating results back to torrents by info hash —
// never by chunk position — and spawns one goroutine per chunk so a slow
// tracker on one chunk doesn't stall the others.
func (s *Scheduler) runTrackerConsumer(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-s.trackerQueue:
			if !ok {
				return
			}
			wg.Add(1)
			go func(chunk []domain.Torrent) {
				defer wg.Done()
				s.scrapeChunk(ctx, chunk)
			}(chunk)
		}
	}
}

func (s *Scheduler) scrapeChunk(ctx context.Context, chunk []domain.Torrent) {
	ids := make([]int64, len(chunk))
	for i, t := range chunk {
		ids[i] = t.ID
	}
	defer s.release(ids...)

	hashes := make([][20]byte, 0, len(chunk))
	for _, t := range chunk {
		h, err := decodeHash(t.InfoHash)
		if err != nil {
			log.Warn().Err(err).Str("info_hash", t.InfoHash).Msg("skipping malformed info hash")
			continue
		}
		hashes = append(hashes, h)
	}
	if len(hashes) == 0 {
		return
	}

	uris, err := s.registry.Trackers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("fetching tracker list")
		return
	}

	// perHash accumulates every tracker's reported stats for a given
	// torrent, keyed by the torrent's own uppercase-hex info hash — the
	// hash-keyed correlation the tracker-scrape consumer must use instead
	// of indexing into a tracker's response by chunk position.
	perHash := make(map[string][]domain.TrackerObservation)

	for _, uri := range uris {
		if s.registry.ShouldSkip(uri) {
			continue
		}

		stats, err := s.scrapeTracker(ctx, uri, hashes)
		if err != nil {
			s.registry.RecordFailure(uri)
			log.Debug().Err(err).Str("tracker", uri).Msg("tracker scrape failed")
			continue
		}
		s.registry.RecordSuccess(uri)

		now := time.Now().UTC()
		for hash, st := range stats {
			perHash[hash] = append(perHash[hash], domain.TrackerObservation{
				URL:        uri,
				Seeders:    st.Seeders,
				Leechers:   st.Leechers,
				LastScrape: now,
			})
		}
	}

	for _, t := range chunk {
		observations, ok := perHash[t.InfoHash]
		if !ok || len(observations) == 0 {
			continue
		}
		updated, err := s.store.UpdateTorrentTrackers(ctx, t.ID, observations)
		if err != nil {
			log.Error().Err(err).Str("info_hash", t.InfoHash).Msg("storing tracker-scrape results")
			continue
		}

		if s.shouldDeleteStale(updated) {
			if err := s.store.DeleteTorrents(ctx, []int64{updated.ID}); err != nil {
				log.Error().Err(err).Str("info_hash", t.InfoHash).Msg("deleting stale torrent")
			}
		}
	}
}

// shouldDeleteStale implements §4.F step 4's cleanup policy: once clean
// mode is enabled, a torrent whose swarm has stayed empty past the
// three-day window is deleted right after the update that observed it.
func (s *Scheduler) shouldDeleteStale(updated domain.Torrent) bool {
	return s.cfg.Clean && updated.LastStale != nil && time.Since(*updated.LastStale) > staleDeleteAfter
}

func (s *Scheduler) scrapeTracker(ctx context.Context, uri string, hashes [][20]byte) (map[string]scrape.Stats, error) {
	scheme, rest, ok := cutScheme(uri)
	if !ok {
		return nil, domain.ErrNoTrackersCached
	}

	switch scheme {
	case "udp":
		addr := trimAnnounceSuffix(rest)
		return scrape.ScrapeUDP(addr, hashes)
	case "http", "https":
		return scrape.ScrapeHTTP(ctx, httpClient, scheme+"://"+rest, hashes)
	default:
		return nil, domain.ErrNoTrackersCached
	}
}
