// Package trackers owns the cached list of tracker URIs the scrape
// consumer scrapes against, and the shared per-tracker failure backoff
// table. It is grounded on the original indexer's TorrentTrackers type:
// a list refreshed from ordered mirrors, validated against a canary
// info-hash scrape before being trusted.
package trackers

import (
	"bufio"
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/oxidized-project/oxidized/internal/errors"
	"github.com/oxidized-project/oxidized/internal/scrape"
)

var defaultMirrors = []string{
	"https://raw.githubusercontent.com/ngosang/trackerslist/master/trackers_best.txt",
	"https://ngosang.github.io/trackerslist/trackers_best.txt",
	"https://cdn.jsdelivr.net/gh/ngosang/trackerslist@master/trackers_best.txt",
}

// canaryHash is scraped against every candidate tracker to confirm it
// actually answers scrape requests before it's trusted into the cache.
var canaryHash = mustDecodeHash("51A3B1D96B198C8BB6ACDE8EC357AE7359DB2AFC")

const (
	refreshInterval = 60 * time.Second
	fetchTimeout    = 30 * time.Second
	maxListBytes    = 1 << 20
)

// Registry holds the current tracker list and each tracker's failure
// backoff state, shared by every scrape consumer goroutine.
type Registry struct {
	mirrors []string
	client  *http.Client

	mu          sync.RWMutex
	trackers    []string
	lastFetched time.Time

	group singleflight.Group

	failuresMu sync.Mutex
	failures   map[string]failureState
}

type failureState struct {
	count     int
	lastFailed time.Time
}

// NewRegistry builds a registry. If mirrors is empty the ngosang
// trackerslist mirrors are used, matching the original indexer.
func NewRegistry(mirrors []string) *Registry {
	if len(mirrors) == 0 {
		mirrors = defaultMirrors
	}
	return &Registry{
		mirrors:  mirrors,
		client:   &http.Client{Timeout: fetchTimeout},
		failures: make(map[string]failureState),
	}
}

// Trackers returns the cached tracker list, refreshing it first if it's
// empty or more than sixty seconds old.
func (r *Registry) Trackers(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	stale := len(r.trackers) == 0 || time.Since(r.lastFetched) > refreshInterval
	cached := r.trackers
	r.mu.RUnlock()

	if !stale {
		return cached, nil
	}

	v, err, _ := r.group.Do("refresh", func() (interface{}, error) {
		return r.refresh(ctx)
	})
	if err != nil {
		if len(cached) > 0 {
			log.Warn().Err(err).Msg("tracker list refresh failed, keeping stale cache")
			return cached, nil
		}
		return nil, err
	}
	return v.([]string), nil
}

// refresh walks the mirror list in order, using the first one that
// responds, validates each candidate URI by probing it with a scrape of
// canaryHash, and atomically replaces the cached list.
func (r *Registry) refresh(ctx context.Context) ([]string, error) {
	var lines []string
	var lastErr error

	for _, mirror := range r.mirrors {
		body, err := r.fetchMirror(ctx, mirror)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("mirror", mirror).Msg("cannot fetch trackers, moving to next mirror")
			continue
		}
		lines = body
		break
	}

	if lines == nil {
		return nil, errors.Wrap(lastErr, "cannot fetch trackers from any mirror: %v", lastErr)
	}

	var verified []string
	for _, uri := range lines {
		if r.probe(uri) {
			verified = append(verified, uri)
		}
	}

	r.mu.Lock()
	r.trackers = verified
	r.lastFetched = time.Now()
	r.mu.Unlock()

	log.Info().Int("count", len(verified)).Msg("torrent tracker list refreshed")
	return verified, nil
}

func (r *Registry) fetchMirror(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var lines []string
	err = retry.Do(func() error {
		resp, err := r.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errors.New("unexpected status fetching tracker list")
		}

		lines = nil
		scanner := bufio.NewScanner(io.LimitReader(resp.Body, maxListBytes))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				lines = append(lines, line)
			}
		}
		return scanner.Err()
	}, retry.Attempts(2), retry.Delay(500*time.Millisecond))

	return lines, err
}

// probe confirms a tracker URI actually answers a scrape request. udp://
// and http(s):// schemes are probed directly; ws:// and wss:// are
// rejected without a probe, as is any other scheme.
func (r *Registry) probe(uri string) bool {
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok {
		return false
	}

	switch scheme {
	case "udp":
		addr := strings.TrimSuffix(strings.TrimPrefix(uri, "udp://"), "/announce")
		_, err := scrape.ScrapeUDP(addr, [][20]byte{canaryHash})
		return err == nil
	case "http", "https":
		announce := strings.SplitN(uri, "/announce", 2)[0]
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, err := scrape.ScrapeHTTP(ctx, r.client, announce+"/announce", [][20]byte{canaryHash})
		return err == nil
	case "ws", "wss":
		return false
	default:
		return false
	}
}

// BackoffDelay returns how long to continue skipping a tracker given its
// current failure count, per the original indexer's escalating schedule.
func BackoffDelay(failureCount int) time.Duration {
	switch {
	case failureCount <= 2:
		return 0
	case failureCount == 3:
		return 30 * time.Second
	case failureCount == 4:
		return 60 * time.Second
	case failureCount == 5:
		return 120 * time.Second
	case failureCount == 6:
		return 240 * time.Second
	default:
		return 300 * time.Second
	}
}

// ShouldSkip reports whether a tracker is currently within its backoff
// window and should be skipped this cycle.
func (r *Registry) ShouldSkip(uri string) bool {
	r.failuresMu.Lock()
	defer r.failuresMu.Unlock()

	state, ok := r.failures[uri]
	if !ok || state.count == 0 {
		return false
	}
	return time.Since(state.lastFailed) < BackoffDelay(state.count)
}

// RecordFailure increments a tracker's failure count and resets its
// backoff clock.
func (r *Registry) RecordFailure(uri string) {
	r.failuresMu.Lock()
	defer r.failuresMu.Unlock()

	state := r.failures[uri]
	state.count++
	state.lastFailed = time.Now()
	r.failures[uri] = state
}

// RecordSuccess clears a tracker's failure state, matching the original
// indexer's timeout_trackers.remove on a successful scrape.
func (r *Registry) RecordSuccess(uri string) {
	r.failuresMu.Lock()
	defer r.failuresMu.Unlock()
	delete(r.failures, uri)
}

func mustDecodeHash(s string) [20]byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	var out [20]byte
	copy(out[:], b)
	return out
}
