// Package filter implements the optional NSFW/bad-word content filter
// consulted before a newly resolved torrent's name is stored, mirroring
// the original indexer's NSFWFilter.
package filter

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var defaultMirrors = []string{
	"https://raw.githubusercontent.com/LDNOOBW/List-of-Dirty-Naughty-Obscene-and-Otherwise-Bad-Words/master/en",
	"https://cdn.jsdelivr.net/gh/LDNOOBW/List-of-Dirty-Naughty-Obscene-and-Otherwise-Bad-Words@master/en",
}

const (
	refreshInterval = 24 * time.Hour
	fetchTimeout    = 30 * time.Second
	maxListBytes    = 1 << 20
)

// Filter tests torrent names against a cached bad-word list, refreshed
// once a day.
type Filter struct {
	mirrors []string
	client  *http.Client
	group   singleflight.Group

	mu          sync.RWMutex
	words       []string
	lastUpdated time.Time
}

// New builds a filter and performs its first word-list fetch. If mirrors
// is empty, the LDNOOBW list mirrors are used.
func New(ctx context.Context, mirrors []string) *Filter {
	if len(mirrors) == 0 {
		mirrors = defaultMirrors
	}
	f := &Filter{
		mirrors: mirrors,
		client:  &http.Client{Timeout: fetchTimeout},
	}
	f.words, _ = f.refresh(ctx)
	return f
}

// Test reports whether text contains any cached bad word, refreshing the
// list first if it's empty or more than 24 hours old.
func (f *Filter) Test(ctx context.Context, text string) bool {
	words := f.getWords(ctx)
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

func (f *Filter) getWords(ctx context.Context) []string {
	f.mu.RLock()
	stale := len(f.words) == 0 || time.Since(f.lastUpdated) > refreshInterval
	cached := f.words
	f.mu.RUnlock()

	if !stale {
		return cached
	}

	v, err, _ := f.group.Do("refresh", func() (interface{}, error) {
		return f.refresh(ctx)
	})
	if err != nil {
		log.Warn().Err(err).Msg("cannot fetch bad-words list, keeping stale cache")
		return cached
	}
	return v.([]string)
}

func (f *Filter) refresh(ctx context.Context) ([]string, error) {
	var all []string
	var lastErr error

	for _, url := range f.mirrors {
		words, err := f.fetchMirror(ctx, url)
		if err != nil {
			lastErr = err
			log.Warn().Err(err).Str("mirror", url).Msg("cannot fetch bad-words list, moving to next mirror")
			continue
		}
		all = words
		lastErr = nil
		break
	}

	f.mu.Lock()
	if all != nil {
		f.words = all
		f.lastUpdated = time.Now()
	}
	f.mu.Unlock()

	log.Info().Int("count", len(all)).Msg("fetched bad-words list")
	return all, lastErr
}

func (f *Filter) fetchMirror(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, io.ErrUnexpectedEOF
	}

	var words []string
	scanner := bufio.NewScanner(io.LimitReader(resp.Body, maxListBytes))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			words = append(words, line)
		}
	}
	return words, scanner.Err()
}
