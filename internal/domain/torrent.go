// Package domain holds the persistent shapes shared by every component of
// the indexer: the torrent record, its tracker observations, and the stat
// counters. These mirror §3 of the specification and the original project's
// oxidized_entity crate.
package domain

import (
	"regexp"
	"strings"
	"time"
)

// Torrent is the indexer's view of a single info-hash. Name, Size and Files
// are empty/zero until metadata has been resolved at least once.
type Torrent struct {
	ID                int64                 `json:"id"`
	InfoHash          string                `json:"info_hash"` // 40-char uppercase hex, unique
	Name              string                `json:"name"`
	Size              int64                 `json:"size"` // megabytes, truncated per-file and summed
	Files             []string              `json:"files"`
	Seeders           int                   `json:"seeders"`
	Leechers          int                   `json:"leechers"`
	Trackers          []TrackerObservation  `json:"trackers"`
	AddedAt           time.Time             `json:"added_at"`
	LastScrape        *time.Time            `json:"last_scrape"`         // metadata resolution time; nil if never resolved
	LastTrackerScrape *time.Time            `json:"last_tracker_scrape"` // last tracker-scrape cycle with any stat; nil if never scraped
	LastStale         *time.Time            `json:"last_stale"`          // start of the current zero-swarm run; nil if not currently stale
}

// TrackerObservation is one tracker's reported swarm size for a torrent at
// its last scrape.
type TrackerObservation struct {
	URL        string    `json:"url"`
	Seeders    int       `json:"seeders"`
	Leechers   int       `json:"leechers"`
	LastScrape time.Time `json:"last_scrape"`
}

var tvShowPattern = regexp.MustCompile(`(?i)(.+?)(S\d{2}|E\d{2}|Season|Episode)(.*)`)

// Category classifies a torrent's name the way the original indexer's
// Rust entity did, returning a (label, torznab-category-id) pair. Only
// Movies/TV/Other are exposed by the Torznab category skeleton (§6); the
// richer classification is retained so future category ids can use it
// without re-deriving the rules, and so "category" selection for item
// sub-attributes can special-case TV (which carries HD/SD subcategories).
func (t Torrent) Category() (label string, categoryID string) {
	name := t.Name
	if name == "" {
		return "Other", "8000"
	}

	switch {
	case tvShowPattern.MatchString(name):
		return "TV", "5000"
	case strings.Contains(name, "1080p"), strings.Contains(name, "720p"):
		return "Movies", "2000"
	case strings.Contains(name, "MP3"), strings.Contains(name, "FLAC"):
		return "Audio", "3000"
	case strings.Contains(name, "PDF"), strings.Contains(name, "EPUB"):
		return "Books", "7000"
	case strings.Contains(name, "PC"), strings.Contains(name, "MAC"):
		return "PC", "4000"
	case strings.Contains(name, "XXX"):
		return "XXX", "6000"
	default:
		return "Other", "8000"
	}
}

// SizeFromFileLengths sums ⌊length/1_000_000⌋ over each file's length in
// bytes, matching invariant 5 in §3 (truncation per file, not on the total).
func SizeFromFileLengths(lengthsBytes []int64) int64 {
	var total int64
	for _, length := range lengthsBytes {
		total += length / 1_000_000
	}
	return total
}

// NextLastStale implements the pure state machine behind invariant 3 in §3:
// last_stale is set the first time a scrape observes a zero swarm, held
// while the swarm stays zero, and cleared the moment either count goes
// non-zero. Folding it into a pure function (per the design note in §9)
// keeps it testable without a store.
func NextLastStale(prev *time.Time, seeders, leechers int, now time.Time) *time.Time {
	zero := seeders == 0 && leechers == 0

	if !zero {
		return nil
	}
	if prev != nil {
		return prev
	}
	t := now
	return &t
}
