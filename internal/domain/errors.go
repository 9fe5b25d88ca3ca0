package domain

import "github.com/oxidized-project/oxidized/internal/errors"

// Sentinel errors shared across packages operating on domain types, in the
// teacher's package-level Err* style (domain.go).
var (
	ErrTorrentNotFound  = errors.New("torrent not found")
	ErrInvalidInfoHash  = errors.New("invalid info hash")
	ErrInvalidPage      = errors.New("page must be >= 1")
	ErrResolveTimeout   = errors.New("metadata resolution timed out")
	ErrNoTrackersCached = errors.New("no trackers cached")
)
