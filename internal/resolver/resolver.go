// Package resolver resolves an info hash into torrent metadata (name,
// size, file list) via the mainline DHT and peer wire protocol, the way
// a magnet link resolves without ever downloading payload data.
package resolver

import (
	"context"
	"encoding/hex"
	"os"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/anacrolix/torrent/storage"
	"github.com/rs/zerolog/log"

	"github.com/oxidized-project/oxidized/internal/domain"
	"github.com/oxidized-project/oxidized/internal/errors"
)

const resolveTimeout = 10 * time.Second

// Resolver wraps a single long-lived anacrolix/torrent client used purely
// for metadata exchange; pieces are never downloaded, only the info
// dictionary.
type Resolver struct {
	client *torrent.Client
}

// New starts the underlying torrent client. dataDir holds the discarded
// piece storage anacrolix requires even though resolution never writes
// piece data; it should point at a scratch directory the caller is free
// to wipe.
func New(dataDir string) (*Resolver, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating resolver data dir: %v", err)
	}

	cfg := torrent.NewDefaultClientConfig()
	cfg.DefaultStorage = storage.NewFile(dataDir)
	cfg.Seed = false
	cfg.NoUpload = true
	cfg.DisableAggressiveUpload = true

	client, err := torrent.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "starting torrent client: %v", err)
	}

	return &Resolver{client: client}, nil
}

// Close shuts down the underlying torrent client.
func (r *Resolver) Close() {
	r.client.Close()
}

// Resolved is the subset of a torrent's info dictionary the indexer
// persists.
type Resolved struct {
	Name  string
	Size  int64 // megabytes, per domain.SizeFromFileLengths
	Files []string
}

// Resolve adds infoHash (uppercase hex) to the client and waits up to ten
// seconds for its info dictionary to arrive over the wire, mirroring the
// original indexer's list-only metadata fetch with a fixed timeout.
func (r *Resolver) Resolve(ctx context.Context, infoHash string) (Resolved, error) {
	raw, err := hex.DecodeString(infoHash)
	if err != nil || len(raw) != 20 {
		return Resolved{}, domain.ErrInvalidInfoHash
	}
	var hash metainfo.Hash
	copy(hash[:], raw)

	t, isNew, err := r.client.AddTorrentInfoHash(hash)
	if err != nil {
		return Resolved{}, errors.Wrap(err, "adding torrent %s: %v", infoHash, err)
	}
	if isNew {
		defer t.Drop()
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	select {
	case <-t.GotInfo():
	case <-ctx.Done():
		log.Debug().Str("info_hash", infoHash).Msg("metadata resolution timed out")
		return Resolved{}, domain.ErrResolveTimeout
	}

	info := t.Info()
	if info == nil {
		return Resolved{}, domain.ErrResolveTimeout
	}

	files := info.UpvertedFiles()
	names := make([]string, 0, len(files))
	lengths := make([]int64, 0, len(files))
	for _, f := range files {
		names = append(names, f.DisplayPath(info))
		lengths = append(lengths, f.Length)
	}

	return Resolved{
		Name:  info.Name,
		Size:  domain.SizeFromFileLengths(lengths),
		Files: names,
	}, nil
}
