// Package janitor runs the indexer's periodic housekeeping: an hourly
// VACUUM and, when enabled, an hourly stale-marking sweep that also deletes
// torrents whose metadata never resolved within thirty days. Deletion of
// stale-swarm rows happens in the scheduler's trackers consumer, not
// here — the janitor only flags those rows as stale.
// Grounded on the original indexer's MiscTasksService fairing.
package janitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/oxidized-project/oxidized/internal/store"
)

const tickInterval = time.Hour

// Config toggles the stale sweep; vacuum always runs.
type Config struct {
	Clean bool
}

// Janitor owns the store reference its hourly ticks operate against.
type Janitor struct {
	cfg   Config
	store *store.Store
}

func New(cfg Config, st *store.Store) *Janitor {
	return &Janitor{cfg: cfg, store: st}
}

// Run starts the vacuum loop and, if enabled, the stale loop, blocking
// until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	go j.runVacuum(ctx)
	if j.cfg.Clean {
		go j.runStale(ctx)
	}
	<-ctx.Done()
}

func (j *Janitor) runVacuum(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.store.Vacuum(ctx); err != nil {
				log.Error().Err(err).Msg("vacuuming database")
			}
		}
	}
}

// runStale marks newly-zero swarms stale and sweeps out torrents whose
// metadata never resolved within thirty days of discovery. Deleting rows
// that have stayed stale past the three-day window is the trackers
// consumer's job (internal/scheduler), run right after the scrape that
// observed the zero swarm, not on this hourly timer.
func (j *Janitor) runStale(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.store.MarkStale(ctx); err != nil {
				log.Error().Err(err).Msg("marking stale torrents")
			}
			if err := j.store.DeleteAbandoned(ctx); err != nil {
				log.Error().Err(err).Msg("deleting abandoned torrents")
			}
		}
	}
}
