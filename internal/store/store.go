// Package store is the indexer's persistence layer: a single SQLite
// database (via the pure-Go modernc.org/sqlite driver) holding the
// torrents table and a small stats table of running counters. Nearly every
// operation here corresponds to a query or mutation in the original
// indexer's service crate; DeleteAbandoned has no direct counterpart.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/oxidized-project/oxidized/internal/domain"
	"github.com/oxidized-project/oxidized/internal/errors"
)

const (
	staleWindow    = 3 * 24 * time.Hour
	abandonWindow  = 30 * 24 * time.Hour
	statsStaleness = 120 * time.Second
	queuePageSize  = 50
)

// Store wraps the database connection pool. All methods are safe for
// concurrent use; database/sql handles connection pooling.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite database at dsn and ensures the schema
// exists, creating tables and indices on first run.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database: %v", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers; avoid SQLITE_BUSY under concurrent writes

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "running schema migration: %v", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Vacuum reclaims space freed by deleted rows, run hourly by the janitor.
func (s *Store) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return errors.Wrap(err, "vacuuming database: %v", err)
}

// row is the flat scan target for a torrents row.
type row struct {
	id                int64
	infoHash          string
	name              sql.NullString
	size              int64
	files             string
	seeders           int
	leechers          int
	trackers          string
	addedAt           time.Time
	lastScrape        sql.NullTime
	lastTrackerScrape sql.NullTime
	lastStale         sql.NullTime
}

func (r row) toDomain() (domain.Torrent, error) {
	var files []string
	if err := json.Unmarshal([]byte(r.files), &files); err != nil {
		return domain.Torrent{}, errors.Wrap(err, "decoding files column: %v", err)
	}
	var trackers []domain.TrackerObservation
	if err := json.Unmarshal([]byte(r.trackers), &trackers); err != nil {
		return domain.Torrent{}, errors.Wrap(err, "decoding trackers column: %v", err)
	}

	t := domain.Torrent{
		ID:       r.id,
		InfoHash: r.infoHash,
		Size:     r.size,
		Files:    files,
		Seeders:  r.seeders,
		Leechers: r.leechers,
		Trackers: trackers,
		AddedAt:  r.addedAt,
	}
	if r.name.Valid {
		t.Name = r.name.String
	}
	if r.lastScrape.Valid {
		v := r.lastScrape.Time
		t.LastScrape = &v
	}
	if r.lastTrackerScrape.Valid {
		v := r.lastTrackerScrape.Time
		t.LastTrackerScrape = &v
	}
	if r.lastStale.Valid {
		v := r.lastStale.Time
		t.LastStale = &v
	}
	return t, nil
}

const rowColumns = `id, info_hash, name, size, files, seeders, leechers, trackers, added_at, last_scrape, last_tracker_scrape, last_stale`

func scanRow(scanner interface{ Scan(...any) error }) (row, error) {
	var r row
	err := scanner.Scan(&r.id, &r.infoHash, &r.name, &r.size, &r.files, &r.seeders, &r.leechers,
		&r.trackers, &r.addedAt, &r.lastScrape, &r.lastTrackerScrape, &r.lastStale)
	return r, err
}

// UpdateStat applies a delta to a running counter. action must be "inc" or
// "dec"; value defaults to 1 when 0 is passed, mirroring the original
// service's Option<i32> default.
func (s *Store) UpdateStat(ctx context.Context, name domain.StatName, action string, value int) error {
	if value == 0 {
		value = 1
	}
	var expr string
	switch action {
	case "inc":
		expr = "value = value + ?"
	case "dec":
		expr = "value = value - ?"
	default:
		return errors.New("invalid stat action: " + action)
	}

	_, err := s.db.ExecContext(ctx, "UPDATE stats SET "+expr+" WHERE name = ?", value, string(name))
	if err != nil {
		return errors.Wrap(err, "updating stat %s: %v", name, err)
	}
	return nil
}

// CreateTorrents bulk-inserts newly discovered info hashes, each starting
// with no metadata, and bumps total_torrents/queue_torrent_info by the
// number inserted.
func (s *Store) CreateTorrents(ctx context.Context, infoHashes []string) error {
	if len(infoHashes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction: %v", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO torrents (info_hash, name, size, files, seeders, leechers, trackers, added_at) VALUES (?, NULL, 0, '[]', 0, 0, '[]', ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing insert: %v", err)
	}
	defer stmt.Close()

	for _, hash := range infoHashes {
		if _, err := stmt.ExecContext(ctx, strings.ToUpper(hash), now); err != nil {
			return errors.Wrap(err, "inserting torrent %s: %v", hash, err)
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE stats SET value = value + ? WHERE name = ?", len(infoHashes), string(domain.StatTotalTorrents)); err != nil {
		return errors.Wrap(err, "updating total_torrents: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE stats SET value = value + ? WHERE name = ?", len(infoHashes), string(domain.StatQueueTorrentInfo)); err != nil {
		return errors.Wrap(err, "updating queue_torrent_info: %v", err)
	}

	return tx.Commit()
}

// CreateTorrent inserts a single torrent known only by its info hash, used
// by the POST /add endpoint (§6).
func (s *Store) CreateTorrent(ctx context.Context, infoHash string) (domain.Torrent, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO torrents (info_hash, name, size, files, seeders, leechers, trackers, added_at) VALUES (?, NULL, 0, '[]', 0, 0, '[]', ?)`,
		strings.ToUpper(infoHash), now)
	if err != nil {
		return domain.Torrent{}, errors.Wrap(err, "inserting torrent: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Torrent{}, errors.Wrap(err, "reading inserted id: %v", err)
	}

	if err := s.UpdateStat(ctx, domain.StatTotalTorrents, "inc", 0); err != nil {
		return domain.Torrent{}, err
	}
	if err := s.UpdateStat(ctx, domain.StatQueueTorrentInfo, "inc", 0); err != nil {
		return domain.Torrent{}, err
	}

	return domain.Torrent{ID: id, InfoHash: strings.ToUpper(infoHash), AddedAt: now}, nil
}

// CreateTorrentResolved inserts a torrent whose metadata is already known
// up front — used by the spider ingest path, since magneticod resolves
// name/size/files as part of its own DHT crawl and such torrents should
// skip the info-resolution queue entirely and go straight into the
// tracker-scrape queue.
func (s *Store) CreateTorrentResolved(ctx context.Context, infoHash, name string, size int64, files []string) (domain.Torrent, error) {
	encodedFiles, err := json.Marshal(files)
	if err != nil {
		return domain.Torrent{}, errors.Wrap(err, "encoding files: %v", err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO torrents (info_hash, name, size, files, seeders, leechers, trackers, added_at, last_scrape) VALUES (?, ?, ?, ?, 0, 0, '[]', ?, ?)`,
		strings.ToUpper(infoHash), name, size, string(encodedFiles), now, now)
	if err != nil {
		return domain.Torrent{}, errors.Wrap(err, "inserting resolved torrent: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Torrent{}, errors.Wrap(err, "reading inserted id: %v", err)
	}

	if err := s.UpdateStat(ctx, domain.StatTotalTorrents, "inc", 0); err != nil {
		return domain.Torrent{}, err
	}
	if err := s.UpdateStat(ctx, domain.StatQueueTorrentTracker, "inc", 0); err != nil {
		return domain.Torrent{}, err
	}

	return s.FindTorrentByID(ctx, id)
}

// DeleteTorrents removes torrents by id and decrements total_torrents by
// however many rows were actually affected.
func (s *Store) DeleteTorrents(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM torrents WHERE id IN (%s)", strings.Join(placeholders, ",")), args...)
	if err != nil {
		return errors.Wrap(err, "deleting torrents: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading rows affected: %v", err)
	}
	if affected == 0 {
		return nil
	}

	return s.UpdateStat(ctx, domain.StatTotalTorrents, "dec", int(affected))
}

// UpdateTorrentInfo stores resolved metadata (name/size/files) for a
// torrent, moving it out of the info queue and into the tracker queue.
func (s *Store) UpdateTorrentInfo(ctx context.Context, id int64, name string, size int64, files []string) (domain.Torrent, error) {
	encodedFiles, err := json.Marshal(files)
	if err != nil {
		return domain.Torrent{}, errors.Wrap(err, "encoding files: %v", err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE torrents SET name = ?, size = ?, files = ?, last_scrape = ? WHERE id = ?`,
		name, size, string(encodedFiles), now, id)
	if err != nil {
		return domain.Torrent{}, errors.Wrap(err, "updating torrent info: %v", err)
	}

	if err := s.UpdateStat(ctx, domain.StatQueueTorrentInfo, "dec", 0); err != nil {
		return domain.Torrent{}, err
	}
	if err := s.UpdateStat(ctx, domain.StatQueueTorrentTracker, "inc", 0); err != nil {
		return domain.Torrent{}, err
	}

	return s.FindTorrentByID(ctx, id)
}

// UpdateTorrentTrackers records a tracker-scrape result set: the torrent's
// displayed seeders/leechers become the best (highest-seeder) tracker's
// counts, the full observation list is stored, and last_stale transitions
// per domain.NextLastStale.
func (s *Store) UpdateTorrentTrackers(ctx context.Context, id int64, observations []domain.TrackerObservation) (domain.Torrent, error) {
	if len(observations) == 0 {
		return domain.Torrent{}, errors.New("update torrent trackers: no observations")
	}

	existing, err := s.FindTorrentByID(ctx, id)
	if err != nil {
		return domain.Torrent{}, err
	}

	best := observations[0]
	for _, o := range observations[1:] {
		if o.Seeders > best.Seeders {
			best = o
		}
	}

	now := time.Now().UTC()
	nextStale := domain.NextLastStale(existing.LastStale, best.Seeders, best.Leechers, now)

	encoded, err := json.Marshal(observations)
	if err != nil {
		return domain.Torrent{}, errors.Wrap(err, "encoding trackers: %v", err)
	}

	var staleArg any
	if nextStale != nil {
		staleArg = *nextStale
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE torrents SET seeders = ?, leechers = ?, trackers = ?, last_tracker_scrape = ?, last_stale = ? WHERE id = ?`,
		best.Seeders, best.Leechers, string(encoded), now, staleArg, id)
	if err != nil {
		return domain.Torrent{}, errors.Wrap(err, "updating torrent trackers: %v", err)
	}

	if err := s.UpdateStat(ctx, domain.StatQueueTorrentTracker, "dec", 0); err != nil {
		return domain.Torrent{}, err
	}

	return s.FindTorrentByID(ctx, id)
}

// MarkStale sets last_stale on every torrent currently showing a zero
// swarm that hasn't been marked yet, and bumps stale_torrents accordingly.
// Run hourly by the janitor (§4.G).
func (s *Store) MarkStale(ctx context.Context) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE torrents SET last_stale = ? WHERE last_stale IS NULL AND seeders = 0 AND leechers = 0`, now)
	if err != nil {
		return errors.Wrap(err, "marking stale torrents: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading rows affected: %v", err)
	}
	if affected == 0 {
		return nil
	}
	return s.UpdateStat(ctx, domain.StatStaleTorrents, "inc", int(affected))
}

// DeleteStaleSwarms removes torrents whose swarm has been empty for more
// than three days, per the resolved deletion-window decision.
func (s *Store) DeleteStaleSwarms(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-staleWindow)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM torrents WHERE last_stale IS NOT NULL AND last_stale < ?`, cutoff)
	if err != nil {
		return errors.Wrap(err, "deleting stale torrents: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading rows affected: %v", err)
	}
	if affected == 0 {
		return nil
	}
	if err := s.UpdateStat(ctx, domain.StatTotalTorrents, "dec", int(affected)); err != nil {
		return err
	}
	return s.UpdateStat(ctx, domain.StatStaleTorrents, "dec", int(affected))
}

// DeleteAbandoned removes torrents whose metadata was never resolved
// within thirty days of discovery, per the resolved deletion-window
// decision.
func (s *Store) DeleteAbandoned(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-abandonWindow)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM torrents WHERE last_scrape IS NULL AND added_at < ?`, cutoff)
	if err != nil {
		return errors.Wrap(err, "deleting abandoned torrents: %v", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading rows affected: %v", err)
	}
	if affected == 0 {
		return nil
	}
	if err := s.UpdateStat(ctx, domain.StatTotalTorrents, "dec", int(affected)); err != nil {
		return err
	}
	return s.UpdateStat(ctx, domain.StatQueueTorrentInfo, "dec", int(affected))
}

// FindTorrentByID returns a single torrent, or domain.ErrTorrentNotFound.
func (s *Store) FindTorrentByID(ctx context.Context, id int64) (domain.Torrent, error) {
	r, err := scanRow(s.db.QueryRowContext(ctx, "SELECT "+rowColumns+" FROM torrents WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return domain.Torrent{}, domain.ErrTorrentNotFound
	}
	if err != nil {
		return domain.Torrent{}, errors.Wrap(err, "finding torrent by id: %v", err)
	}
	return r.toDomain()
}

// FindTorrentByInfoHash returns a single torrent by its (case-insensitive)
// info hash, or domain.ErrTorrentNotFound.
func (s *Store) FindTorrentByInfoHash(ctx context.Context, infoHash string) (domain.Torrent, error) {
	r, err := scanRow(s.db.QueryRowContext(ctx, "SELECT "+rowColumns+" FROM torrents WHERE info_hash = ?", strings.ToUpper(infoHash)))
	if err == sql.ErrNoRows {
		return domain.Torrent{}, domain.ErrTorrentNotFound
	}
	if err != nil {
		return domain.Torrent{}, errors.Wrap(err, "finding torrent by info hash: %v", err)
	}
	return r.toDomain()
}

// ExistsByInfoHash reports whether a torrent with the given info hash is
// already tracked, used by the spider ingest path to skip duplicates.
func (s *Store) ExistsByInfoHash(ctx context.Context, infoHash string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM torrents WHERE info_hash = ?", strings.ToUpper(infoHash)).Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "checking torrent existence: %v", err)
	}
	return count > 0, nil
}

// searchPattern builds the same escaped, whitespace-to-wildcard LIKE
// pattern as the original service: literal "%" is escaped, then runs of
// whitespace in the query become "%" wildcards.
func searchPattern(name string) string {
	escaped := strings.ReplaceAll(strings.ToLower(name), "%", `\%`)
	fields := strings.Fields(escaped)
	return "%" + strings.Join(fields, "%") + "%"
}

// SearchTorrentsByName performs a case-insensitive substring search over
// torrent names, used by the Torznab search route.
func (s *Store) SearchTorrentsByName(ctx context.Context, name string, offset, limit int64) ([]domain.Torrent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rowColumns+` FROM torrents WHERE LOWER(name) LIKE ? ESCAPE '\' ORDER BY id ASC LIMIT ? OFFSET ?`,
		searchPattern(name), limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "searching torrents: %v", err)
	}
	defer rows.Close()
	return collectRows(rows)
}

func collectRows(rows *sql.Rows) ([]domain.Torrent, error) {
	var out []domain.Torrent
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning torrent row: %v", err)
		}
		t, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindTorrentQueueInfo returns up to 50 torrents awaiting metadata
// resolution, excluding any id currently in flight.
func (s *Store) FindTorrentQueueInfo(ctx context.Context, ignore []int64) ([]domain.Torrent, error) {
	query := `SELECT ` + rowColumns + ` FROM torrents WHERE last_scrape IS NULL`
	args := []any{}
	if clause, ignoreArgs := notInClause(ignore); clause != "" {
		query += " AND id " + clause
		args = append(args, ignoreArgs...)
	}
	query += " LIMIT ?"
	args = append(args, queuePageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying info queue: %v", err)
	}
	defer rows.Close()
	return collectRows(rows)
}

// FindTorrentQueueTrackers returns up to 50 resolved torrents due for a
// tracker scrape — never scraped, or last scraped more than three days
// ago — ordered so never-scraped rows come first.
func (s *Store) FindTorrentQueueTrackers(ctx context.Context, ignore []int64) ([]domain.Torrent, error) {
	cutoff := time.Now().UTC().Add(-staleWindow)

	query := `SELECT ` + rowColumns + ` FROM torrents
		WHERE last_scrape IS NOT NULL
		AND (last_tracker_scrape IS NULL OR last_tracker_scrape < ?)`
	args := []any{cutoff}
	if clause, ignoreArgs := notInClause(ignore); clause != "" {
		query += " AND id " + clause
		args = append(args, ignoreArgs...)
	}
	query += ` ORDER BY (last_tracker_scrape IS NULL) DESC, last_tracker_scrape ASC LIMIT ?`
	args = append(args, queuePageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying tracker queue: %v", err)
	}
	defer rows.Close()
	return collectRows(rows)
}

func notInClause(ignore []int64) (string, []any) {
	if len(ignore) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(ignore))
	args := make([]any, len(ignore))
	for i, id := range ignore {
		placeholders[i] = "?"
		args[i] = id
	}
	return "NOT IN (" + strings.Join(placeholders, ",") + ")", args
}

// FindTorrentsInPage returns one 1-indexed page of all torrents ordered
// by id, plus the total number of pages.
func (s *Store) FindTorrentsInPage(ctx context.Context, page, perPage int64) ([]domain.Torrent, int64, error) {
	if page < 1 {
		return nil, 0, domain.ErrInvalidPage
	}
	if perPage <= 0 {
		perPage = queuePageSize
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM torrents").Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "counting torrents: %v", err)
	}
	numPages := (total + perPage - 1) / perPage
	if numPages == 0 {
		numPages = 1
	}

	offset := (page - 1) * perPage
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rowColumns+` FROM torrents ORDER BY id ASC LIMIT ? OFFSET ?`, perPage, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "paging torrents: %v", err)
	}
	defer rows.Close()

	items, err := collectRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, numPages, nil
}

// GetStats returns the cached counters, reconciling them against ground
// truth first if any counter hasn't been refreshed in over two minutes —
// or if the stats table is empty (first run).
func (s *Store) GetStats(ctx context.Context) (domain.Stats, error) {
	type counter struct {
		name        string
		value       int64
		lastUpdated time.Time
	}

	rows, err := s.db.QueryContext(ctx, "SELECT name, value, last_updated FROM stats")
	if err != nil {
		return domain.Stats{}, errors.Wrap(err, "reading stats: %v", err)
	}
	var counters []counter
	for rows.Next() {
		var c counter
		if err := rows.Scan(&c.name, &c.value, &c.lastUpdated); err != nil {
			rows.Close()
			return domain.Stats{}, errors.Wrap(err, "scanning stat row: %v", err)
		}
		counters = append(counters, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.Stats{}, err
	}

	if len(counters) == 0 {
		now := time.Now().UTC()
		for _, name := range domain.AllStats() {
			if _, err := s.db.ExecContext(ctx,
				"INSERT INTO stats (name, value, last_updated) VALUES (?, 0, ?)", string(name), now); err != nil {
				return domain.Stats{}, errors.Wrap(err, "seeding stat %s: %v", name, err)
			}
		}
		return s.reconcileStats(ctx)
	}

	stale := false
	cutoff := time.Now().UTC().Add(-statsStaleness)
	for _, c := range counters {
		if c.lastUpdated.Before(cutoff) {
			stale = true
			break
		}
	}
	if stale {
		return s.reconcileStats(ctx)
	}

	var out domain.Stats
	for _, c := range counters {
		switch domain.StatName(c.name) {
		case domain.StatTotalTorrents:
			out.TotalTorrents = c.value
		case domain.StatScrapedTorrents:
			out.ScrapedTorrents = c.value
		case domain.StatQueueTorrentInfo:
			out.QueueTorrentInfo = c.value
		case domain.StatQueueTorrentTracker:
			out.QueueTorrentTracker = c.value
		case domain.StatStaleTorrents:
			out.StaleTorrents = c.value
		}
	}
	return out, nil
}

// reconcileStats recomputes every counter directly from the torrents
// table and persists the fresh values.
func (s *Store) reconcileStats(ctx context.Context) (domain.Stats, error) {
	raw, err := s.rawStats(ctx)
	if err != nil {
		return domain.Stats{}, err
	}

	now := time.Now().UTC()
	updates := map[domain.StatName]int64{
		domain.StatTotalTorrents:       raw.TotalTorrents,
		domain.StatScrapedTorrents:     raw.ScrapedTorrents,
		domain.StatQueueTorrentInfo:    raw.QueueTorrentInfo,
		domain.StatQueueTorrentTracker: raw.QueueTorrentTracker,
		domain.StatStaleTorrents:       raw.StaleTorrents,
	}
	for name, value := range updates {
		if _, err := s.db.ExecContext(ctx,
			"UPDATE stats SET value = ?, last_updated = ? WHERE name = ?", value, now, string(name)); err != nil {
			return domain.Stats{}, errors.Wrap(err, "persisting stat %s: %v", name, err)
		}
	}
	return raw, nil
}

// rawStats computes every counter from first principles, the same five
// queries the original service ran under try_join.
func (s *Store) rawStats(ctx context.Context) (domain.Stats, error) {
	var out domain.Stats
	cutoff := time.Now().UTC().Add(-staleWindow)

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM torrents").Scan(&out.TotalTorrents); err != nil {
		return domain.Stats{}, errors.Wrap(err, "counting torrents: %v", err)
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM torrents WHERE last_scrape IS NOT NULL AND last_tracker_scrape IS NOT NULL").
		Scan(&out.ScrapedTorrents); err != nil {
		return domain.Stats{}, errors.Wrap(err, "counting scraped torrents: %v", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM torrents WHERE last_scrape IS NULL").
		Scan(&out.QueueTorrentInfo); err != nil {
		return domain.Stats{}, errors.Wrap(err, "counting info queue: %v", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM torrents WHERE (last_tracker_scrape IS NULL OR last_tracker_scrape < ?) AND last_scrape IS NOT NULL`,
		cutoff).Scan(&out.QueueTorrentTracker); err != nil {
		return domain.Stats{}, errors.Wrap(err, "counting tracker queue: %v", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM torrents WHERE last_stale IS NOT NULL").
		Scan(&out.StaleTorrents); err != nil {
		return domain.Stats{}, errors.Wrap(err, "counting stale torrents: %v", err)
	}
	return out, nil
}
