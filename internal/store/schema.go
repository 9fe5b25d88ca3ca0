package store

const schema = `
CREATE TABLE IF NOT EXISTS torrents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	info_hash TEXT NOT NULL,
	name TEXT,
	size INTEGER NOT NULL DEFAULT 0,
	files TEXT NOT NULL DEFAULT '[]',
	seeders INTEGER NOT NULL DEFAULT 0,
	leechers INTEGER NOT NULL DEFAULT 0,
	trackers TEXT NOT NULL DEFAULT '[]',
	added_at DATETIME NOT NULL,
	last_scrape DATETIME,
	last_tracker_scrape DATETIME,
	last_stale DATETIME
);

CREATE TABLE IF NOT EXISTS stats (
	name TEXT PRIMARY KEY,
	value INTEGER NOT NULL DEFAULT 0,
	last_updated DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_torrents_info_hash ON torrents (info_hash);
CREATE INDEX IF NOT EXISTS idx_torrents_last_scrape ON torrents (last_scrape);
CREATE INDEX IF NOT EXISTS idx_torrents_last_tracker_scrape ON torrents (last_tracker_scrape);
CREATE INDEX IF NOT EXISTS idx_torrents_last_stale ON torrents (last_stale);
CREATE INDEX IF NOT EXISTS idx_torrents_name ON torrents (name);
CREATE INDEX IF NOT EXISTS idx_torrents_last_tracker_scrape_last_scrape ON torrents (last_tracker_scrape, last_scrape);
CREATE INDEX IF NOT EXISTS idx_torrents_id ON torrents (id);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}
