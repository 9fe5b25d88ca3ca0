package domain

// StatName identifies one of the five running counters tracked in the
// stats table (§3/§6).
type StatName string

const (
	StatTotalTorrents       StatName = "total_torrents"
	StatScrapedTorrents     StatName = "scraped_torrents"
	StatQueueTorrentInfo    StatName = "queue_torrent_info"
	StatQueueTorrentTracker StatName = "queue_torrent_trackers"
	StatStaleTorrents       StatName = "stale_torrents"
)

// AllStats lists every counter name, used by the store to seed the stats
// table on first run.
func AllStats() []StatName {
	return []StatName{
		StatTotalTorrents,
		StatScrapedTorrents,
		StatQueueTorrentInfo,
		StatQueueTorrentTracker,
		StatStaleTorrents,
	}
}

// Stats is a point-in-time snapshot of every counter, returned by the
// store's GetStats and served by GET /stats.
type Stats struct {
	TotalTorrents       int64 `json:"total_torrents"`
	ScrapedTorrents     int64 `json:"scraped_torrents"`
	QueueTorrentInfo    int64 `json:"queue_torrent_info"`
	QueueTorrentTracker int64 `json:"queue_torrent_trackers"`
	StaleTorrents       int64 `json:"stale_torrents"`
}
