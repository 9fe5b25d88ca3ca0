package api

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/oxidized-project/oxidized/internal/domain"
)

// capsCategory is one top-level Torznab category, with its leaf
// subcategories when it has any.
type capsCategory struct {
	XMLName xml.Name      `xml:"category"`
	ID      string        `xml:"id,attr"`
	Name    string        `xml:"name,attr"`
	Desc    string        `xml:"description,attr"`
	Subcats []capsSubcat  `xml:"subcat"`
}

type capsSubcat struct {
	XMLName xml.Name `xml:"subcat"`
	ID      string   `xml:"id,attr"`
	Name    string   `xml:"name,attr"`
}

// torznabCategories is the fixed category skeleton the original indexer
// advertises: Other, Movies, and TV with HD/SD leaves.
var torznabCategories = []capsCategory{
	{ID: "8000", Name: "Other", Desc: "Other", Subcats: []capsSubcat{{ID: "8010", Name: "Other/Misc"}}},
	{ID: "2000", Name: "Movies", Desc: "Movies"},
	{ID: "5000", Name: "TV", Desc: "TV", Subcats: []capsSubcat{{ID: "5040", Name: "TV/HD"}, {ID: "5070", Name: "TV/SD"}}},
}

// categoryLeafIDs returns the torznab:attr category values an item should
// carry: its own leaf ids if it has any, otherwise its own top-level id.
func categoryLeafIDs(categoryID string) []string {
	for _, c := range torznabCategories {
		if c.ID != categoryID {
			continue
		}
		if len(c.Subcats) == 0 {
			return []string{c.ID}
		}
		ids := make([]string, len(c.Subcats))
		for i, sub := range c.Subcats {
			ids[i] = sub.ID
		}
		return ids
	}
	return []string{categoryID}
}

type capsResponse struct {
	XMLName xml.Name `xml:"caps"`
	Server  struct {
		Version string `xml:"version,attr"`
		Title   string `xml:"title,attr"`
	} `xml:"server"`
	Limits struct {
		Max     string `xml:"max,attr"`
		Default string `xml:"default,attr"`
	} `xml:"limits"`
	Searching struct {
		Search struct {
			Available       string `xml:"available,attr"`
			SupportedParams string `xml:"supportedParams,attr"`
		} `xml:"search"`
	} `xml:"searching"`
	Categories struct {
		Category []capsCategory `xml:"category"`
	} `xml:"categories"`
}

func buildCapsResponse() capsResponse {
	var resp capsResponse
	resp.Server.Version = "1.0"
	resp.Server.Title = "Oxidized"
	resp.Limits.Max = "100"
	resp.Limits.Default = "50"
	resp.Searching.Search.Available = "yes"
	resp.Searching.Search.SupportedParams = "q"
	resp.Categories.Category = torznabCategories
	return resp
}

// torznabAttr renders <torznab:attr name="..." value="..."/>.
type torznabAttr struct {
	XMLName xml.Name `xml:"torznab:attr"`
	Name    string   `xml:"name,attr"`
	Value   string   `xml:"value,attr"`
}

type enclosure struct {
	XMLName xml.Name `xml:"enclosure"`
	Type    string   `xml:"type,attr"`
	URL     string   `xml:"url,attr"`
}

type searchItem struct {
	XMLName     xml.Name      `xml:"item"`
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	Description string        `xml:"description"`
	PubDate     string        `xml:"pubDate"`
	Category    string        `xml:"category"`
	Enclosure   enclosure     `xml:"enclosure"`
	MagnetURL   string        `xml:"magneturl"`
	Seeders     int           `xml:"seeders"`
	Leechers    int           `xml:"leechers"`
	Attrs       []torznabAttr `xml:"torznab:attr"`
}

type rssChannel struct {
	Title       string       `xml:"title"`
	Link        string       `xml:"link"`
	Description string       `xml:"description"`
	Language    string       `xml:"language"`
	TTL         string       `xml:"ttl"`
	Items       []searchItem `xml:"item"`
}

type rssResponse struct {
	XMLName      xml.Name   `xml:"rss"`
	Version      string     `xml:"version,attr"`
	XMLNSAtom    string     `xml:"xmlns:atom,attr"`
	XMLNSTorznab string     `xml:"xmlns:torznab,attr"`
	Channel      rssChannel `xml:"channel"`
}

func torrentMagnetURL(t domain.Torrent) string {
	return "magnet:?xt=urn:btih:" + strings.ToUpper(t.InfoHash)
}

func torrentEnclosureURL(t domain.Torrent) string {
	return fmt.Sprintf("https://itorrents.org/torrent/%s.torrent", t.InfoHash)
}

func buildSearchResponse(origin string, torrents []domain.Torrent) rssResponse {
	var resp rssResponse
	resp.Version = "2.0"
	resp.XMLNSAtom = "http://www.w3.org/2005/Atom"
	resp.XMLNSTorznab = "http://torznab.com/schemas/2015/feed"
	resp.Channel.Title = "Latest releases feed"
	resp.Channel.Link = "http://" + origin + "/"
	resp.Channel.Description = "Latest releases feed"
	resp.Channel.Language = "en-gb"
	resp.Channel.TTL = "30"

	for _, t := range torrents {
		label, categoryID := t.Category()
		_ = label
		sizeBytes := t.Size * 1_000_000

		item := searchItem{
			Title:       t.Name,
			Link:        torrentEnclosureURL(t),
			Description: fmt.Sprintf("Total Size: %d MB", t.Size),
			PubDate:     t.AddedAt.String(),
			Category:    label,
			Enclosure:   enclosure{Type: "application/x-bittorrent", URL: torrentEnclosureURL(t)},
			MagnetURL:   torrentMagnetURL(t),
			Seeders:     t.Seeders,
			Leechers:    t.Leechers,
			Attrs: []torznabAttr{
				{Name: "files", Value: strconv.Itoa(len(t.Files))},
				{Name: "size", Value: strconv.FormatInt(sizeBytes, 10)},
				{Name: "infohash", Value: t.InfoHash},
				{Name: "magneturl", Value: torrentMagnetURL(t)},
				{Name: "seeders", Value: strconv.Itoa(t.Seeders)},
				{Name: "peers", Value: strconv.Itoa(t.Seeders + t.Leechers)},
			},
		}
		for _, leaf := range categoryLeafIDs(categoryID) {
			item.Attrs = append(item.Attrs, torznabAttr{Name: "category", Value: leaf})
		}

		resp.Channel.Items = append(resp.Channel.Items, item)
	}

	return resp
}

func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	enc := xml.NewEncoder(w)
	_ = enc.Encode(v)
}

func (s *Server) handleTorznab(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t := q.Get("t")
	if t == "" {
		t = "search"
	}

	switch t {
	case "caps":
		writeXML(w, http.StatusOK, buildCapsResponse())
	case "search":
		name := q.Get("q")
		offset, _ := strconv.ParseInt(q.Get("offset"), 10, 64)
		limit, _ := strconv.ParseInt(q.Get("limit"), 10, 64)

		torrents, err := s.store.SearchTorrentsByName(r.Context(), name, offset, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeXML(w, http.StatusOK, buildSearchResponse(r.Host, torrents))
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}
