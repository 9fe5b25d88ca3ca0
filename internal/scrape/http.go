package scrape

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/zeebo/bencode"

	"github.com/oxidized-project/oxidized/internal/errors"
)

// httpScrapeResponse mirrors the bencoded dictionary a BEP-48 HTTP scrape
// endpoint returns: a "files" map keyed by the raw 20-byte info hash.
type httpScrapeResponse struct {
	Files map[string]struct {
		Complete   int `bencode:"complete"`
		Incomplete int `bencode:"incomplete"`
		Downloaded int `bencode:"downloaded"`
	} `bencode:"files"`
}

// ScrapeHTTP issues one GET against announceURL's corresponding scrape
// endpoint (replacing the first "/announce" in its path with "/scrape", the
// conventional BEP-48 derivation) and returns swarm stats keyed by
// uppercase-hex info hash.
func ScrapeHTTP(ctx context.Context, client *http.Client, announceURL string, infoHashes [][20]byte) (map[string]Stats, error) {
	if len(infoHashes) == 0 {
		return map[string]Stats{}, nil
	}

	scrapeURL, err := toScrapeURL(announceURL)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	for _, h := range infoHashes {
		q.Add("info_hash", string(h[:]))
	}
	fullURL := scrapeURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building scrape request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "requesting %s: %v", scrapeURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker %s returned status %d", scrapeURL, resp.StatusCode)
	}

	var decoded httpScrapeResponse
	if err := bencode.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decoding scrape response from %s: %v", scrapeURL, err)
	}

	results := make(map[string]Stats, len(decoded.Files))
	for rawHash, stats := range decoded.Files {
		results[strings.ToUpper(hex.EncodeToString([]byte(rawHash)))] = Stats{
			Seeders:  stats.Complete,
			Leechers: stats.Incomplete,
		}
	}
	return results, nil
}

func toScrapeURL(announceURL string) (string, error) {
	u, err := url.Parse(announceURL)
	if err != nil {
		return "", errors.Wrap(err, "parsing tracker url %s: %v", announceURL, err)
	}
	u.Path = strings.Replace(u.Path, "/announce", "/scrape", 1)
	return u.String(), nil
}
