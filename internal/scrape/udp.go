// Package scrape implements the two tracker-scrape wire protocols: BEP-15
// UDP scrape and the legacy HTTP bencode scrape response. Both return
// swarm stats keyed by uppercase-hex info hash, not by request position —
// the hash-keyed contract chosen for the tracker-scrape correlation.
package scrape

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"time"

	"github.com/oxidized-project/oxidized/internal/errors"
)

const (
	udpProtocolMagic uint64 = 0x41727101980
	actionConnect    uint32 = 0
	actionScrape     uint32 = 2
	actionError      uint32 = 3

	udpTimeout      = 5 * time.Second
	maxHashesPerReq = 74 // BEP-15 packet-size ceiling enforced by most trackers
)

// Stats is one tracker's reported swarm size for one torrent.
type Stats struct {
	Seeders  int
	Leechers int
}

// ScrapeUDP connects to a udp:// tracker and scrapes swarm stats for every
// hash in infoHashes (20-byte raw, not hex), batching requests in groups
// of at most 74 per BEP-15. Returns a map keyed by uppercase-hex hash.
func ScrapeUDP(addr string, infoHashes [][20]byte) (map[string]Stats, error) {
	if len(infoHashes) == 0 {
		return map[string]Stats{}, nil
	}

	conn, err := net.DialTimeout("udp", addr, udpTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "dialing tracker %s: %v", addr, err)
	}
	defer conn.Close()

	connID, err := udpConnect(conn)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to tracker %s: %v", addr, err)
	}

	results := make(map[string]Stats, len(infoHashes))
	for start := 0; start < len(infoHashes); start += maxHashesPerReq {
		end := start + maxHashesPerReq
		if end > len(infoHashes) {
			end = len(infoHashes)
		}
		batch := infoHashes[start:end]

		stats, err := udpScrape(conn, connID, batch)
		if err != nil {
			return results, errors.Wrap(err, "scraping tracker %s: %v", addr, err)
		}
		for i, s := range stats {
			key := hex.EncodeToString(batch[i][:])
			results[upperHex(key)] = s
		}
	}

	return results, nil
}

func upperHex(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func udpConnect(conn net.Conn) (uint64, error) {
	tid := transactionID()

	req := make([]byte, 16)
	binary.BigEndian.PutUint64(req[0:], udpProtocolMagic)
	binary.BigEndian.PutUint32(req[8:], actionConnect)
	binary.BigEndian.PutUint32(req[12:], tid)

	resp, err := roundTrip(conn, req, 16)
	if err != nil {
		return 0, err
	}

	if action := binary.BigEndian.Uint32(resp[0:]); action != actionConnect {
		return 0, errors.New("tracker did not return a connect response")
	}
	if gotTID := binary.BigEndian.Uint32(resp[4:]); gotTID != tid {
		return 0, errors.New("tracker returned mismatched transaction id")
	}

	return binary.BigEndian.Uint64(resp[8:]), nil
}

func udpScrape(conn net.Conn, connID uint64, hashes [][20]byte) ([]Stats, error) {
	tid := transactionID()

	req := make([]byte, 16+20*len(hashes))
	binary.BigEndian.PutUint64(req[0:], connID)
	binary.BigEndian.PutUint32(req[8:], actionScrape)
	binary.BigEndian.PutUint32(req[12:], tid)
	for i, h := range hashes {
		copy(req[16+i*20:], h[:])
	}

	respLen := 8 + 12*len(hashes)
	resp, err := roundTrip(conn, req, respLen)
	if err != nil {
		return nil, err
	}

	action := binary.BigEndian.Uint32(resp[0:])
	if gotTID := binary.BigEndian.Uint32(resp[4:]); gotTID != tid {
		return nil, errors.New("tracker returned mismatched transaction id")
	}
	if action == actionError {
		return nil, errors.New("tracker returned an error response")
	}
	if action != actionScrape {
		return nil, fmt.Errorf("unexpected action %d in scrape response", action)
	}

	stats := make([]Stats, len(hashes))
	offset := 8
	for i := range hashes {
		stats[i] = Stats{
			Seeders:  int(binary.BigEndian.Uint32(resp[offset:])),
			Leechers: int(binary.BigEndian.Uint32(resp[offset+8:])),
		}
		offset += 12
	}

	return stats, nil
}

// roundTrip writes req and reads exactly wantLen bytes of response,
// retrying once on a read timeout the way the original indexer did.
func roundTrip(conn net.Conn, req []byte, wantLen int) ([]byte, error) {
	resp := make([]byte, wantLen)

	for attempt := 0; attempt < 2; attempt++ {
		conn.SetWriteDeadline(time.Now().Add(udpTimeout))
		n, err := conn.Write(req)
		if err != nil {
			return nil, err
		}
		if n != len(req) {
			return nil, errors.New("udp packet was not entirely written")
		}

		conn.SetReadDeadline(time.Now().Add(udpTimeout))
		n, err = conn.Read(resp)
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			continue
		}
		if err != nil {
			return nil, err
		}
		if n < wantLen {
			return nil, errors.New("short read from tracker")
		}
		return resp, nil
	}

	return nil, errors.New("timed out waiting for tracker response")
}

var transactionCounter uint32

func transactionID() uint32 {
	transactionCounter++
	return transactionCounter
}
