package scheduler

import (
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 5 * time.Second}

func decodeHash(infoHash string) ([20]byte, error) {
	var out [20]byte
	raw, err := hex.DecodeString(infoHash)
	if err != nil || len(raw) != 20 {
		if err == nil {
			err = hexLengthError{}
		}
		return out, err
	}
	copy(out[:], raw)
	return out, nil
}

type hexLengthError struct{}

func (hexLengthError) Error() string { return "info hash must decode to 20 bytes" }

func cutScheme(uri string) (scheme, rest string, ok bool) {
	return strings.Cut(uri, "://")
}

func trimAnnounceSuffix(addr string) string {
	return strings.TrimSuffix(addr, "/announce")
}
