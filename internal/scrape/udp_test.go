package scrape

import (
	"encoding/binary"
	"encoding/hex"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUDPTracker answers a connect request followed by any number of
// scrape requests with deterministic stats, enough to exercise the wire
// codec without a real tracker.
func fakeUDPTracker(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 2048)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			action := binary.BigEndian.Uint32(buf[8:])
			tid := binary.BigEndian.Uint32(buf[12:])

			switch action {
			case actionConnect:
				resp := make([]byte, 16)
				binary.BigEndian.PutUint32(resp[0:], actionConnect)
				binary.BigEndian.PutUint32(resp[4:], tid)
				binary.BigEndian.PutUint64(resp[8:], 0xCAFEBABE)
				conn.WriteTo(resp, addr)
			case actionScrape:
				numHashes := (n - 16) / 20
				resp := make([]byte, 8+12*numHashes)
				binary.BigEndian.PutUint32(resp[0:], actionScrape)
				binary.BigEndian.PutUint32(resp[4:], tid)
				for i := 0; i < numHashes; i++ {
					off := 8 + i*12
					binary.BigEndian.PutUint32(resp[off:], uint32(10+i))
					binary.BigEndian.PutUint32(resp[off+4:], uint32(100+i))
					binary.BigEndian.PutUint32(resp[off+8:], uint32(i))
				}
				conn.WriteTo(resp, addr)
			}
		}
	}()

	t.Cleanup(func() { conn.Close() })
	return conn.LocalAddr().String()
}

func TestScrapeUDP(t *testing.T) {
	addr := fakeUDPTracker(t)

	h1 := decodeHash(t, "51A3B1D96B198C8BB6ACDE8EC357AE7359DB2AFC")
	h2 := decodeHash(t, "000000000000000000000000000000000000000A")

	results, err := ScrapeUDP(addr, [][20]byte{h1, h2})
	require.NoError(t, err)
	require.Len(t, results, 2)

	s1 := results["51A3B1D96B198C8BB6ACDE8EC357AE7359DB2AFC"]
	assert.Equal(t, 10, s1.Seeders)
	assert.Equal(t, 0, s1.Leechers)

	s2 := results["000000000000000000000000000000000000000A"]
	assert.Equal(t, 11, s2.Seeders)
	assert.Equal(t, 1, s2.Leechers)
}

func TestScrapeUDPEmpty(t *testing.T) {
	results, err := ScrapeUDP("127.0.0.1:1", nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScrapeUDPBatchesOverLimit(t *testing.T) {
	addr := fakeUDPTracker(t)

	hashes := make([][20]byte, maxHashesPerReq+5)
	for i := range hashes {
		var h [20]byte
		binary.BigEndian.PutUint32(h[16:], uint32(i))
		hashes[i] = h
	}

	start := time.Now()
	results, err := ScrapeUDP(addr, hashes)
	require.NoError(t, err)
	assert.Len(t, results, len(hashes))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func decodeHash(t *testing.T, s string) [20]byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	var out [20]byte
	copy(out[:], b)
	return out
}
