package tracebufhttp_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/etsangsplk/tracebuf/internal/ringbuf"
	"github.com/etsangsplk/tracebuf/tracebufhttp"
)

func TestHistoryHandlerServesRecentPackets(t *testing.T) {
	t.Parallel()

	history := ringbuf.NewHistory(4)
	history.Record(ringbuf.Snapshot{ProducerID: 1, WriterID: 2, ChunkID: 10, Bytes: []byte("a")})
	history.Record(ringbuf.Snapshot{ProducerID: 1, WriterID: 2, ChunkID: 11, Bytes: []byte("b")})

	handler := tracebufhttp.NewHistoryHandler(history.Recent)
	server := httptest.NewServer(handler)
	defer server.Close()

	res, err := http.Get(server.URL + "?producer_id=1&writer_id=2")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		t.Fatalf("want 200, have %d", res.StatusCode)
	}

	var snapshots []ringbuf.Snapshot
	if err := json.NewDecoder(res.Body).Decode(&snapshots); err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 2 {
		t.Fatalf("want 2 snapshots, have %d", len(snapshots))
	}
	if string(snapshots[0].Bytes) != "a" || string(snapshots[1].Bytes) != "b" {
		t.Fatalf("want chronological order a,b, have %q,%q", snapshots[0].Bytes, snapshots[1].Bytes)
	}
}

func TestHistoryHandlerRequiresIDs(t *testing.T) {
	t.Parallel()

	handler := tracebufhttp.NewHistoryHandler(ringbuf.NewHistory(4).Recent)
	server := httptest.NewServer(handler)
	defer server.Close()

	res, err := http.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400, have %d", res.StatusCode)
	}
}
