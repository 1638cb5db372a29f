package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/etsangsplk/tracebuf"
	"github.com/etsangsplk/tracebuf/internal/pubsub"
	"github.com/etsangsplk/tracebuf/tracebufhttp"
)

func encodePacket(packets ...[]byte) []byte {
	var buf []byte
	for _, p := range packets {
		buf = protowire.AppendVarint(buf, uint64(len(p)))
		buf = append(buf, p...)
	}
	return buf
}

func newTestServer(t *testing.T) (*server, context.Context) {
	t.Helper()

	srv, err := newServer(tracebuf.Config{SizeBytes: 1 << 16}, 8)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() { done <- srv.run(ctx) }()
	t.Cleanup(func() { cancel(); <-done })

	return srv, ctx
}

// TestServerAppendDrainsToHistoryAndBroker drives the dispatch loop
// directly: Append submits a chunk, and the resulting packet must show up
// both in history and to a live broker subscriber.
func TestServerAppendDrainsToHistoryAndBroker(t *testing.T) {
	t.Parallel()

	srv, ctx := newTestServer(t)

	sub := make(chan pubsub.Packet, 1)
	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()
	go srv.broker.Subscribe(subCtx, pubsub.AllowAll, sub)
	time.Sleep(10 * time.Millisecond)

	payload := encodePacket([]byte("hello"))
	n, err := srv.Append(ctx, 1, 1, 0, 0, payload)
	if err != nil {
		t.Fatal(err)
	}
	// Append reports the record's footprint in the store: the 16-byte
	// header plus the 6-byte payload, rounded up to a multiple of 16.
	if want := 32; n != want {
		t.Fatalf("want %d bytes written, have %d", want, n)
	}

	select {
	case pkt := <-sub:
		if string(pkt.Bytes) != "hello" {
			t.Fatalf("want %q, have %q", "hello", pkt.Bytes)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published packet")
	}

	recent := srv.history.Recent(1, 1)
	if len(recent) != 1 || string(recent[0].Bytes) != "hello" {
		t.Fatalf("want one recorded snapshot %q, have %+v", "hello", recent)
	}
}

// TestAppendHandlerEndToEnd drives the same path over the real HTTP mux,
// the way a debug client would: POST /append, then read the result back
// from GET /history.
func TestAppendHandlerEndToEnd(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	httpServer := httptest.NewServer(newMux(srv))
	defer httpServer.Close()

	reqBody, err := json.Marshal(tracebufhttp.AppendRequest{
		ProducerID: 2,
		WriterID:   3,
		ChunkID:    0,
		Payload:    base64.StdEncoding.EncodeToString(encodePacket([]byte("over-the-wire"))),
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(httpServer.URL+"/append", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, have %d", resp.StatusCode)
	}

	var appendResp tracebufhttp.AppendResponse
	if err := json.NewDecoder(resp.Body).Decode(&appendResp); err != nil {
		t.Fatal(err)
	}
	if appendResp.Written == 0 {
		t.Fatal("want nonzero bytes written")
	}

	historyResp, err := http.Get(fmt.Sprintf("%s/history?producer_id=2&writer_id=3", httpServer.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer historyResp.Body.Close()

	var snapshots []struct {
		Bytes []byte `json:"Bytes"`
	}
	if err := json.NewDecoder(historyResp.Body).Decode(&snapshots); err != nil {
		t.Fatal(err)
	}
	if len(snapshots) != 1 || string(snapshots[0].Bytes) != "over-the-wire" {
		t.Fatalf("want one history entry %q, have %+v", "over-the-wire", snapshots)
	}
}

// TestServerApplyPatchDrivesDispatchLoop exercises ApplyPatch the same way
// TestServerAppendDrainsToHistoryAndBroker exercises Append: directly
// through the dispatch loop, so patch submission has a real caller.
func TestServerApplyPatchDrivesDispatchLoop(t *testing.T) {
	t.Parallel()

	srv, ctx := newTestServer(t)

	payload := encodePacket([]byte("xxxxxxxxxx"))
	if _, err := srv.Append(ctx, 1, 1, 0, 0, payload); err != nil {
		t.Fatal(err)
	}

	ok, err := srv.ApplyPatch(ctx, 1, 1, 0, 0, [4]byte{'Y', 'M', 'C', 'A'})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("want patch applied, have false")
	}

	ok, err = srv.ApplyPatch(ctx, 9, 9, 9, 0, [4]byte{})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("want patch against unknown chunk to report false")
	}
}
