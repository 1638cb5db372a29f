package tracebufhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/bernerdschaefer/eventsource"

	"github.com/etsangsplk/tracebuf/internal/pubsub"
)

// StreamHandler serves completed packets as Server-Sent Events, one event
// per tracebuf.PacketRef the dispatch loop has published. It never talks
// to the Buffer directly: everything it needs comes through the broker,
// so a slow or abandoned HTTP client can never block packet ingestion.
type StreamHandler struct {
	Broker *pubsub.PacketBroker

	// RecvBuffer sizes the per-request channel handed to Broker.Subscribe.
	// A full channel drops packets for that subscriber rather than
	// blocking the publisher; RecvBuffer just controls how much burst a
	// slow client can absorb before that starts happening.
	RecvBuffer int
}

// NewStreamHandler returns a StreamHandler with a default receive buffer.
func NewStreamHandler(broker *pubsub.PacketBroker) *StreamHandler {
	return &StreamHandler{Broker: broker, RecvBuffer: 64}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is supported", http.StatusMethodNotAllowed)
		return
	}
	if !requestExplicitlyAccepts(r, "text/event-stream") {
		http.Error(w, "request must Accept: text/event-stream", http.StatusPreconditionRequired)
		return
	}

	recvBuf := h.RecvBuffer
	if v := r.URL.Query().Get("recvbuf"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			recvBuf = n
		}
	}

	var (
		ctx = r.Context()
		c   = make(chan pubsub.Packet, recvBuf)
	)

	allow := pubsub.AllowAll
	if producer := r.URL.Query().Get("producer_id"); producer != "" {
		id, err := strconv.ParseUint(producer, 10, 16)
		if err != nil {
			http.Error(w, fmt.Sprintf("bad producer_id: %v", err), http.StatusBadRequest)
			return
		}
		want := uint16(id)
		allow = func(p pubsub.Packet) bool { return p.ProducerID == want }
	}

	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()

	go h.Broker.Subscribe(subCtx, allow, c)

	eventsource.Handler(func(lastID string, encoder *eventsource.Encoder, stop <-chan bool) {
		var seq uint64
		for {
			select {
			case pkt := <-c:
				seq++
				data, err := json.Marshal(pkt)
				if err != nil {
					continue
				}
				_ = encoder.Encode(eventsource.Event{
					Type: "packet",
					ID:   strconv.FormatUint(seq, 10),
					Data: data,
				})

			case <-ctx.Done():
				return

			case <-stop:
				return
			}
		}
	}).ServeHTTP(w, r)
}

func requestExplicitlyAccepts(r *http.Request, acceptable ...string) bool {
	for _, a := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(a))
		if err != nil {
			continue
		}
		for _, want := range acceptable {
			if mediaType == want {
				return true
			}
		}
	}
	return false
}
