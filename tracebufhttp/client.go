package tracebufhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bernerdschaefer/eventsource"
	"github.com/peterbourgon/unixtransport"

	"github.com/etsangsplk/tracebuf/internal/pubsub"
)

// StreamClient reads the packet stream served by a StreamHandler. Its URI
// may be an ordinary http(s):// URL, or a unix:// path identifying a Unix
// domain socket the daemon is listening on — the two transports a
// Perfetto-style consumer needs to reach a tracebufd instance, whether
// it's local or across a network.
type StreamClient struct {
	// HTTPClient used to make the stream request. Optional; a client with
	// unixtransport.Register already applied is constructed if nil.
	HTTPClient *http.Client

	// URI of the remote stream server, e.g. "http://host:8080/stream" or
	// "unix:///var/run/tracebufd.sock:/stream". Required.
	URI string

	// RecvBuffer is the size of the channel packets are queued in
	// server-side; sent to the server as a query parameter so it can size
	// its own subscription channel to match the client's expectations.
	RecvBuffer int

	// RetryInterval between reconnect attempts.
	RetryInterval time.Duration
}

// NewStreamClient returns a StreamClient for uri with default settings.
func NewStreamClient(uri string) *StreamClient {
	return &StreamClient{URI: uri, RecvBuffer: 64, RetryInterval: 3 * time.Second}
}

func (c *StreamClient) initialize() {
	if c.HTTPClient == nil {
		transport := &http.Transport{}
		unixtransport.Register(transport)
		c.HTTPClient = &http.Client{Transport: transport}
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 3 * time.Second
	}
}

// Stream reads packets from the server and delivers them to ch until ctx
// is canceled or the connection fails with a non-recoverable error.
func (c *StreamClient) Stream(ctx context.Context, ch chan<- pubsub.Packet) error {
	c.initialize()

	uri, err := url.Parse(c.URI)
	if err != nil {
		return fmt.Errorf("parse URI: %w", err)
	}
	if c.RecvBuffer > 0 {
		query := uri.Query()
		query.Set("recvbuf", strconv.Itoa(c.RecvBuffer))
		uri.RawQuery = query.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, uri.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	es := eventsource.New(req, c.RetryInterval)
	go func() {
		<-ctx.Done()
		es.Close()
	}()

	for {
		ev, err := es.Read()
		if errors.Is(err, eventsource.ErrClosed) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		if ev.Type != "packet" {
			continue
		}

		var pkt pubsub.Packet
		if err := json.Unmarshal(ev.Data, &pkt); err != nil {
			return fmt.Errorf("decode packet event: %w", err)
		}

		select {
		case ch <- pkt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
