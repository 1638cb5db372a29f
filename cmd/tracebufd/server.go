package main

import (
	"context"

	"github.com/etsangsplk/tracebuf"
	"github.com/etsangsplk/tracebuf/internal/pubsub"
	"github.com/etsangsplk/tracebuf/internal/ringbuf"
	"github.com/etsangsplk/tracebuf/internal/tbuflog"
)

// server owns the one Buffer and Reader this process runs, and is the sole
// place their methods are called from. Every other goroutine — HTTP
// handlers, the admin listener, eventually a producer transport — reaches
// them only through do, which round-trips a closure through cmds so the
// buffer's single-threaded-cooperative contract holds regardless of how
// many goroutines the rest of the process spawns. Stats is the one
// exception: it reads the atomics-backed counters directly.
type server struct {
	buf     *tracebuf.Buffer
	reader  *tracebuf.Reader
	broker  *pubsub.PacketBroker
	history *ringbuf.History
	log     *tbuflog.Logger

	cmds chan func()
}

func newServer(cfg tracebuf.Config, historyPerSequence int) (*server, error) {
	buf, err := tracebuf.New(cfg)
	if err != nil {
		return nil, err
	}
	return &server{
		buf:     buf,
		reader:  buf.NewReader(),
		broker:  pubsub.NewPacketBroker(),
		history: ringbuf.NewHistory(historyPerSequence),
		log:     tbuflog.Get("tracebufd"),
		cmds:    make(chan func()),
	}, nil
}

// run is the dispatch loop: the one goroutine that ever touches s.buf or
// s.reader directly. It exits when ctx is canceled.
func (s *server) run(ctx context.Context) error {
	s.log.Infof("dispatch loop started, instance %s, capacity %d bytes", s.buf.InstanceID(), s.buf.Capacity())
	defer s.log.Infof("dispatch loop stopped")

	for {
		select {
		case cmd := <-s.cmds:
			cmd()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// do submits fn to the dispatch loop and blocks until it has run, or ctx
// is canceled first.
func (s *server) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Append submits a chunk through the dispatch loop and, on success, drains
// every packet the append made readable out to the broker and history.
func (s *server) Append(ctx context.Context, producer tracebuf.ProducerID, writer tracebuf.WriterID, chunk tracebuf.ChunkID, flags tracebuf.ChunkFlags, payload []byte) (int, error) {
	var (
		n   int
		err error
	)
	if derr := s.do(ctx, func() {
		n, err = s.buf.Append(producer, writer, chunk, flags, payload)
		if err != nil {
			s.log.Debugf("append %d/%d/%d rejected: %v", producer, writer, chunk, err)
			return
		}
		s.drainReader()
	}); derr != nil {
		return 0, derr
	}
	return n, err
}

// ApplyPatch submits a patch through the dispatch loop.
func (s *server) ApplyPatch(ctx context.Context, producer tracebuf.ProducerID, writer tracebuf.WriterID, chunk tracebuf.ChunkID, offset int, value [4]byte) (bool, error) {
	var ok bool
	if err := s.do(ctx, func() {
		ok = s.buf.ApplyPatch(producer, writer, chunk, offset, value)
	}); err != nil {
		return false, err
	}
	return ok, nil
}

// Stats reads the buffer's counters directly, bypassing the dispatch
// loop: Counters is atomics-backed and documented safe for concurrent
// reads, the one exception to single-threaded-cooperative access.
func (s *server) Stats() tracebuf.Stats {
	return s.buf.Stats()
}

// drainReader must only run on the dispatch loop goroutine. It pulls every
// packet the most recent append made available, publishing a flattened
// copy to subscribers and recording one into that sequence's history —
// never the aliasing slices Reader.Next returns, which are only valid
// until the next call into the buffer.
func (s *server) drainReader() {
	for {
		pkt, ok := s.reader.Next()
		if !ok {
			return
		}
		bytes := flattenSlices(pkt.Slices)
		snap := ringbuf.Snapshot{
			ProducerID: uint16(pkt.ProducerID),
			WriterID:   uint16(pkt.WriterID),
			ChunkID:    uint32(pkt.ChunkID),
			Bytes:      bytes,
		}
		s.history.Record(snap)
		s.broker.Publish(context.Background(), pubsub.Packet{
			ProducerID: snap.ProducerID,
			WriterID:   snap.WriterID,
			ChunkID:    snap.ChunkID,
			Bytes:      bytes,
		})
	}
}

func flattenSlices(slices [][]byte) []byte {
	n := 0
	for _, s := range slices {
		n += len(s)
	}
	out := make([]byte, 0, n)
	for _, s := range slices {
		out = append(out, s...)
	}
	return out
}
