package ringbuf

import (
	"fmt"
	"sync"
)

// Snapshot is one complete packet, flattened to a single owned byte slice
// so it can safely outlive the tracebuf store mutation that produced it.
type Snapshot struct {
	ProducerID uint16
	WriterID   uint16
	ChunkID    uint32
	Bytes      []byte
}

// SequenceKey formats the (producer, writer) pair a Snapshot's backlog is
// grouped by.
func SequenceKey(producerID, writerID uint16) string {
	return fmt.Sprintf("%d:%d", producerID, writerID)
}

// History keeps the last few complete packets per writer sequence, so a
// stream subscriber that connects after packets have already gone by can
// be handed some immediate backlog instead of silence until the next
// write. It is not a substitute for the trace buffer itself: packets here
// are copies, retained independently of whatever the buffer has since
// evicted.
type History struct {
	perSequence int

	mtx   sync.Mutex
	rings map[string]*snapshotRing
}

// NewHistory returns a History that retains up to perSequence packets for
// each writer sequence it sees.
func NewHistory(perSequence int) *History {
	return &History{
		perSequence: perSequence,
		rings:       map[string]*snapshotRing{},
	}
}

// Record appends snap to its writer sequence's backlog, creating the
// backlog on first use.
func (h *History) Record(snap Snapshot) {
	key := SequenceKey(snap.ProducerID, snap.WriterID)

	h.mtx.Lock()
	ring, ok := h.rings[key]
	if !ok {
		ring = newSnapshotRing(h.perSequence)
		h.rings[key] = ring
	}
	h.mtx.Unlock()

	ring.add(snap)
}

// Recent returns up to perSequence of the most recent packets for the
// given writer sequence, oldest first. A sequence History has never seen
// returns nil.
func (h *History) Recent(producerID, writerID uint16) []Snapshot {
	key := SequenceKey(producerID, writerID)

	h.mtx.Lock()
	ring, ok := h.rings[key]
	h.mtx.Unlock()
	if !ok {
		return nil
	}

	var out []Snapshot
	ring.walk(func(s Snapshot) bool {
		out = append(out, s)
		return true
	})

	// walk yields newest first; reverse so callers see chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
