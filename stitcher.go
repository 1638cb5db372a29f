package tracebuf

// PacketRef is one complete trace packet as yielded by a Reader: an
// ordered list of byte slices (never copied, aliasing the store directly)
// plus the identity of the chunk that held the packet's first byte.
//
// Slices are only valid until the next call to Append, ApplyPatch, or
// Reader.Next on the same Buffer; a consumer that needs to retain a packet
// past that point must copy it.
type PacketRef struct {
	Slices     [][]byte
	ProducerID ProducerID
	WriterID   WriterID
	ChunkID    ChunkID
}

// seqCursor is the per-writer state the stitcher carries between calls:
// where it last read up to, and any in-progress fragment waiting for a
// continuation chunk.
type seqCursor struct {
	started bool
	lastID  ChunkID

	carry         [][]byte
	carryChunk    ChunkID
	carryProducer ProducerID
	carryWriter   WriterID
}

func (c *seqCursor) stalled() bool { return c.carry != nil }

// Reader is a pull-driven iterator over complete packets across every
// writer sequence currently known to a Buffer. It holds one seqCursor per
// writer and round-robins between writers that have something ready,
// matching spec's "per-writer FIFO, interleaved in any order" guarantee.
// A Reader may be abandoned at any point without affecting the Buffer.
type Reader struct {
	buf     *Buffer
	cursors map[sequenceKey]*seqCursor
	order   []sequenceKey
	next    int
	queue   []PacketRef
}

// NewReader starts a fresh read pass over buf. Readers are cheap; a long-
// lived consumer typically keeps one around and calls Next repeatedly.
func (b *Buffer) NewReader() *Reader {
	return &Reader{
		buf:     b,
		cursors: map[sequenceKey]*seqCursor{},
	}
}

// Next returns the next complete packet, if one is ready. ok is false when
// no writer sequence can currently make progress — either every sequence
// is caught up with nothing pending, or every sequence with pending work
// is stalled waiting on a successor chunk that hasn't arrived yet. Callers
// should treat a false ok as "try again later," not as a permanent end of
// stream: a future Append may unblock a stalled sequence or introduce a
// new one.
func (r *Reader) Next() (PacketRef, bool) {
	for {
		if len(r.queue) > 0 {
			pkt := r.queue[0]
			r.queue = r.queue[1:]
			return pkt, true
		}
		if !r.advanceOnce() {
			return PacketRef{}, false
		}
	}
}

// refreshOrder folds any writer sequences that have appeared since the last
// call into the round-robin order, and drops ones that have disappeared and
// have no pending carry left to resolve.
func (r *Reader) refreshOrder() {
	live := r.buf.index.sequences()
	liveSet := make(map[sequenceKey]bool, len(live))
	for _, seq := range live {
		liveSet[seq] = true
		if _, ok := r.cursors[seq]; !ok {
			r.cursors[seq] = &seqCursor{}
			r.order = append(r.order, seq)
		}
	}
	filtered := r.order[:0]
	for _, seq := range r.order {
		cur := r.cursors[seq]
		if !liveSet[seq] && !cur.stalled() {
			delete(r.cursors, seq)
			continue
		}
		filtered = append(filtered, seq)
	}
	r.order = filtered
	if r.next >= len(r.order) {
		r.next = 0
	}
}

// advanceOnce tries to make progress on one writer sequence, filling
// r.queue with zero or more completed packets from the one chunk it
// consumes. It returns false only if no sequence could make progress.
func (r *Reader) advanceOnce() bool {
	r.refreshOrder()
	n := len(r.order)
	for i := 0; i < n; i++ {
		pos := (r.next + i) % n
		seq := r.order[pos]
		if r.stepSequence(seq) {
			r.next = (pos + 1) % n
			return true
		}
	}
	return false
}

// stepSequence consumes exactly one chunk from seq's sequence, if one is
// currently reachable, queuing any packets it completes. It returns false
// if seq has nothing new to offer right now (caught up, or stalled on a
// successor that hasn't arrived).
func (r *Reader) stepSequence(seq sequenceKey) bool {
	cur := r.cursors[seq]

	var id ChunkID
	var found bool
	if !cur.started {
		ids := r.buf.index.forSequence(seq)
		if len(ids) == 0 {
			return false
		}
		id, found = ids[0], true
	} else {
		id, found = r.buf.index.lowerBound(seq, chunkIDNext(cur.lastID))
	}
	if !found {
		return false
	}

	gap := cur.started && id != chunkIDNext(cur.lastID)
	cur.started = true
	cur.lastID = id

	if gap && cur.stalled() {
		r.buf.counters.FragmentsDroppedSuccessorOverwritten.Add(1)
		cur.carry = nil
	}

	key := ChunkKey{ProducerID: seq.ProducerID, WriterID: seq.WriterID, ChunkID: id}
	payload, meta, ok := r.buf.chunkPayload(key)
	if !ok {
		// Evicted between the index scan above and now is impossible under
		// the single-threaded cooperative model, but tolerate it rather
		// than panic on an assumption violation.
		return true
	}

	r.consumeChunk(key, meta, payload, cur)
	return true
}

// consumeChunk parses one chunk's payload into complete packets, stitching
// the first and last packet against cur's carry-over according to the
// chunk's continuation flags, and queues every packet it completes.
func (r *Reader) consumeChunk(key ChunkKey, meta ChunkMeta, payload []byte, cur *seqCursor) {
	packets, malformed := r.splitPackets(payload)
	if malformed {
		r.buf.counters.ChunksDiscardedMalformed.Add(1)
		if cur.stalled() {
			r.buf.counters.FragmentsDroppedOrphan.Add(1)
			cur.carry = nil
		}
		return
	}
	if len(packets) == 0 {
		return // an empty chunk is transparent: it neither breaks nor contributes
	}

	n := len(packets)
	start := 0
	switch {
	case meta.Flags.continuesFromPrev() && !cur.stalled():
		r.buf.counters.FragmentsDroppedOrphan.Add(1)
		start = 1
	case !meta.Flags.continuesFromPrev() && cur.stalled():
		// The previous chunk promised a continuation that never arrived
		// tagged as such; the stale carry cannot be completed.
		r.buf.counters.FragmentsDroppedOrphan.Add(1)
		cur.carry = nil
	}

	for i := start; i < n; i++ {
		seg := packets[i]
		first := i == 0
		last := i == n-1

		appending := first && meta.Flags.continuesFromPrev() && cur.stalled()
		if appending {
			cur.carry = append(cur.carry, seg)
		}

		if last && meta.Flags.continuesOnNext() {
			if !appending {
				cur.carry = [][]byte{seg}
				cur.carryChunk = key.ChunkID
				cur.carryProducer = key.ProducerID
				cur.carryWriter = key.WriterID
			}
			continue
		}

		if appending {
			r.queue = append(r.queue, PacketRef{
				Slices:     cur.carry,
				ProducerID: cur.carryProducer,
				WriterID:   cur.carryWriter,
				ChunkID:    cur.carryChunk,
			})
			cur.carry = nil
			continue
		}

		r.queue = append(r.queue, PacketRef{
			Slices:     [][]byte{seg},
			ProducerID: key.ProducerID,
			WriterID:   key.WriterID,
			ChunkID:    key.ChunkID,
		})
	}
}

// splitPackets decodes every packet in payload up front. malformed is true
// if the parser hit invalid framing before reaching the end of the
// payload and AllowMalformedPackets is not set; the packets successfully
// decoded before that point are discarded along with it, matching the
// "any error aborts parsing the current chunk" failure policy.
func (r *Reader) splitPackets(payload []byte) (packets [][]byte, malformed bool) {
	p := newPacketParser(payload)
	for {
		slice, eof, err := p.next()
		if err != nil {
			if r.buf.cfg.AllowMalformedPackets {
				return packets, false
			}
			return nil, true
		}
		if eof {
			return packets, false
		}
		packets = append(packets, slice)
	}
}
