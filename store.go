package tracebuf

// chunkStore is the contiguous byte region backing a Buffer: a ring of
// 16-byte-aligned records, each with an in-band header, appended at a
// single write cursor that wraps to offset 0 when a record would not fit
// before the end of the region.
//
// chunkStore only knows about bytes and physical record boundaries; it has
// no notion of the chunk index. Callers (Buffer) are responsible for
// keeping an index of DATA records in sync with the victims append
// reports, the same way the teacher's ring buffer types leave bookkeeping
// like subscriber stats to their caller.
type chunkStore struct {
	buf    []byte
	cap    int
	cursor int
}

// newChunkStore allocates a region of the given capacity, rounded up to a
// multiple of 16. The caller is responsible for enforcing MinStoreSize;
// newChunkStore only rounds.
func newChunkStore(size int) *chunkStore {
	cap := alignUp16(size)
	s := &chunkStore{buf: make([]byte, cap), cap: cap}
	putRecordHeader(s.buf[0:recordHeaderSize], recordHeader{
		size: uint32(cap),
		kind: recordKindFree,
	})
	return s
}

func (s *chunkStore) capacity() int    { return s.cap }
func (s *chunkStore) sizeToEnd() int   { return s.cap - s.cursor }
func (s *chunkStore) writeCursor() int { return s.cursor }

func (s *chunkStore) headerAt(offset int) recordHeader {
	return getRecordHeader(s.buf[offset : offset+recordHeaderSize])
}

func (s *chunkStore) writeHeaderAt(offset int, h recordHeader) {
	putRecordHeader(s.buf[offset:offset+recordHeaderSize], h)
}

// payloadAt returns a slice view (not a copy) of a record's payload, given
// the record's offset and total size.
func (s *chunkStore) payloadAt(offset, size int) []byte {
	return s.buf[offset+recordHeaderSize : offset+size]
}

// evictRange walks whole records starting at offset until it has consumed
// exactly length bytes, and returns the keys of any DATA records along the
// way. If the last record it consumes ends beyond offset+length, the
// leftover is re-covered by a new PADDING record, so every byte in the
// store stays covered by exactly one record after the walk.
//
// evictRange must be called before the new record is written into the
// range, since it reads the old headers to know how far to walk.
func (s *chunkStore) evictRange(offset, length int) []ChunkKey {
	var victims []ChunkKey
	consumed, pos := 0, offset
	for consumed < length {
		h := s.headerAt(pos)
		if h.kind == recordKindData {
			victims = append(victims, h.key())
		}
		sz := int(h.size)
		pos += sz
		consumed += sz
	}
	if overshoot := consumed - length; overshoot > 0 {
		s.writeHeaderAt(offset+length, recordHeader{
			size: uint32(overshoot),
			kind: recordKindPadding,
		})
	}
	return victims
}

// append writes a DATA record for key at the current write cursor,
// wrapping to offset 0 and emitting a PADDING record over the unused tail
// if the record would not otherwise fit before the end of the region. It
// returns the offset the record was written at, the number of bytes
// consumed (16-byte aligned, header included), and the keys of every DATA
// record it overwrote, in store order.
func (s *chunkStore) append(key ChunkKey, flags ChunkFlags, packetCount uint16, payload []byte) (offset, consumed int, victims []ChunkKey, err error) {
	need := alignUp16(recordHeaderSize + len(payload))
	if need > s.cap {
		return 0, 0, nil, ErrPayloadTooLarge
	}

	if need > s.sizeToEnd() {
		tailLen := s.cap - s.cursor
		if tailLen > 0 {
			victims = append(victims, s.evictRange(s.cursor, tailLen)...)
			s.writeHeaderAt(s.cursor, recordHeader{
				size: uint32(tailLen),
				kind: recordKindPadding,
			})
		}
		s.cursor = 0
	}

	offset = s.cursor
	victims = append(victims, s.evictRange(offset, need)...)

	s.writeHeaderAt(offset, recordHeader{
		size:        uint32(need),
		producerID:  key.ProducerID,
		writerID:    key.WriterID,
		chunkID:     key.ChunkID,
		flags:       flags,
		kind:        recordKindData,
		packetCount: packetCount,
	})
	payloadDst := s.payloadAt(offset, need)
	n := copy(payloadDst, payload)
	for i := n; i < len(payloadDst); i++ {
		payloadDst[i] = 0 // zero-fill the 16-byte alignment tail
	}

	s.cursor = offset + need
	if s.cursor >= s.cap {
		// Landing exactly on the end is the same position as landing on
		// offset 0: wrap now so sizeToEnd reports the full region again,
		// rather than a cursor sitting one-past-the-end with no record
		// there to wrap around.
		s.cursor = 0
	}
	return offset, need, victims, nil
}
