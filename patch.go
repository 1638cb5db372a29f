package tracebuf

// ApplyPatch overwrites four bytes at offset within the payload of the
// chunk identified by (producer, writer, chunk), returning true iff the
// chunk is currently indexed and the offset lies entirely within its
// payload. It never changes a chunk's size, flags, or position, and it is
// idempotent: applying the same patch twice leaves the same bytes behind.
//
// A rejected patch (chunk not found, or offset out of bounds) leaves the
// buffer completely unchanged; it is recorded only in the stats counters.
func (b *Buffer) ApplyPatch(producer ProducerID, writer WriterID, chunk ChunkID, offset int, value [4]byte) bool {
	key := ChunkKey{ProducerID: producer, WriterID: writer, ChunkID: chunk}

	meta, ok := b.index.lookup(key)
	if !ok {
		b.counters.PatchesRejected.Add(1)
		b.counters.PatchesRejectedNotFound.Add(1)
		return false
	}

	if offset < 0 || offset+4 > meta.payloadLen() {
		b.counters.PatchesRejected.Add(1)
		b.counters.PatchesRejectedOutOfBounds.Add(1)
		return false
	}

	payload := b.store.payloadAt(meta.Offset, meta.Size)
	copy(payload[offset:offset+4], value[:])
	b.counters.PatchesApplied.Add(1)
	return true
}
