package tracebuf

// chunkIDDistance returns the signed modular distance from a to b, in the
// range [-2^31, 2^31), i.e. half of the 2^32 id space either way. A positive result means b comes
// after a in modular sequence order; a negative result means b comes
// before a. This is the only correct way to compare two ChunkIDs from the
// same writer sequence, because the space wraps: raw numeric comparison
// would misorder any sequence that has wrapped around.
func chunkIDDistance(a, b ChunkID) int64 {
	return int64(int32(b - a))
}

// chunkIDLess reports whether a comes before b in modular sequence order.
func chunkIDLess(a, b ChunkID) bool {
	return chunkIDDistance(a, b) > 0
}

// chunkIDNext returns the chunk id that immediately follows id, wrapping
// at MaxChunkID.
func chunkIDNext(id ChunkID) ChunkID {
	return id + 1
}

// keyLess orders two chunk keys by (producerID, writerID) as the major
// key, and modular chunk-id order as the minor key within a writer
// sequence. chunkIndex does not call keyLess: it keeps one id list per
// writer sequence, ordered with chunkIDLess, which gives the same
// per-writer order even across wrap-around.
func keyLess(a, b ChunkKey) bool {
	switch {
	case a.ProducerID != b.ProducerID:
		return a.ProducerID < b.ProducerID
	case a.WriterID != b.WriterID:
		return a.WriterID < b.WriterID
	default:
		return chunkIDLess(a.ChunkID, b.ChunkID)
	}
}
