package tracebuf

import "sort"

// chunkIndex is the sole source of truth for read ordering and for
// locating chunks to patch. It maps a ChunkKey to its ChunkMeta, and keeps,
// per writer sequence, the set of known chunk ids in modular sequence
// order so a reader can walk them forward and a writer can look up the
// smallest id at or after a given point.
type chunkIndex struct {
	metaByKey map[ChunkKey]ChunkMeta
	seqIDs    map[sequenceKey][]ChunkID // kept sorted in modular order
}

func newChunkIndex() *chunkIndex {
	return &chunkIndex{
		metaByKey: map[ChunkKey]ChunkMeta{},
		seqIDs:    map[sequenceKey][]ChunkID{},
	}
}

func (idx *chunkIndex) lookup(key ChunkKey) (ChunkMeta, bool) {
	meta, ok := idx.metaByKey[key]
	return meta, ok
}

// insert adds or replaces the entry for key. If key was already present,
// only its metadata is replaced; the chunk id ordering is unaffected
// because the id itself doesn't change.
func (idx *chunkIndex) insert(key ChunkKey, meta ChunkMeta) {
	if _, exists := idx.metaByKey[key]; exists {
		idx.metaByKey[key] = meta
		return
	}
	idx.metaByKey[key] = meta

	seq := key.sequence()
	ids := idx.seqIDs[seq]
	pos := sort.Search(len(ids), func(i int) bool { return !chunkIDLess(ids[i], key.ChunkID) })
	ids = append(ids, 0)
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = key.ChunkID
	idx.seqIDs[seq] = ids
}

// updateMeta replaces the metadata for an existing entry without touching
// ordering. It is a no-op if key is not present.
func (idx *chunkIndex) updateMeta(key ChunkKey, meta ChunkMeta) {
	if _, ok := idx.metaByKey[key]; !ok {
		return
	}
	idx.metaByKey[key] = meta
}

// remove deletes the entry for key, if present, and returns its prior
// metadata.
func (idx *chunkIndex) remove(key ChunkKey) (ChunkMeta, bool) {
	meta, ok := idx.metaByKey[key]
	if !ok {
		return ChunkMeta{}, false
	}
	delete(idx.metaByKey, key)

	seq := key.sequence()
	ids := idx.seqIDs[seq]
	pos := sort.Search(len(ids), func(i int) bool { return !chunkIDLess(ids[i], key.ChunkID) })
	if pos < len(ids) && ids[pos] == key.ChunkID {
		ids = append(ids[:pos], ids[pos+1:]...)
	}
	if len(ids) == 0 {
		delete(idx.seqIDs, seq)
	} else {
		idx.seqIDs[seq] = ids
	}
	return meta, true
}

// forSequence returns the known chunk ids for a writer sequence, in
// modular sequence order. The returned slice aliases index state and must
// not be mutated by the caller.
func (idx *chunkIndex) forSequence(seq sequenceKey) []ChunkID {
	return idx.seqIDs[seq]
}

// lowerBound returns the smallest known chunk id for seq that is at or
// after start, under modular order.
func (idx *chunkIndex) lowerBound(seq sequenceKey, start ChunkID) (ChunkID, bool) {
	ids := idx.seqIDs[seq]
	pos := sort.Search(len(ids), func(i int) bool { return !chunkIDLess(ids[i], start) })
	if pos < len(ids) {
		return ids[pos], true
	}
	return 0, false
}

// sequences returns every writer sequence with at least one indexed
// chunk. Order is unspecified, matching spec.md's "interleaved in any
// order" guarantee between writers.
func (idx *chunkIndex) sequences() []sequenceKey {
	out := make([]sequenceKey, 0, len(idx.seqIDs))
	for seq := range idx.seqIDs {
		out = append(out, seq)
	}
	return out
}

func (idx *chunkIndex) len() int {
	return len(idx.metaByKey)
}
