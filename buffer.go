package tracebuf

import (
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Buffer is the trace buffer: a fixed-capacity ring of chunk records plus
// the index that keeps them in per-writer sequence order.
//
// Buffer is single-threaded cooperative, the same concurrency model the
// surrounding daemon's dispatch loop assumes for every other piece of
// service state: all of Append, ApplyPatch, Reader.Next and Stats are meant
// to be called from one owning goroutine at a time. Stats is the one
// exception that is safe to call concurrently, since Counters is backed by
// atomics; everything else requires external serialization (see
// cmd/tracebufd's dispatch loop).
type Buffer struct {
	cfg        Config
	store      *chunkStore
	index      *chunkIndex
	counters   Counters
	instanceID string
}

// New constructs a Buffer. The returned error, if any, wraps ErrInvalidConfig.
func New(cfg Config) (*Buffer, error) {
	if errs := cfg.validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(flattenErrors(errs...), "; "))
	}
	return &Buffer{
		cfg:        cfg,
		store:      newChunkStore(cfg.SizeBytes),
		index:      newChunkIndex(),
		instanceID: ulid.Make().String(),
	}, nil
}

// InstanceID identifies this buffer instance for the lifetime of the
// process. It is generated once, at construction, from a ULID so that it
// sorts lexically by creation time and is safe to use as a stream or log
// correlation key.
func (b *Buffer) InstanceID() string { return b.instanceID }

// Stats returns a point-in-time snapshot of the buffer's counters.
func (b *Buffer) Stats() Stats { return b.counters.Snapshot(b.instanceID) }

// Capacity returns the store's total size in bytes, as rounded by New.
func (b *Buffer) Capacity() int { return b.store.capacity() }

// BytesRemainingUntilEnd returns how many bytes are free between the write
// cursor and the physical end of the store, before the next append would
// need to wrap.
func (b *Buffer) BytesRemainingUntilEnd() int { return b.store.sizeToEnd() }

// Append writes a chunk record and returns the number of bytes it consumed
// in the store (header and alignment padding included). flags carries the
// two writer-sequence continuation bits described by ChunkFlags.
//
// If (producer, writer, chunk) duplicates an entry already in the index,
// the prior record's index entry is dropped in favor of this one (the
// newest submission always wins); this also counts as an overwrite against
// chunks_overwritten and bytes_overwritten, on top of the dedicated
// chunks_discarded_duplicate_id counter, matching the "malicious duplicate
// chunk id" scenario where the old record never physically overlapped the
// new one's byte range and so store.append alone would not have evicted it.
func (b *Buffer) Append(producer ProducerID, writer WriterID, chunk ChunkID, flags ChunkFlags, payload []byte) (int, error) {
	if b.cfg.MaxChunkPayload > 0 && len(payload) > b.cfg.MaxChunkPayload {
		return 0, ErrPayloadTooLarge
	}

	key := ChunkKey{ProducerID: producer, WriterID: writer, ChunkID: chunk}

	if oldMeta, exists := b.index.lookup(key); exists {
		b.index.remove(key)
		// Turn the stale record into padding so that evicting it later
		// cannot be mistaken for evicting the newer record under this key.
		b.store.writeHeaderAt(oldMeta.Offset, recordHeader{size: uint32(oldMeta.Size), kind: recordKindPadding})
		b.counters.ChunksOverwritten.Add(1)
		b.counters.BytesOverwritten.Add(uint64(oldMeta.Size))
		b.counters.ChunksDiscardedDuplicateID.Add(1)
	}

	packetCount := countPackets(payload)
	offset, size, victims, err := b.store.append(key, flags, packetCount, payload)
	if err != nil {
		return 0, err
	}

	for _, victim := range victims {
		if meta, ok := b.index.remove(victim); ok {
			b.counters.ChunksOverwritten.Add(1)
			b.counters.BytesOverwritten.Add(uint64(meta.Size))
		}
	}

	b.index.insert(key, ChunkMeta{
		Offset:      offset,
		Size:        size,
		PayloadLen:  len(payload),
		Flags:       flags,
		PacketCount: packetCount,
	})
	b.counters.ChunksWritten.Add(1)
	return size, nil
}

// chunkPayload returns a view of the payload currently stored for key, if
// the index still has an entry for it.
func (b *Buffer) chunkPayload(key ChunkKey) ([]byte, ChunkMeta, bool) {
	meta, ok := b.index.lookup(key)
	if !ok {
		return nil, ChunkMeta{}, false
	}
	return b.store.payloadAt(meta.Offset, meta.Size)[:meta.PayloadLen], meta, true
}
