package tracebuf

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"google.golang.org/protobuf/encoding/protowire"
)

func assertEqual[T any](t *testing.T, have, want T) {
	t.Helper()
	if !cmp.Equal(have, want, cmpopts.EquateErrors()) {
		t.Fatal(cmp.Diff(have, want, cmpopts.EquateErrors()))
	}
}

// encodePackets frames each argument as a varint-length-prefixed packet and
// concatenates them into one chunk payload, the same framing Append's
// callers are expected to produce.
func encodePackets(packets ...[]byte) []byte {
	var buf []byte
	for _, p := range packets {
		buf = protowire.AppendVarint(buf, uint64(len(p)))
		buf = append(buf, p...)
	}
	return buf
}

// sumRecordSizes walks every physical record in s from offset 0 and
// returns the sum of their sizes, used to check that the store's bytes are
// covered by exactly one record end to end (spec's store invariant).
func sumRecordSizes(s *chunkStore) int {
	total, pos := 0, 0
	for pos < s.capacity() {
		h := s.headerAt(pos)
		total += int(h.size)
		pos += int(h.size)
	}
	return total
}

func TestChunkIDOrderingWrapsModularly(t *testing.T) {
	t.Parallel()

	// Near the top of the ChunkID space, the next few ids wrap back around
	// to 0 and should still compare as "after" MaxChunkID-1.
	assertEqual(t, chunkIDLess(MaxChunkID-1, MaxChunkID), true)
	assertEqual(t, chunkIDLess(MaxChunkID, 0), true)
	assertEqual(t, chunkIDLess(0, MaxChunkID), false)
	assertEqual(t, chunkIDLess(5, 5), false)

	assertEqual(t, chunkIDNext(MaxChunkID), ChunkID(0))
}

func TestPacketParserDecodesSequentialPackets(t *testing.T) {
	t.Parallel()

	payload := encodePackets([]byte("abc"), []byte("de"), []byte("fghij"))
	p := newPacketParser(payload)

	slice, eof, err := p.next()
	assertEqual(t, err, nil)
	assertEqual(t, eof, false)
	assertEqual(t, string(slice), "abc")

	slice, eof, err = p.next()
	assertEqual(t, err, nil)
	assertEqual(t, eof, false)
	assertEqual(t, string(slice), "de")

	slice, eof, err = p.next()
	assertEqual(t, err, nil)
	assertEqual(t, eof, false)
	assertEqual(t, string(slice), "fghij")

	_, eof, err = p.next()
	assertEqual(t, err, nil)
	assertEqual(t, eof, true)
}

// TestPacketParserAllowsZeroLengthPacketAtTail covers the one place a
// zero-length packet is legitimate: as the very last thing in the payload,
// there's no more payload following it to make it ambiguous with the
// malformed-chunk sentinel.
func TestPacketParserAllowsZeroLengthPacketAtTail(t *testing.T) {
	t.Parallel()

	payload := encodePackets([]byte("abc"), []byte(""))
	p := newPacketParser(payload)

	slice, eof, err := p.next()
	assertEqual(t, err, nil)
	assertEqual(t, eof, false)
	assertEqual(t, string(slice), "abc")

	_, eof, err = p.next()
	assertEqual(t, err, nil)
	assertEqual(t, eof, true)
}

func TestPacketParserRejectsZeroLengthMidPayload(t *testing.T) {
	t.Parallel()

	// A zero-length varint followed by more bytes is the "malformed chunk"
	// sentinel: a legitimate writer never emits an empty packet except at
	// the very end of a chunk's payload.
	payload := append(encodePackets([]byte("")), 0xFF)
	p := newPacketParser(payload)
	_, _, err := p.next()
	assertEqual(t, err, errMalformedChunk)
}

func TestPacketParserRejectsOverlongLength(t *testing.T) {
	t.Parallel()

	// A varint claiming far more bytes than remain in the payload.
	payload := []byte{0xFF, 0xFF, 0x01, 'x'}
	p := newPacketParser(payload)
	_, _, err := p.next()
	assertEqual(t, err, errMalformedChunk)
}

func TestCountPackets(t *testing.T) {
	t.Parallel()

	payload := encodePackets([]byte("a"), []byte("bb"), []byte("ccc"))
	assertEqual(t, countPackets(payload), uint16(3))
}

// TestChunkStoreFillTillEnd mirrors S2: four appends whose aligned record
// sizes are 512, 512, 1024, 2048 exactly fill a 4096-byte store. Landing
// exactly on the end is the same position as landing on offset 0, so the
// cursor wraps there immediately rather than sitting one-past-the-end;
// bytes_remaining_until_end is back to the store's full capacity.
func TestChunkStoreFillTillEnd(t *testing.T) {
	t.Parallel()

	s := newChunkStore(4096)
	payloadLens := []int{496, 496, 1008, 2032}
	wantOffsets := []int{0, 512, 1024, 2048}

	for i, n := range payloadLens {
		key := ChunkKey{ProducerID: 1, WriterID: 1, ChunkID: ChunkID(i)}
		payload := make([]byte, n)
		payload[0] = byte(i)

		offset, _, victims, err := s.append(key, 0, 1, payload)
		assertEqual(t, err, nil)
		assertEqual(t, victims, nil)
		assertEqual(t, offset, wantOffsets[i])
	}

	assertEqual(t, s.writeCursor(), 0)
	assertEqual(t, s.sizeToEnd(), 4096)
	assertEqual(t, sumRecordSizes(s), s.capacity())

	for i, off := range wantOffsets {
		h := s.headerAt(off)
		assertEqual(t, h.kind, recordKindData)
		assertEqual(t, h.chunkID, ChunkID(i))
	}
}

// TestChunkStorePaddingAndEviction mirrors S3: five appends of sizes 128,
// 256, 512, 1024, 2048 leave exactly 128 bytes of tail space (the
// "128-padding at tail" the scenario describes falls out mechanically, not
// as a separate step). A sixth append of size 512 can't fit in that tail,
// so it wraps and evicts every DATA record it physically overlaps on the
// way back around — here, the first three chunks.
func TestChunkStorePaddingAndEviction(t *testing.T) {
	t.Parallel()

	s := newChunkStore(4096)
	payloadLens := []int{112, 240, 496, 1008, 2032}
	for i, n := range payloadLens {
		key := ChunkKey{ProducerID: 1, WriterID: 1, ChunkID: ChunkID(i)}
		_, _, victims, err := s.append(key, 0, 1, make([]byte, n))
		assertEqual(t, err, nil)
		assertEqual(t, victims, nil)
	}
	assertEqual(t, s.sizeToEnd(), 128)

	key5 := ChunkKey{ProducerID: 1, WriterID: 1, ChunkID: 5}
	offset, size, victims, err := s.append(key5, 0, 1, make([]byte, 496))
	assertEqual(t, err, nil)
	assertEqual(t, offset, 0)
	assertEqual(t, size, 512)
	assertEqual(t, victims, []ChunkKey{
		{ProducerID: 1, WriterID: 1, ChunkID: 0},
		{ProducerID: 1, WriterID: 1, ChunkID: 1},
		{ProducerID: 1, WriterID: 1, ChunkID: 2},
	})
	assertEqual(t, sumRecordSizes(s), s.capacity())

	// Chunks 3, 4, and the new chunk 5 remain readable; 0-2 are gone.
	h3 := s.headerAt(896)
	assertEqual(t, h3.kind, recordKindData)
	assertEqual(t, h3.chunkID, ChunkID(3))

	h4 := s.headerAt(1920)
	assertEqual(t, h4.kind, recordKindData)
	assertEqual(t, h4.chunkID, ChunkID(4))
}

func TestChunkStorePayloadTooLargeEvenAfterWrap(t *testing.T) {
	t.Parallel()

	s := newChunkStore(4096)
	_, _, _, err := s.append(ChunkKey{ChunkID: 0}, 0, 1, make([]byte, 4096))
	if err != ErrPayloadTooLarge {
		t.Fatalf("want ErrPayloadTooLarge, have %v", err)
	}
}

func TestChunkIndexLowerBoundAcrossWrap(t *testing.T) {
	t.Parallel()

	idx := newChunkIndex()
	seq := sequenceKey{ProducerID: 1, WriterID: 1}
	for _, id := range []ChunkID{MaxChunkID - 1, MaxChunkID, 0, 1} {
		idx.insert(ChunkKey{ProducerID: 1, WriterID: 1, ChunkID: id}, ChunkMeta{})
	}

	got, ok := idx.lowerBound(seq, MaxChunkID)
	assertEqual(t, ok, true)
	assertEqual(t, got, MaxChunkID)

	got, ok = idx.lowerBound(seq, 2)
	assertEqual(t, ok, false)
	assertEqual(t, got, ChunkID(0))

	assertEqual(t, idx.forSequence(seq), []ChunkID{MaxChunkID - 1, MaxChunkID, 0, 1})
}
