package tracebuf

import "fmt"

// ProducerID identifies one producer process connected to the service.
// WriterID identifies one sequence-producing writer within a producer.
// Both are small positive integers assigned by the surrounding service;
// the buffer itself never allocates them.
type ProducerID uint16

// WriterID identifies one writer sequence within a producer. See ProducerID.
type WriterID uint16

// ChunkID is a per-writer monotonically increasing sequence number that
// wraps from MaxChunkID back to 0. Comparisons between two ChunkIDs must always go
// through chunkIDLess/chunkIDDistance (modid.go); raw numeric comparison
// silently misorders sequences once a writer has wrapped.
type ChunkID uint32

// MaxChunkID is the largest ChunkID. ChunkID arithmetic wraps modulo
// MaxChunkID+1 (2^32), the full range of the uint32 representation.
const MaxChunkID = ChunkID(1<<32 - 1)

// ChunkKey identifies a single chunk record uniquely within the buffer.
type ChunkKey struct {
	ProducerID ProducerID
	WriterID   WriterID
	ChunkID    ChunkID
}

func (k ChunkKey) String() string {
	return fmt.Sprintf("{p=%d,w=%d,c=%d}", k.ProducerID, k.WriterID, k.ChunkID)
}

// sequenceKey identifies a (producer, writer) pair, i.e. one writer
// sequence, ignoring the chunk id.
type sequenceKey struct {
	ProducerID ProducerID
	WriterID   WriterID
}

func (k ChunkKey) sequence() sequenceKey {
	return sequenceKey{ProducerID: k.ProducerID, WriterID: k.WriterID}
}

// ChunkFlags carries the writer-sequence continuation bits for a chunk.
type ChunkFlags byte

const (
	// FlagFirstPacketContinuesFromPrevChunk is set when the first packet in
	// this chunk's payload is the continuation of a packet whose earlier
	// fragment(s) live in a prior chunk of the same writer sequence.
	FlagFirstPacketContinuesFromPrevChunk ChunkFlags = 1 << 0

	// FlagLastPacketContinuesOnNextChunk is set when the last packet in this
	// chunk's payload is incomplete, and continues in the next chunk of the
	// same writer sequence.
	FlagLastPacketContinuesOnNextChunk ChunkFlags = 1 << 1
)

func (f ChunkFlags) continuesFromPrev() bool { return f&FlagFirstPacketContinuesFromPrevChunk != 0 }
func (f ChunkFlags) continuesOnNext() bool   { return f&FlagLastPacketContinuesOnNextChunk != 0 }

// recordKind discriminates the three kinds of record the store can hold.
type recordKind byte

const (
	recordKindData recordKind = iota
	recordKindPadding
	recordKindFree
)

func (k recordKind) String() string {
	switch k {
	case recordKindData:
		return "DATA"
	case recordKindPadding:
		return "PADDING"
	case recordKindFree:
		return "FREE"
	default:
		return "UNKNOWN"
	}
}

// recordHeaderSize is the fixed size, in bytes, of every record's in-band
// header. Every record's total size (header + payload, rounded up) is a
// multiple of recordAlignment.
const (
	recordHeaderSize = 16
	recordAlignment  = 16
)

// alignUp16 rounds n up to the next multiple of recordAlignment.
func alignUp16(n int) int {
	return (n + recordAlignment - 1) &^ (recordAlignment - 1)
}

// recordHeader is the decoded form of a record's 16-byte in-band header.
//
// Wire layout (little-endian):
//
//	offset 0:  size         uint32  // total record size, header included
//	offset 4:  producerID   uint16
//	offset 6:  writerID     uint16
//	offset 8:  chunkID      uint32
//	offset 12: flags        uint8
//	offset 13: kind         uint8
//	offset 14: packetCount  uint16
type recordHeader struct {
	size        uint32
	producerID  ProducerID
	writerID    WriterID
	chunkID     ChunkID
	flags       ChunkFlags
	kind        recordKind
	packetCount uint16
}

func (h recordHeader) key() ChunkKey {
	return ChunkKey{ProducerID: h.producerID, WriterID: h.writerID, ChunkID: h.chunkID}
}

func putRecordHeader(buf []byte, h recordHeader) {
	byteOrder.PutUint32(buf[0:4], h.size)
	byteOrder.PutUint16(buf[4:6], uint16(h.producerID))
	byteOrder.PutUint16(buf[6:8], uint16(h.writerID))
	byteOrder.PutUint32(buf[8:12], uint32(h.chunkID))
	buf[12] = byte(h.flags)
	buf[13] = byte(h.kind)
	byteOrder.PutUint16(buf[14:16], h.packetCount)
}

func getRecordHeader(buf []byte) recordHeader {
	return recordHeader{
		size:        byteOrder.Uint32(buf[0:4]),
		producerID:  ProducerID(byteOrder.Uint16(buf[4:6])),
		writerID:    WriterID(byteOrder.Uint16(buf[6:8])),
		chunkID:     ChunkID(byteOrder.Uint32(buf[8:12])),
		flags:       ChunkFlags(buf[12]),
		kind:        recordKind(buf[13]),
		packetCount: byteOrder.Uint16(buf[14:16]),
	}
}

// ChunkMeta is the index-visible metadata for one chunk record: its
// location in the store, the length of the payload the writer supplied
// (before alignment padding), and its flags and packet count.
// AwaitingSuccessor is not set by Buffer: in-progress fragments are tracked
// only in each Reader's per-writer state, so the field is always false.
type ChunkMeta struct {
	Offset            int
	Size              int
	PayloadLen        int
	Flags             ChunkFlags
	PacketCount       uint16
	AwaitingSuccessor bool
}

func (m ChunkMeta) payloadLen() int {
	return m.PayloadLen
}
