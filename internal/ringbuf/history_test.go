package ringbuf

import "testing"

func TestHistoryRecentOrdersChronologically(t *testing.T) {
	t.Parallel()

	h := NewHistory(2)
	h.Record(Snapshot{ProducerID: 1, WriterID: 1, ChunkID: 0, Bytes: []byte("a")})
	h.Record(Snapshot{ProducerID: 1, WriterID: 1, ChunkID: 1, Bytes: []byte("b")})
	h.Record(Snapshot{ProducerID: 1, WriterID: 1, ChunkID: 2, Bytes: []byte("c")})
	h.Record(Snapshot{ProducerID: 2, WriterID: 1, ChunkID: 0, Bytes: []byte("other")})

	recent := h.Recent(1, 1)
	assertEqual(t, len(recent), 2)
	assertEqual(t, string(recent[0].Bytes), "b")
	assertEqual(t, string(recent[1].Bytes), "c")

	assertEqual(t, len(h.Recent(3, 3)), 0)
}
