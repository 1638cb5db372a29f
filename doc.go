// Package tracebuf implements a bounded-memory trace buffer: a single
// contiguous byte region that concurrent producers fill with opaque,
// length-prefixed chunks of serialized trace data, and that a single
// consumer drains as an ordered stream of complete trace packets.
//
// The buffer tolerates out-of-order chunk delivery, stitches packets that
// were fragmented across chunk boundaries by their producer, and allows a
// producer to patch four bytes of an already-committed chunk after the
// fact (used upstream to fill in placeholder values, such as a byte count
// known only once a larger structure has finished being written).
//
// A Buffer is not safe for concurrent use. All of its methods except Stats
// are meant to be called from a single owning goroutine; see the docs on
// Buffer for the concurrency model and on Reader for how to drain it.
//
// Most applications should not construct a Buffer directly in request
// handling code, and should instead run one behind the cmd/tracebufd
// dispatch loop, which serializes calls onto one goroutine and exposes the
// buffer's stats and packet stream over the tracebufhttp debug surface.
package tracebuf
