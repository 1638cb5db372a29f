package tracebuf

import "google.golang.org/protobuf/encoding/protowire"

// packetParser decodes the varint-length-prefixed packet stream inside a
// single chunk's payload. It holds only a read position within that one
// payload; a fresh parser is created per chunk by the stitcher.
//
// Length decoding uses protowire.ConsumeVarint, the same base-128 varint
// codec the downstream protobuf-based trace decoder uses for its own
// length-delimited fields, so a chunk's framing and its packets' own inner
// framing agree on one varint implementation.
type packetParser struct {
	payload []byte
	pos     int
}

func newPacketParser(payload []byte) *packetParser {
	return &packetParser{payload: payload}
}

// next returns the next packet's bytes as a slice aliasing the chunk's
// payload. eof is true once the payload is exhausted with no error. err is
// non-nil if the framing is invalid: a malformed varint, a length that
// overflows the remaining payload, or a zero length followed by more
// payload bytes (the "malformed chunk" sentinel, since a legitimate writer
// never emits a truly empty packet in the middle of a chunk).
func (p *packetParser) next() (slice []byte, eof bool, err error) {
	for {
		if p.pos >= len(p.payload) {
			return nil, true, nil
		}

		length, n := protowire.ConsumeVarint(p.payload[p.pos:])
		if n < 0 {
			return nil, false, errMalformedChunk
		}

		if length == 0 {
			hasMore := p.pos+n < len(p.payload)
			p.pos += n
			if hasMore {
				return nil, false, errMalformedChunk
			}
			continue // zero-length packet exactly at the tail: treat as end, not an error
		}

		start := p.pos + n
		end := start + int(length)
		if end > len(p.payload) || end < start /* overflow */ {
			return nil, false, errMalformedChunk
		}

		p.pos = end
		return p.payload[start:end], false, nil
	}
}

// countPackets scans payload with the same framing rules as next, and
// returns how many whole packets it could successfully decode before
// hitting eof or an error. It never returns an error itself: it is used
// only to populate a chunk record's informational packet-count header
// field, not to validate the chunk.
func countPackets(payload []byte) uint16 {
	p := newPacketParser(payload)
	var count uint16
	for {
		_, eof, err := p.next()
		if eof || err != nil {
			return count
		}
		count++
	}
}
