package tracebuf

import "encoding/binary"

// byteOrder is the wire byte order for record headers. It is internal to
// the store and never observed outside the process, so the choice is
// arbitrary; little-endian matches the host architectures this buffer is
// expected to run on.
var byteOrder = binary.LittleEndian
