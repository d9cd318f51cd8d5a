package peerwire

import "encoding/binary"

// Capabilities is the 64-bit reserved word exchanged in a handshake. Bit
// semantics beyond the handful this package tests for are delegated to an
// external extension registry: every bit round-trips through encode/decode
// untouched, known or not.
type Capabilities uint64

// Reserved bits this package inspects directly, using the byte-position
// convention established by BEP 5 (DHT), BEP 6 (Fast Extension) and BEP 10
// (Extension Protocol): reserved[7]&0x01, reserved[7]&0x04, reserved[5]&0x10
// respectively, read as a single big-endian uint64.
const (
	CapDHT               Capabilities = 1 << 0
	CapFastExtension     Capabilities = 1 << 2
	CapExtensionProtocol Capabilities = 1 << 20
)

// Has reports whether every bit set in want is also set in c.
func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}

// With returns c with every bit in bits set.
func (c Capabilities) With(bits Capabilities) Capabilities {
	return c | bits
}

// Without returns c with every bit in bits cleared.
func (c Capabilities) Without(bits Capabilities) Capabilities {
	return c &^ bits
}

func putReserved(buf []byte, c Capabilities) {
	binary.BigEndian.PutUint64(buf, uint64(c))
}

func parseReserved(buf []byte) Capabilities {
	return Capabilities(binary.BigEndian.Uint64(buf))
}
