package peerwire

// Bitfield is an ordered sequence of have/don't-have flags, one per piece.
type Bitfield []bool

const byteSize = 8

// packedLen returns the number of bytes needed to pack n booleans.
func packedLen(n int) int {
	return (n + byteSize - 1) / byteSize
}

// ToBytes packs b MSB-first into ceil(len(b)/8) bytes. Trailing bits in the
// final byte beyond len(b) are left zero.
func (b Bitfield) ToBytes() []byte {
	out := make([]byte, packedLen(len(b)))

	for i, have := range b {
		if !have {
			continue
		}
		byteIndex := i / byteSize
		bitIndex := i % byteSize
		out[byteIndex] |= 1 << uint(7-bitIndex)
	}

	return out
}

// BitfieldFromBytes unpacks the first pieceCount bits out of packed,
// MSB-first, ignoring any trailing padding bits beyond pieceCount.
func BitfieldFromBytes(packed []byte, pieceCount int) Bitfield {
	b := make(Bitfield, pieceCount)

	for i := range b {
		byteIndex := i / byteSize
		bitIndex := i % byteSize
		b[i] = packed[byteIndex]&(1<<uint(7-bitIndex)) != 0
	}

	return b
}
