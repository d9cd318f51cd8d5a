package peerwire

// DefaultBlockSize is the widely deployed block size request planners use
// when slicing a piece into block-sized requests (2^14 bytes).
const DefaultBlockSize = 16384

// BlockIndex addresses a block within a piece without carrying its payload.
// It is the shape sent over the wire by Request, Cancel and RejectRequest.
type BlockIndex struct {
	Piece  int
	Offset int
	Length int
}

// Block is a BlockIndex plus the bytes it addresses, the shape carried by
// a Piece message. Data's length must equal the addressed Length.
type Block struct {
	Piece  int
	Offset int
	Data   []byte
}

// PieceIndex returns the sentinel BlockIndex used to address a whole piece,
// with Offset and Length left at zero.
func PieceIndex(piece int) BlockIndex {
	return BlockIndex{Piece: piece}
}

// Index derives the addressing-only BlockIndex carried by a payload-bearing Block.
func (b Block) Index() BlockIndex {
	return BlockIndex{Piece: b.Piece, Offset: b.Offset, Length: len(b.Data)}
}

// Range returns the half-open absolute byte range [lo, hi) that b occupies
// within a torrent whose pieces are pieceSize bytes long. Arithmetic is
// performed at 64-bit width so large torrents don't overflow.
func (b Block) Range(pieceSize int64) (lo, hi int64) {
	lo = pieceSize*int64(b.Piece) + int64(b.Offset)
	hi = lo + int64(len(b.Data))
	return lo, hi
}

// Range returns the half-open absolute byte range [lo, hi) that ix addresses
// within a torrent whose pieces are pieceSize bytes long.
func (ix BlockIndex) Range(pieceSize int64) (lo, hi int64) {
	lo = pieceSize*int64(ix.Piece) + int64(ix.Offset)
	hi = lo + int64(ix.Length)
	return lo, hi
}

// IsPiece reports whether b is a piece-sized block: it starts at offset zero
// and its data fills exactly pieceSize bytes of a non-negative piece index.
func (b Block) IsPiece(pieceSize int) bool {
	return b.Piece >= 0 && b.Offset == 0 && len(b.Data) == pieceSize
}
