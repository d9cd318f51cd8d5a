package peerwire

import (
	"bytes"
	"testing"
)

func TestBitfieldRoundTrip(t *testing.T) {
	cases := []struct {
		name       string
		pieceCount int
		bits       Bitfield
	}{
		{name: "exact multiple of 8", pieceCount: 8, bits: Bitfield{true, false, true, true, false, false, false, true}},
		{name: "not a multiple of 8", pieceCount: 10, bits: Bitfield{true, false, false, true, true, false, true, false, true, true}},
		{name: "single piece", pieceCount: 1, bits: Bitfield{true}},
		{name: "empty", pieceCount: 0, bits: Bitfield{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			packed := tc.bits.ToBytes()
			got := BitfieldFromBytes(packed, tc.pieceCount)

			if len(got) != len(tc.bits) {
				t.Fatalf("round trip changed length: got %d, want %d", len(got), len(tc.bits))
			}
			for i := range tc.bits {
				if got[i] != tc.bits[i] {
					t.Errorf("bit %d: got %v, want %v", i, got[i], tc.bits[i])
				}
			}
		})
	}
}

func TestBitfieldPaddingIsZero(t *testing.T) {
	bits := Bitfield{true, true, true} // 3 pieces, packed into 1 byte
	packed := bits.ToBytes()

	if len(packed) != 1 {
		t.Fatalf("expected 1 packed byte, got %d", len(packed))
	}

	// bits 0-2 set (MSB-first: 1110 0000), trailing 5 bits must be zero.
	if packed[0]&0x1F != 0 {
		t.Errorf("trailing padding bits not zero: %08b", packed[0])
	}
	if packed[0] != 0b1110_0000 {
		t.Errorf("packed byte = %08b, want %08b", packed[0], 0b1110_0000)
	}
}

func TestBitfieldFromBytesIgnoresTrailingGarbage(t *testing.T) {
	// Trailing bits beyond pieceCount set to 1 despite the spec disallowing
	// it on the wire; a robust decoder still only reports pieceCount bits.
	packed := []byte{0b1111_1111}
	got := BitfieldFromBytes(packed, 3)

	want := Bitfield{true, true, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bit %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if len(got) != 3 {
		t.Errorf("expected exactly 3 bits, got %d", len(got))
	}
}

func TestMSBFirstOrdering(t *testing.T) {
	bits := Bitfield{true, false, false, false, false, false, false, false}
	packed := bits.ToBytes()

	if !bytes.Equal(packed, []byte{0x80}) {
		t.Errorf("first piece should set the MSB: got %08b, want %08b", packed[0], 0x80)
	}
}
