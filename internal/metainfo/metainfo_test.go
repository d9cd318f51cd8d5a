package metainfo_test

import (
	"crypto/sha1"
	"testing"

	"github.com/haildev/hail/internal/bencode"
	"github.com/haildev/hail/internal/metainfo"
)

func buildTorrentBytes(t *testing.T, name string, length, pieceLength int) []byte {
	t.Helper()

	pieceCount := (length + pieceLength - 1) / pieceLength
	pieces := make([]byte, 0, pieceCount*sha1.Size)
	for i := 0; i < pieceCount; i++ {
		hash := sha1.Sum([]byte{byte(i)})
		pieces = append(pieces, hash[:]...)
	}

	info := map[string]any{
		"name":         name,
		"piece length": pieceLength,
		"pieces":       string(pieces),
		"length":       length,
	}

	top := map[string]any{
		"announce": "http://tracker.example/announce",
		"info":     info,
	}

	encoded, err := bencode.EncodeValue(top)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}

	return []byte(encoded)
}

func TestDecode(t *testing.T) {
	data := buildTorrentBytes(t, "example.iso", 1<<20, 1<<18)

	m, err := metainfo.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if m.Name != "example.iso" {
		t.Errorf("Name = %q, want %q", m.Name, "example.iso")
	}
	if m.PieceLength != 1<<18 {
		t.Errorf("PieceLength = %d, want %d", m.PieceLength, 1<<18)
	}
	if m.TotalLength != 1<<20 {
		t.Errorf("TotalLength = %d, want %d", m.TotalLength, 1<<20)
	}
	if m.PieceCount != 4 {
		t.Errorf("PieceCount = %d, want 4", m.PieceCount)
	}
	if len(m.PieceHashes) != m.PieceCount {
		t.Errorf("len(PieceHashes) = %d, want %d", len(m.PieceHashes), m.PieceCount)
	}
	if m.Announce != "http://tracker.example/announce" {
		t.Errorf("Announce = %q, want the tracker URL", m.Announce)
	}

	var zero [20]byte
	if m.InfoHash == zero {
		t.Error("expected a non-zero info hash")
	}
}

func TestDecodeInfoHashIsDeterministic(t *testing.T) {
	data := buildTorrentBytes(t, "example.iso", 1<<19, 1<<17)

	first, err := metainfo.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	second, err := metainfo.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if first.InfoHash != second.InfoHash {
		t.Error("expected decoding the same bytes twice to yield the same info hash")
	}
}

func TestDecodeRejectsMissingAnnounce(t *testing.T) {
	info := map[string]any{
		"name":         "x",
		"piece length": 1 << 18,
		"pieces":       string(make([]byte, sha1.Size)),
		"length":       1 << 18,
	}
	encoded, err := bencode.EncodeValue(map[string]any{"info": info})
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}

	if _, err := metainfo.Decode([]byte(encoded)); err == nil {
		t.Error("expected Decode to fail without an 'announce' key")
	}
}

func TestDecodeRejectsMismatchedPieceCount(t *testing.T) {
	info := map[string]any{
		"name":         "x",
		"piece length": 1 << 18,
		"pieces":       string(make([]byte, sha1.Size)), // only 1 hash
		"length":       1 << 20,                          // needs 4
	}
	top := map[string]any{"announce": "http://t.example", "info": info}
	encoded, err := bencode.EncodeValue(top)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}

	if _, err := metainfo.Decode([]byte(encoded)); err == nil {
		t.Error("expected Decode to fail with a piece-hash/length mismatch")
	}
}
