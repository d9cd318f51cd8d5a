// Package metainfo decodes a bencoded .torrent file into the typed
// Metainfo value the rest of the client operates on.
package metainfo

import (
	"crypto/sha1"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/haildev/hail/internal/bencode"
)

// Metainfo is the decoded contents of a .torrent file's top-level
// dictionary that the rest of the client needs: enough to compute piece
// addressing and announce to a tracker.
type Metainfo struct {
	Name        string
	PieceLength int
	PieceCount  int
	TotalLength int64
	InfoHash    [20]byte
	PieceHashes [][20]byte
	Announce    string
}

// rawInfo mirrors the bencoded "info" dictionary's single-file layout; the
// fields mapstructure decodes directly off the decoded bencode value.
type rawInfo struct {
	Name        string `mapstructure:"name"`
	PieceLength int    `mapstructure:"piece length"`
	Length      int    `mapstructure:"length"`
	Pieces      string `mapstructure:"pieces"`
}

// Decode parses the raw bytes of a .torrent file into a Metainfo value.
func Decode(data []byte) (Metainfo, error) {
	decoded, _, err := bencode.DecodeValue(data)
	if err != nil {
		return Metainfo{}, fmt.Errorf("metainfo: failed to decode file: %w", err)
	}

	top, ok := decoded.(map[string]any)
	if !ok {
		return Metainfo{}, fmt.Errorf("metainfo: expected a bencoded dictionary, got %T", decoded)
	}

	for key, want := range map[string]any{"announce": "", "info": map[string]any{}} {
		value, exists := top[key]
		if !exists {
			return Metainfo{}, fmt.Errorf("metainfo: missing required key %q", key)
		}
		if reflect.TypeOf(value) != reflect.TypeOf(want) {
			return Metainfo{}, fmt.Errorf("metainfo: key %q has type %T, want %T", key, value, want)
		}
	}

	infoDict := top["info"].(map[string]any)

	var raw rawInfo
	if err := mapstructure.Decode(infoDict, &raw); err != nil {
		return Metainfo{}, fmt.Errorf("metainfo: failed to decode info dictionary: %w", err)
	}

	if raw.PieceLength <= 0 {
		return Metainfo{}, fmt.Errorf("metainfo: piece length must be positive, got %d", raw.PieceLength)
	}
	if raw.Length <= 0 {
		return Metainfo{}, fmt.Errorf("metainfo: only single-file torrents are supported; 'length' must be positive")
	}

	hashes, err := splitPieceHashes(raw.Pieces)
	if err != nil {
		return Metainfo{}, err
	}

	wantPieceCount := (raw.Length + raw.PieceLength - 1) / raw.PieceLength
	if len(hashes) != wantPieceCount {
		return Metainfo{}, fmt.Errorf("metainfo: expected %d piece hashes for a %d-byte file at %d bytes/piece, got %d", wantPieceCount, raw.Length, raw.PieceLength, len(hashes))
	}

	encodedInfo, err := bencode.EncodeValue(infoDict)
	if err != nil {
		return Metainfo{}, fmt.Errorf("metainfo: failed to re-encode info dictionary: %w", err)
	}

	return Metainfo{
		Name:        raw.Name,
		PieceLength: raw.PieceLength,
		PieceCount:  len(hashes),
		TotalLength: int64(raw.Length),
		InfoHash:    sha1.Sum([]byte(encodedInfo)),
		PieceHashes: hashes,
		Announce:    top["announce"].(string),
	}, nil
}

func splitPieceHashes(pieces string) ([][20]byte, error) {
	if len(pieces)%sha1.Size != 0 {
		return nil, fmt.Errorf("metainfo: 'pieces' length %d is not a multiple of %d", len(pieces), sha1.Size)
	}

	count := len(pieces) / sha1.Size
	hashes := make([][20]byte, count)
	for i := range hashes {
		copy(hashes[i][:], pieces[i*sha1.Size:(i+1)*sha1.Size])
	}
	return hashes, nil
}
