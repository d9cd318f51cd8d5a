package peerwire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultProtocol is the protocol identifier every mainline BitTorrent
// client advertises.
const DefaultProtocol = "BitTorrent protocol"

// maxHandshakeLen is 1 (pstrlen) + 255 (max protocol string) + 8 (reserved)
// + 20 (info hash) + 20 (peer id).
const maxHandshakeLen = 1 + 255 + 8 + 20 + 20

// Handshake is the fixed-layout frame exchanged exactly once, before any
// length-prefixed message is sent.
type Handshake struct {
	Protocol string
	Reserved Capabilities
	InfoHash [20]byte
	PeerID   [20]byte
}

// NewHandshake builds a Handshake using the default protocol string.
func NewHandshake(infoHash, peerID [20]byte, reserved Capabilities) Handshake {
	return Handshake{
		Protocol: DefaultProtocol,
		Reserved: reserved,
		InfoHash: infoHash,
		PeerID:   peerID,
	}
}

// Encode serializes h per the handshake wire layout: pstrlen, protocol,
// reserved, info hash, peer id.
func (h Handshake) Encode() ([]byte, error) {
	if len(h.Protocol) > 255 {
		return nil, fmt.Errorf("peerwire: protocol string length %d exceeds 255", len(h.Protocol))
	}

	buf := make([]byte, 1+len(h.Protocol)+8+20+20)
	index := 0

	buf[index] = byte(len(h.Protocol))
	index++

	index += copy(buf[index:], h.Protocol)

	putReserved(buf[index:index+8], h.Reserved)
	index += 8

	index += copy(buf[index:], h.InfoHash[:])
	index += copy(buf[index:], h.PeerID[:])

	return buf, nil
}

// DecodeHandshake parses a handshake frame previously read in full (pstrlen
// byte plus the pstrlen+48 bytes that follow it, per the exchange protocol
// below).
func DecodeHandshake(frame []byte) (Handshake, error) {
	if len(frame) < 1 {
		return Handshake{}, fmt.Errorf("%w: empty handshake frame", ErrMalformedFrame)
	}

	pstrlen := int(frame[0])
	want := 1 + pstrlen + 8 + 20 + 20

	if len(frame) != want {
		return Handshake{}, fmt.Errorf("%w: expected %d byte handshake frame, got %d", ErrMalformedFrame, want, len(frame))
	}

	index := 1
	protocol := string(frame[index : index+pstrlen])
	index += pstrlen

	reserved := parseReserved(frame[index : index+8])
	index += 8

	var h Handshake
	h.Protocol = protocol
	h.Reserved = reserved
	copy(h.InfoHash[:], frame[index:index+20])
	index += 20
	copy(h.PeerID[:], frame[index:index+20])

	return h, nil
}

// ExchangeHandshake sends local on rw, then reads and validates the remote
// handshake against infoHash. It performs exactly one
// send followed by one receive-and-validate, bounding buffer use; callers
// that need true concurrency between the two directions should run this
// from a goroutine per direction instead.
func ExchangeHandshake(rw io.ReadWriter, local Handshake, infoHash [20]byte) (Handshake, error) {
	encoded, err := local.Encode()
	if err != nil {
		return Handshake{}, err
	}

	if _, err := rw.Write(encoded); err != nil {
		return Handshake{}, fmt.Errorf("peerwire: failed to send handshake: %w", err)
	}

	pstrlenBuf := make([]byte, 1)
	if _, err := io.ReadFull(rw, pstrlenBuf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Handshake{}, ErrHandshakeClosed
		}
		return Handshake{}, fmt.Errorf("peerwire: failed to read handshake: %w", err)
	}

	pstrlen := int(pstrlenBuf[0])
	rest := make([]byte, pstrlen+48)

	if _, err := io.ReadFull(rw, rest); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Handshake{}, ErrHandshakeClosed
		}
		return Handshake{}, fmt.Errorf("peerwire: failed to read handshake: %w", err)
	}

	frame := append(pstrlenBuf, rest...)

	remote, err := DecodeHandshake(frame)
	if err != nil {
		return Handshake{}, err
	}

	if !bytes.Equal(remote.InfoHash[:], infoHash[:]) {
		return Handshake{}, ErrInfoHashMismatch
	}

	return remote, nil
}
