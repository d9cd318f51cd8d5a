package peerwire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MessageID identifies the shape of a message's body. KeepAlive has no id
// on the wire (it's signaled by a zero-length frame); we give it the
// sentinel value -1 purely so Message.ID and MessageID.String can name it.
type MessageID int

const (
	KeepAlive      MessageID = -1
	Choke          MessageID = 0x00
	Unchoke        MessageID = 0x01
	Interested     MessageID = 0x02
	NotInterested  MessageID = 0x03
	Have           MessageID = 0x04
	BitfieldMsg    MessageID = 0x05
	Request        MessageID = 0x06
	PieceMsg       MessageID = 0x07
	Cancel         MessageID = 0x08
	Port           MessageID = 0x09
	SuggestPiece   MessageID = 0x0D
	HaveAll        MessageID = 0x0E
	HaveNone       MessageID = 0x0F
	RejectRequest  MessageID = 0x10
	AllowedFast    MessageID = 0x11
	Extended       MessageID = 0x14
)

func (id MessageID) String() string {
	switch id {
	case KeepAlive:
		return "keep-alive"
	case Choke:
		return "choke"
	case Unchoke:
		return "unchoke"
	case Interested:
		return "interested"
	case NotInterested:
		return "not interested"
	case Have:
		return "have"
	case BitfieldMsg:
		return "bitfield"
	case Request:
		return "request"
	case PieceMsg:
		return "piece"
	case Cancel:
		return "cancel"
	case Port:
		return "port"
	case SuggestPiece:
		return "suggest piece"
	case HaveAll:
		return "have all"
	case HaveNone:
		return "have none"
	case RejectRequest:
		return "reject request"
	case AllowedFast:
		return "allowed fast"
	case Extended:
		return "extended"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(id))
	}
}

// Message is a tagged variant covering every frame the protocol defines. Only the fields
// relevant to ID are meaningful; constructors below populate exactly those.
type Message struct {
	ID      MessageID
	Piece   int
	Offset  int
	Length  int
	Data    []byte   // Piece payload, or the raw body of an Extended message
	Bits    Bitfield // BitfieldMsg payload
	Port    uint16
}

func NewHave(piece int) Message          { return Message{ID: Have, Piece: piece} }
func NewBitfield(b Bitfield) Message     { return Message{ID: BitfieldMsg, Bits: b} }
func NewRequest(ix BlockIndex) Message   { return Message{ID: Request, Piece: ix.Piece, Offset: ix.Offset, Length: ix.Length} }
func NewCancel(ix BlockIndex) Message    { return Message{ID: Cancel, Piece: ix.Piece, Offset: ix.Offset, Length: ix.Length} }
func NewPiece(b Block) Message           { return Message{ID: PieceMsg, Piece: b.Piece, Offset: b.Offset, Data: b.Data} }
func NewPort(port uint16) Message        { return Message{ID: Port, Port: port} }
func NewSuggestPiece(piece int) Message  { return Message{ID: SuggestPiece, Piece: piece} }
func NewRejectRequest(ix BlockIndex) Message {
	return Message{ID: RejectRequest, Piece: ix.Piece, Offset: ix.Offset, Length: ix.Length}
}
func NewAllowedFast(piece int) Message { return Message{ID: AllowedFast, Piece: piece} }
func NewExtended(raw []byte) Message   { return Message{ID: Extended, Data: raw} }

var (
	MsgKeepAlive      = Message{ID: KeepAlive}
	MsgChoke          = Message{ID: Choke}
	MsgUnchoke        = Message{ID: Unchoke}
	MsgInterested     = Message{ID: Interested}
	MsgNotInterested  = Message{ID: NotInterested}
	MsgHaveAll        = Message{ID: HaveAll}
	MsgHaveNone       = Message{ID: HaveNone}
)

// RequestIndex returns the BlockIndex addressed by a Request, Cancel or
// RejectRequest message.
func (m Message) RequestIndex() BlockIndex {
	return BlockIndex{Piece: m.Piece, Offset: m.Offset, Length: m.Length}
}

// Block returns the Block carried by a Piece message.
func (m Message) Block() Block {
	return Block{Piece: m.Piece, Offset: m.Offset, Data: m.Data}
}

// MaxFrameLength is the recommended ceiling on a frame's declared length,
// chosen to bound memory use against a hostile or buggy sender (2^24 bytes).
const MaxFrameLength = 1 << 24

// isFastExtensionID reports the ids that are only legal once
// CapFastExtension has been negotiated;
// absent that, receiving one is treated the same as an unknown message id.
func isFastExtensionID(id MessageID) bool {
	switch id {
	case SuggestPiece, HaveAll, HaveNone, RejectRequest, AllowedFast:
		return true
	default:
		return false
	}
}

// Encode serializes m into a complete frame: a 4-byte big-endian length
// prefix followed by that many body bytes (zero for KeepAlive).
func (m Message) Encode() ([]byte, error) {
	body, err := m.encodeBody()
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	return frame, nil
}

func (m Message) encodeBody() ([]byte, error) {
	if m.ID == KeepAlive {
		return nil, nil
	}

	switch m.ID {
	case Choke, Unchoke, Interested, NotInterested, HaveAll, HaveNone:
		return []byte{byte(m.ID)}, nil

	case Have, SuggestPiece, AllowedFast:
		body := make([]byte, 5)
		body[0] = byte(m.ID)
		binary.BigEndian.PutUint32(body[1:], uint32(m.Piece))
		return body, nil

	case BitfieldMsg:
		packed := m.Bits.ToBytes()
		body := make([]byte, 1+len(packed))
		body[0] = byte(m.ID)
		copy(body[1:], packed)
		return body, nil

	case Request, Cancel, RejectRequest:
		body := make([]byte, 13)
		body[0] = byte(m.ID)
		binary.BigEndian.PutUint32(body[1:], uint32(m.Piece))
		binary.BigEndian.PutUint32(body[5:], uint32(m.Offset))
		binary.BigEndian.PutUint32(body[9:], uint32(m.Length))
		return body, nil

	case PieceMsg:
		body := make([]byte, 9+len(m.Data))
		body[0] = byte(m.ID)
		binary.BigEndian.PutUint32(body[1:], uint32(m.Piece))
		binary.BigEndian.PutUint32(body[5:], uint32(m.Offset))
		copy(body[9:], m.Data)
		return body, nil

	case Port:
		body := make([]byte, 3)
		body[0] = byte(m.ID)
		binary.BigEndian.PutUint16(body[1:], m.Port)
		return body, nil

	case Extended:
		body := make([]byte, 1+len(m.Data))
		body[0] = byte(m.ID)
		copy(body[1:], m.Data)
		return body, nil

	default:
		return nil, fmt.Errorf("peerwire: cannot encode message id %s", m.ID)
	}
}

// Decoder turns a byte stream into typed Messages. Its negotiated-extensions
// gate is what lets Fast Extension and Extended ids through; without it
// they're rejected exactly like any other unrecognized id, since a BEP 6 or
// BEP 10 message id only has meaning once both sides have advertised the
// matching reserved bit during the handshake.
type Decoder struct {
	MaxLength   uint32
	extensions  Capabilities
}

// NewDecoder returns a Decoder with no extensions negotiated and the
// recommended frame-length ceiling.
func NewDecoder() *Decoder {
	return &Decoder{MaxLength: MaxFrameLength}
}

// SetNegotiatedExtensions records which capability bits were negotiated at
// handshake time, gating which extension message ids this decoder accepts.
func (d *Decoder) SetNegotiatedExtensions(caps Capabilities) {
	d.extensions = caps
}

// Decode reads exactly one frame from r and returns the typed Message it
// encodes. Protocol violations wrap a sentinel error from errors.go; a
// failure to read the length prefix wraps the underlying read error.
func (d *Decoder) Decode(r io.Reader) (Message, error) {
	lengthBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lengthBuf); err != nil {
		return Message{}, fmt.Errorf("peerwire: failed to read frame length: %w", err)
	}

	length := binary.BigEndian.Uint32(lengthBuf)

	maxLength := d.MaxLength
	if maxLength == 0 {
		maxLength = MaxFrameLength
	}

	if length > maxLength {
		return Message{}, fmt.Errorf("%w: %d exceeds %d", ErrFrameTooLarge, length, maxLength)
	}

	if length == 0 {
		return MsgKeepAlive, nil
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	return d.decodeBody(body)
}

// DecodeMessage decodes a complete in-memory frame (length prefix plus
// body), the pure-function counterpart to Decoder.Decode used by round-trip
// tests.
func DecodeMessage(frame []byte) (Message, error) {
	return NewDecoder().Decode(&byteReader{frame})
}

// byteReader adapts a byte slice to io.Reader without pulling in bytes.Reader
// semantics we don't need (Seek, etc.).
type byteReader struct {
	b []byte
}

func (r *byteReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}

func (d *Decoder) decodeBody(body []byte) (Message, error) {
	id := MessageID(body[0])

	if isFastExtensionID(id) && !d.extensions.Has(CapFastExtension) {
		return Message{}, &UnknownMessageError{ID: byte(id)}
	}

	if id == Extended && !d.extensions.Has(CapExtensionProtocol) {
		return Message{}, &UnknownMessageError{ID: byte(id)}
	}

	switch id {
	case Choke, Unchoke, Interested, NotInterested, HaveAll, HaveNone:
		if len(body) != 1 {
			return Message{}, fmt.Errorf("%w: %s takes no body, got %d bytes", ErrMalformedFrame, id, len(body)-1)
		}
		return Message{ID: id}, nil

	case Have, SuggestPiece, AllowedFast:
		if len(body) != 5 {
			return Message{}, fmt.Errorf("%w: %s expects a 4-byte body, got %d", ErrMalformedFrame, id, len(body)-1)
		}
		return Message{ID: id, Piece: int(binary.BigEndian.Uint32(body[1:]))}, nil

	case BitfieldMsg:
		return Message{ID: id, Bits: bitfieldFromPacked(body[1:])}, nil

	case Request, Cancel, RejectRequest:
		if len(body) != 13 {
			return Message{}, fmt.Errorf("%w: %s expects a 12-byte body, got %d", ErrMalformedFrame, id, len(body)-1)
		}
		return Message{
			ID:     id,
			Piece:  int(binary.BigEndian.Uint32(body[1:])),
			Offset: int(binary.BigEndian.Uint32(body[5:])),
			Length: int(binary.BigEndian.Uint32(body[9:])),
		}, nil

	case PieceMsg:
		if len(body) < 9 {
			return Message{}, fmt.Errorf("%w: piece frame shorter than 9 bytes", ErrMalformedFrame)
		}
		data := make([]byte, len(body)-9)
		copy(data, body[9:])
		return Message{
			ID:     id,
			Piece:  int(binary.BigEndian.Uint32(body[1:])),
			Offset: int(binary.BigEndian.Uint32(body[5:])),
			Data:   data,
		}, nil

	case Port:
		if len(body) != 3 {
			return Message{}, fmt.Errorf("%w: port expects a 2-byte body, got %d", ErrMalformedFrame, len(body)-1)
		}
		return Message{ID: id, Port: binary.BigEndian.Uint16(body[1:])}, nil

	case Extended:
		data := make([]byte, len(body)-1)
		copy(data, body[1:])
		return Message{ID: id, Data: data}, nil

	default:
		return Message{}, &UnknownMessageError{ID: byte(id)}
	}
}

// bitfieldFromPacked unpacks every bit in packed MSB-first; unlike
// BitfieldFromBytes it has no independent piece count to trim against, so it
// yields one bool per bit (8 per byte) and leaves length validation — a
// trailing padding bit set, or too few bytes for the piece count — to the
// consumer.
func bitfieldFromPacked(packed []byte) Bitfield {
	return BitfieldFromBytes(packed, len(packed)*byteSize)
}
