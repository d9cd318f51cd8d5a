package peerwire

import (
	"io"
	"sync"
	"sync/atomic"
)

// Stream is the byte-stream contract a Channel drives. net.Conn satisfies
// it; tests substitute an in-memory pipe.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// AvailabilityEvent reports a Have/HaveAll/HaveNone/SuggestPiece/AllowedFast
// message without the core maintaining any bitmap of its own — piece
// availability bookkeeping belongs to the higher layer that registers the
// hook.
type AvailabilityEvent struct {
	Kind  MessageID
	Piece int // meaningful for Have, SuggestPiece, AllowedFast; zero otherwise
}

func isAvailabilityMessage(id MessageID) bool {
	switch id {
	case Have, HaveAll, HaveNone, SuggestPiece, AllowedFast:
		return true
	default:
		return false
	}
}

// Channel is the full-duplex session over one Stream: it owns one
// SessionStatus and is the only thing that ever mutates it. Send and Recv
// may run concurrently from two different goroutines without either
// serializing behind the other — they guard independent halves of the
// stream with independent mutexes.
type Channel struct {
	stream Stream

	status     *SessionStatus
	decoder    *Decoder
	negotiated Capabilities

	remotePeerID [20]byte
	remoteCaps   Capabilities

	writeMu sync.Mutex
	readMu  sync.Mutex

	closed      atomic.Bool
	sawMessage  atomic.Bool // true once any post-handshake frame has been observed

	onAvailability func(AvailabilityEvent)
}

// Open performs the handshake exchange over stream and, on success, returns
// the remote's Handshake alongside a freshly opened Channel whose
// SessionStatus sits at BEP 3 defaults. On any failure stream is closed and
// the error is returned.
func Open(stream Stream, local Handshake) (Handshake, *Channel, error) {
	remote, err := ExchangeHandshake(stream, local, local.InfoHash)
	if err != nil {
		stream.Close()
		return Handshake{}, nil, err
	}

	negotiated := local.Reserved & remote.Reserved

	decoder := NewDecoder()
	decoder.SetNegotiatedExtensions(negotiated)

	ch := &Channel{
		stream:     stream,
		status:     NewSessionStatus(),
		decoder:    decoder,
		negotiated: negotiated,
		remotePeerID: remote.PeerID,
		remoteCaps:   remote.Reserved,
	}

	return remote, ch, nil
}

// RemotePeerID returns the peer id learned at handshake time.
func (c *Channel) RemotePeerID() [20]byte { return c.remotePeerID }

// RemoteCapabilities returns the reserved word the remote advertised.
func (c *Channel) RemoteCapabilities() Capabilities { return c.remoteCaps }

// NegotiatedExtensions returns the bits both sides advertised, the gate the
// channel's Decoder enforces for Fast Extension and Extended message ids.
func (c *Channel) NegotiatedExtensions() Capabilities { return c.negotiated }

// Status returns the live SessionStatus this channel owns. Callers may read
// its predicates concurrently with Send/Recv; they must not construct their
// own SessionStatus to mutate it — only the channel does that.
func (c *Channel) Status() *SessionStatus { return c.status }

// OnAvailabilityEvent registers a callback invoked synchronously from Recv
// whenever a Have/HaveAll/HaveNone/SuggestPiece/AllowedFast message is
// observed. It is not safe to call concurrently with Recv; register it
// immediately after Open, before the read loop starts.
func (c *Channel) OnAvailabilityEvent(f func(AvailabilityEvent)) {
	c.onAvailability = f
}

// Send encodes and writes one frame. If msg is one of the four control
// messages (Choke/Unchoke/Interested/NotInterested) the matching SessionStatus
// transition is applied after the write completes in full, so no observer
// can see the transition before the bytes that caused it left the channel.
func (c *Channel) Send(msg Message) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}

	frame, err := msg.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return ErrChannelClosed
	}

	if _, err := c.stream.Write(frame); err != nil {
		c.fail()
		return err
	}

	c.status.applySend(msg.ID)
	return nil
}

// Recv reads and decodes one frame, applies the matching SessionStatus
// transition, fires the availability hook if applicable, and returns the
// decoded message. A Bitfield observed anywhere but the very first frame
// after the handshake is rejected with ErrOutOfOrderBitfield and the
// channel is closed, since a bitfield is only ever valid as the first
// message after the handshake.
func (c *Channel) Recv() (Message, error) {
	if c.closed.Load() {
		return Message{}, ErrChannelClosed
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	if c.closed.Load() {
		return Message{}, ErrChannelClosed
	}

	msg, err := c.decoder.Decode(c.stream)
	if err != nil {
		c.fail()
		return Message{}, err
	}

	if msg.ID == BitfieldMsg && c.sawMessage.Swap(true) {
		c.fail()
		return Message{}, ErrOutOfOrderBitfield
	}
	c.sawMessage.Store(true)

	c.status.applyRecv(msg.ID)

	if c.onAvailability != nil && isAvailabilityMessage(msg.ID) {
		c.onAvailability(AvailabilityEvent{Kind: msg.ID, Piece: msg.Piece})
	}

	return msg, nil
}

// Close releases the underlying stream. It is idempotent: calling it more
// than once, or after a fatal Send/Recv error already closed the channel,
// is a no-op that returns nil.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.stream.Close()
}

func (c *Channel) fail() {
	if c.closed.CompareAndSwap(false, true) {
		c.stream.Close()
	}
}
