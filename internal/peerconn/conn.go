// Package peerconn layers the policy the protocol core deliberately omits
// on top of internal/peerwire: dialing with a bounded retry, a keepalive
// ticker, and a background reader that demultiplexes inbound frames onto a
// channel the owner selects on.
package peerconn

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haildev/hail/internal/peerwire"
	"github.com/haildev/hail/internal/utils"
)

// DialOptions configures the dial-and-handshake step.
type DialOptions struct {
	DialTimeout time.Duration
	MaxAttempts int
	RetryDelay  time.Duration
}

func (o DialOptions) withDefaults() DialOptions {
	if o.DialTimeout == 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = 3
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = 2 * time.Second
	}
	return o
}

// KeepAliveInterval is a conservative keepalive period, comfortably inside
// the ~2 minute timeout most clients tolerate before dropping a silent
// connection.
const KeepAliveInterval = 90 * time.Second

// Conn supervises one peerwire.Channel: a reader goroutine demultiplexes
// inbound frames onto Incoming, and a keepalive ticker sends a KeepAlive
// every KeepAliveInterval, whether or not other frames were sent in between.
// Both run under one errgroup so a fatal
// error in either tears the whole connection down.
type Conn struct {
	channel *peerwire.Channel
	remote  peerwire.Handshake

	Incoming chan peerwire.Message

	cancel context.CancelFunc
	group  *errgroup.Group
	done   chan struct{}
	err    error
}

// Dial connects to addr, exchanges handshakes, and returns an unstarted
// Conn — register OnAvailabilityEvent if needed, then call Start. The dial
// itself is retried up to opts.MaxAttempts times with opts.RetryDelay
// between attempts.
func Dial(ctx context.Context, addr string, local peerwire.Handshake, opts DialOptions) (*Conn, peerwire.Handshake, error) {
	opts = opts.withDefaults()

	netConn, err := utils.Retry(utils.RetryOptions[net.Conn]{
		Delay:       opts.RetryDelay,
		MaxAttempts: opts.MaxAttempts,
		Operation: func() (net.Conn, error) {
			return net.DialTimeout("tcp", addr, opts.DialTimeout)
		},
	})

	if err != nil {
		return nil, peerwire.Handshake{}, fmt.Errorf("peerconn: failed to dial %s: %w", addr, err)
	}

	remote, channel, err := peerwire.Open(withDeadline(netConn, DeadPeerTimeout), local)
	if err != nil {
		return nil, peerwire.Handshake{}, fmt.Errorf("peerconn: handshake with %s failed: %w", addr, err)
	}

	return newConn(channel, remote), remote, nil
}

// Accept wraps an already-established inbound stream (post-accept, prior to
// handshake) into a Conn. The returned Conn is not yet running — register
// OnAvailabilityEvent if needed, then call Start.
func Accept(stream peerwire.Stream, local peerwire.Handshake) (*Conn, peerwire.Handshake, error) {
	remote, channel, err := peerwire.Open(withDeadline(stream, DeadPeerTimeout), local)
	if err != nil {
		return nil, peerwire.Handshake{}, fmt.Errorf("peerconn: inbound handshake failed: %w", err)
	}

	return newConn(channel, remote), remote, nil
}

func newConn(channel *peerwire.Channel, remote peerwire.Handshake) *Conn {
	return &Conn{
		channel:  channel,
		remote:   remote,
		Incoming: make(chan peerwire.Message, 16),
		done:     make(chan struct{}),
	}
}

// Start begins the background read and keepalive loops. It must be called
// exactly once, after any OnAvailabilityEvent registration.
func (c *Conn) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	group, runCtx := errgroup.WithContext(runCtx)

	c.cancel = cancel
	c.group = group

	group.Go(func() error { return c.readLoop(runCtx) })
	group.Go(func() error { return c.keepAliveLoop(runCtx) })

	go func() {
		c.err = group.Wait()
		close(c.Incoming)
		close(c.done)
	}()
}

// readLoop pulls frames off the channel and forwards them onto Incoming.
// The SessionStatus transition for each frame is already applied by
// channel.Recv before it returns, so a caller that never drains Incoming
// (no status stream attached, say) cannot stall protocol state tracking:
// the send to Incoming is best-effort and drops the frame rather than
// blocking the next Recv when the buffer is full.
func (c *Conn) readLoop(ctx context.Context) error {
	for {
		msg, err := c.channel.Recv()
		if err != nil {
			// Close cancels ctx before closing the stream, so a read error
			// seen after cancellation is the result of that Close.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		select {
		case c.Incoming <- msg:
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func (c *Conn) keepAliveLoop(ctx context.Context) error {
	ticker := time.NewTicker(KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.channel.Send(peerwire.MsgKeepAlive); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Send writes msg on the underlying channel. Safe to call concurrently with
// the background read loop.
func (c *Conn) Send(msg peerwire.Message) error {
	return c.channel.Send(msg)
}

// Status returns the live choke/interest state this connection owns.
func (c *Conn) Status() *peerwire.SessionStatus { return c.channel.Status() }

// RemotePeerID returns the peer id learned at handshake time.
func (c *Conn) RemotePeerID() [20]byte { return c.channel.RemotePeerID() }

// RemoteCapabilities returns the capability bits the remote advertised.
func (c *Conn) RemoteCapabilities() peerwire.Capabilities { return c.channel.RemoteCapabilities() }

// NegotiatedExtensions returns the capability bits both sides share.
func (c *Conn) NegotiatedExtensions() peerwire.Capabilities { return c.channel.NegotiatedExtensions() }

// OnAvailabilityEvent registers a callback for Have/HaveAll/HaveNone/
// SuggestPiece/AllowedFast messages observed by the read loop. Register it
// before the first Recv can occur — i.e. immediately after Dial/Accept
// returns, before any other goroutine touches c.
func (c *Conn) OnAvailabilityEvent(f func(peerwire.AvailabilityEvent)) {
	c.channel.OnAvailabilityEvent(f)
}

// Close tears down the connection and waits for the reader and keepalive
// goroutines to exit. It returns the first error that stopped them, or nil
// if they stopped because Close was called. Safe to call on a Conn whose
// Start was never invoked.
func (c *Conn) Close() error {
	if c.cancel != nil {
		c.cancel()
	}

	channelErr := c.channel.Close()

	if c.group != nil {
		<-c.done
	}

	if channelErr != nil {
		return channelErr
	}
	if c.err == context.Canceled {
		return nil
	}
	return c.err
}

// Done reports when the supervised goroutine group has exited, whether
// because of Close or a fatal Send/Recv error.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Err returns the error that stopped the connection, valid after Done is
// closed.
func (c *Conn) Err() error { return c.err }
