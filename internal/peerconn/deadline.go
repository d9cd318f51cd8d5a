package peerconn

import (
	"net"
	"time"

	"github.com/haildev/hail/internal/peerwire"
	"github.com/haildev/hail/internal/utils"
)

// DeadPeerTimeout bounds how long a read or write may block before a peer is
// considered dead, comfortably past the ~2 minute guideline a silent peer is
// given before BEP 3 says to drop it.
const DeadPeerTimeout = 150 * time.Second

// deadlineStream wraps a net.Conn so every Read/Write goes through
// utils.ConnReadFull/ConnWriteFull with a fixed deadline, giving the
// otherwise timeout-agnostic peerwire.Channel the dead-peer detection the
// session-management layer is responsible for.
type deadlineStream struct {
	conn    net.Conn
	timeout time.Duration
}

func withDeadline(stream peerwire.Stream, timeout time.Duration) peerwire.Stream {
	conn, ok := stream.(net.Conn)
	if !ok {
		return stream
	}
	return &deadlineStream{conn: conn, timeout: timeout}
}

func (d *deadlineStream) Read(p []byte) (int, error) {
	return utils.ConnReadFull(d.conn, p, time.Now().Add(d.timeout))
}

func (d *deadlineStream) Write(p []byte) (int, error) {
	return utils.ConnWriteFull(d.conn, p, time.Now().Add(d.timeout))
}

func (d *deadlineStream) Close() error {
	return d.conn.Close()
}
