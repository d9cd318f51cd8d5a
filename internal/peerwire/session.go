package peerwire

import "sync/atomic"

// DefaultUnchokeSlots is the advisory count of peers a client may unchoke
// simultaneously. It is policy for the (out-of-scope) choking algorithm;
// this package neither reads nor enforces it.
const DefaultUnchokeSlots = 4

// PeerStatus is one side's half of the bilateral choke/interest state.
// Peers start choked and uninterested, per BEP 3.
type PeerStatus struct {
	Choking    bool
	Interested bool
}

// SessionStatus is the 2x2 choke/interest matrix a Channel owns. Client's
// fields are only ever written by the sending half of the channel; Peer's
// fields are only ever written by the receiving half — each half writes
// only its own two booleans, so independent atomics suffice without a
// shared lock, per the design notes.
type SessionStatus struct {
	clientChoking    atomic.Bool
	clientInterested atomic.Bool
	peerChoking      atomic.Bool
	peerInterested   atomic.Bool
}

// NewSessionStatus returns a SessionStatus at the BEP 3 default: both sides
// choking, neither interested.
func NewSessionStatus() *SessionStatus {
	s := &SessionStatus{}
	s.clientChoking.Store(true)
	s.peerChoking.Store(true)
	return s
}

// Snapshot returns an immutable copy of the current state, safe to read
// without racing further transitions.
func (s *SessionStatus) Snapshot() (client, peer PeerStatus) {
	client = PeerStatus{Choking: s.clientChoking.Load(), Interested: s.clientInterested.Load()}
	peer = PeerStatus{Choking: s.peerChoking.Load(), Interested: s.peerInterested.Load()}
	return client, peer
}

// applySend applies the state transition induced by sending a control
// message. Non-control messages (including KeepAlive, Have, Bitfield, and
// the data/request messages) leave the state untouched.
func (s *SessionStatus) applySend(id MessageID) {
	switch id {
	case Choke:
		s.clientChoking.Store(true)
	case Unchoke:
		s.clientChoking.Store(false)
	case Interested:
		s.clientInterested.Store(true)
	case NotInterested:
		s.clientInterested.Store(false)
	}
}

// applyRecv applies the state transition induced by receiving a control
// message.
func (s *SessionStatus) applyRecv(id MessageID) {
	switch id {
	case Choke:
		s.peerChoking.Store(true)
	case Unchoke:
		s.peerChoking.Store(false)
	case Interested:
		s.peerInterested.Store(true)
	case NotInterested:
		s.peerInterested.Store(false)
	}
}

// CanUpload reports whether the client may send data-bearing Piece messages:
// the peer wants data and the client is not choking it.
func (s *SessionStatus) CanUpload() bool {
	return s.peerInterested.Load() && !s.clientChoking.Load()
}

// CanDownload reports whether the client may expect Piece messages in
// response to Request: the client wants data and the peer is not choking it.
func (s *SessionStatus) CanDownload() bool {
	return s.clientInterested.Load() && !s.peerChoking.Load()
}

// CanUpload is the pure-function form of the bilateral choke/interest
// predicate, operating on an immutable snapshot rather than a live
// SessionStatus.
func CanUpload(client, peer PeerStatus) bool {
	return peer.Interested && !client.Choking
}

// CanDownload is the pure-function form of the bilateral choke/interest
// predicate for the download direction.
func CanDownload(client, peer PeerStatus) bool {
	return client.Interested && !peer.Choking
}
