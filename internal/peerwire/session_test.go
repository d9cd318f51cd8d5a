package peerwire

import "testing"

// TestDefaultSessionStatus is scenario S6: a freshly opened session starts
// with both sides choking and neither interested.
func TestDefaultSessionStatus(t *testing.T) {
	s := NewSessionStatus()
	client, peer := s.Snapshot()

	want := PeerStatus{Choking: true, Interested: false}
	if client != want {
		t.Errorf("client = %+v, want %+v", client, want)
	}
	if peer != want {
		t.Errorf("peer = %+v, want %+v", peer, want)
	}

	if s.CanUpload() {
		t.Error("CanUpload should be false at session start")
	}
	if s.CanDownload() {
		t.Error("CanDownload should be false at session start")
	}
}

func TestApplySendTransitions(t *testing.T) {
	s := NewSessionStatus()

	s.applySend(Unchoke)
	client, _ := s.Snapshot()
	if client.Choking {
		t.Error("expected client.Choking = false after sending Unchoke")
	}

	s.applySend(Choke)
	client, _ = s.Snapshot()
	if !client.Choking {
		t.Error("expected client.Choking = true after sending Choke")
	}

	s.applySend(Interested)
	client, _ = s.Snapshot()
	if !client.Interested {
		t.Error("expected client.Interested = true after sending Interested")
	}

	s.applySend(NotInterested)
	client, _ = s.Snapshot()
	if client.Interested {
		t.Error("expected client.Interested = false after sending NotInterested")
	}
}

func TestApplyRecvTransitions(t *testing.T) {
	s := NewSessionStatus()

	s.applyRecv(Unchoke)
	_, peer := s.Snapshot()
	if peer.Choking {
		t.Error("expected peer.Choking = false after receiving Unchoke")
	}

	s.applyRecv(Interested)
	_, peer = s.Snapshot()
	if !peer.Interested {
		t.Error("expected peer.Interested = true after receiving Interested")
	}
}

// TestNonControlMessagesLeaveStatusUntouched checks that applySend/applyRecv
// are no-ops for every id outside the four control messages.
func TestNonControlMessagesLeaveStatusUntouched(t *testing.T) {
	untouched := []MessageID{KeepAlive, Have, BitfieldMsg, Request, PieceMsg, Cancel, Port}

	for _, id := range untouched {
		s := NewSessionStatus()
		before, beforePeer := s.Snapshot()

		s.applySend(id)
		s.applyRecv(id)

		after, afterPeer := s.Snapshot()
		if after != before || afterPeer != beforePeer {
			t.Errorf("message id %s mutated session status: before=%+v/%+v after=%+v/%+v", id, before, beforePeer, after, afterPeer)
		}
	}
}

// TestCanUploadCanDownloadLaw exercises every cell of the 2x2 choke/interest
// matrix against the pure-function predicates.
func TestCanUploadCanDownloadLaw(t *testing.T) {
	cases := []struct {
		client, peer           PeerStatus
		wantUpload, wantDownload bool
	}{
		{PeerStatus{Choking: true, Interested: false}, PeerStatus{Choking: true, Interested: false}, false, false},
		{PeerStatus{Choking: false, Interested: false}, PeerStatus{Choking: true, Interested: true}, true, false},
		{PeerStatus{Choking: true, Interested: true}, PeerStatus{Choking: false, Interested: false}, false, true},
		{PeerStatus{Choking: false, Interested: true}, PeerStatus{Choking: false, Interested: true}, true, true},
	}

	for _, tc := range cases {
		if got := CanUpload(tc.client, tc.peer); got != tc.wantUpload {
			t.Errorf("CanUpload(%+v, %+v) = %v, want %v", tc.client, tc.peer, got, tc.wantUpload)
		}
		if got := CanDownload(tc.client, tc.peer); got != tc.wantDownload {
			t.Errorf("CanDownload(%+v, %+v) = %v, want %v", tc.client, tc.peer, got, tc.wantDownload)
		}
	}
}

// TestSendRecvIndependence is a light documentation-test: applySend only
// ever touches client fields and applyRecv only ever touches peer fields, so
// the two can run concurrently from independent goroutines without a shared
// lock. This test asserts the one-sided-write property directly.
func TestSendRecvIndependence(t *testing.T) {
	s := NewSessionStatus()

	s.applySend(Unchoke)
	_, peerAfterSend := s.Snapshot()
	if peerAfterSend.Choking != true {
		t.Error("applySend must not mutate peer fields")
	}

	s.applyRecv(Unchoke)
	clientAfterRecv, _ := s.Snapshot()
	if clientAfterRecv.Choking != false {
		t.Error("applyRecv must not mutate client fields")
	}
}
