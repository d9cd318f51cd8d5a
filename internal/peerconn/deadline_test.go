package peerconn

import (
	"net"
	"testing"
	"time"

	"github.com/haildev/hail/internal/peerwire"
)

func TestDeadlineStreamReadSucceedsWithinTimeout(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	stream := &deadlineStream{conn: a, timeout: time.Second}

	go b.Write([]byte("hello"))

	buf := make([]byte, 5)
	n, err := stream.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 5 || string(buf) != "hello" {
		t.Errorf("Read = %q, want %q", buf[:n], "hello")
	}
}

func TestDeadlineStreamReadTimesOutOnSilentPeer(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	stream := &deadlineStream{conn: a, timeout: 20 * time.Millisecond}

	buf := make([]byte, 5)
	_, err := stream.Read(buf)
	if err == nil {
		t.Fatal("expected a deadline-exceeded error, got nil")
	}

	netErr, ok := err.(net.Error)
	if !ok || !netErr.Timeout() {
		t.Errorf("err = %v, want a net.Error with Timeout() true", err)
	}
}

func TestWithDeadlineLeavesNonNetConnUntouched(t *testing.T) {
	var stream peerwire.Stream = &fakeNonNetStream{}

	wrapped := withDeadline(stream, time.Second)
	if wrapped != stream {
		t.Error("expected withDeadline to pass through a non-net.Conn stream unchanged")
	}
}

type fakeNonNetStream struct{}

func (f *fakeNonNetStream) Read(p []byte) (int, error)  { return 0, nil }
func (f *fakeNonNetStream) Write(p []byte) (int, error) { return len(p), nil }
func (f *fakeNonNetStream) Close() error                { return nil }
