package identity_test

import (
	"bytes"
	"testing"

	"github.com/haildev/hail/internal/identity"
	"github.com/haildev/hail/internal/peerwire"
)

func TestNewPeerIDHasClientPrefix(t *testing.T) {
	id, err := identity.NewPeerID()
	if err != nil {
		t.Fatalf("NewPeerID: %v", err)
	}

	if !bytes.HasPrefix(id[:], []byte("-HL0100-")) {
		t.Errorf("peer id %q does not carry the expected client prefix", id)
	}
}

func TestNewPeerIDIsRandomized(t *testing.T) {
	a, err := identity.NewPeerID()
	if err != nil {
		t.Fatalf("NewPeerID: %v", err)
	}
	b, err := identity.NewPeerID()
	if err != nil {
		t.Fatalf("NewPeerID: %v", err)
	}

	if a == b {
		t.Error("expected two generated peer ids to differ")
	}
}

func TestCapabilitiesDefaults(t *testing.T) {
	caps := identity.Capabilities(identity.Options{})

	if !caps.Has(peerwire.CapDHT) {
		t.Error("expected DHT to be enabled by default")
	}
	if !caps.Has(peerwire.CapFastExtension) {
		t.Error("expected Fast Extension to be enabled by default")
	}
	if !caps.Has(peerwire.CapExtensionProtocol) {
		t.Error("expected Extension Protocol to be enabled by default")
	}
}

func TestCapabilitiesDisableFlags(t *testing.T) {
	caps := identity.Capabilities(identity.Options{
		DisableDHT:           true,
		DisableFastExtension: true,
	})

	if caps.Has(peerwire.CapDHT) {
		t.Error("expected DHT to be disabled")
	}
	if caps.Has(peerwire.CapFastExtension) {
		t.Error("expected Fast Extension to be disabled")
	}
	if !caps.Has(peerwire.CapExtensionProtocol) {
		t.Error("expected Extension Protocol to remain enabled")
	}
}
