// Package identity builds the local peer identity a handshake advertises:
// the 20-byte peer id and the capability bits negotiated with remote peers.
package identity

import (
	"crypto/rand"
	"fmt"

	"github.com/haildev/hail/internal/peerwire"
)

// clientPrefix is the Azureus-style peer id prefix ("-HL" + four-digit
// version + "-"), the convention most peer ids in the wild follow.
const clientPrefix = "-HL0100-"

// Options configures which optional capability bits the local client
// advertises. All default to enabled; set a field true to disable it.
type Options struct {
	DisableDHT              bool
	DisableFastExtension    bool
	DisableExtensionProtocol bool
}

// NewPeerID generates a fresh 20-byte Azureus-style peer id: an 8-byte
// client/version prefix followed by 12 random bytes.
func NewPeerID() ([20]byte, error) {
	var id [20]byte
	copy(id[:], clientPrefix)

	suffix := id[len(clientPrefix):]
	if _, err := rand.Read(suffix); err != nil {
		return id, fmt.Errorf("identity: failed to generate random peer id suffix: %w", err)
	}

	return id, nil
}

// Capabilities builds the local reserved word from opts, defaulting to DHT,
// Fast Extension and the Extension Protocol all enabled.
func Capabilities(opts Options) peerwire.Capabilities {
	caps := peerwire.CapDHT | peerwire.CapFastExtension | peerwire.CapExtensionProtocol

	if opts.DisableDHT {
		caps = caps.Without(peerwire.CapDHT)
	}
	if opts.DisableFastExtension {
		caps = caps.Without(peerwire.CapFastExtension)
	}
	if opts.DisableExtensionProtocol {
		caps = caps.Without(peerwire.CapExtensionProtocol)
	}

	return caps
}
