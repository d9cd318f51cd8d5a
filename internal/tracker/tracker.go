// Package tracker implements a thin HTTP-only announce client: the Peer
// Source collaborator the peer-wire protocol core treats as external.
package tracker

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/haildev/hail/internal/bencode"
)

// PeerEndpoint is one address a tracker returned.
type PeerEndpoint struct {
	IP   net.IP
	Port uint16
}

func (p PeerEndpoint) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

// AnnounceRequest carries the parameters an HTTP announce needs.
type AnnounceRequest struct {
	TrackerURL string
	InfoHash   [20]byte
	PeerID     [20]byte
	Port       uint16
	Uploaded   int64
	Downloaded int64
	Left       int64
}

// Client announces to HTTP trackers. It does not implement the UDP tracker
// protocol, scraping, or a periodic re-announce loop — a single Announce
// call is all this collaborator offers, per scope.
type Client struct {
	HTTP *http.Client
}

// NewClient returns a Client using http.DefaultClient.
func NewClient() *Client {
	return &Client{HTTP: http.DefaultClient}
}

// Announce sends a single GET announce request and returns the peers the
// tracker reports.
func (c *Client) Announce(req AnnounceRequest) ([]PeerEndpoint, error) {
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	params := url.Values{}
	params.Set("info_hash", string(req.InfoHash[:]))
	params.Set("peer_id", string(req.PeerID[:]))
	params.Set("port", strconv.Itoa(int(req.Port)))
	params.Set("uploaded", strconv.FormatInt(req.Uploaded, 10))
	params.Set("downloaded", strconv.FormatInt(req.Downloaded, 10))
	params.Set("left", strconv.FormatInt(req.Left, 10))
	params.Set("compact", "1")

	requestURL := fmt.Sprintf("%s?%s", req.TrackerURL, params.Encode())

	httpReq, err := http.NewRequest(http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("tracker: failed to build announce request: %w", err)
	}

	res, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("tracker: announce request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tracker: announce returned status %d", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("tracker: failed to read announce response: %w", err)
	}

	return parseAnnounceResponse(body)
}

func parseAnnounceResponse(body []byte) ([]PeerEndpoint, error) {
	decoded, _, err := bencode.DecodeValue(body)
	if err != nil {
		return nil, fmt.Errorf("tracker: failed to decode announce response: %w", err)
	}

	dict, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("tracker: announce response is a %T, not a dictionary", decoded)
	}

	if reason, ok := dict["failure reason"].(string); ok {
		return nil, fmt.Errorf("tracker: announce failed: %s", reason)
	}

	peers, exists := dict["peers"]
	if !exists {
		return nil, fmt.Errorf("tracker: announce response has no 'peers' key")
	}

	compact, ok := peers.(string)
	if !ok {
		return nil, fmt.Errorf("tracker: expected compact peer string, got %T", peers)
	}

	const peerSize = 6
	if len(compact)%peerSize != 0 {
		return nil, fmt.Errorf("tracker: compact peer list length %d is not a multiple of %d", len(compact), peerSize)
	}

	endpoints := make([]PeerEndpoint, len(compact)/peerSize)
	for i := range endpoints {
		offset := i * peerSize
		ip := net.IP([]byte(compact[offset : offset+4]))
		port := binary.BigEndian.Uint16([]byte(compact[offset+4 : offset+6]))
		endpoints[i] = PeerEndpoint{IP: ip, Port: port}
	}

	return endpoints, nil
}
