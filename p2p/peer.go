package p2p

import (
	"net"
	"strconv"
	"time"

	"github.com/iov-one/msignode/errors"
)

// Peer is a remote node.
type Peer struct {
	IP        string    `json:"ip"`
	Port      int       `json:"port"`
	Version   string    `json:"version,omitempty"`
	OS        string    `json:"os,omitempty"`
	Nonce     string    `json:"nonce,omitempty"`
	Height    uint64    `json:"height,omitempty"`
	Broadhash string    `json:"broadhash,omitempty"`
	LastSeen  time.Time `json:"lastSeen"`
}

// String returns the peer address in the ip:port form.
func (p Peer) String() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// WithHeaders returns a copy of the peer described by the headers it sent.
func (p Peer) WithHeaders(h Headers, seen time.Time) Peer {
	p.Port = h.Port
	p.Version = h.Version
	p.OS = h.OS
	p.Nonce = h.Nonce
	p.Height = h.Height
	p.Broadhash = h.Broadhash
	p.LastSeen = seen
	return p
}

// ParsePeer returns a peer from an ip:port address.
func ParsePeer(addr string) (Peer, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return Peer{}, errors.Wrap(errors.ErrInput, err.Error())
	}
	if net.ParseIP(host) == nil {
		return Peer{}, errors.Wrapf(errors.ErrInput, "invalid ip %q", host)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return Peer{}, errors.Wrapf(errors.ErrInput, "invalid port %q", port)
	}
	return Peer{IP: host, Port: n}, nil
}

// Criteria restricts the peers returned by a registry.
type Criteria struct {
	// Limit is the maximum number of peers. Zero means no limit.
	Limit int
	// Broadhash, if set, makes peers declaring it preferred.
	Broadhash string
}

// PeerRegistry is the table of known peers.
type PeerRegistry interface {
	// List returns a selection of healthy peers.
	List(c Criteria) []Peer
	// Update stores the peer metadata and refreshes its last seen time.
	Update(p Peer)
	// MarkUnhealthy removes the peer. code tells why.
	MarkUnhealthy(p Peer, code string)
}

// Failure codes reported to the registry.
const (
	CodeTimeout   = "ETIMEOUT"
	CodeHTTPError = "HTTPERROR"
	CodeResponse  = "ERESPONSE"
	CodeHeaders   = "EHEADERS"
	CodeNethash   = "ENETHASH"
	CodeVersion   = "EVERSION"
)
