package peer

import (
	"errors"
	"net/netip"
)

var ErrNotFound = errors.New("peer: not found")

// Table is the pump's peer routing index: by allowed overlay IP for the
// outbound path, and by peer-id for the inbound path. Peer-id collisions
// are possible (the tag is 4 bytes of a hash) so ByPeerID returns every
// candidate and the pump tries each in turn.
type Table struct {
	byAllowedIP map[netip.Addr]*Peer
	byPeerID    map[[4]byte][]*Peer
	gateway     *Peer
	all         []*Peer
}

func NewTable() *Table {
	return &Table{
		byAllowedIP: make(map[netip.Addr]*Peer),
		byPeerID:    make(map[[4]byte][]*Peer),
	}
}

// Add registers p in both indexes. The first peer added with Gateway set
// becomes the deterministic gateway fallback for unmatched destinations.
func (t *Table) Add(p *Peer) {
	t.byAllowedIP[p.AllowedIP] = p
	t.byPeerID[p.PeerID] = append(t.byPeerID[p.PeerID], p)
	t.all = append(t.all, p)
	if p.Gateway && t.gateway == nil {
		t.gateway = p
	}
}

// ByAllowedIP looks up the peer entitled to source/sink addr.
func (t *Table) ByAllowedIP(addr netip.Addr) (*Peer, bool) {
	p, ok := t.byAllowedIP[addr.Unmap()]
	return p, ok
}

// ByPeerID returns every peer whose id(P) matches id, for collision
// fallback on the inbound path.
func (t *Table) ByPeerID(id [4]byte) []*Peer {
	return t.byPeerID[id]
}

// Gateway returns the deterministic gateway peer, if one is configured.
func (t *Table) Gateway() (*Peer, bool) {
	if t.gateway == nil {
		return nil, false
	}
	return t.gateway, true
}

// All returns every peer in the table, for status snapshots and periodic
// idle sweeps.
func (t *Table) All() []*Peer {
	return t.all
}
