// Package peer holds the peer descriptor, connectivity state machine, and
// the per-process peer table the packet pump routes traffic through.
package peer

import (
	"net/netip"
	"sync"
	"time"

	"wolfnet/internal/session"
)

// State is a peer's connectivity state, driven entirely by the dispatch
// loop: no state transition implies transmission on its own.
type State int

const (
	StateUnknown State = iota
	StateDiscovering
	StateActive
	StateStale
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateDiscovering:
		return "discovering"
	case StateActive:
		return "active"
	case StateStale:
		return "stale"
	default:
		return "invalid"
	}
}

// Descriptor is the static configuration of a peer: what we know about it
// independent of runtime connectivity.
type Descriptor struct {
	PublicKey [32]byte
	PeerID    [4]byte
	AllowedIP netip.Addr
	Name      string
	Gateway   bool
}

// Peer is a configured peer plus its runtime state: observed endpoint,
// session cipher (nil until first contact), connectivity state, and the
// relay that advertised it, if any.
type Peer struct {
	Descriptor

	mu       sync.Mutex
	endpoint *netip.AddrPort
	cipher   *session.Cipher
	state    State
	relayVia *netip.Addr
	lastSeen time.Time
}

func New(d Descriptor) *Peer {
	return &Peer{Descriptor: d, state: StateUnknown}
}

// Endpoint returns the peer's currently known UDP endpoint, if any.
func (p *Peer) Endpoint() (netip.AddrPort, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.endpoint == nil {
		return netip.AddrPort{}, false
	}
	return *p.endpoint, true
}

// SetEndpoint updates the peer's observed endpoint (endpoint roaming) and
// advances Unknown/Discovering peers to Active.
func (p *Peer) SetEndpoint(ap netip.AddrPort) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoint = &ap
	if p.state == StateUnknown || p.state == StateDiscovering {
		p.state = StateActive
	}
}

// Session returns the peer's session cipher, constructing it via newCipher
// on first use if absent.
func (p *Peer) Session(newCipher func() (*session.Cipher, error)) (*session.Cipher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cipher != nil {
		return p.cipher, nil
	}
	c, err := newCipher()
	if err != nil {
		return nil, err
	}
	p.cipher = c
	return c, nil
}

// ResetSession discards the current session cipher, reverting the peer to
// Unknown; a fresh session is established on next need. Used after
// SessionOverflow.
func (p *Peer) ResetSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cipher = nil
	p.state = StateUnknown
}

// MarkActive records successful inbound traffic: refreshes last-seen and
// promotes Stale peers back to Active.
func (p *Peer) MarkActive(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = now
	if p.state != StateUnknown {
		p.state = StateActive
	}
}

// MarkStaleIfIdle transitions an Active peer to Stale when now-lastSeen
// exceeds threshold. Called periodically by the pump, never on the hot
// decrypt path.
func (p *Peer) MarkStaleIfIdle(now time.Time, threshold time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateActive && now.Sub(p.lastSeen) > threshold {
		p.state = StateStale
	}
}

func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Peer) SetRelayVia(origin netip.Addr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.relayVia = &origin
}

func (p *Peer) RelayVia() (netip.Addr, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.relayVia == nil {
		return netip.Addr{}, false
	}
	return *p.relayVia, true
}

func (p *Peer) LastSeen() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSeen
}

// Stats returns the byte counters of the peer's session cipher, if one has
// been established yet.
func (p *Peer) Stats() (rxBytes, txBytes uint64, ok bool) {
	p.mu.Lock()
	c := p.cipher
	p.mu.Unlock()
	if c == nil {
		return 0, 0, false
	}
	rx, tx, _ := c.Stats()
	return rx, tx, true
}
