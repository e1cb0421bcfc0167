// Package pump implements the single-threaded dispatch loop that
// multiplexes the TUN device and the UDP socket: plaintext packets read
// from TUN are routed by destination IPv4 to a peer's session cipher for
// encryption and framing onto the wire; ciphertext datagrams read from UDP
// are routed by sender peer-id to the matching session for decryption and
// injection back into TUN.
package pump

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/netip"
	"sync/atomic"
	"time"

	"wolfnet/internal/identity"
	"wolfnet/internal/logging"
	"wolfnet/internal/peer"
	"wolfnet/internal/session"
	"wolfnet/internal/status"
	"wolfnet/internal/tun"
	"wolfnet/internal/wire"
)

func addrFrom4(b [4]byte) netip.Addr {
	return netip.AddrFrom4(b)
}

func publicKeyBase64(pub [32]byte) string {
	return base64.StdEncoding.EncodeToString(pub[:])
}

// maxPacket bounds per-packet buffers; large enough for any configured MTU
// plus the wire header and AEAD overhead.
const maxPacket = 2048

// staleThreshold is how long a peer may go without inbound traffic before
// the dispatch loop marks it Stale.
const staleThreshold = 2 * time.Minute

// Pump owns the TUN device, the UDP socket, the peer table, and every
// session cipher. It is driven by a single goroutine; the only locks taken
// on the packet path are the per-peer and per-session mutexes and the error
// logger's limiter-map mutex.
type Pump struct {
	identity    *identity.Identity
	selfPeerID  [4]byte
	tun         tun.Device
	sock        Socket
	table       *peer.Table
	metrics     *Metrics
	errlog      *errorLogger

	hostname    string
	listenPort  uint16
	gatewayFlag bool

	startedAt time.Time
	snapshot  atomic.Pointer[status.Snapshot]
}

// New constructs a Pump. hostname and listenPort feed the status snapshot;
// they carry no protocol meaning. gateway marks whether this node itself
// advertises as a gateway in its own status snapshot.
func New(id *identity.Identity, dev tun.Device, sock Socket, table *peer.Table, metrics *Metrics, log logging.Logger, hostname string, listenPort uint16, gateway bool) *Pump {
	return &Pump{
		identity:    id,
		selfPeerID:  identity.PeerID(id.PublicKey()),
		tun:         dev,
		sock:        sock,
		table:       table,
		metrics:     metrics,
		errlog:      newErrorLogger(log),
		hostname:    hostname,
		listenPort:  listenPort,
		gatewayFlag: gateway,
		startedAt:   time.Now(),
	}
}

func peerLabel(p *peer.Descriptor) string {
	if p.Name != "" {
		return p.Name
	}
	return p.AllowedIP.String()
}

func (pm *Pump) countError(label string, kind ErrorKind, format string, args ...any) {
	pm.metrics.PacketErrors.WithLabelValues(label, string(kind)).Inc()
	pm.errlog.log(kind, format, args...)
}

// sessionFor lazily establishes (or returns) p's session cipher.
func (pm *Pump) sessionFor(p *peer.Peer) (*session.Cipher, error) {
	return p.Session(func() (*session.Cipher, error) {
		shared, err := pm.identity.SharedSecret(p.PublicKey)
		if err != nil {
			return nil, err
		}
		self := pm.identity.PublicKey()
		isLowSide := bytes.Compare(self[:], p.PublicKey[:]) < 0
		return session.NewCipher(shared, isLowSide)
	})
}

// handleOutbound processes one packet read from TUN: look up destination,
// fall back to the gateway peer, encrypt, frame, and send.
func (pm *Pump) handleOutbound(packet []byte, out []byte) {
	if !tun.IsIPv4(packet) {
		return
	}
	dst, err := tun.DestinationIPv4(packet)
	if err != nil {
		return
	}

	p, ok := pm.table.ByAllowedIP(addrFrom4(dst))
	if !ok {
		if gw, hasGW := pm.table.Gateway(); hasGW {
			p = gw
		} else {
			pm.countError("unknown", ErrKindUnknownPeer, "pump: no peer for destination %v", dst)
			return
		}
	}

	cipher, err := pm.sessionFor(p)
	if err != nil {
		pm.countError(peerLabel(&p.Descriptor), ErrKindUnknownPeer, "pump: session setup for %s: %v", peerLabel(&p.Descriptor), err)
		return
	}

	counter, ciphertext, err := cipher.Encrypt(packet)
	if err != nil {
		if err == session.ErrSessionOverflow {
			pm.countError(peerLabel(&p.Descriptor), ErrKindSessionOverflow, "pump: session overflow for %s, resetting", peerLabel(&p.Descriptor))
			p.ResetSession()
		}
		return
	}

	endpoint, ok := p.Endpoint()
	if !ok {
		pm.countError(peerLabel(&p.Descriptor), ErrKindEndpointUnknown, "pump: no known endpoint for %s", peerLabel(&p.Descriptor))
		return
	}

	frame := wire.Encode(out[:0], pm.selfPeerID, counter, ciphertext)
	if _, err := pm.sock.WriteTo(frame, endpoint); err != nil {
		pm.countError(peerLabel(&p.Descriptor), ErrKindSendFailed, "pump: send to %s: %v", peerLabel(&p.Descriptor), err)
		return
	}
	pm.metrics.BytesSent.WithLabelValues(peerLabel(&p.Descriptor)).Add(float64(len(packet)))
}

// handleInbound processes one datagram read from UDP: parse the frame,
// find the matching peer (trying every peer-id collision candidate),
// decrypt, check source-address spoofing, roam the endpoint, and write
// the plaintext to TUN.
func (pm *Pump) handleInbound(datagram []byte, from netip.AddrPort) {
	f, err := wire.Parse(datagram)
	if err != nil {
		pm.countError("unknown", ErrKindFrameMalformed, "pump: malformed frame from %v: %v", from, err)
		return
	}

	candidates := pm.table.ByPeerID(f.SenderPeerID)
	if len(candidates) == 0 {
		pm.countError("unknown", ErrKindUnknownPeer, "pump: unknown sender peer-id from %v", from)
		return
	}

	var plaintext []byte
	var matched *peer.Peer
	var lastErr error
	for _, cand := range candidates {
		cipher, err := pm.sessionFor(cand)
		if err != nil {
			lastErr = err
			continue
		}
		pt, err := cipher.Decrypt(f.Counter, f.Ciphertext)
		if err != nil {
			lastErr = err
			continue
		}
		plaintext, matched = pt, cand
		break
	}
	if matched == nil {
		label := "unknown"
		if len(candidates) > 0 {
			label = peerLabel(&candidates[0].Descriptor)
		}
		// A single matching peer-id lets us attribute the specific decrypt
		// error (replay vs. auth failure) to the control surface; with
		// multiple colliding candidates we only know none of them opened it.
		kind := ErrKindDecryptFailed
		if len(candidates) == 1 && errors.Is(lastErr, session.ErrStaleNonce) {
			kind = ErrKindStaleNonce
		}
		pm.countError(label, kind, "pump: decrypt failed from %v: %v", from, lastErr)
		return
	}

	if !tun.IsIPv4(plaintext) {
		pm.countError(peerLabel(&matched.Descriptor), ErrKindFrameMalformed, "pump: non-IPv4 plaintext from %s", peerLabel(&matched.Descriptor))
		return
	}
	src, err := tun.SourceIPv4(plaintext)
	if err != nil || addrFrom4(src) != matched.AllowedIP {
		pm.countError(peerLabel(&matched.Descriptor), ErrKindSourceSpoofed, "pump: source spoof from %s: packet claims %v", peerLabel(&matched.Descriptor), src)
		return
	}

	matched.SetEndpoint(from)
	matched.MarkActive(time.Now())
	pm.metrics.BytesReceived.WithLabelValues(peerLabel(&matched.Descriptor)).Add(float64(len(plaintext)))

	if _, err := pm.tun.Write(plaintext); err != nil {
		pm.countError(peerLabel(&matched.Descriptor), ErrKindSendFailed, "pump: tun write for %s: %v", peerLabel(&matched.Descriptor), err)
	}
}

// sweepIdlePeers marks peers Stale when they've been silent past
// staleThreshold. Called periodically, never from the hot path.
func (pm *Pump) sweepIdlePeers(now time.Time) {
	for _, p := range pm.table.All() {
		p.MarkStaleIfIdle(now, staleThreshold)
	}
}

// Snapshot returns the most recently published status snapshot, or nil if
// none has been published yet. Safe to call from any goroutine.
func (pm *Pump) Snapshot() *status.Snapshot {
	return pm.snapshot.Load()
}

// publishSnapshot builds and atomically publishes a fresh status snapshot.
// Readers never touch session state directly — only this published value.
func (pm *Pump) publishSnapshot(overlayAddr, ifaceName string) {
	peers := pm.table.All()
	snap := &status.Snapshot{
		Hostname:    pm.hostname,
		OverlayAddr: overlayAddr,
		PublicKey:   pm.identity.PublicKeyBase64(),
		ListenPort:  pm.listenPort,
		Gateway:     pm.gatewayFlag,
		Interface:   ifaceName,
		UptimeSecs:  time.Since(pm.startedAt).Seconds(),
		Peers:       make([]status.PeerSnapshot, 0, len(peers)),
		TakenAt:     time.Now(),
	}
	now := time.Now()
	for _, p := range peers {
		ps := status.PeerSnapshot{
			Name:      p.Name,
			AllowedIP: p.AllowedIP.String(),
			PublicKey: publicKeyBase64(p.PublicKey),
			Gateway:   p.Gateway,
			State:     p.State().String(),
			Connected: p.State() == peer.StateActive,
		}
		if ep, ok := p.Endpoint(); ok {
			ps.Endpoint = ep.String()
		}
		if relay, ok := p.RelayVia(); ok {
			ps.RelayViaIP = relay.String()
		}
		if ls := p.LastSeen(); !ls.IsZero() {
			ps.LastSeenSecs = now.Sub(ls).Seconds()
		}
		if rx, tx, ok := p.Stats(); ok {
			ps.RxBytes, ps.TxBytes = rx, tx
		}
		snap.Peers = append(snap.Peers, ps)
	}
	pm.snapshot.Store(snap)
}
