// Package peerconfig loads and saves the peer list that seeds the pump's
// peer table. The full TOML loader (with its legacy-field migration) is an
// explicit external collaborator per the design; this is the minimal
// JSON-backed stand-in so the pump has a concrete source of peers to be
// constructed from, in the teacher's read/write-manager idiom.
package peerconfig

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
)

// Record is the on-disk shape of one configured peer.
type Record struct {
	PublicKey string `json:"public_key"`
	Endpoint  string `json:"endpoint,omitempty"`
	AllowedIP string `json:"allowed_ip"`
	Name      string `json:"name,omitempty"`
	Gateway   bool   `json:"gateway,omitempty"`
}

// Peer is a Record decoded into usable types.
type Peer struct {
	PublicKey [32]byte
	Endpoint  *netip.AddrPort
	AllowedIP netip.Addr
	Name      string
	Gateway   bool
}

func decode(r Record) (Peer, error) {
	raw, err := base64.StdEncoding.DecodeString(r.PublicKey)
	if err != nil || len(raw) != 32 {
		return Peer{}, fmt.Errorf("peerconfig: invalid public_key %q", r.PublicKey)
	}
	var pub [32]byte
	copy(pub[:], raw)

	allowed, err := netip.ParseAddr(r.AllowedIP)
	if err != nil {
		return Peer{}, fmt.Errorf("peerconfig: invalid allowed_ip %q: %w", r.AllowedIP, err)
	}

	p := Peer{PublicKey: pub, AllowedIP: allowed, Name: r.Name, Gateway: r.Gateway}
	if r.Endpoint != "" {
		ap, err := netip.ParseAddrPort(r.Endpoint)
		if err != nil {
			return Peer{}, fmt.Errorf("peerconfig: invalid endpoint %q: %w", r.Endpoint, err)
		}
		p.Endpoint = &ap
	}
	return p, nil
}

func encode(p Peer) Record {
	r := Record{
		PublicKey: base64.StdEncoding.EncodeToString(p.PublicKey[:]),
		AllowedIP: p.AllowedIP.String(),
		Name:      p.Name,
		Gateway:   p.Gateway,
	}
	if p.Endpoint != nil {
		r.Endpoint = p.Endpoint.String()
	}
	return r
}

// Load reads the peer list from path and deduplicates by public key and by
// allowed IP, keeping the first occurrence of each — matching the
// read-time dedup spec.md requires of the full TOML loader.
func Load(path string) ([]Peer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("peerconfig: read %s: %w", path, err)
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("peerconfig: parse %s: %w", path, err)
	}

	seenKey := make(map[[32]byte]bool)
	seenIP := make(map[netip.Addr]bool)
	var peers []Peer
	for _, r := range records {
		p, err := decode(r)
		if err != nil {
			return nil, err
		}
		if seenKey[p.PublicKey] || seenIP[p.AllowedIP] {
			continue
		}
		seenKey[p.PublicKey] = true
		seenIP[p.AllowedIP] = true
		peers = append(peers, p)
	}
	return peers, nil
}

// Save writes peers to path as indented JSON, best-effort (the caller
// decides whether a write failure here is fatal; spec.md only requires the
// rewrite to be attempted after dedup, not guaranteed).
func Save(path string, peers []Peer) error {
	records := make([]Record, len(peers))
	for i, p := range peers {
		records[i] = encode(p)
	}
	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("peerconfig: marshal: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("peerconfig: write %s: %w", path, err)
	}
	return nil
}
