// Package status defines the serialisable snapshot the pump publishes for
// the (out-of-scope) control surface to read, and nothing else: readers
// never touch session or peer state directly, only this snapshot.
package status

import "time"

// PeerSnapshot is one peer's row in a status snapshot.
type PeerSnapshot struct {
	Name          string     `json:"name,omitempty"`
	AllowedIP     string     `json:"allowed_ip"`
	Endpoint      string     `json:"endpoint,omitempty"`
	PublicKey     string     `json:"public_key"`
	LastSeenSecs  float64    `json:"last_seen_secs"`
	RxBytes       uint64     `json:"rx_bytes"`
	TxBytes       uint64     `json:"tx_bytes"`
	Connected     bool       `json:"connected"`
	Gateway       bool       `json:"gateway"`
	RelayViaIP    string     `json:"relay_via,omitempty"`
	State         string     `json:"state"`
}

// Snapshot is the node-level status record.
type Snapshot struct {
	Hostname     string         `json:"hostname"`
	OverlayAddr  string         `json:"overlay_addr"`
	PublicKey    string         `json:"public_key"`
	ListenPort   uint16         `json:"listen_port"`
	Gateway      bool           `json:"gateway"`
	Interface    string         `json:"interface"`
	UptimeSecs   float64        `json:"uptime_secs"`
	Peers        []PeerSnapshot `json:"peers"`
	TakenAt      time.Time      `json:"-"`
}
