// Package tun owns the local TUN interface: creation in IFF_TUN|IFF_NO_PI
// mode, address/MTU/link-up configuration via the host "ip" utility, and
// nonblocking raw-IP packet read/write for the packet pump.
package tun

import "errors"

// ErrPacketTooShort is returned by the header helpers when a buffer is too
// small to contain a minimal IPv4 header.
var ErrPacketTooShort = errors.New("tun: packet shorter than an IPv4 header")

// minIPv4HeaderLen is the smallest possible IPv4 header (no options).
const minIPv4HeaderLen = 20

// Device is a single TUN interface. Read and Write operate on raw IP
// packets (no protocol-family prefix, per IFF_NO_PI).
type Device interface {
	Read(buf []byte) (int, error)
	Write(data []byte) (int, error)
	Close() error
	Name() string
	Fd() int
}

// IsIPv4 reports whether p looks like an IPv4 packet: long enough for a
// header and carrying version nibble 4.
func IsIPv4(p []byte) bool {
	return len(p) >= minIPv4HeaderLen && p[0]>>4 == 4
}

// SourceIPv4 extracts the 4-byte source address from an IPv4 packet.
func SourceIPv4(p []byte) ([4]byte, error) {
	var addr [4]byte
	if len(p) < minIPv4HeaderLen {
		return addr, ErrPacketTooShort
	}
	copy(addr[:], p[12:16])
	return addr, nil
}

// DestinationIPv4 extracts the 4-byte destination address from an IPv4
// packet.
func DestinationIPv4(p []byte) ([4]byte, error) {
	var addr [4]byte
	if len(p) < minIPv4HeaderLen {
		return addr, ErrPacketTooShort
	}
	copy(addr[:], p[16:20])
	return addr, nil
}
