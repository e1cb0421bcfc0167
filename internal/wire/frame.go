// Package wire implements the UDP frame codec that carries encrypted
// overlay packets between WolfNet peers: magic/version/type header, a
// 4-byte sender peer-id routing tag, and the little-endian send counter the
// receiver needs to reconstruct the AEAD nonce.
package wire

import (
	"encoding/binary"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// Magic bytes identifying a WolfNet data-plane frame.
var Magic = [2]byte{'W', 'N'}

const Version byte = 1

type Type byte

const (
	// TypeData carries an encrypted overlay IP packet.
	TypeData Type = 1
)

// HeaderSize is magic(2) + version(1) + type(1) + sender_peer_id(4) + counter(8).
const HeaderSize = 2 + 1 + 1 + 4 + 8

// MinFrameSize is the smallest frame that could possibly hold a valid AEAD
// ciphertext: the header plus the 16-byte Poly1305 tag.
const MinFrameSize = HeaderSize + chacha20poly1305.Overhead

var (
	ErrTooShort    = errors.New("wire: frame too short")
	ErrBadMagic    = errors.New("wire: bad magic")
	ErrBadVersion  = errors.New("wire: unsupported version")
	ErrUnknownType = errors.New("wire: unknown frame type")
)

// Frame is a parsed data-plane frame. Ciphertext aliases the input slice
// passed to Parse (zero-copy); callers that retain a Frame past the next
// read must copy Ciphertext themselves.
type Frame struct {
	Type         Type
	SenderPeerID [4]byte
	Counter      uint64
	Ciphertext   []byte
}

// Encode appends a framed packet to dst and returns the extended slice.
// dst may be nil or a reused buffer with spare capacity.
func Encode(dst []byte, senderPeerID [4]byte, counter uint64, ciphertext []byte) []byte {
	dst = append(dst, Magic[0], Magic[1], Version, byte(TypeData))
	dst = append(dst, senderPeerID[:]...)
	var counterBuf [8]byte
	binary.LittleEndian.PutUint64(counterBuf[:], counter)
	dst = append(dst, counterBuf[:]...)
	dst = append(dst, ciphertext...)
	return dst
}

// Parse validates and decodes a received datagram. The returned Frame's
// Ciphertext field aliases data.
func Parse(data []byte) (Frame, error) {
	var f Frame
	if len(data) < MinFrameSize {
		return f, ErrTooShort
	}
	if data[0] != Magic[0] || data[1] != Magic[1] {
		return f, ErrBadMagic
	}
	if data[2] != Version {
		return f, ErrBadVersion
	}
	typ := Type(data[3])
	if typ != TypeData {
		return f, ErrUnknownType
	}

	f.Type = typ
	copy(f.SenderPeerID[:], data[4:8])
	f.Counter = binary.LittleEndian.Uint64(data[8:16])
	f.Ciphertext = data[HeaderSize:]
	return f, nil
}
