// Package session implements the per-peer authenticated-encryption state:
// ChaCha20-Poly1305 sealing/opening keyed by an X25519 shared secret that
// the caller computes, directional nonces so the two endpoints never collide, and
// a forward-motion replay filter with restart tolerance.
package session

import (
	"crypto/cipher"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// restartThreshold and specReorderWindow implement the restart heuristic and
// bounded reorder tolerance from the design: a peer whose counter resets
// below restartThreshold while our recvCounter is already well past it is
// assumed to have restarted, not replayed; otherwise a counter within
// specReorderWindow of the current high-water mark is accepted out of order.
const (
	restartThreshold  = 100
	specReorderWindow = 32
)

// Cipher is the per-peer session cryptography state. One instance exists per
// active peer, seeded from the X25519 shared secret between the local
// identity and the peer's static public key. It holds no back-pointer to
// peer metadata; stats flow from the owner (the packet pump) instead.
type Cipher struct {
	mu          sync.Mutex
	aead        cipher.AEAD
	isLowSide   bool
	sendCounter uint64
	recvCounter uint64
	rxBytes     uint64
	txBytes     uint64
	lastSeen    time.Time
}

// NewCipher constructs a session cipher from a 32-byte X25519 shared secret
// and the ordering of the two endpoints' public keys. isLowSide must be
// true exactly when the local public key compares lexicographically less
// than the peer's.
func NewCipher(shared [32]byte, isLowSide bool) (*Cipher, error) {
	aead, err := chacha20poly1305.New(shared[:])
	if err != nil {
		return nil, fmt.Errorf("session: build aead: %w", err)
	}
	return &Cipher{aead: aead, isLowSide: isLowSide}, nil
}

// Encrypt seals plaintext under the next send counter and returns the
// counter the caller must frame into the wire packet alongside the
// ciphertext.
func (c *Cipher) Encrypt(plaintext []byte) (counter uint64, ciphertext []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendCounter == ^uint64(0) {
		return 0, nil, ErrSessionOverflow
	}
	counter = c.sendCounter
	c.sendCounter++ // committed before sealing: a mid-call abort never reissues a counter

	direction := directionLow
	if !c.isLowSide {
		direction = directionHigh
	}
	nonce := buildNonce(counter, direction)

	sealed := c.aead.Seal(nil, nonce[:], plaintext, nil)
	if sealed == nil {
		return 0, nil, ErrEncryptFailed
	}
	c.txBytes += uint64(len(plaintext))
	return counter, sealed, nil
}

// Decrypt opens ciphertext sealed under counter, enforcing the forward
// replay filter described in the package doc. On authentication failure,
// recvCounter is left untouched.
func (c *Cipher) Decrypt(counter uint64, ciphertext []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	isLikelyRestart := counter < restartThreshold && c.recvCounter > restartThreshold
	if c.recvCounter > 0 && counter <= c.recvCounter && !isLikelyRestart {
		if c.recvCounter-counter > specReorderWindow {
			return nil, ErrStaleNonce
		}
	}

	direction := directionHigh
	if !c.isLowSide {
		direction = directionLow
	}
	nonce := buildNonce(counter, direction)

	plaintext, err := c.aead.Open(nil, nonce[:], ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	if counter > c.recvCounter || isLikelyRestart {
		c.recvCounter = counter
	}
	c.rxBytes += uint64(len(plaintext))
	c.lastSeen = time.Now()
	return plaintext, nil
}

// Stats returns a point-in-time snapshot of the session's byte counters and
// last-seen timestamp, for status reporting. Safe to call concurrently with
// Encrypt/Decrypt.
func (c *Cipher) Stats() (rxBytes, txBytes uint64, lastSeen time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rxBytes, c.txBytes, c.lastSeen
}

// RecvCounter returns the current high-water mark of accepted inbound
// counters. Exposed for tests.
func (c *Cipher) RecvCounter() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recvCounter
}

// SendCounter returns the next counter Encrypt will use. Exposed for tests.
func (c *Cipher) SendCounter() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCounter
}
