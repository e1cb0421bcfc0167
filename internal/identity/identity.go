// Package identity owns a node's long-term X25519 static keypair: generating
// it, persisting it to disk with owner-only permissions, loading it back, and
// deriving the stable 4-byte peer-id used to tag wire frames.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/curve25519"

	"wolfnet/internal/mem"
)

// Identity is a node's static X25519 keypair.
type Identity struct {
	secret [32]byte
	public [32]byte
}

// Generate creates a fresh random identity from a cryptographic RNG.
func Generate() (*Identity, error) {
	var secret [32]byte
	if _, err := io.ReadFull(rand.Reader, secret[:]); err != nil {
		return nil, fmt.Errorf("identity: generate: %w", err)
	}
	return fromSecret(secret)
}

func fromSecret(secret [32]byte) (*Identity, error) {
	pub, err := curve25519.X25519(secret[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("identity: derive public key: %w", err)
	}
	id := &Identity{secret: secret}
	copy(id.public[:], pub)
	return id, nil
}

// Load reads a base64-encoded private key from path. The decoded value must
// be exactly 32 bytes, or ErrInvalidKey is returned.
func Load(path string) (*Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read %s: %w", path, err)
	}
	decoded, err := decodeKey(raw)
	if err != nil {
		return nil, err
	}
	return fromSecret(decoded)
}

func decodeKey(raw []byte) ([32]byte, error) {
	var secret [32]byte
	trimmed := trimTrailingNewline(raw)
	decoded, err := base64.StdEncoding.DecodeString(string(trimmed))
	if err != nil {
		return secret, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(decoded) != 32 {
		return secret, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidKey, len(decoded))
	}
	copy(secret[:], decoded)
	return secret, nil
}

func trimTrailingNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r' || b[len(b)-1] == ' ') {
		b = b[:len(b)-1]
	}
	return b
}

// LoadOrGenerate loads the identity at path if it exists, or generates and
// persists a fresh one otherwise. Writing is atomic enough for our purposes:
// the key file is created with O_EXCL and mode 0600, and is removed if any
// step after creation fails.
func LoadOrGenerate(path string) (*Identity, error) {
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("identity: stat %s: %w", path, err)
	}

	id, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := id.persist(path); err != nil {
		return nil, err
	}
	return id, nil
}

func (id *Identity) persist(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("%w: mkdir %s: %v", ErrKeyPersist, dir, err)
		}
	}

	encoded := base64.StdEncoding.EncodeToString(id.secret[:])
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrKeyPersist, path, err)
	}

	writeErr := func() error {
		if _, err := f.WriteString(encoded); err != nil {
			return err
		}
		return f.Chmod(0600)
	}()
	closeErr := f.Close()

	if writeErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if writeErr != nil {
			return fmt.Errorf("%w: write %s: %v", ErrKeyPersist, path, writeErr)
		}
		return fmt.Errorf("%w: close %s: %v", ErrKeyPersist, path, closeErr)
	}
	return nil
}

// PublicKey returns the node's derived public key.
func (id *Identity) PublicKey() [32]byte {
	return id.public
}

// PublicKeyBase64 returns the standard base64 encoding of the public key,
// the peer's externally visible name.
func (id *Identity) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(id.public[:])
}

// SharedSecret computes the X25519 shared secret between this identity and a
// peer's public key.
func (id *Identity) SharedSecret(peerPublic [32]byte) ([32]byte, error) {
	var shared [32]byte
	out, err := curve25519.X25519(id.secret[:], peerPublic[:])
	if err != nil {
		return shared, fmt.Errorf("identity: compute shared secret: %w", err)
	}
	copy(shared[:], out)
	return shared, nil
}

// Zero overwrites the identity's secret key material. The identity must not
// be used afterward.
func (id *Identity) Zero() {
	mem.ZeroBytes(id.secret[:])
}

// PeerID derives the 4-byte wire routing tag for a public key: the first
// four bytes of SHA-256(pub). Collisions are possible and are treated as a
// misconfiguration to surface, not a correctness hazard — authentication
// still depends on the AEAD, not the tag.
func PeerID(pub [32]byte) [4]byte {
	digest := sha256.Sum256(pub[:])
	var id [4]byte
	copy(id[:], digest[:4])
	return id
}
