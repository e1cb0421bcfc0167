package identity

import "errors"

var (
	// ErrInvalidKey is returned when a private key file does not decode to
	// exactly 32 bytes of base64.
	ErrInvalidKey = errors.New("identity: invalid key")
	// ErrKeyPersist is returned when a freshly generated key could not be
	// written to disk with owner-only permissions.
	ErrKeyPersist = errors.New("identity: key persist failed")
)
