package session

import "errors"

var (
	// ErrEncryptFailed is returned when the AEAD seal operation fails. Under
	// correct key material this should not occur.
	ErrEncryptFailed = errors.New("session: encrypt failed")
	// ErrDecryptFailed is returned when AEAD authentication fails. The
	// offending packet is dropped; recvCounter is left untouched.
	ErrDecryptFailed = errors.New("session: decrypt failed")
	// ErrStaleNonce is returned when a counter falls outside the forward
	// reorder window and is not a detected restart.
	ErrStaleNonce = errors.New("session: stale nonce")
	// ErrSessionOverflow is returned when the send counter would wrap past
	// its 64-bit envelope. Fatal: the caller must tear the session down.
	ErrSessionOverflow = errors.New("session: counter overflow")
)
