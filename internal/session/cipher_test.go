package session

import (
	"bytes"
	"errors"
	"testing"
)

func pair(t *testing.T) (low, high *Cipher) {
	t.Helper()
	var shared [32]byte
	for i := range shared {
		shared[i] = byte(i + 1)
	}
	low, err := NewCipher(shared, true)
	if err != nil {
		t.Fatalf("NewCipher(low): %v", err)
	}
	high, err = NewCipher(shared, false)
	if err != nil {
		t.Fatalf("NewCipher(high): %v", err)
	}
	return low, high
}

func TestRoundTrip(t *testing.T) {
	low, high := pair(t)
	msg := []byte("the quick brown fox jumps over the lazy dog")

	counter, ct, err := low.Encrypt(msg)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := high.Decrypt(counter, ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(pt, msg) {
		t.Fatalf("round trip mismatch: got %q want %q", pt, msg)
	}
}

func TestNonceUniquenessAndDirection(t *testing.T) {
	low, high := pair(t)

	var lastLow, lastHigh uint64
	for i := 0; i < 5; i++ {
		c, _, err := low.Encrypt([]byte("x"))
		if err != nil {
			t.Fatalf("Encrypt(low): %v", err)
		}
		if i > 0 && c <= lastLow {
			t.Fatalf("low side counter not strictly increasing: %d -> %d", lastLow, c)
		}
		lastLow = c
	}
	for i := 0; i < 5; i++ {
		c, _, err := high.Encrypt([]byte("y"))
		if err != nil {
			t.Fatalf("Encrypt(high): %v", err)
		}
		if i > 0 && c <= lastHigh {
			t.Fatalf("high side counter not strictly increasing: %d -> %d", lastHigh, c)
		}
		lastHigh = c
	}

	// Both sides now encrypt under the same counter (5) but with opposite
	// direction flags, so ciphertexts must differ even for identical plaintext.
	_, ctLow, err := low.Encrypt([]byte("same"))
	if err != nil {
		t.Fatalf("Encrypt(low): %v", err)
	}
	_, ctHigh, err := high.Encrypt([]byte("same"))
	if err != nil {
		t.Fatalf("Encrypt(high): %v", err)
	}
	if bytes.Equal(ctLow, ctHigh) {
		t.Fatal("expected disjoint ciphertext streams for opposite directions")
	}
}

func TestReplayRejection(t *testing.T) {
	low, high := pair(t)

	var frames [][2]interface{}
	for i := 0; i < 40; i++ {
		counter, ct, err := low.Encrypt([]byte("p"))
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		frames = append(frames, [2]interface{}{counter, ct})
	}
	for _, f := range frames {
		if _, err := high.Decrypt(f[0].(uint64), f[1].([]byte)); err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
	}

	beforeRecv := high.RecvCounter()
	first := frames[0]
	_, err := high.Decrypt(first[0].(uint64), first[1].([]byte))
	if !errors.Is(err, ErrStaleNonce) {
		t.Fatalf("expected ErrStaleNonce, got %v", err)
	}
	if high.RecvCounter() != beforeRecv {
		t.Fatal("recvCounter must not change on stale nonce rejection")
	}
}

func TestReorderTolerance(t *testing.T) {
	low, high := pair(t)

	var counters []uint64
	var ciphertexts [][]byte
	for i := 0; i < 6; i++ {
		c, ct, err := low.Encrypt([]byte("p"))
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		counters = append(counters, c)
		ciphertexts = append(ciphertexts, ct)
	}

	order := []int{0, 1, 2, 5, 3, 4}
	for _, idx := range order {
		if _, err := high.Decrypt(counters[idx], ciphertexts[idx]); err != nil {
			t.Fatalf("Decrypt(counter=%d): %v", counters[idx], err)
		}
	}
	if high.RecvCounter() != 5 {
		t.Fatalf("expected recvCounter 5, got %d", high.RecvCounter())
	}
}

func TestRestartTolerance(t *testing.T) {
	low, high := pair(t)

	for i := 0; i < 501; i++ {
		c, ct, err := low.Encrypt([]byte("p"))
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if _, err := high.Decrypt(c, ct); err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
	}
	if high.RecvCounter() != 500 {
		t.Fatalf("expected recvCounter 500, got %d", high.RecvCounter())
	}

	// Simulate low restarting: fresh cipher, counters back to zero.
	var shared [32]byte
	for i := range shared {
		shared[i] = byte(i + 1)
	}
	restartedLow, err := NewCipher(shared, true)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	c, ct, err := restartedLow.Encrypt([]byte("post-restart"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := high.Decrypt(c, ct)
	if err != nil {
		t.Fatalf("expected restart to be tolerated, got %v", err)
	}
	if string(pt) != "post-restart" {
		t.Fatalf("unexpected plaintext: %q", pt)
	}
	if high.RecvCounter() != 0 {
		t.Fatalf("expected recvCounter reset to 0, got %d", high.RecvCounter())
	}
}

func TestAuthFailureDoesNotMutateState(t *testing.T) {
	low, high := pair(t)

	counter, ct, err := low.Encrypt([]byte("valid"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	corrupted := append([]byte(nil), ct...)
	corrupted[len(corrupted)-1] ^= 0xFF

	before := high.RecvCounter()
	if _, err := high.Decrypt(counter, corrupted); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
	if high.RecvCounter() != before {
		t.Fatal("recvCounter must not change on auth failure")
	}

	pt, err := high.Decrypt(counter, ct)
	if err != nil {
		t.Fatalf("subsequent valid decrypt failed: %v", err)
	}
	if string(pt) != "valid" {
		t.Fatalf("unexpected plaintext: %q", pt)
	}
}

func TestSessionOverflow(t *testing.T) {
	var shared [32]byte
	c, err := NewCipher(shared, true)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	c.sendCounter = ^uint64(0)
	if _, _, err := c.Encrypt([]byte("x")); !errors.Is(err, ErrSessionOverflow) {
		t.Fatalf("expected ErrSessionOverflow, got %v", err)
	}
}

func TestWrongKeyFailsAuth(t *testing.T) {
	var sharedA, sharedB [32]byte
	for i := range sharedA {
		sharedA[i] = byte(i)
		sharedB[i] = byte(i + 1)
	}
	sender, err := NewCipher(sharedA, true)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	receiver, err := NewCipher(sharedB, false)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}

	counter, ct, err := sender.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := receiver.Decrypt(counter, ct); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}
