// Package mem holds small helpers for handling key material safely in memory.
package mem

import "runtime"

// ZeroBytes overwrites b with zeros in place.
//
// This is best-effort: the Go GC may already have copied the backing array
// before this call runs. runtime.KeepAlive stops the compiler from eliding
// the zeroing as a dead store.
func ZeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
