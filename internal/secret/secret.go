// Package secret provides a move-only, self-zeroing byte container used
// everywhere a passphrase, raw key, or master key lives inside Dexios.
//
// It is grounded on the teacher's SecureBuffer (chachacrypt's
// SecureBuffer.Zero/Close idempotency pattern), generalized from a
// single chunk-sized scratch buffer into the general-purpose secret
// wrapper the Dexios core needs for passphrases, KDF outputs, and
// master keys.
package secret

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Secret owns a contiguous byte buffer. It is never aliased: callers
// obtain its bytes with Bytes() for the duration of a single operation
// and must not retain the slice past a call to Close. Comparison is
// intentionally not exposed — AEAD tag verification already gives
// constant-time comparison where it matters.
type Secret struct {
	mu     sync.Mutex
	data   []byte
	zeroed atomic.Bool
}

// New takes ownership of buf. The caller must not use buf again.
func New(buf []byte) *Secret {
	return &Secret{data: buf}
}

// NewZeroed allocates a fresh n-byte secret.
func NewZeroed(n int) *Secret {
	if n < 0 {
		n = 0
	}
	return &Secret{data: make([]byte, n)}
}

// Bytes exposes the underlying buffer. The returned slice is only valid
// until Close is called.
func (s *Secret) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Len reports the secret's length without exposing its bytes.
func (s *Secret) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Close overwrites the buffer with zeros. It is idempotent and safe to
// call multiple times, including on every error path.
func (s *Secret) Close() error {
	if s.zeroed.Load() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zeroed.Load() {
		return nil
	}
	wipe(s.data)
	s.zeroed.Store(true)
	return nil
}

// wipe overwrites b with zeros and prevents the compiler from eliding
// the write as dead code, the Go equivalent of explicit_bzero.
func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// Wipe zeroes an ordinary byte slice in place. Used for short-lived
// scratch buffers (derived keys, decrypted plaintext chunks) that never
// need the Close-idempotency or locking a Secret provides.
func Wipe(b []byte) {
	wipe(b)
}
