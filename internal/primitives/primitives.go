// Package primitives is the thin adapter over the three AEAD ciphers
// Dexios supports plus the process-wide CSPRNG. It exposes a uniform
// (key, algorithm) -> cipher.AEAD construction and nonce/salt
// generation; everything above this package talks to the standard
// library's cipher.AEAD interface and never imports an AEAD package
// directly.
//
// The three-way dispatch is a tagged variant (a byte enum switched on)
// rather than a cipher.AEAD-returning interface hierarchy with three
// implementers, so that nonce-length checks stay exhaustive at the call
// site instead of hiding behind dynamic dispatch.
package primitives

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/oasisprotocol/deoxysii"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/dexios-project/dexios-go/internal/dexerr"
)

// Algorithm identifies one of the three AEAD ciphers Dexios can use for
// a file body. Values match the header's algorithm_tag encoding.
type Algorithm byte

const (
	AlgorithmXChaCha20Poly1305 Algorithm = 1
	AlgorithmAES256GCM         Algorithm = 2
	AlgorithmDeoxysII256       Algorithm = 3
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmXChaCha20Poly1305:
		return "XChaCha20-Poly1305"
	case AlgorithmAES256GCM:
		return "AES-256-GCM"
	case AlgorithmDeoxysII256:
		return "Deoxys-II-256"
	default:
		return "unknown"
	}
}

// Valid reports whether a is one of the three known algorithm tags.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmXChaCha20Poly1305, AlgorithmAES256GCM, AlgorithmDeoxysII256:
		return true
	default:
		return false
	}
}

// Mode identifies whether a file body was sealed as a single payload
// (MemoryMode) or as a chunked STREAM (StreamMode).
type Mode byte

const (
	ModeMemory Mode = 1
	ModeStream Mode = 2
)

func (m Mode) Valid() bool {
	return m == ModeMemory || m == ModeStream
}

func (m Mode) String() string {
	switch m {
	case ModeMemory:
		return "MemoryMode"
	case ModeStream:
		return "StreamMode"
	default:
		return "unknown"
	}
}

// KeySize is the only symmetric key size Dexios ever uses.
const KeySize = 32

// SaltSize is the size of a KDF salt, both the legacy file-level salt
// (V3/V4) and each V5 slot's own salt.
const SaltSize = 16

// streamCounterOverhead is the number of trailing bytes STREAM-LE31
// claims from the base nonce for its 4-byte little-endian counter plus
// 1-byte last-segment flag.
const streamCounterOverhead = 5

// baseNonceLen returns the algorithm's full (MemoryMode) nonce length.
func baseNonceLen(algo Algorithm) (int, error) {
	switch algo {
	case AlgorithmXChaCha20Poly1305:
		return chacha20poly1305.NonceSizeX, nil
	case AlgorithmAES256GCM:
		return 12, nil
	case AlgorithmDeoxysII256:
		return deoxysii.NonceSize, nil
	default:
		return 0, fmt.Errorf("%w: unknown algorithm %d", dexerr.ErrHeaderFormat, algo)
	}
}

// NonceLen returns the nonce length Dexios stores/uses for algo under
// mode: the algorithm's full nonce length in MemoryMode, or that length
// minus the 5-byte STREAM-LE31 counter+flag overhead in StreamMode.
func NonceLen(algo Algorithm, mode Mode) (int, error) {
	n, err := baseNonceLen(algo)
	if err != nil {
		return 0, err
	}
	if mode == ModeStream {
		n -= streamCounterOverhead
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: nonce length non-positive for %s in stream mode", dexerr.ErrNonceLength, algo)
	}
	return n, nil
}

// New constructs a single-shot AEAD cipher for algo using key, which
// must be exactly KeySize bytes. Returned errors wrap ErrKeyInit.
func New(key []byte, algo Algorithm) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", dexerr.ErrKeyInit, KeySize, len(key))
	}
	switch algo {
	case AlgorithmXChaCha20Poly1305:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dexerr.ErrKeyInit, err)
		}
		return aead, nil
	case AlgorithmAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dexerr.ErrKeyInit, err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dexerr.ErrKeyInit, err)
		}
		return aead, nil
	case AlgorithmDeoxysII256:
		aead, err := deoxysii.New(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dexerr.ErrKeyInit, err)
		}
		return aead, nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %d", dexerr.ErrKeyInit, algo)
	}
}

// CheckNonce validates that nonce has the exact length the AEAD expects,
// surfacing ErrNonceLength (rather than letting the AEAD panic) on
// mismatch.
func CheckNonce(aead cipher.AEAD, nonce []byte) error {
	if len(nonce) != aead.NonceSize() {
		return fmt.Errorf("%w: expected %d bytes, got %d", dexerr.ErrNonceLength, aead.NonceSize(), len(nonce))
	}
	return nil
}

// rngReader wraps crypto/rand with a one-time Shannon-entropy sanity
// check on the first read, grounded on the teacher's CSPRNGReader. The
// check only measures a first read of at least entropyCheckSize/2
// bytes; a shorter first read passes unmeasured, and no later read is
// checked.
type rngReader struct {
	checked atomic.Bool
}

const (
	entropyCheckSize = 4096
	minEntropyBits   = 7.5
)

func (r *rngReader) Read(p []byte) (int, error) {
	n, err := rand.Read(p)
	if err != nil {
		return n, err
	}
	if n > 0 && !r.checked.Load() {
		sample := p[:min(n, entropyCheckSize)]
		if cerr := checkEntropy(sample); cerr != nil {
			return 0, fmt.Errorf("csprng entropy check failed: %w", cerr)
		}
		r.checked.Store(true)
	}
	return n, nil
}

func checkEntropy(sample []byte) error {
	if len(sample) < entropyCheckSize/2 {
		return nil
	}
	var freq [256]int
	for _, b := range sample {
		freq[b]++
	}
	entropy := 0.0
	for _, count := range freq {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(len(sample))
		entropy -= p * math.Log2(p)
	}
	if entropy < minEntropyBits {
		return fmt.Errorf("insufficient entropy: %f < %f", entropy, minEntropyBits)
	}
	return nil
}

var csprng = &rngReader{}

// RandomBytes draws n cryptographically secure random bytes from the
// process CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := csprng.Read(b); err != nil {
		return nil, fmt.Errorf("%w: %v", dexerr.ErrIO, err)
	}
	return b, nil
}

// GenNonce draws a fresh, random nonce of the correct length for algo
// and mode.
func GenNonce(algo Algorithm, mode Mode) ([]byte, error) {
	n, err := NonceLen(algo, mode)
	if err != nil {
		return nil, err
	}
	return RandomBytes(n)
}

// GenSalt draws a fresh 16-byte KDF salt.
func GenSalt() ([]byte, error) {
	return RandomBytes(SaltSize)
}
