package stream

import (
	"bytes"
	"testing"

	"github.com/dexios-project/dexios-go/internal/primitives"
	"github.com/dexios-project/dexios-go/internal/secret"
)

func newKey() *secret.Secret {
	key := make([]byte, primitives.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return secret.New(key)
}

func baseNonceFor(t *testing.T, algo primitives.Algorithm) []byte {
	t.Helper()
	n, err := primitives.NonceLen(algo, primitives.ModeStream)
	if err != nil {
		t.Fatalf("NonceLen: %v", err)
	}
	return make([]byte, n)
}

// TestSubChunkPlaintext covers S1: a plaintext shorter than one chunk
// is a single EncryptLast/DecryptLast segment.
func TestSubChunkPlaintext(t *testing.T) {
	key := newKey()
	nonce := baseNonceFor(t, primitives.AlgorithmXChaCha20Poly1305)
	aad := []byte("header-aad")

	enc, err := NewEncryptor(key, primitives.AlgorithmXChaCha20Poly1305, nonce)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	plaintext := []byte("short plaintext")
	ct, err := enc.EncryptLast(append([]byte(nil), plaintext...), aad)
	if err != nil {
		t.Fatalf("EncryptLast: %v", err)
	}

	dec, err := NewDecryptor(key, primitives.AlgorithmXChaCha20Poly1305, nonce)
	if err != nil {
		t.Fatalf("NewDecryptor: %v", err)
	}
	pt, err := dec.DecryptLast(ct, aad)
	if err != nil {
		t.Fatalf("DecryptLast: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("round trip mismatch: got %q", pt)
	}
}

// TestMultiSegmentAndTamper covers S2: a multi-segment stream
// round-trips, and tampering with one segment's ciphertext breaks only
// that segment's authentication.
func TestMultiSegmentAndTamper(t *testing.T) {
	key := newKey()
	nonce := baseNonceFor(t, primitives.AlgorithmAES256GCM)
	aad := []byte("aad")

	enc, err := NewEncryptor(key, primitives.AlgorithmAES256GCM, nonce)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	seg0 := bytes.Repeat([]byte{0x41}, 100)
	seg1 := bytes.Repeat([]byte{0x42}, 50)

	ct0, err := enc.EncryptNext(seg0, aad)
	if err != nil {
		t.Fatalf("EncryptNext: %v", err)
	}
	ct1, err := enc.EncryptLast(seg1, aad)
	if err != nil {
		t.Fatalf("EncryptLast: %v", err)
	}

	dec, err := NewDecryptor(key, primitives.AlgorithmAES256GCM, nonce)
	if err != nil {
		t.Fatalf("NewDecryptor: %v", err)
	}
	pt0, err := dec.DecryptNext(ct0, aad)
	if err != nil {
		t.Fatalf("DecryptNext: %v", err)
	}
	if !bytes.Equal(pt0, seg0) {
		t.Fatal("segment 0 mismatch")
	}
	pt1, err := dec.DecryptLast(ct1, aad)
	if err != nil {
		t.Fatalf("DecryptLast: %v", err)
	}
	if !bytes.Equal(pt1, seg1) {
		t.Fatal("segment 1 mismatch")
	}

	// Tamper with segment 1 and verify it no longer authenticates against
	// a fresh decryptor advanced to the same counter position.
	ct1Tampered := append([]byte(nil), ct1...)
	ct1Tampered[0] ^= 0xFF

	dec2, err := NewDecryptor(key, primitives.AlgorithmAES256GCM, nonce)
	if err != nil {
		t.Fatalf("NewDecryptor: %v", err)
	}
	if _, err := dec2.DecryptNext(ct0, aad); err != nil {
		t.Fatalf("DecryptNext: %v", err)
	}
	if _, err := dec2.DecryptLast(ct1Tampered, aad); err == nil {
		t.Fatal("expected authentication failure on tampered final segment")
	}
}

// TestTruncationResistance covers dropping the final segment: decrypt
// must fail rather than silently accept a short stream as complete.
func TestTruncationResistance(t *testing.T) {
	key := newKey()
	nonce := baseNonceFor(t, primitives.AlgorithmDeoxysII256)
	aad := []byte("aad")

	enc, err := NewEncryptor(key, primitives.AlgorithmDeoxysII256, nonce)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	ct0, err := enc.EncryptNext(bytes.Repeat([]byte{1}, 10), aad)
	if err != nil {
		t.Fatalf("EncryptNext: %v", err)
	}
	_ = ct0

	// A decryptor that only ever sees the non-final segment, and is
	// asked to treat it as final, must fail: the flag byte differs.
	dec, err := NewDecryptor(key, primitives.AlgorithmDeoxysII256, nonce)
	if err != nil {
		t.Fatalf("NewDecryptor: %v", err)
	}
	if _, err := dec.DecryptLast(ct0, aad); err == nil {
		t.Fatal("expected authentication failure treating a non-final segment as final")
	}
}

// TestEncryptReaderDecryptReaderRoundTrip exercises the streaming
// helpers across a multi-megabyte payload with a buffer whose size is
// fixed regardless of input size.
func TestEncryptReaderDecryptReaderRoundTrip(t *testing.T) {
	key := newKey()
	algo := primitives.AlgorithmXChaCha20Poly1305
	nonce := baseNonceFor(t, algo)
	aad := []byte("file-aad")

	plaintext := bytes.Repeat([]byte("0123456789abcdef"), (2*ChunkSize)/16+17)

	enc, err := NewEncryptor(key, algo, nonce)
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	var ciphertext bytes.Buffer
	if err := EncryptReader(bytes.NewReader(plaintext), &ciphertext, enc, aad); err != nil {
		t.Fatalf("EncryptReader: %v", err)
	}

	overhead, err := Overhead(algo)
	if err != nil {
		t.Fatalf("Overhead: %v", err)
	}

	dec, err := NewDecryptor(key, algo, nonce)
	if err != nil {
		t.Fatalf("NewDecryptor: %v", err)
	}
	var recovered bytes.Buffer
	if err := DecryptReader(&ciphertext, &recovered, dec, aad, overhead); err != nil {
		t.Fatalf("DecryptReader: %v", err)
	}
	if !bytes.Equal(recovered.Bytes(), plaintext) {
		t.Fatal("multi-segment round trip mismatch")
	}
}
