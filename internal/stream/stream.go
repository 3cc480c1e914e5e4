// Package stream implements the STREAM-LE31 chunked AEAD pipeline:
// 1 MiB plaintext segments, each sealed under the same base nonce with
// an internal 4-byte little-endian counter and a 1-byte last-segment
// flag appended, so segments cannot be reordered, dropped, or
// truncated without breaking authentication.
//
// There is no maintained Go package for this specific construction in
// the retrieval pack or the wider ecosystem (see SPEC_FULL.md's domain
// stack table), so it is hand-rolled directly atop crypto/cipher.AEAD,
// the same interface the teacher's own chunked encrypt/decrypt loops
// (chachacrypt.go's processFile/decryptProcess) are built on.
package stream

import (
	"crypto/cipher"
	"fmt"
	"io"

	"github.com/dexios-project/dexios-go/internal/dexerr"
	"github.com/dexios-project/dexios-go/internal/primitives"
	"github.com/dexios-project/dexios-go/internal/secret"
)

// ChunkSize is the fixed plaintext segment size: 1 MiB.
const ChunkSize = 1 << 20

const (
	counterLen = 4
	flagLen    = 1
	// counterOverhead must equal primitives' streamCounterOverhead (5).
	counterOverhead = counterLen + flagLen
)

// Encryptor seals successive plaintext segments under one base nonce,
// using a strictly monotonic counter so segment order is cryptographically
// enforced.
type Encryptor struct {
	aead      cipher.AEAD
	baseNonce []byte
	counter   uint32
	done      bool
}

// NewEncryptor builds an Encryptor for algo with key and baseNonce.
// baseNonce must already be the STREAM-reduced length for algo
// (primitives.NonceLen(algo, primitives.ModeStream)).
func NewEncryptor(key *secret.Secret, algo primitives.Algorithm, baseNonce []byte) (*Encryptor, error) {
	aead, err := primitives.New(key.Bytes(), algo)
	if err != nil {
		return nil, err
	}
	wantLen, err := primitives.NonceLen(algo, primitives.ModeStream)
	if err != nil {
		return nil, err
	}
	if len(baseNonce) != wantLen {
		return nil, fmt.Errorf("%w: stream base nonce must be %d bytes, got %d", dexerr.ErrNonceLength, wantLen, len(baseNonce))
	}
	return &Encryptor{aead: aead, baseNonce: baseNonce}, nil
}

func (e *Encryptor) segmentNonce(last bool) []byte {
	nonce := make([]byte, 0, len(e.baseNonce)+counterOverhead)
	nonce = append(nonce, e.baseNonce...)
	var counterBytes [counterLen]byte
	counterBytes[0] = byte(e.counter)
	counterBytes[1] = byte(e.counter >> 8)
	counterBytes[2] = byte(e.counter >> 16)
	counterBytes[3] = byte(e.counter >> 24)
	nonce = append(nonce, counterBytes[:]...)
	if last {
		nonce = append(nonce, 1)
	} else {
		nonce = append(nonce, 0)
	}
	return nonce
}

// EncryptNext seals one non-final plaintext segment.
func (e *Encryptor) EncryptNext(plaintext, aad []byte) ([]byte, error) {
	if e.done {
		return nil, fmt.Errorf("%w: encryptor already finalized", dexerr.ErrIO)
	}
	nonce := e.segmentNonce(false)
	ct := e.aead.Seal(nil, nonce, plaintext, aad)
	e.counter++
	return ct, nil
}

// EncryptLast seals the final plaintext segment (which may be empty
// for a zero-length file) and finalizes the stream.
func (e *Encryptor) EncryptLast(plaintext, aad []byte) ([]byte, error) {
	if e.done {
		return nil, fmt.Errorf("%w: encryptor already finalized", dexerr.ErrIO)
	}
	nonce := e.segmentNonce(true)
	ct := e.aead.Seal(nil, nonce, plaintext, aad)
	e.done = true
	return ct, nil
}

// Decryptor mirrors Encryptor for the decrypt direction.
type Decryptor struct {
	aead      cipher.AEAD
	baseNonce []byte
	counter   uint32
	done      bool
}

// NewDecryptor builds a Decryptor symmetric to NewEncryptor.
func NewDecryptor(key *secret.Secret, algo primitives.Algorithm, baseNonce []byte) (*Decryptor, error) {
	aead, err := primitives.New(key.Bytes(), algo)
	if err != nil {
		return nil, err
	}
	wantLen, err := primitives.NonceLen(algo, primitives.ModeStream)
	if err != nil {
		return nil, err
	}
	if len(baseNonce) != wantLen {
		return nil, fmt.Errorf("%w: stream base nonce must be %d bytes, got %d", dexerr.ErrNonceLength, wantLen, len(baseNonce))
	}
	return &Decryptor{aead: aead, baseNonce: baseNonce}, nil
}

func (d *Decryptor) segmentNonce(last bool) []byte {
	nonce := make([]byte, 0, len(d.baseNonce)+counterOverhead)
	nonce = append(nonce, d.baseNonce...)
	var counterBytes [counterLen]byte
	counterBytes[0] = byte(d.counter)
	counterBytes[1] = byte(d.counter >> 8)
	counterBytes[2] = byte(d.counter >> 16)
	counterBytes[3] = byte(d.counter >> 24)
	nonce = append(nonce, counterBytes[:]...)
	if last {
		nonce = append(nonce, 1)
	} else {
		nonce = append(nonce, 0)
	}
	return nonce
}

// DecryptNext opens one non-final segment.
func (d *Decryptor) DecryptNext(segment, aad []byte) ([]byte, error) {
	if d.done {
		return nil, fmt.Errorf("%w: decryptor already finalized", dexerr.ErrIO)
	}
	nonce := d.segmentNonce(false)
	pt, err := d.aead.Open(nil, nonce, segment, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dexerr.ErrDecrypt, err)
	}
	d.counter++
	return pt, nil
}

// DecryptLast opens the final segment and finalizes the stream.
func (d *Decryptor) DecryptLast(segment, aad []byte) ([]byte, error) {
	if d.done {
		return nil, fmt.Errorf("%w: decryptor already finalized", dexerr.ErrIO)
	}
	nonce := d.segmentNonce(true)
	pt, err := d.aead.Open(nil, nonce, segment, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dexerr.ErrDecrypt, err)
	}
	d.done = true
	return pt, nil
}

// Overhead is the per-segment ciphertext expansion (the AEAD tag).
func Overhead(algo primitives.Algorithm) (int, error) {
	aead, err := primitives.New(make([]byte, primitives.KeySize), algo)
	if err != nil {
		return 0, err
	}
	return aead.Overhead(), nil
}

// EncryptReader reads plaintext from r in ChunkSize segments, encrypts
// each through enc, and writes the resulting ciphertext segments to w.
// It uses one fixed-size reusable buffer, zeroed on every exit path, so
// memory use is bounded independent of the input size.
func EncryptReader(r io.Reader, w io.Writer, enc *Encryptor, aad []byte) error {
	buf := make([]byte, ChunkSize)
	defer secret.Wipe(buf)

	for {
		n, readErr := io.ReadFull(r, buf)
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			return fmt.Errorf("%w: %v", dexerr.ErrIO, readErr)
		}
		if n == ChunkSize && readErr == nil {
			ct, err := enc.EncryptNext(buf[:n], aad)
			if err != nil {
				return err
			}
			if _, err := w.Write(ct); err != nil {
				return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
			}
			continue
		}
		// short read (or exactly 0 on a prior full chunk boundary): last segment.
		ct, err := enc.EncryptLast(buf[:n], aad)
		if err != nil {
			return err
		}
		if _, err := w.Write(ct); err != nil {
			return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
		}
		return nil
	}
}

// DecryptReader mirrors EncryptReader: it reads ChunkSize+overhead
// bytes per segment from r, decrypts each through dec, and writes the
// recovered plaintext to w. Any authentication failure aborts
// immediately with ErrDecrypt; the caller must delete whatever partial
// output was written (see SPEC_FULL.md §7).
func DecryptReader(r io.Reader, w io.Writer, dec *Decryptor, aad []byte, overhead int) error {
	segBuf := make([]byte, ChunkSize+overhead)
	defer secret.Wipe(segBuf)

	for {
		n, readErr := io.ReadFull(r, segBuf)
		if readErr != nil && readErr != io.ErrUnexpectedEOF && readErr != io.EOF {
			return fmt.Errorf("%w: %v", dexerr.ErrIO, readErr)
		}
		if n == len(segBuf) && readErr == nil {
			pt, err := dec.DecryptNext(segBuf[:n], aad)
			if err != nil {
				return err
			}
			if _, err := w.Write(pt); err != nil {
				secret.Wipe(pt)
				return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
			}
			secret.Wipe(pt)
			continue
		}
		pt, err := dec.DecryptLast(segBuf[:n], aad)
		if err != nil {
			return err
		}
		if _, err := w.Write(pt); err != nil {
			secret.Wipe(pt)
			return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
		}
		secret.Wipe(pt)
		return nil
	}
}
