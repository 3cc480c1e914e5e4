// Package engine is the orchestration layer: it composes
// internal/header, internal/kdf, internal/keyslot, internal/memcrypt,
// internal/primitives, internal/secret, and internal/stream into the
// whole-file operations cmd/dexios exposes (encrypt, decrypt, key
// management, detached-header management). It owns no cryptography of
// its own.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dexios-project/dexios-go/internal/dexerr"
	"github.com/dexios-project/dexios-go/internal/header"
	"github.com/dexios-project/dexios-go/internal/kdf"
	"github.com/dexios-project/dexios-go/internal/keyslot"
	"github.com/dexios-project/dexios-go/internal/memcrypt"
	"github.com/dexios-project/dexios-go/internal/primitives"
	"github.com/dexios-project/dexios-go/internal/secret"
	"github.com/dexios-project/dexios-go/internal/stream"
)

// EncryptFile reads plaintext from in, encrypts it under a fresh random
// master key (itself wrapped for passphrase in a single key slot), and
// writes a complete V5 Dexios file to out. On any failure it removes
// out's underlying file before returning, per the error-handling design.
func EncryptFile(ctx context.Context, in io.Reader, out *os.File, passphrase *secret.Secret, algo primitives.Algorithm) (err error) {
	defer func() {
		if err != nil {
			_ = os.Remove(out.Name())
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	if !algo.Valid() {
		return fmt.Errorf("%w: unsupported algorithm %d", dexerr.ErrHeaderFormat, algo)
	}

	masterKeyBytes, err := primitives.RandomBytes(primitives.KeySize)
	if err != nil {
		return err
	}
	masterKey := secret.New(masterKeyBytes)
	defer masterKey.Close()

	baseNonce, err := primitives.GenNonce(algo, primitives.ModeStream)
	if err != nil {
		return err
	}

	slots, err := keyslot.NewSingleSlot(masterKey, passphrase, header.VersionV5)
	if err != nil {
		return err
	}

	h := &header.Header{
		Version:   header.VersionV5,
		Algorithm: algo,
		Mode:      primitives.ModeStream,
		NonceLen:  uint16(len(baseNonce)),
		Slots:     slots,
	}
	copy(h.Nonce[:], baseNonce)

	if err = h.Write(out); err != nil {
		return err
	}
	aad := h.AAD()

	enc, err := stream.NewEncryptor(masterKey, algo, baseNonce)
	if err != nil {
		return err
	}
	if err = stream.EncryptReader(in, out, enc, aad); err != nil {
		return err
	}
	return nil
}

// DecryptFile parses a Dexios header from in and writes the recovered
// plaintext to out. V5 headers authenticate passphrase against one of
// their key slots; V3/V4 headers carry no slot table, so passphrase is
// run directly through the header's legacy KDF to produce the master
// key, per the format's backward-compatible read path. On any failure
// — including authentication failure, or a tampered/truncated body —
// it removes out's underlying file before returning.
func DecryptFile(ctx context.Context, in io.Reader, out *os.File, passphrase *secret.Secret) (err error) {
	defer func() {
		if err != nil {
			_ = os.Remove(out.Name())
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}

	h, aad, err := header.Deserialize(in)
	if err != nil {
		return err
	}

	var masterKey *secret.Secret
	if h.HasSlotTable() {
		masterKey, _, err = keyslot.Verify(h, passphrase)
		if err != nil {
			return err
		}
	} else {
		masterKey, err = kdf.Derive(passphrase, h.Salt[:], h.Version)
		if err != nil {
			return err
		}
	}
	defer masterKey.Close()

	baseNonce := h.Nonce[:h.NonceLen]

	switch h.Mode {
	case primitives.ModeStream:
		dec, err := stream.NewDecryptor(masterKey, h.Algorithm, baseNonce)
		if err != nil {
			return err
		}
		overhead, err := stream.Overhead(h.Algorithm)
		if err != nil {
			return err
		}
		return stream.DecryptReader(in, out, dec, aad, overhead)

	case primitives.ModeMemory:
		ciphertext, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
		}
		plaintext, err := memcrypt.Decrypt(masterKey, h.Algorithm, baseNonce, ciphertext, aad)
		if err != nil {
			return err
		}
		defer plaintext.Close()
		if _, err := out.Write(plaintext.Bytes()); err != nil {
			return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
		}
		return nil

	default:
		return fmt.Errorf("%w: unsupported mode %v", dexerr.ErrHeaderFormat, h.Mode)
	}
}

func readHeader(f *os.File) (*header.Header, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", dexerr.ErrIO, err)
	}
	h, _, err := header.Deserialize(f)
	return h, err
}

func writeHeader(f *os.File, h *header.Header) error {
	buf, err := h.Serialize()
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
	}
	return nil
}

// KeyAdd authenticates current against one of f's populated slots and
// wraps that master key under new in the next free slot.
func KeyAdd(ctx context.Context, f *os.File, current, next *secret.Secret) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h, err := readHeader(f)
	if err != nil {
		return err
	}
	if err := keyslot.Add(h, current, next); err != nil {
		return err
	}
	return writeHeader(f, h)
}

// KeyDelete removes the slot passphrase authenticates, refusing if it
// is the sole populated slot.
func KeyDelete(ctx context.Context, f *os.File, passphrase *secret.Secret) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h, err := readHeader(f)
	if err != nil {
		return err
	}
	_, index, err := keyslot.Verify(h, passphrase)
	if err != nil {
		return err
	}
	if err := keyslot.Delete(h, index); err != nil {
		return err
	}
	return writeHeader(f, h)
}

// KeyChange replaces the slot current authenticates with one wrapped
// under new.
func KeyChange(ctx context.Context, f *os.File, current, next *secret.Secret) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h, err := readHeader(f)
	if err != nil {
		return err
	}
	if err := keyslot.Change(h, current, next); err != nil {
		return err
	}
	return writeHeader(f, h)
}

// HeaderDump copies src's header (and key-slot table) into sidecar.
func HeaderDump(src, sidecar *os.File) error {
	return header.Dump(src, sidecar)
}

// HeaderRestore copies a sidecar's header back over dst.
func HeaderRestore(sidecar, dst *os.File) error {
	return header.Restore(sidecar, dst)
}

// HeaderStrip zeros f's header region in place, leaving the body
// ciphertext untouched but unreadable without a prior HeaderDump.
func HeaderStrip(f *os.File) error {
	return header.Strip(f)
}

// HeaderDetails returns a read-only summary of f's header.
func HeaderDetails(f *os.File) (header.Info, error) {
	h, err := readHeader(f)
	if err != nil {
		return header.Info{}, err
	}
	return header.DetailsFrom(h), nil
}
