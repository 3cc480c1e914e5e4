// Package dexerr defines the sentinel error taxonomy shared by every
// Dexios component. Callers match against these with errors.Is; no
// component returns a bare error for a condition this package names.
package dexerr

import "errors"

var (
	// ErrIO covers read/write/seek failure on an external file.
	ErrIO = errors.New("dexios: io error")

	// ErrHeaderFormat covers an unknown version/algorithm/mode tag, a
	// short read, or an inconsistent key-slot table.
	ErrHeaderFormat = errors.New("dexios: header format error")

	// ErrKdf covers a KDF parameter or implementation failure.
	ErrKdf = errors.New("dexios: kdf error")

	// ErrKeyInit covers a cipher key of the wrong length.
	ErrKeyInit = errors.New("dexios: key init error")

	// ErrNonceLength covers a nonce of the wrong length for the algorithm.
	ErrNonceLength = errors.New("dexios: nonce length error")

	// ErrDecrypt covers AEAD authentication failure: wrong key, tampered
	// data, or truncation.
	ErrDecrypt = errors.New("dexios: decryption failed")

	// ErrAuthenticationFailed means no populated slot authenticated the
	// supplied passphrase.
	ErrAuthenticationFailed = errors.New("dexios: authentication failed")

	// ErrNoFreeSlot means key add was attempted on a full slot table.
	ErrNoFreeSlot = errors.New("dexios: no free key slot")

	// ErrLastKey means key delete was attempted on the sole populated slot.
	ErrLastKey = errors.New("dexios: refusing to delete the last key")

	// ErrOutputExists means the destination file already exists and
	// --force was not set.
	ErrOutputExists = errors.New("dexios: output file already exists")
)
