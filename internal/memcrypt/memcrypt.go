// Package memcrypt is the single-shot, whole-buffer AEAD pipeline used
// for small payloads — in Dexios that means wrapping and unwrapping the
// 32-byte master key inside each key slot. Streaming files goes through
// internal/stream instead.
package memcrypt

import (
	"fmt"

	"github.com/dexios-project/dexios-go/internal/dexerr"
	"github.com/dexios-project/dexios-go/internal/primitives"
	"github.com/dexios-project/dexios-go/internal/secret"
)

// Encrypt seals plaintext under key (exactly primitives.KeySize bytes)
// and nonce, returning ciphertext||tag. plaintext is zeroed before
// returning, successful or not.
func Encrypt(key *secret.Secret, algo primitives.Algorithm, nonce, plaintext []byte, aad []byte) ([]byte, error) {
	defer secret.Wipe(plaintext)

	aead, err := primitives.New(key.Bytes(), algo)
	if err != nil {
		return nil, err
	}
	if err := primitives.CheckNonce(aead, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

// Decrypt opens ciphertext||tag under key and nonce. On authentication
// failure it returns ErrDecrypt and no plaintext is produced.
func Decrypt(key *secret.Secret, algo primitives.Algorithm, nonce, ciphertext []byte, aad []byte) (*secret.Secret, error) {
	aead, err := primitives.New(key.Bytes(), algo)
	if err != nil {
		return nil, err
	}
	if err := primitives.CheckNonce(aead, nonce); err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dexerr.ErrDecrypt, err)
	}
	return secret.New(plaintext), nil
}
