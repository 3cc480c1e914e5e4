// Package keyslot implements Dexios's multi-passphrase key-slot
// manager: up to four independent wrappings of one 32-byte master key,
// each under its own passphrase-derived wrapping key, so a file can be
// unlocked by any one of several passphrases without re-encrypting its
// body.
//
// Each slot's master key is wrapped with the in-memory AEAD
// (internal/memcrypt) under AES-256-GCM, matching the 12-byte nonce
// internal/header.Slot reserves for it; the file body itself may use
// any of the three supported algorithms independently.
package keyslot

import (
	"fmt"

	"github.com/dexios-project/dexios-go/internal/dexerr"
	"github.com/dexios-project/dexios-go/internal/header"
	"github.com/dexios-project/dexios-go/internal/kdf"
	"github.com/dexios-project/dexios-go/internal/memcrypt"
	"github.com/dexios-project/dexios-go/internal/primitives"
	"github.com/dexios-project/dexios-go/internal/secret"
)

// wrapAlgorithm is fixed regardless of the file body's algorithm: the
// slot table's nonce field is sized for AES-256-GCM's 12-byte nonce.
const wrapAlgorithm = primitives.AlgorithmAES256GCM

func wrapSlot(masterKey, passphrase *secret.Secret, version header.Version) (header.Slot, error) {
	var slot header.Slot

	salt, err := primitives.GenSalt()
	if err != nil {
		return slot, err
	}
	nonce, err := primitives.RandomBytes(12)
	if err != nil {
		return slot, err
	}

	wrappingKey, err := kdf.Derive(passphrase, salt, version)
	if err != nil {
		return slot, err
	}
	defer wrappingKey.Close()

	plaintext := make([]byte, len(masterKey.Bytes()))
	copy(plaintext, masterKey.Bytes())

	ciphertext, err := memcrypt.Encrypt(wrappingKey, wrapAlgorithm, nonce, plaintext, salt)
	if err != nil {
		return slot, err
	}
	if len(ciphertext) != len(slot.WrappedMasterKey) {
		return slot, fmt.Errorf("%w: wrapped master key is %d bytes, want %d", dexerr.ErrHeaderFormat, len(ciphertext), len(slot.WrappedMasterKey))
	}

	slot.InUse = true
	copy(slot.Salt[:], salt)
	copy(slot.Nonce[:], nonce)
	copy(slot.WrappedMasterKey[:], ciphertext)
	copy(slot.Tag[:], ciphertext[len(ciphertext)-len(slot.Tag):])
	return slot, nil
}

func unwrapSlot(slot header.Slot, passphrase *secret.Secret, version header.Version) (*secret.Secret, error) {
	wrappingKey, err := kdf.Derive(passphrase, slot.Salt[:], version)
	if err != nil {
		return nil, err
	}
	defer wrappingKey.Close()

	ciphertext := make([]byte, len(slot.WrappedMasterKey))
	copy(ciphertext, slot.WrappedMasterKey[:])

	return memcrypt.Decrypt(wrappingKey, wrapAlgorithm, slot.Nonce[:], ciphertext, slot.Salt[:])
}

// Verify scans the header's populated slots in order and returns the
// master key and slot index of the first one passphrase successfully
// unwraps. It returns ErrAuthenticationFailed if none do.
func Verify(h *header.Header, passphrase *secret.Secret) (*secret.Secret, int, error) {
	for i := range h.Slots {
		if !h.Slots[i].InUse {
			continue
		}
		masterKey, err := unwrapSlot(h.Slots[i], passphrase, h.Version)
		if err != nil {
			continue
		}
		return masterKey, i, nil
	}
	return nil, -1, dexerr.ErrAuthenticationFailed
}

// Add authenticates currentPassphrase against one of h's populated
// slots, then wraps that slot's master key under newPassphrase in the
// lowest-numbered free slot. It returns ErrNoFreeSlot if all four slots
// are already populated.
func Add(h *header.Header, currentPassphrase, newPassphrase *secret.Secret) error {
	masterKey, _, err := Verify(h, currentPassphrase)
	if err != nil {
		return err
	}
	defer masterKey.Close()

	free := -1
	for i := range h.Slots {
		if !h.Slots[i].InUse {
			free = i
			break
		}
	}
	if free == -1 {
		return dexerr.ErrNoFreeSlot
	}

	slot, err := wrapSlot(masterKey, newPassphrase, h.Version)
	if err != nil {
		return err
	}
	h.Slots[free] = slot
	return nil
}

// Delete clears the slot at index, refusing if it is the sole
// populated slot (ErrLastKey): a header must always authenticate at
// least one passphrase.
func Delete(h *header.Header, index int) error {
	if index < 0 || index >= len(h.Slots) {
		return fmt.Errorf("%w: slot index %d out of range", dexerr.ErrHeaderFormat, index)
	}
	if !h.Slots[index].InUse {
		return fmt.Errorf("%w: slot %d is not populated", dexerr.ErrHeaderFormat, index)
	}
	if h.PopulatedSlots() <= 1 {
		return dexerr.ErrLastKey
	}
	h.Slots[index] = header.Slot{}
	return nil
}

// Change replaces the slot oldPassphrase authenticates with one
// wrapped under newPassphrase. If a free slot exists it wraps the key
// into that slot and clears the old one; both edits are made to h in
// memory, so the caller's single header write applies them together.
// If the authenticating slot is the sole populated slot and no free slot exists, it
// overwrites that slot in place instead of bouncing off ErrLastKey.
func Change(h *header.Header, oldPassphrase, newPassphrase *secret.Secret) error {
	masterKey, index, err := Verify(h, oldPassphrase)
	if err != nil {
		return err
	}
	defer masterKey.Close()

	free := -1
	for i := range h.Slots {
		if !h.Slots[i].InUse {
			free = i
			break
		}
	}

	if free != -1 {
		slot, err := wrapSlot(masterKey, newPassphrase, h.Version)
		if err != nil {
			return err
		}
		h.Slots[free] = slot
		h.Slots[index] = header.Slot{}
		return nil
	}

	if h.PopulatedSlots() == 1 {
		slot, err := wrapSlot(masterKey, newPassphrase, h.Version)
		if err != nil {
			return err
		}
		h.Slots[index] = slot
		return nil
	}

	return dexerr.ErrNoFreeSlot
}

// NewSingleSlot builds a fresh slot table populated only at slot 0,
// wrapping masterKey under passphrase. Used when creating a new V5
// header during encryption.
func NewSingleSlot(masterKey, passphrase *secret.Secret, version header.Version) ([4]header.Slot, error) {
	var slots [4]header.Slot
	slot, err := wrapSlot(masterKey, passphrase, version)
	if err != nil {
		return slots, err
	}
	slots[0] = slot
	return slots, nil
}
