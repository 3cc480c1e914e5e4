package memcrypt

import (
	"testing"

	"github.com/dexios-project/dexios-go/internal/primitives"
	"github.com/dexios-project/dexios-go/internal/secret"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := secret.New(make([]byte, primitives.KeySize))
	nonce := make([]byte, 12)
	aad := []byte("slot-aad")

	plaintext := []byte("a 32 byte master key goes here!")
	ct, err := Encrypt(key, primitives.AlgorithmAES256GCM, nonce, append([]byte(nil), plaintext...), aad)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	pt, err := Decrypt(key, primitives.AlgorithmAES256GCM, nonce, ct, aad)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	defer pt.Close()
	if string(pt.Bytes()) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q", pt.Bytes())
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	key := secret.New(make([]byte, primitives.KeySize))
	nonce := make([]byte, 12)
	aad := []byte("aad")

	ct, err := Encrypt(key, primitives.AlgorithmAES256GCM, nonce, []byte("secret bytes here"), aad)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ct[0] ^= 0xFF

	if _, err := Decrypt(key, primitives.AlgorithmAES256GCM, nonce, ct, aad); err == nil {
		t.Fatal("expected authentication failure for tampered ciphertext")
	}
}

func TestDecryptRejectsWrongAAD(t *testing.T) {
	key := secret.New(make([]byte, primitives.KeySize))
	nonce := make([]byte, 12)

	ct, err := Encrypt(key, primitives.AlgorithmAES256GCM, nonce, []byte("secret bytes here"), []byte("aad-a"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(key, primitives.AlgorithmAES256GCM, nonce, ct, []byte("aad-b")); err == nil {
		t.Fatal("expected authentication failure for mismatched AAD")
	}
}
