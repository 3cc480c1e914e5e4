package kdf

import (
	"bytes"
	"testing"

	"github.com/dexios-project/dexios-go/internal/header"
	"github.com/dexios-project/dexios-go/internal/secret"
)

func TestDeriveIsDeterministic(t *testing.T) {
	salt := bytes.Repeat([]byte{0x11}, 16)
	for _, v := range []header.Version{header.VersionV3, header.VersionV4, header.VersionV5} {
		pass1 := secret.New([]byte("correct horse battery staple"))
		pass2 := secret.New([]byte("correct horse battery staple"))

		out1, err := Derive(pass1, salt, v)
		if err != nil {
			t.Fatalf("%s: Derive: %v", v, err)
		}
		out2, err := Derive(pass2, salt, v)
		if err != nil {
			t.Fatalf("%s: Derive: %v", v, err)
		}
		if !bytes.Equal(out1.Bytes(), out2.Bytes()) {
			t.Fatalf("%s: Derive not deterministic for identical inputs", v)
		}
		if out1.Len() != KeySize {
			t.Fatalf("%s: output length %d, want %d", v, out1.Len(), KeySize)
		}
		out1.Close()
		out2.Close()
	}
}

func TestDeriveDiffersBySalt(t *testing.T) {
	pass := secret.New([]byte("a passphrase"))
	defer pass.Close()

	saltA := bytes.Repeat([]byte{0xAA}, 16)
	saltB := bytes.Repeat([]byte{0xBB}, 16)

	outA, err := Derive(secret.New([]byte("a passphrase")), saltA, header.VersionV5)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	outB, err := Derive(secret.New([]byte("a passphrase")), saltB, header.VersionV5)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if bytes.Equal(outA.Bytes(), outB.Bytes()) {
		t.Fatal("differing salts produced identical keys")
	}
}

func TestDeriveDiffersByKDF(t *testing.T) {
	// V4 and V5 share identical Balloon parameters per spec, so they are
	// expected to agree; V3's Argon2id must differ from both.
	salt := bytes.Repeat([]byte{0x33}, 16)
	v4, err := Derive(secret.New([]byte("shared passphrase")), salt, header.VersionV4)
	if err != nil {
		t.Fatalf("Derive V4: %v", err)
	}
	v5, err := Derive(secret.New([]byte("shared passphrase")), salt, header.VersionV5)
	if err != nil {
		t.Fatalf("Derive V5: %v", err)
	}
	if !bytes.Equal(v4.Bytes(), v5.Bytes()) {
		t.Fatal("V4 and V5 should derive identically given identical Balloon parameters")
	}

	v3, err := Derive(secret.New([]byte("shared passphrase")), salt, header.VersionV3)
	if err != nil {
		t.Fatalf("Derive V3: %v", err)
	}
	if bytes.Equal(v3.Bytes(), v5.Bytes()) {
		t.Fatal("V3 (Argon2id) and V5 (Balloon) should not derive identically")
	}
}

func TestDeriveRejectsUnknownVersion(t *testing.T) {
	pass := secret.New([]byte("x"))
	defer pass.Close()
	if _, err := Derive(pass, make([]byte, 16), header.Version(0xFF)); err == nil {
		t.Fatal("expected error for unknown version")
	}
}
