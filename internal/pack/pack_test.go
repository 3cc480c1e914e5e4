package pack

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(srcDir, "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	files := map[string]string{
		"a.txt":        "hello from a",
		"sub/b.txt":    "hello from b, nested",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(srcDir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile %s: %v", name, err)
		}
	}

	archivePath := filepath.Join(t.TempDir(), "archive.zip")
	archive, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	if err := Pack(srcDir, archive); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	archive.Close()

	archiveIn, err := os.Open(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer archiveIn.Close()
	info, err := archiveIn.Stat()
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	destDir := t.TempDir()
	if err := Unpack(archiveIn, info.Size(), destDir); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	for name, want := range files {
		got, err := os.ReadFile(filepath.Join(destDir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !bytes.Equal(got, []byte(want)) {
			t.Fatalf("%s: got %q, want %q", name, got, want)
		}
	}
}
