// Package pack turns a directory tree into a single seekable stream
// suitable for internal/engine.EncryptFile, and reverses the
// transform after decryption. Each file is zstd-compressed before
// being stored in a zip container (method Store, since the entry is
// already compressed) — zip for directory structure and manifest
// bookkeeping, zstd for the actual size reduction, following the
// zip+zstd pairing used for archive payloads elsewhere in the
// retrieval pack.
package pack

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/dexios-project/dexios-go/internal/dexerr"
)

// Pack walks srcDir and writes a zip archive of its contents to w, with
// every entry's bytes zstd-compressed. Entry names are srcDir-relative
// with forward slashes, matching archive/zip convention.
func Pack(srcDir string, w io.Writer) error {
	zw := zip.NewWriter(w)

	walkErr := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}

		fh := &zip.FileHeader{
			Name:   filepath.ToSlash(rel),
			Method: zip.Store,
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		fh.SetModTime(info.ModTime())
		fh.SetMode(info.Mode())

		entryWriter, err := zw.CreateHeader(fh)
		if err != nil {
			return err
		}

		zEnc, err := zstd.NewWriter(entryWriter)
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if _, err := io.Copy(zEnc, f); err != nil {
			zEnc.Close()
			return err
		}
		return zEnc.Close()
	})
	if walkErr != nil {
		return fmt.Errorf("%w: pack %s: %v", dexerr.ErrIO, srcDir, walkErr)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
	}
	return nil
}

// Unpack reads a zip archive produced by Pack from r (size bytes long)
// and reconstructs its directory tree under destDir, zstd-decompressing
// every entry.
func Unpack(r io.ReaderAt, size int64, destDir string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("%w: %v", dexerr.ErrHeaderFormat, err)
	}

	for _, zf := range zr.File {
		targetPath := filepath.Join(destDir, filepath.FromSlash(zf.Name))
		if !withinDir(destDir, targetPath) {
			return fmt.Errorf("%w: archive entry %q escapes destination", dexerr.ErrHeaderFormat, zf.Name)
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
		}

		rc, err := zf.Open()
		if err != nil {
			return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
		}

		zDec, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return fmt.Errorf("%w: %v", dexerr.ErrHeaderFormat, err)
		}

		out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, zf.Mode())
		if err != nil {
			zDec.Close()
			rc.Close()
			return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
		}

		_, copyErr := io.Copy(out, zDec)
		zDec.Close()
		closeErr := out.Close()
		rc.Close()
		if copyErr != nil {
			return fmt.Errorf("%w: %v", dexerr.ErrIO, copyErr)
		}
		if closeErr != nil {
			return fmt.Errorf("%w: %v", dexerr.ErrIO, closeErr)
		}
	}
	return nil
}

func withinDir(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !filepath.IsAbs(rel) && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
