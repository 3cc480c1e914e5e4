package header

import (
	"fmt"
	"io"

	"github.com/dexios-project/dexios-go/internal/dexerr"
)

// Strip overwrites the first TotalSize bytes (base header + slot table)
// of f with zeros, without truncating the file, so the header can be
// moved into a detached sidecar.
func Strip(f io.WriterAt) error {
	zeros := make([]byte, TotalSize)
	if _, err := f.WriteAt(zeros, 0); err != nil {
		return fmt.Errorf("%w: strip header: %v", dexerr.ErrIO, err)
	}
	return nil
}

// Dump copies the first TotalSize bytes of src into sidecar.
func Dump(src io.ReaderAt, sidecar io.Writer) error {
	buf := make([]byte, TotalSize)
	if _, err := src.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("%w: dump header: %v", dexerr.ErrIO, err)
	}
	if _, err := sidecar.Write(buf); err != nil {
		return fmt.Errorf("%w: write sidecar: %v", dexerr.ErrIO, err)
	}
	return nil
}

// Restore copies a sidecar's header bytes back over the first
// TotalSize bytes of dst.
func Restore(sidecar io.Reader, dst io.WriterAt) error {
	buf := make([]byte, TotalSize)
	if _, err := io.ReadFull(sidecar, buf); err != nil {
		return fmt.Errorf("%w: read sidecar: %v", dexerr.ErrIO, err)
	}
	if _, err := dst.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("%w: restore header: %v", dexerr.ErrIO, err)
	}
	return nil
}

// Info is a read-only summary of a header, used by the CLI's
// `header details` subcommand (spec.md §6, expanded in SPEC_FULL.md §4.8).
type Info struct {
	Version        Version
	Algorithm      string
	Mode           string
	PopulatedSlots int
}

// DetailsFrom summarizes a parsed header.
func DetailsFrom(h *Header) Info {
	return Info{
		Version:        h.Version,
		Algorithm:      h.Algorithm.String(),
		Mode:           h.Mode.String(),
		PopulatedSlots: h.PopulatedSlots(),
	}
}
