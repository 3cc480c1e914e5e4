// Command dexios is the CLI front-end for the Dexios file-encryption
// engine: encrypt/decrypt, detached-header management, key-slot
// management, directory pack/unpack, standalone hashing, and secure
// erase. All cryptography lives in internal/*; this file only parses
// flags, resolves passphrases, and wires os.File handles into
// internal/engine.
package main

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/term"
	"lukechampine.com/blake3"

	"github.com/dexios-project/dexios-go/internal/dexerr"
	"github.com/dexios-project/dexios-go/internal/engine"
	"github.com/dexios-project/dexios-go/internal/erase"
	"github.com/dexios-project/dexios-go/internal/pack"
	"github.com/dexios-project/dexios-go/internal/primitives"
	"github.com/dexios-project/dexios-go/internal/secret"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	var err error

	switch os.Args[1] {
	case "encrypt":
		err = runEncrypt(ctx, os.Args[2:])
	case "decrypt":
		err = runDecrypt(ctx, os.Args[2:])
	case "hash":
		err = runHash(os.Args[2:])
	case "erase":
		err = runErase(os.Args[2:])
	case "pack":
		err = runPack(ctx, os.Args[2:])
	case "unpack":
		err = runUnpack(ctx, os.Args[2:])
	case "header":
		err = runHeader(ctx, os.Args[2:])
	case "key":
		err = runKey(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("dexios: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  dexios encrypt [--force] [--keyfile path] [--aead 1|2|3] [--header path] <in> <out>
  dexios decrypt [--keyfile path] [--header path] <in> <out>
  dexios hash <file>
  dexios erase [--passes N] <file>
  dexios pack [--keyfile path] [--aead 1|2|3] <srcdir> <out>
  dexios unpack [--keyfile path] <in> <destdir>
  dexios header {dump,restore,strip,details} <file> [<sidecar>]
  dexios key {add,del,change} [--old path] [--new path] <file>`)
}

// resolvePassphrase implements spec's precedence: keyfile > env >
// interactive prompt. When confirm is true and prompting interactively,
// the passphrase is read twice and must match.
func resolvePassphrase(keyfile string, confirm bool) (*secret.Secret, error) {
	if keyfile != "" {
		data, err := os.ReadFile(keyfile)
		if err != nil {
			return nil, fmt.Errorf("%w: read keyfile: %v", dexerr.ErrIO, err)
		}
		return secret.New(data), nil
	}
	if env, ok := os.LookupEnv("DEXIOS_KEY"); ok && env != "" {
		return secret.New([]byte(env)), nil
	}
	if confirm {
		return readPasswordConfirm("Enter a passphrase: ", "Confirm passphrase: ")
	}
	return readPassword("Enter passphrase: ")
}

func readPassword(prompt string) (*secret.Secret, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, errors.New("dexios: no passphrase source available (no keyfile, no DEXIOS_KEY, not a terminal)")
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("%w: read password: %v", dexerr.ErrIO, err)
	}
	return secret.New(pw), nil
}

func readPasswordConfirm(prompt, confirmPrompt string) (*secret.Secret, error) {
	first, err := readPassword(prompt)
	if err != nil {
		return nil, err
	}
	second, err := readPassword(confirmPrompt)
	if err != nil {
		first.Close()
		return nil, err
	}
	defer second.Close()
	if subtle.ConstantTimeCompare(first.Bytes(), second.Bytes()) != 1 {
		first.Close()
		return nil, errors.New("dexios: passphrases do not match")
	}
	return first, nil
}

func runEncrypt(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("encrypt", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite output if it already exists")
	keyfile := fs.String("keyfile", "", "read passphrase from this file instead of prompting")
	aeadFlag := fs.Int("aead", int(primitives.AlgorithmXChaCha20Poly1305), "AEAD algorithm: 1=XChaCha20-Poly1305 2=AES-256-GCM 3=Deoxys-II-256")
	detachedPath := fs.String("header", "", "write the header to this sidecar file instead of embedding it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("dexios: encrypt requires <in> <out>")
	}
	inPath, outPath := fs.Arg(0), fs.Arg(1)

	algo := primitives.Algorithm(*aeadFlag)
	if !algo.Valid() {
		return fmt.Errorf("%w: unknown --aead value %d", dexerr.ErrHeaderFormat, *aeadFlag)
	}
	if !*force {
		if _, err := os.Stat(outPath); err == nil {
			return dexerr.ErrOutputExists
		}
	}

	passphrase, err := resolvePassphrase(*keyfile, true)
	if err != nil {
		return err
	}
	defer passphrase.Close()

	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", dexerr.ErrIO, inPath, err)
	}
	defer in.Close()

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", dexerr.ErrIO, outPath, err)
	}
	defer out.Close()

	if err := engine.EncryptFile(ctx, in, out, passphrase, algo); err != nil {
		return err
	}

	if *detachedPath != "" {
		sidecar, err := os.OpenFile(*detachedPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("%w: create sidecar %s: %v", dexerr.ErrIO, *detachedPath, err)
		}
		defer sidecar.Close()
		if err := engine.HeaderDump(out, sidecar); err != nil {
			return err
		}
		if err := engine.HeaderStrip(out); err != nil {
			return err
		}
	}
	return nil
}

func runDecrypt(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("decrypt", flag.ExitOnError)
	keyfile := fs.String("keyfile", "", "read passphrase from this file instead of prompting")
	headerPath := fs.String("header", "", "read the detached header from this sidecar file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("dexios: decrypt requires <in> <out>")
	}
	inPath, outPath := fs.Arg(0), fs.Arg(1)

	passphrase, err := resolvePassphrase(*keyfile, false)
	if err != nil {
		return err
	}
	defer passphrase.Close()

	flags := os.O_RDONLY
	if *headerPath != "" {
		flags = os.O_RDWR
	}
	in, err := os.OpenFile(inPath, flags, 0)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", dexerr.ErrIO, inPath, err)
	}
	defer in.Close()

	if *headerPath != "" {
		sidecar, err := os.Open(*headerPath)
		if err != nil {
			return fmt.Errorf("%w: open sidecar %s: %v", dexerr.ErrIO, *headerPath, err)
		}
		err = engine.HeaderRestore(sidecar, in)
		sidecar.Close()
		if err != nil {
			return err
		}
		if _, err := in.Seek(0, 0); err != nil {
			return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
		}
	}

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", dexerr.ErrIO, outPath, err)
	}
	defer out.Close()

	return engine.DecryptFile(ctx, in, out, passphrase)
}

func runHash(args []string) error {
	if len(args) != 1 {
		return errors.New("dexios: hash requires <file>")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", dexerr.ErrIO, args[0], err)
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("%w: hash %s: %v", dexerr.ErrIO, args[0], err)
	}
	fmt.Println(hex.EncodeToString(h.Sum(nil)))
	return nil
}

func runErase(args []string) error {
	fs := flag.NewFlagSet("erase", flag.ExitOnError)
	passes := fs.Int("passes", erase.DefaultPasses, "number of overwrite passes before unlinking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("dexios: erase requires <file>")
	}
	return erase.File(fs.Arg(0), *passes)
}

func runPack(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	keyfile := fs.String("keyfile", "", "read passphrase from this file instead of prompting")
	aeadFlag := fs.Int("aead", int(primitives.AlgorithmXChaCha20Poly1305), "AEAD algorithm: 1=XChaCha20-Poly1305 2=AES-256-GCM 3=Deoxys-II-256")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("dexios: pack requires <srcdir> <out>")
	}
	srcDir, outPath := fs.Arg(0), fs.Arg(1)

	algo := primitives.Algorithm(*aeadFlag)
	if !algo.Valid() {
		return fmt.Errorf("%w: unknown --aead value %d", dexerr.ErrHeaderFormat, *aeadFlag)
	}

	tmp, err := os.CreateTemp("", "dexios-pack-*.zip")
	if err != nil {
		return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := pack.Pack(srcDir, tmp); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
	}

	passphrase, err := resolvePassphrase(*keyfile, true)
	if err != nil {
		tmp.Close()
		return err
	}
	defer passphrase.Close()

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o600)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("%w: create %s: %v", dexerr.ErrIO, outPath, err)
	}
	defer out.Close()

	err = engine.EncryptFile(ctx, tmp, out, passphrase, algo)
	tmp.Close()
	return err
}

func runUnpack(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("unpack", flag.ExitOnError)
	keyfile := fs.String("keyfile", "", "read passphrase from this file instead of prompting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("dexios: unpack requires <in> <destdir>")
	}
	inPath, destDir := fs.Arg(0), fs.Arg(1)

	passphrase, err := resolvePassphrase(*keyfile, false)
	if err != nil {
		return err
	}
	defer passphrase.Close()

	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", dexerr.ErrIO, inPath, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp("", "dexios-unpack-*.zip")
	if err != nil {
		return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := engine.DecryptFile(ctx, in, tmp, passphrase); err != nil {
		tmp.Close()
		return err
	}

	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", dexerr.ErrIO, err)
	}
	err = pack.Unpack(tmp, info.Size(), destDir)
	tmp.Close()
	return err
}

func runHeader(ctx context.Context, args []string) error {
	_ = ctx
	if len(args) < 1 {
		return errors.New("dexios: header requires a subcommand: dump, restore, strip, details")
	}
	switch args[0] {
	case "dump":
		if len(args) != 3 {
			return errors.New("dexios: header dump requires <file> <sidecar>")
		}
		src, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", dexerr.ErrIO, args[1], err)
		}
		defer src.Close()
		sidecar, err := os.OpenFile(args[2], os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("%w: create %s: %v", dexerr.ErrIO, args[2], err)
		}
		defer sidecar.Close()
		return engine.HeaderDump(src, sidecar)

	case "restore":
		if len(args) != 3 {
			return errors.New("dexios: header restore requires <file> <sidecar>")
		}
		sidecar, err := os.Open(args[2])
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", dexerr.ErrIO, args[2], err)
		}
		defer sidecar.Close()
		dst, err := os.OpenFile(args[1], os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", dexerr.ErrIO, args[1], err)
		}
		defer dst.Close()
		return engine.HeaderRestore(sidecar, dst)

	case "strip":
		if len(args) != 2 {
			return errors.New("dexios: header strip requires <file>")
		}
		f, err := os.OpenFile(args[1], os.O_RDWR, 0)
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", dexerr.ErrIO, args[1], err)
		}
		defer f.Close()
		return engine.HeaderStrip(f)

	case "details":
		if len(args) != 2 {
			return errors.New("dexios: header details requires <file>")
		}
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("%w: open %s: %v", dexerr.ErrIO, args[1], err)
		}
		defer f.Close()
		info, err := engine.HeaderDetails(f)
		if err != nil {
			return err
		}
		fmt.Printf("version: %s\nalgorithm: %s\nmode: %s\npopulated slots: %d\n",
			info.Version, info.Algorithm, info.Mode, info.PopulatedSlots)
		return nil

	default:
		return fmt.Errorf("dexios: unknown header subcommand %q", args[0])
	}
}

func runKey(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("dexios: key requires a subcommand: add, del, change")
	}
	sub := args[0]

	fs := flag.NewFlagSet("key "+sub, flag.ExitOnError)
	oldKeyfile := fs.String("old", "", "read the current passphrase from this file instead of prompting")
	newKeyfile := fs.String("new", "", "read the new passphrase from this file instead of prompting")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("dexios: key %s requires <file>", sub)
	}
	path := fs.Arg(0)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", dexerr.ErrIO, path, err)
	}
	defer f.Close()

	switch sub {
	case "add":
		current, err := resolvePassphrase(*oldKeyfile, false)
		if err != nil {
			return err
		}
		defer current.Close()
		next, err := resolvePassphraseNamed(*newKeyfile, "Enter the new passphrase: ", "Confirm the new passphrase: ")
		if err != nil {
			return err
		}
		defer next.Close()
		return engine.KeyAdd(ctx, f, current, next)

	case "del":
		current, err := resolvePassphrase(*oldKeyfile, false)
		if err != nil {
			return err
		}
		defer current.Close()
		return engine.KeyDelete(ctx, f, current)

	case "change":
		current, err := resolvePassphrase(*oldKeyfile, false)
		if err != nil {
			return err
		}
		defer current.Close()
		next, err := resolvePassphraseNamed(*newKeyfile, "Enter the new passphrase: ", "Confirm the new passphrase: ")
		if err != nil {
			return err
		}
		defer next.Close()
		return engine.KeyChange(ctx, f, current, next)

	default:
		return fmt.Errorf("dexios: unknown key subcommand %q", sub)
	}
}

// resolvePassphraseNamed is resolvePassphrase with prompts tailored for
// the "new passphrase" side of key add/change, so the two prompts in a
// single invocation aren't both "Enter a passphrase:".
func resolvePassphraseNamed(keyfile, prompt, confirmPrompt string) (*secret.Secret, error) {
	if keyfile != "" {
		data, err := os.ReadFile(keyfile)
		if err != nil {
			return nil, fmt.Errorf("%w: read keyfile: %v", dexerr.ErrIO, err)
		}
		return secret.New(data), nil
	}
	if env, ok := os.LookupEnv("DEXIOS_KEY"); ok && env != "" {
		return secret.New([]byte(env)), nil
	}
	return readPasswordConfirm(prompt, confirmPrompt)
}
