// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// maxLineSize bounds a single ledger line (1 MiB covers the largest
// prediction payloads by a wide margin).
const maxLineSize = 1 << 20

// ErrStopIteration lets a line callback end the scan early without error.
var ErrStopIteration = errors.New("stop iteration")

// Ledger is an append-only JSONL file. When a Cipher is attached every
// appended line is sealed; reads transparently unwrap encrypted lines and
// still accept cleartext ones.
type Ledger struct {
	Path   string
	Cipher *Cipher
}

// Append marshals v and appends it as one line, fsyncing before return.
func (l *Ledger) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling ledger entry: %w", err)
	}
	return l.AppendRaw(line)
}

// AppendRaw appends an already-marshaled JSON line.
func (l *Ledger) AppendRaw(line []byte) error {
	if l.Cipher != nil {
		sealed, err := l.Cipher.EncryptLine(line)
		if err != nil {
			return err
		}
		line = sealed
	}

	if err := os.MkdirAll(filepath.Dir(l.Path), 0750); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}
	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return fmt.Errorf("opening ledger %s: %w", l.Path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending to ledger %s: %w", l.Path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing ledger %s: %w", l.Path, err)
	}
	return nil
}

// Scan calls fn with the cleartext bytes of every parseable line, in file
// order. Blank lines are skipped. A torn or corrupt final line (crash
// mid-append) is tolerated silently; corrupt interior lines are skipped as
// well, matching append-only recovery semantics. A missing file yields
// zero lines and no error.
func (l *Ledger) Scan(fn func(line []byte) error) error {
	f, err := os.Open(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening ledger %s: %w", l.Path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		clear, ok := l.decode(line)
		if !ok {
			continue
		}
		if err := fn(clear); err != nil {
			if errors.Is(err, ErrStopIteration) {
				return nil
			}
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning ledger %s: %w", l.Path, err)
	}
	return nil
}

// decode unwraps one raw line to cleartext JSON. Returns ok=false for
// lines that are not valid JSON or fail decryption.
func (l *Ledger) decode(line []byte) ([]byte, bool) {
	if !json.Valid(line) {
		return nil, false
	}
	if l.Cipher != nil {
		clear, err := l.Cipher.DecryptLine(line)
		if err == nil {
			return clear, true
		}
		if !errors.Is(err, ErrNotEncrypted) {
			return nil, false
		}
		// Cleartext line in an encrypted ledger: legacy entry, accept it.
	}
	return line, true
}

// ScanInto decodes each line into a fresh value produced by newV and hands
// it to fn. Lines that fail to unmarshal into the target type are skipped.
func ScanInto[T any](l *Ledger, fn func(entry T) error) error {
	return l.Scan(func(line []byte) error {
		var entry T
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil
		}
		return fn(entry)
	})
}

// ReadAll collects every decodable entry of type T in file order.
func ReadAll[T any](l *Ledger) ([]T, error) {
	var out []T
	err := ScanInto(l, func(entry T) error {
		out = append(out, entry)
		return nil
	})
	return out, err
}

// Rewrite atomically replaces the ledger contents with the given entries,
// sealing each line when a Cipher is attached. Used by compaction paths
// (label pool latest-wins rewrites).
func (l *Ledger) Rewrite(entries []any) error {
	var buf bytes.Buffer
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshaling ledger entry: %w", err)
		}
		if l.Cipher != nil {
			if line, err = l.Cipher.EncryptLine(line); err != nil {
				return err
			}
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return AtomicWriteFile(l.Path, buf.Bytes(), 0640)
}

// Exists reports whether the ledger file is present on disk.
func (l *Ledger) Exists() bool {
	_, err := os.Stat(l.Path)
	return err == nil
}

// CopyFile copies src to dst (same filesystem not required), fsyncing dst.
// Model artifacts move through this during promotion and archiving.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return fmt.Errorf("creating directory for %s: %w", dst, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying %s to %s: %w", src, dst, err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", dst, err)
	}
	return nil
}
