// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package frame

import (
	"bytes"
	"io"
	"os"
)

// InMemoryThreshold is the default size above which a payload blob is
// spilled to a temporary file instead of being buffered in memory
// (spec.md §4.1: "default ~8 MiB").
const InMemoryThreshold = 8 * 1024 * 1024

// Spillable holds a byte blob either in memory or, once it exceeds a
// threshold, in a temporary file so the reader never has to hold an
// arbitrarily large payload in RAM just to frame it.
type Spillable struct {
	off  int64
	size int64
	mem  []byte
	file *os.File
}

// readSpillable reads exactly n bytes from r, buffering in memory when
// n <= threshold and spilling to a temp file otherwise. It always
// consumes exactly n bytes from r (or fails trying), so a caller that
// defers interpretation of the blob to a later step never desynchronizes
// the underlying stream.
func readSpillable(r io.Reader, n int64, threshold int64) (*Spillable, error) {
	if n <= threshold {
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return &Spillable{size: n, mem: buf}, nil
	}
	f, err := os.CreateTemp("", "cats-spill-*")
	if err != nil {
		return nil, err
	}
	if _, err := io.CopyN(f, r, n); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &Spillable{size: n, file: f}, nil
}

// Size returns the blob's byte length.
func (s *Spillable) Size() int64 { return s.size }

// Reader returns a fresh reader over the blob, from its start.
func (s *Spillable) Reader() io.Reader {
	if s.file != nil {
		return io.NewSectionReader(s.file, s.off, s.size)
	}
	return bytes.NewReader(s.mem)
}

// Bytes materializes the whole blob in memory. Cheap when the blob
// never spilled; otherwise reads the temp file back in.
func (s *Spillable) Bytes() ([]byte, error) {
	if s.file == nil {
		return s.mem, nil
	}
	return io.ReadAll(s.Reader())
}

// Slice returns a view of the blob starting at byte offset off,
// sharing the same backing file (if spilled) without copying.
func (s *Spillable) Slice(off int64) *Spillable {
	if off >= s.size {
		if s.file != nil {
			return &Spillable{file: s.file, off: s.off + s.size, size: 0}
		}
		return &Spillable{mem: nil, size: 0}
	}
	if s.file != nil {
		return &Spillable{file: s.file, off: s.off + off, size: s.size - off}
	}
	return &Spillable{mem: s.mem[off:], size: s.size - off}
}

// Close releases the backing temp file, if any. A no-op for in-memory
// blobs. A slice of a spilled blob shares its file, so closing the slice
// closes and removes that file.
func (s *Spillable) Close() error {
	if s.file != nil {
		name := s.file.Name()
		err := s.file.Close()
		if rmErr := os.Remove(name); err == nil {
			err = rmErr
		}
		return err
	}
	return nil
}

// splitOnDoubleZero scans b for the first 0x00 0x00 byte pair,
// returning the offset immediately after the pair. Used to split the
// single payload envelope `headers_utf8 ++ 0x00 0x00 ++ payload_bytes`
// (spec.md §4.1). Returns -1 if no separator is present.
func splitOnDoubleZero(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == 0 && b[i+1] == 0 {
			return i + 2
		}
	}
	return -1
}
