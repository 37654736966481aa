// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package compressor implements the CATS compressor registry: none,
// gzip and zlib, plus the proposal heuristic from spec.md §4.3/§6.1.
// Compression uses klauspost/compress's drop-in gzip and zlib
// implementations rather than the standard library's, the way the
// corpus's rate/compression-heavy backup agent does for the same
// concern.
package compressor

import (
	"bytes"
	"fmt"
	"io"

	kgzip "github.com/klauspost/compress/gzip"
	kzlib "github.com/klauspost/compress/zlib"
)

// ID identifies a compressor on the wire.
type ID uint8

const (
	None ID = 0x00
	Gzip ID = 0x01
	Zlib ID = 0x02
)

func (id ID) String() string {
	switch id {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zlib:
		return "zlib"
	default:
		return fmt.Sprintf("compressor(%#x)", uint8(id))
	}
}

// MinCompressSize is the payload-size threshold below which the
// heuristic skips compression: spec.md §6.1's "4 KiB".
const MinCompressSize = 4 * 1024

// compressLevel is used for both gzip and zlib: spec.md §6.1 pins both
// to "level 6".
const compressLevel = 6

// Compress encodes p with the compressor named by id. None is a no-op.
func Compress(id ID, p []byte) ([]byte, error) {
	switch id {
	case None:
		return p, nil
	case Gzip:
		buf := &bytes.Buffer{}
		w, err := kgzip.NewWriterLevel(buf, compressLevel)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(p); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case Zlib:
		buf := &bytes.Buffer{}
		w, err := kzlib.NewWriterLevel(buf, compressLevel)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(p); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("compressor: unknown id %v", id)
	}
}

// Decompress decodes p, previously encoded by Compress(id, ...).
func Decompress(id ID, p []byte) ([]byte, error) {
	switch id {
	case None:
		return p, nil
	case Gzip:
		r, err := kgzip.NewReader(bytes.NewReader(p))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case Zlib:
		r, err := kzlib.NewReader(bytes.NewReader(p))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("compressor: unknown id %v", id)
	}
}

// ShouldPropose reports whether the heuristic would propose compressing
// a payload of payloadLen bytes. It never proposes compression for data
// already identified as compressed (spec.md §6.1: "Files with entries
// already identified as compressed by MIME").
func ShouldPropose(payloadLen int, alreadyCompressed bool) bool {
	if alreadyCompressed {
		return false
	}
	return payloadLen >= MinCompressSize
}

// Choose selects the first compressor in preferred (the peer's
// advertised order) that the local side supports, honoring the
// skip-heuristic. It returns None if nothing qualifies.
func Choose(preferred []ID, supported map[ID]bool, payloadLen int, alreadyCompressed bool) ID {
	if !ShouldPropose(payloadLen, alreadyCompressed) {
		return None
	}
	for _, id := range preferred {
		if id == None {
			continue
		}
		if supported[id] {
			return id
		}
	}
	return None
}
