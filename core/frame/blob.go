// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package frame

import (
	"io"

	"github.com/cifrazia/cats-go/core/errs"
)

// headerScanLimit bounds how much of a blob we search for the 0x0000
// header/payload separator before giving up. Headers are short ASCII
// by construction; a separator not found within this prefix means the
// frame is malformed, not that headers happen to be enormous.
const headerScanLimit = 1 << 20

// Blob is a parsed `headers_utf8 ++ 0x0000 ++ payload` envelope
// (spec.md §4.1). Body may be backed by a temp file for large payloads
// (see Spillable).
type Blob struct {
	Headers []byte
	Body    *Spillable
}

// Close releases the blob's temp-file backing, if any.
func (b *Blob) Close() error {
	if b.Body == nil {
		return nil
	}
	return b.Body.Close()
}

// readBlob reads exactly dataLen bytes from r and splits them into
// headers and payload on the first 0x0000 separator. It always
// consumes dataLen bytes from r, even when the separator is missing,
// so a malformed frame never desynchronizes the stream (spec.md §4.1).
func readBlob(r io.Reader, dataLen uint32, threshold int64) (*Blob, error) {
	raw, err := readSpillable(r, int64(dataLen), threshold)
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	scanLen := raw.Size()
	if scanLen > headerScanLimit {
		scanLen = headerScanLimit
	}
	prefix := make([]byte, scanLen)
	if _, err := io.ReadFull(raw.Reader(), prefix); err != nil {
		raw.Close()
		return nil, errs.NewTransportError(err)
	}
	idx := splitOnDoubleZero(prefix)
	if idx == -1 {
		raw.Close()
		return nil, errs.NewProtocolError("frame: no header/payload separator in %d-byte blob", dataLen)
	}
	headers := make([]byte, idx-2)
	copy(headers, prefix[:idx-2])
	return &Blob{Headers: headers, Body: raw.Slice(int64(idx))}, nil
}

// writeBlob assembles `headers ++ 0x0000 ++ payload` into one []byte,
// the shape the frame writer emits as a single framed blob
// (spec.md §4.2).
func writeBlob(headers []byte, payload []byte) []byte {
	out := make([]byte, 0, len(headers)+2+len(payload))
	out = append(out, headers...)
	out = append(out, 0, 0)
	out = append(out, payload...)
	return out
}
