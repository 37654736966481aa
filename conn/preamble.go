// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"encoding/binary"
	"io"

	"github.com/cifrazia/cats-go/core/errs"
)

// maxStatementSize bounds a STATEMENT_EXCHANGE payload: statements are
// a handful of scalar fields, never megabytes. A peer declaring more
// is malformed, not merely large.
const maxStatementSize = 1 << 20

func writeU32Raw(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return errs.NewTransportError(err)
}

func readU32Raw(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, errs.NewTransportError(err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeLenPrefixed(w io.Writer, b []byte) error {
	if err := writeU32Raw(w, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return errs.NewTransportError(err)
}

func readLenPrefixed(r io.Reader, maxLen uint32) ([]byte, error) {
	n, err := readU32Raw(r)
	if err != nil {
		return nil, err
	}
	if n > maxLen {
		return nil, errs.NewProtocolError("conn: declared length %d exceeds limit %d", n, maxLen)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errs.NewTransportError(err)
	}
	return b, nil
}
