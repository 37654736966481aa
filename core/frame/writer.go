// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package frame

import (
	"encoding/binary"
	"io"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/compressor"
	"github.com/cifrazia/cats-go/core/errs"
)

// Writer emits CATS actions onto a byte stream. Callers are
// responsible for serializing concurrent writers (spec.md §4.2: "the
// only mutable shared resource on the send path" is the per-connection
// write lock; Writer itself holds none).
type Writer struct {
	w io.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (fw *Writer) writeU8(v uint8) error {
	_, err := fw.w.Write([]byte{v})
	return err
}

func (fw *Writer) writeU16(v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := fw.w.Write(b[:])
	return err
}

func (fw *Writer) writeU32(v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := fw.w.Write(b[:])
	return err
}

func (fw *Writer) writeU64(v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, err := fw.w.Write(b[:])
	return err
}

// WriteAction writes one action envelope, framing its headers/payload
// as specified by encodeHeaders.
func (fw *Writer) WriteAction(a action.Envelope, encodeHeaders func(action.Headers) ([]byte, error)) error {
	switch v := a.(type) {
	case *action.Action:
		return fw.writePlain(v, encodeHeaders)
	case *action.InputAction:
		return fw.writeInput(v, encodeHeaders)
	case *action.StreamAction:
		return fw.writeStream(v, encodeHeaders)
	case *action.DownloadSpeedAction:
		if err := fw.writeU8(uint8(action.KindDownloadSpeed)); err != nil {
			return errs.NewTransportError(err)
		}
		return errs.NewTransportError(fw.writeU32(v.Speed))
	case *action.CancelInputAction:
		if err := fw.writeU8(uint8(action.KindCancelInput)); err != nil {
			return errs.NewTransportError(err)
		}
		return errs.NewTransportError(fw.writeU16(v.MessageID))
	case *action.PingAction:
		if err := fw.writeU8(uint8(action.KindPing)); err != nil {
			return errs.NewTransportError(err)
		}
		return errs.NewTransportError(fw.writeU64(v.SendTime))
	case *action.StartEncryption:
		return errs.NewTransportError(fw.writeU8(uint8(action.KindStartEncrypt)))
	case *action.StopEncryption:
		return errs.NewTransportError(fw.writeU8(uint8(action.KindStopEncrypt)))
	default:
		return errs.NewProtocolError("frame: cannot write unknown action type %T", a)
	}
}

func (fw *Writer) writePlain(a *action.Action, encodeHeaders func(action.Headers) ([]byte, error)) error {
	headerBytes, err := encodeHeaders(a.Headers)
	if err != nil {
		return err
	}
	blob := writeBlob(headerBytes, a.Payload)

	if err := fw.writeU8(uint8(action.KindAction)); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU16(a.HandlerID); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU16(a.MessageID); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU64(a.SendTime); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU8(a.DataType); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU8(a.Compressor); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU32(uint32(len(blob))); err != nil {
		return errs.NewTransportError(err)
	}
	_, err = fw.w.Write(blob)
	return errs.NewTransportError(err)
}

func (fw *Writer) writeInput(a *action.InputAction, encodeHeaders func(action.Headers) ([]byte, error)) error {
	headerBytes, err := encodeHeaders(a.Headers)
	if err != nil {
		return err
	}
	blob := writeBlob(headerBytes, a.Payload)

	if err := fw.writeU8(uint8(action.KindInputAction)); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU16(a.MessageID); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU8(a.DataType); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU8(a.Compressor); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU32(uint32(len(blob))); err != nil {
		return errs.NewTransportError(err)
	}
	_, err = fw.w.Write(blob)
	return errs.NewTransportError(err)
}

// writeStream frames a StreamAction per spec.md §4.1: a head, the
// headers blob, then zero or more (u32 size, size bytes) chunk pairs
// terminated by a zero-length sentinel. Each chunk is compressed
// independently with a.Compressor rather than as a whole, so the
// receiver can decompress (and the sender produce) chunks one at a
// time instead of buffering the entire stream.
func (fw *Writer) writeStream(a *action.StreamAction, encodeHeaders func(action.Headers) ([]byte, error)) error {
	headerBytes, err := encodeHeaders(a.Headers)
	if err != nil {
		return err
	}

	if err := fw.writeU8(uint8(action.KindStreamAction)); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU16(a.HandlerID); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU16(a.MessageID); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU64(a.SendTime); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU8(a.DataType); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU8(a.Compressor); err != nil {
		return errs.NewTransportError(err)
	}
	if err := fw.writeU32(uint32(len(headerBytes))); err != nil {
		return errs.NewTransportError(err)
	}
	if _, err := fw.w.Write(headerBytes); err != nil {
		return errs.NewTransportError(err)
	}
	for _, chunk := range a.Chunks {
		if len(chunk) == 0 {
			continue
		}
		compressed, cerr := compressor.Compress(compressor.ID(a.Compressor), chunk)
		if cerr != nil {
			return errs.NewTransportError(cerr)
		}
		if err := fw.writeU32(uint32(len(compressed))); err != nil {
			return errs.NewTransportError(err)
		}
		if _, err := fw.w.Write(compressed); err != nil {
			return errs.NewTransportError(err)
		}
	}
	return errs.NewTransportError(fw.writeU32(0))
}
