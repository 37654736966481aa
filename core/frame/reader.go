// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package frame implements the CATS frame reader/writer (spec.md
// §4.1/§4.2): one action-id tag byte dispatches to a variant-specific
// head parser, following the same tagged-dispatch shape
// wire.Session.RecvCommand / SendCommand present to client2/connection.go
// (a type switch over core/wire/commands.Command).
package frame

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/compressor"
	"github.com/cifrazia/cats-go/core/errs"
)

// Reader reads CATS actions off a byte stream.
type Reader struct {
	r         *bufio.Reader
	threshold int64
}

// NewReader wraps r. threshold <= 0 selects InMemoryThreshold.
func NewReader(r io.Reader, threshold int64) *Reader {
	if threshold <= 0 {
		threshold = InMemoryThreshold
	}
	return &Reader{r: bufio.NewReader(r), threshold: threshold}
}

func (fr *Reader) readU8() (uint8, error) {
	b, err := fr.r.ReadByte()
	return b, err
}

func (fr *Reader) readU16() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(fr.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (fr *Reader) readU32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(fr.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (fr *Reader) readU64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(fr.r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// ReadAction reads one action off the wire: the tag byte, its fixed
// head, and (for payload-bearing variants) the framed blob or stream
// chunks. decodeHeaders decodes the Headers bytes found in any blob.
func (fr *Reader) ReadAction(decodeHeaders func([]byte) (action.Headers, error)) (action.Envelope, error) {
	tag, err := fr.readU8()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}

	switch action.ID(tag) {
	case action.KindAction:
		return fr.readAction(decodeHeaders)
	case action.KindStreamAction:
		return fr.readStreamAction(decodeHeaders)
	case action.KindInputAction:
		return fr.readInputAction(decodeHeaders)
	case action.KindDownloadSpeed:
		speed, err := fr.readU32()
		if err != nil {
			return nil, errs.NewTransportError(err)
		}
		return &action.DownloadSpeedAction{Speed: speed}, nil
	case action.KindCancelInput:
		mid, err := fr.readU16()
		if err != nil {
			return nil, errs.NewTransportError(err)
		}
		return &action.CancelInputAction{MessageID: mid}, nil
	case action.KindPing:
		t, err := fr.readU64()
		if err != nil {
			return nil, errs.NewTransportError(err)
		}
		return &action.PingAction{SendTime: t}, nil
	case action.KindStartEncrypt:
		return &action.StartEncryption{}, nil
	case action.KindStopEncrypt:
		return &action.StopEncryption{}, nil
	default:
		return nil, errs.NewProtocolError("frame: unknown action id %#x", tag)
	}
}

func (fr *Reader) readAction(decodeHeaders func([]byte) (action.Headers, error)) (*action.Action, error) {
	handlerID, err := fr.readU16()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	messageID, err := fr.readU16()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	sendTime, err := fr.readU64()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	dataType, err := fr.readU8()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	compressorID, err := fr.readU8()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	dataLen, err := fr.readU32()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}

	blob, err := readBlob(fr.r, dataLen, fr.threshold)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	headers, herr := decodeHeaders(blob.Headers)
	payload, berr := blob.Body.Bytes()
	if herr != nil {
		return nil, errs.NewProtocolError("frame: decoding headers: %w", herr)
	}
	if berr != nil {
		return nil, errs.NewTransportError(berr)
	}

	return &action.Action{
		HandlerID:  handlerID,
		MessageID:  messageID,
		SendTime:   sendTime,
		DataType:   dataType,
		Compressor: compressorID,
		Headers:    headers,
		Payload:    payload,
	}, nil
}

func (fr *Reader) readInputAction(decodeHeaders func([]byte) (action.Headers, error)) (*action.InputAction, error) {
	messageID, err := fr.readU16()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	dataType, err := fr.readU8()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	compressorID, err := fr.readU8()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	dataLen, err := fr.readU32()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}

	blob, err := readBlob(fr.r, dataLen, fr.threshold)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	headers, herr := decodeHeaders(blob.Headers)
	payload, berr := blob.Body.Bytes()
	if herr != nil {
		return nil, errs.NewProtocolError("frame: decoding headers: %w", herr)
	}
	if berr != nil {
		return nil, errs.NewTransportError(berr)
	}

	return &action.InputAction{
		MessageID:  messageID,
		DataType:   dataType,
		Compressor: compressorID,
		Headers:    headers,
		Payload:    payload,
	}, nil
}

// readStreamAction implements spec.md §4.1's different stream framing:
// head, then `u32 headers_size, headers_bytes`, then zero or more
// `(u32 chunk_size, chunk_size bytes)` pairs terminated by a
// `0x00000000` sentinel. Each chunk on the wire was compressed
// independently of the others, so each is decompressed as it's read;
// codec decoding of DataType only applies once the caller has
// concatenated the (now plain) chunks back together.
func (fr *Reader) readStreamAction(decodeHeaders func([]byte) (action.Headers, error)) (*action.StreamAction, error) {
	handlerID, err := fr.readU16()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	messageID, err := fr.readU16()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	sendTime, err := fr.readU64()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	dataType, err := fr.readU8()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	compressorID, err := fr.readU8()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}

	headersSize, err := fr.readU32()
	if err != nil {
		return nil, errs.NewTransportError(err)
	}
	headerBytes := make([]byte, headersSize)
	if _, err := io.ReadFull(fr.r, headerBytes); err != nil {
		return nil, errs.NewTransportError(err)
	}
	headers, herr := decodeHeaders(headerBytes)

	var chunks [][]byte
	for {
		chunkSize, err := fr.readU32()
		if err != nil {
			return nil, errs.NewTransportError(err)
		}
		if chunkSize == 0 {
			break
		}
		chunk, err := readSpillable(fr.r, int64(chunkSize), fr.threshold)
		if err != nil {
			return nil, errs.NewTransportError(err)
		}
		b, err := chunk.Bytes()
		chunk.Close()
		if err != nil {
			return nil, errs.NewTransportError(err)
		}
		dec, derr := compressor.Decompress(compressor.ID(compressorID), b)
		if derr != nil {
			return nil, errs.NewProtocolError("frame: decompressing stream chunk: %w", derr)
		}
		chunks = append(chunks, dec)
	}

	if herr != nil {
		return nil, errs.NewProtocolError("frame: decoding stream headers: %w", herr)
	}

	return &action.StreamAction{
		HandlerID:  handlerID,
		MessageID:  messageID,
		SendTime:   sendTime,
		DataType:   dataType,
		Compressor: compressorID,
		Headers:    headers,
		Chunks:     chunks,
	}, nil
}
