// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/codec"
	"github.com/cifrazia/cats-go/core/compressor"
	"github.com/cifrazia/cats-go/core/errs"
	"github.com/cifrazia/cats-go/core/schemeformat"
)

// decodeHeaders implements the frame.Reader headers callback: Headers
// are a short ASCII-name to JSON-scalar/array mapping encoded in the
// connection's negotiated scheme format (spec.md §4.1).
func (c *Connection) decodeHeaders(b []byte) (action.Headers, error) {
	if len(b) == 0 {
		return action.Headers{}, nil
	}
	h := action.Headers{}
	if err := schemeformat.Unmarshal(c.activeFormat, b, &h); err != nil {
		return nil, err
	}
	return h, nil
}

// encodeHeaders implements the frame.Writer headers callback.
func (c *Connection) encodeHeaders(h action.Headers) ([]byte, error) {
	if len(h) == 0 {
		return nil, nil
	}
	return schemeformat.Marshal(c.activeFormat, h)
}

// decodePayload decompresses and decodes an inbound payload per
// spec.md §4.3 step 2: "decompress using compressor from head; decode
// using data_type and the peer's scheme format; for Files payloads,
// split the buffer per the Files header list." headers is consulted
// for the Offset invariant (spec.md §4.1: "Offset header ... must be
// non-negative and ≤ payload length"), checked against len(raw): for an
// Action, the payload bytes after the headers separator, before
// decompression (data_len in the frame head also counts the headers
// and the separator).
func (c *Connection) decodePayload(headers action.Headers, dataType uint8, compressorID uint8, raw []byte) (codec.Payload, error) {
	if offset, ok := headers.Offset(); ok {
		if offset < 0 || offset > int64(len(raw)) {
			return codec.Payload{}, errs.NewProtocolError("conn: Offset %d out of range for payload of length %d", offset, len(raw))
		}
	}

	dec, err := compressor.Decompress(compressor.ID(compressorID), raw)
	if err != nil {
		return codec.Payload{}, errs.NewProtocolError("conn: decompressing payload: %w", err)
	}

	switch codec.Type(dataType) {
	case codec.Binary:
		return codec.Payload{Type: codec.Binary, Bytes: codec.DecodeBinary(dec)}, nil
	case codec.Scheme:
		var v interface{}
		if err := codec.DecodeScheme(c.activeFormat, dec, &v); err != nil {
			return codec.Payload{}, errs.NewProtocolError("conn: decoding Scheme payload: %w", err)
		}
		return codec.Payload{Type: codec.Scheme, Scheme: v}, nil
	case codec.ByteScheme:
		var v interface{}
		if err := codec.DecodeByteScheme(dec, &v); err != nil {
			return codec.Payload{}, errs.NewProtocolError("conn: decoding ByteScheme payload: %w", err)
		}
		return codec.Payload{Type: codec.ByteScheme, Bytes: dec, Scheme: v}, nil
	case codec.Files:
		header, buf, err := codec.UnpackFilesPayload(dec)
		if err != nil {
			return codec.Payload{}, errs.NewProtocolError("conn: unpacking Files payload: %w", err)
		}
		files, _, err := codec.DecodeFiles(c.activeFormat, header, buf)
		if err != nil {
			return codec.Payload{}, errs.NewProtocolError("conn: decoding Files payload: %w", err)
		}
		var sum int64
		for _, fe := range files {
			sum += fe.Size
		}
		if sum != int64(len(buf)) {
			return codec.Payload{}, errs.NewProtocolError("conn: Files header sizes sum to %d, payload carries %d", sum, len(buf))
		}
		return codec.Payload{Type: codec.Files, Files: files, Buffer: buf}, nil
	default:
		return codec.Payload{}, errs.NewProtocolError("conn: unknown data type %#x", dataType)
	}
}

// encodePayload is the outbound half of the codec/compression pipeline
// (spec.md §4.3 step 1-3): encode to bytes under the negotiated scheme
// format, apply the Offset header if the caller set one (trimming
// already-possessed bytes off the front, re-serializing the Files
// header with exhausted entries omitted per spec.md §4.1/§6.1), then
// pick a compressor by the peer's preference order, availability, and
// the skip-small-payloads heuristic.
func (c *Connection) encodePayload(p codec.Payload, headers action.Headers) (dataType uint8, compressorID uint8, raw []byte, err error) {
	offset, hasOffset := headers.Offset()

	var plain []byte
	switch p.Type {
	case codec.Binary:
		b := p.Bytes
		if hasOffset {
			if offset < 0 || offset > int64(len(b)) {
				err = errs.NewValidationError("conn: Offset %d out of range for payload of length %d", offset, len(b))
				break
			}
			b = b[offset:]
		}
		plain = codec.EncodeBinary(b)
	case codec.Scheme:
		if hasOffset && offset != 0 {
			err = errs.NewValidationError("conn: Offset is not supported for Scheme payloads")
			break
		}
		plain, err = codec.EncodeScheme(c.activeFormat, p.Scheme)
	case codec.ByteScheme:
		if hasOffset && offset != 0 {
			err = errs.NewValidationError("conn: Offset is not supported for ByteScheme payloads")
			break
		}
		plain, err = codec.EncodeByteScheme(p.Scheme)
	case codec.Files:
		files, buf := p.Files, p.Buffer
		if hasOffset {
			if offset < 0 || offset > int64(len(buf)) {
				err = errs.NewValidationError("conn: Offset %d out of range for payload of length %d", offset, len(buf))
				break
			}
			files, buf = codec.ApplyOffset(files, buf, offset)
		}
		contents, serr := codec.SplitBufferByFiles(files, buf)
		if serr != nil {
			err = serr
			break
		}
		var header []byte
		header, plain, err = codec.EncodeFiles(c.activeFormat, files, contents)
		if err == nil {
			plain = codec.PackFilesPayload(header, plain)
		}
	default:
		err = errs.NewProtocolError("conn: unknown payload type %v", p.Type)
	}
	if err != nil {
		return 0, 0, nil, err
	}

	chosen := compressor.Choose(c.compressorPreference(), c.supportedCompressors, len(plain), false)
	compressed, cerr := compressor.Compress(chosen, plain)
	if cerr != nil {
		return 0, 0, nil, errs.NewTransportError(cerr)
	}
	return uint8(p.Type), uint8(chosen), compressed, nil
}

// compressorPreference orders candidate compressors for Choose: the
// peer's declared default_compression, if any, ahead of its general
// compressors list (spec.md §3's Statement: "optional
// default_compression: compressor-id"), falling back to the plain
// preference order when the peer named no default.
func (c *Connection) compressorPreference() []compressor.ID {
	if c.peerDefaultCompression == nil {
		return c.peerCompressors
	}
	preferred := make([]compressor.ID, 0, len(c.peerCompressors)+1)
	preferred = append(preferred, *c.peerDefaultCompression)
	preferred = append(preferred, c.peerCompressors...)
	return preferred
}
