// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package codec implements the CATS payload data types: Binary,
// Scheme, Files and ByteScheme (spec.md §4.3/§6.1). Encoding/decoding
// of the "compact byte-scheme" variant goes through
// github.com/fxamacker/cbor/v2, the same library server/cborplugin and
// stream packages use to frame typed Go values as compact binary
// records.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/cifrazia/cats-go/core/schemeformat"
)

// Type identifies the interpretation of a payload's bytes.
type Type uint8

const (
	Binary     Type = 0x00
	Scheme     Type = 0x01
	Files      Type = 0x02
	ByteScheme Type = 0x03
)

func (t Type) String() string {
	switch t {
	case Binary:
		return "Binary"
	case Scheme:
		return "Scheme"
	case Files:
		return "Files"
	case ByteScheme:
		return "ByteScheme"
	default:
		return fmt.Sprintf("Type(%#x)", uint8(t))
	}
}

// Payload is the discriminated union every decoded action payload is
// normalized into. Type selects which of the typed fields are
// meaningful.
type Payload struct {
	Type   Type
	Bytes  []byte      // Binary: the bytes; ByteScheme: the raw CBOR bytes as received
	Scheme interface{} // Scheme, ByteScheme: decoded structured value
	Files  []FileEntry // Files: file metadata
	Buffer []byte      // Files: concatenated file bytes in Files order
}

// FileEntry describes one file within a Files payload.
type FileEntry struct {
	Key  string `json:"key" yaml:"key" toml:"key"`
	Name string `json:"name" yaml:"name" toml:"name"`
	Size int64  `json:"size" yaml:"size" toml:"size"`
	Type string `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
}

type filesHeader struct {
	Files []FileEntry `json:"Files" yaml:"Files" toml:"Files"`
}

// EncodeBinary wraps raw bytes as a Binary payload; no transform.
func EncodeBinary(b []byte) []byte { return b }

// DecodeBinary is the identity decode for Binary payloads.
func DecodeBinary(b []byte) []byte { return b }

// EncodeScheme serializes v under format f for a Scheme payload.
func EncodeScheme(f schemeformat.Format, v interface{}) ([]byte, error) {
	return schemeformat.Marshal(f, v)
}

// DecodeScheme deserializes a Scheme payload under format f into v.
func DecodeScheme(f schemeformat.Format, b []byte, v interface{}) error {
	return schemeformat.Unmarshal(f, b, v)
}

// EncodeByteScheme CBOR-encodes v for a ByteScheme payload.
func EncodeByteScheme(v interface{}) ([]byte, error) {
	return cbor.Marshal(v)
}

// DecodeByteScheme CBOR-decodes a ByteScheme payload into v.
func DecodeByteScheme(b []byte, v interface{}) error {
	return cbor.Unmarshal(b, v)
}

// EncodeFiles serializes the Files header under format f and
// concatenates file contents (in list order) into the payload buffer.
// files[i].Size must already equal len(contents[i]).
func EncodeFiles(f schemeformat.Format, files []FileEntry, contents [][]byte) (header []byte, buf []byte, err error) {
	if len(files) != len(contents) {
		return nil, nil, fmt.Errorf("codec: %d file entries but %d content blobs", len(files), len(contents))
	}
	header, err = schemeformat.Marshal(f, filesHeader{Files: files})
	if err != nil {
		return nil, nil, err
	}
	for _, c := range contents {
		buf = append(buf, c...)
	}
	return header, buf, nil
}

// DecodeFiles splits buf into per-file slices per the Files header
// (header bytes encoded under format f), spec.md §4.1/§6.1: the
// payload is the concatenation of file bytes in list order.
func DecodeFiles(f schemeformat.Format, header []byte, buf []byte) ([]FileEntry, [][]byte, error) {
	var fh filesHeader
	if err := schemeformat.Unmarshal(f, header, &fh); err != nil {
		return nil, nil, fmt.Errorf("codec: decoding Files header: %w", err)
	}
	out := make([][]byte, 0, len(fh.Files))
	off := int64(0)
	for _, fe := range fh.Files {
		if off+fe.Size > int64(len(buf)) {
			return nil, nil, fmt.Errorf("codec: Files header declares more bytes than payload carries")
		}
		out = append(out, buf[off:off+fe.Size])
		off += fe.Size
	}
	return fh.Files, out, nil
}

// PackFilesPayload frames a Files payload's header against its file
// buffer as `u32 len(header) ++ header ++ buf`, the sub-envelope a
// Files-typed Action/StreamAction payload carries (spec.md §6.1: the
// Files header precedes the concatenated file bytes within the single
// payload blob).
func PackFilesPayload(header, buf []byte) []byte {
	out := make([]byte, 4+len(header)+len(buf))
	binary.BigEndian.PutUint32(out[:4], uint32(len(header)))
	copy(out[4:], header)
	copy(out[4+len(header):], buf)
	return out
}

// UnpackFilesPayload reverses PackFilesPayload.
func UnpackFilesPayload(payload []byte) (header, buf []byte, err error) {
	if len(payload) < 4 {
		return nil, nil, fmt.Errorf("codec: Files payload too short for header length")
	}
	n := binary.BigEndian.Uint32(payload[:4])
	if uint64(4+n) > uint64(len(payload)) {
		return nil, nil, fmt.Errorf("codec: Files header length %d exceeds payload", n)
	}
	return payload[4 : 4+n], payload[4+n:], nil
}

// SplitBufferByFiles slices buf into per-file chunks in list order,
// the inverse of concatenating contents for EncodeFiles.
func SplitBufferByFiles(files []FileEntry, buf []byte) ([][]byte, error) {
	out := make([][]byte, 0, len(files))
	off := int64(0)
	for _, fe := range files {
		if off+fe.Size > int64(len(buf)) {
			return nil, fmt.Errorf("codec: file entries declare more bytes than buffer carries")
		}
		out = append(out, buf[off:off+fe.Size])
		off += fe.Size
	}
	return out, nil
}

// ApplyOffset trims the first k bytes of buf (with no file entries,
// that is all it does) and, for a Files payload, subtracts k from
// file sizes in list order until exhausted, omitting files whose size becomes 0 from the
// re-serialized header (spec.md §4.3/§8, the "Offset round-trip"
// property).
func ApplyOffset(files []FileEntry, buf []byte, k int64) ([]FileEntry, []byte) {
	if k <= 0 {
		return files, buf
	}
	if k > int64(len(buf)) {
		k = int64(len(buf))
	}
	remaining := k
	out := make([]FileEntry, 0, len(files))
	for _, fe := range files {
		if remaining <= 0 {
			out = append(out, fe)
			continue
		}
		if remaining >= fe.Size {
			remaining -= fe.Size
			fe.Size = 0
			continue // omitted: size became 0
		}
		fe.Size -= remaining
		remaining = 0
		out = append(out, fe)
	}
	return out, buf[k:]
}
