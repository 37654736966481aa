// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cifrazia/cats-go/core/schemeformat"
)

func TestEncodeDecodeFilesRoundTrip(t *testing.T) {
	files := []FileEntry{
		{Key: "a", Name: "a.txt", Size: 5},
		{Key: "b", Name: "b.txt", Size: 3},
	}
	contents := [][]byte{[]byte("hello"), []byte("abc")}

	header, buf, err := EncodeFiles(schemeformat.JSON, files, contents)
	require.NoError(t, err)

	gotFiles, gotContents, err := DecodeFiles(schemeformat.JSON, header, buf)
	require.NoError(t, err)
	require.Equal(t, files, gotFiles)
	require.Equal(t, contents, gotContents)
}

func TestPackUnpackFilesPayload(t *testing.T) {
	header := []byte(`{"Files":[]}`)
	buf := []byte("payload-bytes")

	packed := PackFilesPayload(header, buf)
	gotHeader, gotBuf, err := UnpackFilesPayload(packed)
	require.NoError(t, err)
	require.Equal(t, header, gotHeader)
	require.Equal(t, buf, gotBuf)
}

func TestUnpackFilesPayloadTooShort(t *testing.T) {
	_, _, err := UnpackFilesPayload([]byte{0x00, 0x00})
	require.Error(t, err)
}

func TestSplitBufferByFiles(t *testing.T) {
	files := []FileEntry{{Size: 2}, {Size: 4}}
	buf := []byte("abcdef")

	parts, err := SplitBufferByFiles(files, buf)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("ab"), []byte("cdef")}, parts)
}

func TestApplyOffsetBinary(t *testing.T) {
	_, buf := ApplyOffset(nil, []byte("0123456789"), 3)
	require.Equal(t, []byte("3456789"), buf)
}

func TestApplyOffsetFilesOmitsExhausted(t *testing.T) {
	files := []FileEntry{
		{Key: "a", Size: 3},
		{Key: "b", Size: 5},
	}
	buf := []byte("abcdefgh")

	out, rest := ApplyOffset(files, buf, 4)
	require.Equal(t, []FileEntry{{Key: "b", Size: 4}}, out)
	require.Equal(t, []byte("efgh"), rest)
}

func TestByteSchemeRoundTrip(t *testing.T) {
	type payload struct {
		X int `cbor:"x"`
	}
	in := payload{X: 42}
	b, err := EncodeByteScheme(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, DecodeByteScheme(b, &out))
	require.Equal(t, in, out)
}
