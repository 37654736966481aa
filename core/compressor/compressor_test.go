// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package compressor

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)

	for _, id := range []ID{None, Gzip, Zlib} {
		id := id
		t.Run(id.String(), func(t *testing.T) {
			compressed, err := Compress(id, payload)
			require.NoError(t, err)

			out, err := Decompress(id, compressed)
			require.NoError(t, err)
			require.Equal(t, payload, out)
		})
	}
}

func TestChooseSkipsSmallPayloads(t *testing.T) {
	supported := map[ID]bool{Gzip: true, Zlib: true}
	got := Choose([]ID{Gzip, Zlib}, supported, 10, false)
	require.Equal(t, None, got)
}

func TestChoosePicksFirstSupported(t *testing.T) {
	supported := map[ID]bool{Zlib: true}
	got := Choose([]ID{Gzip, Zlib}, supported, MinCompressSize+1, false)
	require.Equal(t, Zlib, got)
}

func TestChooseSkipsAlreadyCompressed(t *testing.T) {
	supported := map[ID]bool{Gzip: true}
	got := Choose([]ID{Gzip}, supported, MinCompressSize+1, true)
	require.Equal(t, None, got)
}
