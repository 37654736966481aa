// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package schemeformat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Format
	}{
		{"object", `{"a":1}`, JSON},
		{"array", `[1,2,3]`, JSON},
		{"yaml doc marker", "%YAML 1.1\n---\na: 1", YAML},
		{"yaml dashes", "---\na: 1", YAML},
		{"yaml key", "a: 1\nb: 2", YAML},
		{"toml", "a = 1\nb = 2", TOML},
		{"empty", "", JSON},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Detect([]byte(tc.in)))
		})
	}
}

type sample struct {
	A int    `json:"a" yaml:"a" toml:"a"`
	B string `json:"b" yaml:"b" toml:"b"`
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	for _, f := range []Format{JSON, YAML, TOML} {
		f := f
		t.Run(f.String(), func(t *testing.T) {
			in := sample{A: 7, B: "hello"}
			b, err := Marshal(f, in)
			require.NoError(t, err)

			var out sample
			require.NoError(t, Unmarshal(f, b, &out))
			require.Equal(t, in, out)
		})
	}
}

func TestParseName(t *testing.T) {
	f, err := ParseName("json")
	require.NoError(t, err)
	require.Equal(t, JSON, f)

	_, err = ParseName("protobuf")
	require.Error(t, err)
}
