// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"github.com/cifrazia/cats-go/core/compressor"
	"github.com/cifrazia/cats-go/core/schemeformat"
)

// ClientStatement is the opening self-description the client sends
// (spec.md §3/§6.1).
type ClientStatement struct {
	API                uint32             `json:"api" yaml:"api" toml:"api"`
	ClientTime         uint64             `json:"client_time" yaml:"client_time" toml:"client_time"`
	SchemeFormat       string             `json:"scheme_format" yaml:"scheme_format" toml:"scheme_format"`
	Compressors        []compressor.ID    `json:"compressors" yaml:"compressors" toml:"compressors"`
	DefaultCompression *compressor.ID     `json:"default_compression,omitempty" yaml:"default_compression,omitempty" toml:"default_compression,omitempty"`
}

// Validate enforces spec.md §3's Statement invariant: compressors is
// non-empty, and default_compression, if present, is one of them.
func (s *ClientStatement) Validate() error {
	if len(s.Compressors) == 0 {
		return errStatementInvalid("compressors must be non-empty")
	}
	if s.DefaultCompression != nil {
		found := false
		for _, c := range s.Compressors {
			if c == *s.DefaultCompression {
				found = true
				break
			}
		}
		if !found {
			return errStatementInvalid("default_compression must be one of compressors")
		}
	}
	return nil
}

// ServerStatement is the server's reply self-description.
type ServerStatement struct {
	ServerTime uint64 `json:"server_time" yaml:"server_time" toml:"server_time"`
}

func errStatementInvalid(msg string) error {
	return &statementError{msg: msg}
}

type statementError struct{ msg string }

func (e *statementError) Error() string { return "conn: invalid statement: " + e.msg }

// encode serializes the client statement under wireFormat, the format
// this peer has chosen for the STATEMENT_EXCHANGE bytes themselves
// (spec.md §4.4: auto-detected by the receiver's leading-character
// heuristic, not necessarily the same as the requested scheme_format
// field carried inside).
func (s *ClientStatement) encode(wireFormat schemeformat.Format) ([]byte, error) {
	return schemeformat.Marshal(wireFormat, s)
}

// decodeClientStatement auto-detects b's wire format and unmarshals it
// into a ClientStatement, also returning the detected format. The
// server's exchangeStatementServer discards it and follows the
// statement's declared scheme_format instead.
func decodeClientStatement(b []byte) (*ClientStatement, schemeformat.Format, error) {
	f := schemeformat.Detect(b)
	var s ClientStatement
	if err := schemeformat.Unmarshal(f, b, &s); err != nil {
		return nil, f, err
	}
	return &s, f, nil
}

// encode serializes the server statement under f.
func (s *ServerStatement) encode(f schemeformat.Format) ([]byte, error) {
	return schemeformat.Marshal(f, s)
}

func decodeServerStatement(b []byte, f schemeformat.Format) (*ServerStatement, error) {
	var s ServerStatement
	if err := schemeformat.Unmarshal(f, b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
