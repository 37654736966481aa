// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package schemeformat implements the statement/header serialization
// formats CATS peers may negotiate: JSON, YAML and TOML. Detection
// follows the leading-character heuristic from spec.md §4.4: '{' or
// '[' is JSON, '%' / "---" / an indented "key:" line is YAML,
// otherwise TOML.
package schemeformat

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format identifies a scheme-serialization format.
type Format uint8

const (
	JSON Format = iota
	YAML
	TOML
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "JSON"
	case YAML:
		return "YAML"
	case TOML:
		return "TOML"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// ParseName maps a statement's textual scheme_format field to a Format.
func ParseName(name string) (Format, error) {
	switch name {
	case "JSON", "json":
		return JSON, nil
	case "YAML", "yaml":
		return YAML, nil
	case "TOML", "toml":
		return TOML, nil
	default:
		return 0, fmt.Errorf("schemeformat: unknown format %q", name)
	}
}

// Detect guesses the format of a buffer of statement/header bytes by
// inspecting its leading, non-whitespace character(s).
func Detect(b []byte) Format {
	trimmed := bytes.TrimLeft(b, " \t\r\n")
	if len(trimmed) == 0 {
		return JSON
	}
	switch trimmed[0] {
	case '{', '[':
		return JSON
	case '%':
		return YAML
	}
	if bytes.HasPrefix(trimmed, []byte("---")) {
		return YAML
	}
	// An indented "key:" line, or a bare "key:" at top of buffer, reads
	// as YAML; anything else is treated as TOML.
	if line := firstLine(trimmed); looksLikeYAMLKey(line) {
		return YAML
	}
	return TOML
}

func firstLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i]
	}
	return b
}

func looksLikeYAMLKey(line []byte) bool {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return false
	}
	for _, c := range line[:colon] {
		if c == ' ' || c == '\t' {
			continue
		}
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-') {
			return false
		}
	}
	return true
}

// Marshal serializes v under the given format.
func Marshal(f Format, v interface{}) ([]byte, error) {
	switch f {
	case JSON:
		return jsonMarshal(v)
	case YAML:
		return yaml.Marshal(v)
	case TOML:
		buf := &bytes.Buffer{}
		enc := toml.NewEncoder(buf)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("schemeformat: unsupported format %v", f)
	}
}

// Unmarshal deserializes b (encoded under format f) into v.
func Unmarshal(f Format, b []byte, v interface{}) error {
	switch f {
	case JSON:
		return jsonUnmarshal(b, v)
	case YAML:
		return yaml.Unmarshal(b, v)
	case TOML:
		_, err := toml.Decode(string(b), v)
		return err
	default:
		return fmt.Errorf("schemeformat: unsupported format %v", f)
	}
}
