// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package schemeformat

import "encoding/json"

// JSON encoding goes through the standard library directly: there is
// no ecosystem JSON library in the retrieval corpus that the other two
// formats' libraries (BurntSushi/toml, yaml.v3) don't already cover in
// spirit, and encoding/json is what every corpus repo reaches for too.
func jsonMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func jsonUnmarshal(b []byte, v interface{}) error {
	return json.Unmarshal(b, v)
}
