// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package action models the CATS wire envelope as a tagged sum, the
// same polymorphism-over-a-one-byte-tag shape core/wire/commands
// presents to client2/connection.go: one ID
// byte selects a variant, each variant owns its own fixed head layout,
// and a type switch over the Command interface (here: Envelope)
// dispatches on the decoded value.
package action

import "fmt"

// ID is the one-byte action-variant tag (spec.md §6.1).
type ID uint8

const (
	KindAction         ID = 0x00
	KindStreamAction   ID = 0x01
	KindInputAction    ID = 0x02
	KindDownloadSpeed  ID = 0x05
	KindCancelInput    ID = 0x06
	KindStartEncrypt   ID = 0xF0 // reserved, no-op
	KindStopEncrypt    ID = 0xF1 // reserved, no-op
	KindPing           ID = 0xFF
)

func (id ID) String() string {
	switch id {
	case KindAction:
		return "Action"
	case KindStreamAction:
		return "StreamAction"
	case KindInputAction:
		return "InputAction"
	case KindDownloadSpeed:
		return "DownloadSpeedAction"
	case KindCancelInput:
		return "CancelInputAction"
	case KindStartEncrypt:
		return "StartEncryption"
	case KindStopEncrypt:
		return "StopEncryption"
	case KindPing:
		return "PingAction"
	default:
		return fmt.Sprintf("Action(%#x)", uint8(id))
	}
}

// MessageIDRangeSplit is the boundary spec.md §3 sets between the
// request/reply half of the id space and the broadcast half.
const MessageIDRangeSplit uint16 = 0x8000

// IsBroadcastID reports whether id lies in the broadcast half of the
// message-id space.
func IsBroadcastID(id uint16) bool { return id >= MessageIDRangeSplit }

// Headers is the short-ASCII-name to JSON-scalar/array mapping carried
// by payload-bearing actions.
type Headers map[string]interface{}

// DefaultStatus is the status implied when no Status header is set.
const DefaultStatus = 200

// Status returns the Status header if present, else DefaultStatus.
func (h Headers) Status() int {
	if h == nil {
		return DefaultStatus
	}
	v, ok := h["Status"]
	if !ok {
		return DefaultStatus
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return DefaultStatus
	}
}

// SetStatus sets the Status header, shadowing the default.
func (h Headers) SetStatus(code int) {
	h["Status"] = code
}

// Offset returns the Offset header if present, and whether it was set.
func (h Headers) Offset() (int64, bool) {
	if h == nil {
		return 0, false
	}
	v, ok := h["Offset"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Action is the common-case request/reply/broadcast envelope (0x00).
type Action struct {
	HandlerID  uint16
	MessageID  uint16
	SendTime   uint64 // ms epoch
	DataType   uint8
	Compressor uint8
	Headers    Headers
	Payload    []byte
}

func (a *Action) Kind() ID { return KindAction }

// StreamAction is the chunked-payload envelope (0x01); its payload is
// carried out of band as a sequence of Chunks rather than one blob.
type StreamAction struct {
	HandlerID  uint16
	MessageID  uint16
	SendTime   uint64
	DataType   uint8
	Compressor uint8
	Headers    Headers
	Chunks     [][]byte
}

func (a *StreamAction) Kind() ID { return KindStreamAction }

// InputAction (0x02) answers a handler's mid-request ask() prompt, or
// carries the prompt itself in the opposite direction.
type InputAction struct {
	MessageID  uint16
	DataType   uint8
	Compressor uint8
	Headers    Headers
	Payload    []byte
}

func (a *InputAction) Kind() ID { return KindInputAction }

// DownloadSpeedAction (0x05) requests a download-rate cap in bytes per
// second. A value of 0 disables shaping.
type DownloadSpeedAction struct {
	Speed uint32
}

func (a *DownloadSpeedAction) Kind() ID { return KindDownloadSpeed }

// CancelInputAction (0x06) cancels the pending input identified by
// MessageID.
type CancelInputAction struct {
	MessageID uint16
}

func (a *CancelInputAction) Kind() ID { return KindCancelInput }

// PingAction (0xFF) is echoed immediately by the receiver with an
// updated SendTime, and resets the idle timer on both ends.
type PingAction struct {
	SendTime uint64
}

func (a *PingAction) Kind() ID { return KindPing }

// StartEncryption / StopEncryption (0xF0/0xF1) are reserved: the
// engine must accept and no-op them, never derive session keys (open
// question, spec.md §9 — not activated).
type StartEncryption struct{}

func (a *StartEncryption) Kind() ID { return KindStartEncrypt }

type StopEncryption struct{}

func (a *StopEncryption) Kind() ID { return KindStopEncrypt }

// Envelope is any action variant. Implementations are exactly the
// eight types above.
type Envelope interface {
	Kind() ID
}
