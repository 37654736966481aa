// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package frame

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/compressor"
)

func identityHeaders(b []byte) (action.Headers, error) {
	if len(b) == 0 {
		return action.Headers{}, nil
	}
	return action.Headers{"raw": string(b)}, nil
}

func encodeHeaders(h action.Headers) ([]byte, error) {
	if len(h) == 0 {
		return nil, nil
	}
	s, _ := h["raw"].(string)
	return []byte(s), nil
}

func roundTrip(t *testing.T, a action.Envelope) action.Envelope {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteAction(a, encodeHeaders))

	r := NewReader(&buf, 0)
	got, err := r.ReadAction(identityHeaders)
	require.NoError(t, err)
	return got
}

func TestActionRoundTrip(t *testing.T) {
	in := &action.Action{
		HandlerID:  1,
		MessageID:  2,
		SendTime:   123456,
		DataType:   0,
		Compressor: 0,
		Payload:    []byte("hello world"),
	}
	out := roundTrip(t, in).(*action.Action)
	require.Equal(t, in.HandlerID, out.HandlerID)
	require.Equal(t, in.MessageID, out.MessageID)
	require.Equal(t, in.SendTime, out.SendTime)
	require.Equal(t, in.Payload, out.Payload)
}

func TestInputActionRoundTrip(t *testing.T) {
	in := &action.InputAction{
		MessageID: 7,
		Payload:   []byte("prompt"),
	}
	out := roundTrip(t, in).(*action.InputAction)
	require.Equal(t, in.MessageID, out.MessageID)
	require.Equal(t, in.Payload, out.Payload)
}

func TestStreamActionRoundTrip(t *testing.T) {
	in := &action.StreamAction{
		HandlerID: 3,
		MessageID: 9,
		SendTime:  42,
		Chunks:    [][]byte{[]byte("one"), []byte("two"), []byte("three")},
	}
	out := roundTrip(t, in).(*action.StreamAction)
	require.Equal(t, in.HandlerID, out.HandlerID)
	require.Equal(t, in.MessageID, out.MessageID)
	require.Equal(t, in.Chunks, out.Chunks)
}

// TestStreamActionChunksCompressedIndependently pins each chunk being
// compressed/decompressed on its own rather than the chunks being
// concatenated and run through one zlib stream: zlib (unlike gzip) has
// no concept of independently-resumable members, so concatenating
// would only decode the first chunk correctly.
func TestStreamActionChunksCompressedIndependently(t *testing.T) {
	in := &action.StreamAction{
		HandlerID:  3,
		MessageID:  9,
		Compressor: uint8(compressor.Zlib),
		Chunks:     [][]byte{[]byte("first chunk of the stream"), []byte("second chunk of the stream")},
	}
	out := roundTrip(t, in).(*action.StreamAction)
	require.Equal(t, in.Chunks, out.Chunks)
}

func TestPingActionRoundTrip(t *testing.T) {
	in := &action.PingAction{SendTime: 999}
	out := roundTrip(t, in).(*action.PingAction)
	require.Equal(t, in.SendTime, out.SendTime)
}

func TestDownloadSpeedActionRoundTrip(t *testing.T) {
	in := &action.DownloadSpeedAction{Speed: 1024}
	out := roundTrip(t, in).(*action.DownloadSpeedAction)
	require.Equal(t, in.Speed, out.Speed)
}

func TestCancelInputActionRoundTrip(t *testing.T) {
	in := &action.CancelInputAction{MessageID: 5}
	out := roundTrip(t, in).(*action.CancelInputAction)
	require.Equal(t, in.MessageID, out.MessageID)
}

func TestUnknownActionIDIsProtocolError(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0x42)
	r := NewReader(&buf, 0)
	_, err := r.ReadAction(identityHeaders)
	require.Error(t, err)
}
