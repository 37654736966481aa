// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"context"
	"time"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/compressor"
	"github.com/cifrazia/cats-go/core/handshake"
	"github.com/cifrazia/cats-go/core/schemeformat"
	"github.com/cifrazia/cats-go/internal/broadcast"
)

// InputHandlerFunc answers an InputAction prompt issued by the peer
// against a message_id this side originated (spec.md §4.5/§6.2: the
// requester's side of a handler's ask()). It runs on its own goroutine
// so it may suspend without blocking the dispatch loop.
type InputHandlerFunc func(ctx context.Context, messageID uint16, prompt *action.InputAction) (*action.InputAction, error)

// Defaults mirror spec.md's named constants.
const (
	DefaultIdleTimeout      = 60 * time.Second
	DefaultInputTimeout     = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultInputLimit       = 5
	PingCadenceFactor       = 0.9 // spec.md §4.4: ping at 0.9 * idle_timeout
)

// ServerConfig configures a server-side Connection. Plain struct with
// defaulting applied by withDefaults, following the
// teacher's client2.Config field-access pattern (c.client.cfg.*)
// rather than a flag/env parsing framework.
type ServerConfig struct {
	// ProtocolVersion is the version this server accepts. The spec's
	// open question (4-byte vs 1-byte ack) is resolved in favor of the
	// 4-byte form; see DESIGN.md.
	ProtocolVersion uint32

	// Registry resolves handler_id/api_version pairs to Handlers. The
	// out-of-scope external collaborator (spec.md §6.2).
	Registry HandlerRegistry

	// Handshake, if non-nil, is required after statement exchange.
	Handshake        handshake.Scheme
	HandshakeTimeout time.Duration

	IdleTimeout      time.Duration
	InputTimeout     time.Duration
	InputLimit       int
	EnablePing       bool
	InMemoryThreshold int64

	DefaultSchemeFormat schemeformat.Format
	SupportedCompressors []compressor.ID

	// Broadcasts, if set, lets handlers publish to named broadcast
	// channels via the connection's registry handle.
	Broadcasts *broadcast.Registry

	// InputHandler answers peer-issued ask() prompts against requests
	// this side originated. Nil means such prompts get an empty
	// InputAction reply.
	InputHandler InputHandlerFunc

	// OnBroadcast, if set, receives actions whose message_id falls in
	// the broadcast half of the id space. Nil drops them silently
	// (spec.md §4.5: "if none, drop silently").
	OnBroadcast func(action.Envelope)

	// Metrics, if non-nil, receives engine counters/histograms. Nil
	// disables instrumentation entirely.
	Metrics *Metrics
}

func (c *ServerConfig) withDefaults() *ServerConfig {
	out := *c
	if out.IdleTimeout == 0 {
		out.IdleTimeout = DefaultIdleTimeout
	}
	if out.InputTimeout == 0 {
		out.InputTimeout = DefaultInputTimeout
	}
	if out.HandshakeTimeout == 0 {
		out.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if out.InputLimit == 0 {
		out.InputLimit = DefaultInputLimit
	}
	if out.InMemoryThreshold == 0 {
		out.InMemoryThreshold = 8 * 1024 * 1024
	}
	if len(out.SupportedCompressors) == 0 {
		out.SupportedCompressors = []compressor.ID{compressor.None, compressor.Gzip, compressor.Zlib}
	}
	return &out
}

// ClientStatementConfig configures the statement the client offers
// during STATEMENT_EXCHANGE.
type ClientStatementConfig struct {
	API                 uint32
	SchemeFormat         schemeformat.Format
	Compressors          []compressor.ID
	DefaultCompression   *compressor.ID
}

// ClientConfig configures a client-side Connection.
type ClientConfig struct {
	ProtocolVersion uint32
	Statement       ClientStatementConfig

	Handshake        handshake.Scheme
	HandshakeTimeout time.Duration

	IdleTimeout       time.Duration
	InputTimeout      time.Duration
	InputLimit        int
	InMemoryThreshold int64

	// Registry resolves handler_id/api_version for server-initiated
	// requests the client must itself dispatch (rare, but symmetric
	// with the server per spec.md §2). Broadcasts go to OnBroadcast,
	// not to Registry.
	Registry HandlerRegistry

	InputHandler InputHandlerFunc

	OnBroadcast func(action.Envelope)

	Metrics *Metrics
}

func (c *ClientConfig) withDefaults() *ClientConfig {
	out := *c
	if out.IdleTimeout == 0 {
		out.IdleTimeout = DefaultIdleTimeout
	}
	if out.InputTimeout == 0 {
		out.InputTimeout = DefaultInputTimeout
	}
	if out.HandshakeTimeout == 0 {
		out.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if out.InputLimit == 0 {
		out.InputLimit = DefaultInputLimit
	}
	if out.InMemoryThreshold == 0 {
		out.InMemoryThreshold = 8 * 1024 * 1024
	}
	if len(out.Statement.Compressors) == 0 {
		out.Statement.Compressors = []compressor.ID{compressor.None, compressor.Gzip, compressor.Zlib}
	}
	return &out
}
