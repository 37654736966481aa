// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"context"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/codec"
)

// Handler implements one (handler_id, api_version) endpoint (spec.md
// §6.2). Prepare runs after the payload has been decoded and before
// Handle, and may short-circuit (e.g. auth/shape checks); Handle runs
// with the same decoded Payload and returns the reply action, or nil for
// "no reply" (the request was one-way, or the reply was already sent
// via Context.Send).
type Handler interface {
	Prepare(ctx Context) error
	Handle(ctx Context) (action.Envelope, error)
}

// HandlerFunc adapts a plain function to Handler for handlers with no
// Prepare step, mirroring the http.HandlerFunc-style adapters in
// server/cborplugin.
type HandlerFunc func(ctx Context) (action.Envelope, error)

func (f HandlerFunc) Prepare(Context) error                      { return nil }
func (f HandlerFunc) Handle(ctx Context) (action.Envelope, error) { return f(ctx) }

// HandlerRegistry resolves a (handler_id, api_version) pair to a
// Handler. api_version is the peer's negotiated Statement.API; a
// registry may serve different Handler implementations per version of
// the same handler_id.
type HandlerRegistry interface {
	Lookup(handlerID uint16, apiVersion uint32) (Handler, bool)
}

// HandlerRegistryFunc adapts a plain function to HandlerRegistry.
type HandlerRegistryFunc func(handlerID uint16, apiVersion uint32) (Handler, bool)

func (f HandlerRegistryFunc) Lookup(handlerID uint16, apiVersion uint32) (Handler, bool) {
	return f(handlerID, apiVersion)
}

// StaticRegistry is the common case: one Handler per handler_id,
// ignoring api_version.
type StaticRegistry map[uint16]Handler

func (r StaticRegistry) Lookup(handlerID uint16, _ uint32) (Handler, bool) {
	h, ok := r[handlerID]
	return h, ok
}

// Context is the per-request facade a Handler uses to inspect the
// incoming action, ask mid-request questions, stream a reply, or
// publish to a broadcast channel (spec.md §4.7/§6.2).
type Context interface {
	context.Context

	// MessageID is the request's correlation id.
	MessageID() uint16
	// HandlerID is the dispatched handler_id.
	HandlerID() uint16
	// Headers are the decoded request headers.
	Headers() action.Headers
	// Payload is the fully decoded, decompressed request payload.
	Payload() codec.Payload

	// Ask sends an InputAction prompt and blocks for the peer's answer,
	// subject to the connection's input timeout and input-chain depth
	// limit. bypassCount skips the depth limit (spec.md §4.5).
	Ask(payload codec.Payload, headers action.Headers, bypassCount bool) (*action.InputAction, error)

	// Send emits an out-of-band action on this connection before Handle
	// returns its own reply (e.g. progress StreamAction chunks).
	Send(a action.Envelope) error

	// Connection exposes the owning Connection for broadcast publish,
	// peer Statement inspection, and similar connection-level access.
	Connection() *Connection
}
