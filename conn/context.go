// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"context"
	"time"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/codec"
)

// requestContext is the concrete Context handed to a Handler, one per
// inbound request (spec.md §4.7/§6.2).
type requestContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	conn      *Connection
	handlerID uint16
	messageID uint16
	headers   action.Headers
	payload   codec.Payload
}

func newRequestContext(c *Connection, handlerID, messageID uint16, headers action.Headers, payload codec.Payload) *requestContext {
	ctx, cancel := context.WithCancel(context.Background())
	return &requestContext{
		ctx:       ctx,
		cancel:    cancel,
		conn:      c,
		handlerID: handlerID,
		messageID: messageID,
		headers:   headers,
		payload:   payload,
	}
}

func (r *requestContext) Deadline() (time.Time, bool)       { return r.ctx.Deadline() }
func (r *requestContext) Done() <-chan struct{}             { return r.ctx.Done() }
func (r *requestContext) Err() error                        { return r.ctx.Err() }
func (r *requestContext) Value(key interface{}) interface{} { return r.ctx.Value(key) }

func (r *requestContext) MessageID() uint16         { return r.messageID }
func (r *requestContext) HandlerID() uint16         { return r.handlerID }
func (r *requestContext) Headers() action.Headers   { return r.headers }
func (r *requestContext) Payload() codec.Payload    { return r.payload }
func (r *requestContext) Connection() *Connection   { return r.conn }

func (r *requestContext) Ask(payload codec.Payload, headers action.Headers, bypassCount bool) (*action.InputAction, error) {
	return r.conn.ask(r.messageID, payload, headers, bypassCount)
}

func (r *requestContext) Send(a action.Envelope) error {
	return r.conn.Send(a)
}
