// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"bytes"
	"context"
	"sync/atomic"
	"time"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/errs"
	"github.com/cifrazia/cats-go/core/frame"
	"github.com/cifrazia/cats-go/internal/broadcast"
)

// Send enqueues a for transmission and blocks until it has been
// written (or the connection closes first).
func (c *Connection) Send(a action.Envelope) error {
	if c.IsHalted() {
		return errs.ErrConnectionClosed
	}
	req := sendRequest{action: a, done: make(chan error, 1)}
	select {
	case c.sendCh <- req:
	case <-c.HaltCh():
		return errs.ErrConnectionClosed
	}
	select {
	case err := <-req.done:
		return err
	case <-c.HaltCh():
		return errs.ErrConnectionClosed
	}
}

// SendBroadcast implements broadcast.Subscriber.
func (c *Connection) SendBroadcast(a action.Envelope) error {
	return c.Send(a)
}

// Broadcasts exposes the process-wide broadcast registry, for handlers
// that want to Publish from inside Handle. Nil if none was configured.
func (c *Connection) Broadcasts() *broadcast.Registry {
	return c.broadcasts
}

// writeActionLocked serializes a through the send scheduler: it is
// first framed into a scratch buffer so its exact byte length is known
// to the rate limiter before any bytes reach the wire (spec.md §4.6).
func (c *Connection) writeActionLocked(a action.Envelope) error {
	var buf bytes.Buffer
	scratch := frame.NewWriter(&buf)
	if err := scratch.WriteAction(a, c.encodeHeaders); err != nil {
		return err
	}

	c.sched.Lock()
	defer c.sched.Unlock()

	if err := c.sched.Wait(context.Background(), buf.Len()); err != nil {
		return errs.NewTransportError(err)
	}
	if _, err := c.netConn.Write(buf.Bytes()); err != nil {
		return errs.NewTransportError(err)
	}
	c.metrics.bytesSent(buf.Len())
	c.metrics.actionSent(a.Kind().String())
	atomic.StoreInt64(&c.lastActivity, time.Now().UnixNano())
	return nil
}
