// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/errs"
)

// idleCheckInterval is how often dispatchLoop polls lastActivity. It is
// independent of idleTimeout itself so a misconfigured short timeout
// still gets checked promptly.
const idleCheckInterval = time.Second

// dispatchLoop is the connection's single-threaded control loop: it
// owns every piece of mutable per-connection state that isn't already
// behind its own lock (mux, scheduler), so inbound actions are
// classified and routed one at a time; new requests are then handed to
// processRequest on their own goroutines (spec.md §4.7).
func (c *Connection) dispatchLoop() error {
	ticker := time.NewTicker(idleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.inboundCh:
			if msg.err != nil {
				return msg.err
			}
			atomic.StoreInt64(&c.lastActivity, time.Now().UnixNano())
			c.metrics.actionReceived(msg.a.Kind().String())
			if err := c.handleInbound(msg.a); err != nil && isFatal(err) {
				return err
			}

		case <-ticker.C:
			if c.idleTimeout <= 0 {
				continue
			}
			last := atomic.LoadInt64(&c.lastActivity)
			if time.Since(time.Unix(0, last)) > c.idleTimeout {
				return errs.ErrIdleTimeout
			}

		case <-c.HaltCh():
			return nil
		}
	}
}

// handleInbound routes one decoded action per spec.md §4.5. A fatal
// return (see isFatal) ends dispatchLoop; dispatchLoop ignores any
// other non-nil return.
func (c *Connection) handleInbound(a action.Envelope) error {
	switch v := a.(type) {
	case *action.Action:
		return c.handleRequestOrReply(v.MessageID, v)
	case *action.StreamAction:
		return c.handleRequestOrReply(v.MessageID, v)
	case *action.InputAction:
		return c.handleInputAction(v)
	case *action.CancelInputAction:
		if err := c.mux.CancelInput(v.MessageID); err != nil {
			c.log.Debugf("cancel input: %v", err)
			return err
		}
		return nil
	case *action.DownloadSpeedAction:
		c.sched.SetLimit(int(v.Speed))
		return nil
	case *action.PingAction:
		// If we have our own outstanding ping awaiting its echo, this is
		// it: the idle timer was already reset above and there is
		// nothing further to do. Only an unsolicited ping from the peer
		// (no outstanding ping of our own) gets echoed back, so a
		// single ping never ricochets between both sides forever
		// (spec.md §4.4: "echo immediately; reset idle timer").
		if atomic.CompareAndSwapInt32(&c.pingAwait, 1, 0) {
			return nil
		}
		c.Go(func() {
			_ = c.Send(&action.PingAction{SendTime: uint64(time.Now().UnixMilli())})
		})
		return nil
	case *action.StartEncryption, *action.StopEncryption:
		// Reserved, accepted and ignored (spec.md §9: no session keys derived).
		return nil
	default:
		return errs.NewProtocolError("conn: unhandled action type %T", a)
	}
}

// handleRequestOrReply disambiguates an inbound Action/StreamAction
// between three cases (spec.md §4.5): a broadcast (message_id in the
// upper half of the id space), a reply to a request this side
// originated (message_id has an active mux waiter), or a new request
// the peer is issuing against one of our handlers.
func (c *Connection) handleRequestOrReply(messageID uint16, a action.Envelope) error {
	if action.IsBroadcastID(messageID) {
		if c.onBroadcast != nil {
			c.onBroadcast(a)
		}
		return nil
	}
	if c.mux.IsActive(messageID) {
		return c.mux.Resolve(messageID, a)
	}
	c.mux.ReserveInbound(messageID)
	c.Go(func() {
		defer c.mux.ReleaseInbound(messageID)
		c.processRequest(a)
	})
	return nil
}

// handleInputAction disambiguates an inbound InputAction (spec.md
// §4.5/§6.2's bidirectional ask envelope): it either resolves an ask()
// this side issued, or is the peer asking us something mid-request
// against a message_id we originated (an active mux waiter, not a
// pending ask).
func (c *Connection) handleInputAction(ia *action.InputAction) error {
	if err := c.mux.ResolveInput(ia.MessageID, ia); err == nil {
		return nil
	}

	if c.mux.IsActive(ia.MessageID) {
		c.Go(func() { c.handlePeerAsk(ia) })
		return nil
	}

	return errs.NewProtocolError("conn: input reply for message id %#x with no pending ask or active request", ia.MessageID)
}

// isFatal reports whether err must terminate the connection outright
// (spec.md §7: ProtocolError, HandshakeError and TransportError are
// always fatal; ValidationError/InputLimitExceeded/InputTimeout/
// InputCancelled are scoped to the one exchange).
func isFatal(err error) bool {
	var pe *errs.ProtocolError
	var he *errs.HandshakeError
	var te *errs.TransportError
	return errors.As(err, &pe) || errors.As(err, &he) || errors.As(err, &te)
}
