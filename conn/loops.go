// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"sync/atomic"
	"time"

	"github.com/cifrazia/cats-go/core/action"
)

// readLoop is the connection's sole reader: it owns c.reader and feeds
// every decoded action (or fatal read error) to the dispatch loop over
// inboundCh, the same one-goroutine-per-direction shape
// client2/connection.go uses. It also reports the raw bytes each
// ReadAction pulled off netConn's countingReader to BytesReceived, the
// inbound counterpart of writeActionLocked's BytesSent.
func (c *Connection) readLoop() {
	prev := atomic.LoadInt64(&c.bytesReadTotal)
	for {
		a, err := c.reader.ReadAction(c.decodeHeaders)
		now := atomic.LoadInt64(&c.bytesReadTotal)
		if n := now - prev; n > 0 {
			c.metrics.bytesReceived(int(n))
		}
		prev = now
		if err != nil {
			select {
			case c.inboundCh <- inboundMsg{err: err}:
			case <-c.HaltCh():
			}
			return
		}
		select {
		case c.inboundCh <- inboundMsg{a: a}:
		case <-c.HaltCh():
			return
		}
	}
}

// writeLoop is the connection's sole writer: every outbound Send
// request is serialized through here so writeActionLocked never races
// with the dispatch loop's own replies (spec.md §4.2).
func (c *Connection) writeLoop() {
	for {
		select {
		case req := <-c.sendCh:
			req.done <- c.writeActionLocked(req.action)
		case <-c.HaltCh():
			return
		}
	}
}

// pingLoop sends a PingAction every idle_timeout * PingCadenceFactor,
// keeping the connection's idle timer from expiring during long quiet
// stretches (spec.md §4.4: "ping at 0.9 * idle_timeout"). It marks
// pingAwait before sending so handleInbound can recognize the matching
// echo as our own round trip completing rather than a fresh ping that
// itself needs echoing back (which would ricochet forever).
func (c *Connection) pingLoop() {
	if c.idleTimeout <= 0 {
		return
	}
	interval := time.Duration(float64(c.idleTimeout) * PingCadenceFactor)
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			atomic.StoreInt32(&c.pingAwait, 1)
			_ = c.Send(&action.PingAction{SendTime: uint64(time.Now().UnixMilli())})
		case <-c.HaltCh():
			return
		}
	}
}
