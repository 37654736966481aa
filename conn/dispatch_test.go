// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/mux"
)

// TestHandleInboundPingEchoesOnceThenSwallowsOwnEcho pins the ricochet
// fix: an unsolicited ping gets exactly one echo back, and the echo of
// our own outstanding ping is swallowed rather than re-echoed.
func TestHandleInboundPingEchoesOnceThenSwallowsOwnEcho(t *testing.T) {
	c := &Connection{
		sendCh:    make(chan sendRequest),
		inboundCh: make(chan inboundMsg, 1),
	}

	sent := make(chan action.Envelope, 4)
	c.Go(func() {
		for {
			select {
			case req := <-c.sendCh:
				sent <- req.action
				req.done <- nil
			case <-c.HaltCh():
				return
			}
		}
	})
	defer c.Halt()

	require.NoError(t, c.handleInbound(&action.PingAction{SendTime: 1}))
	select {
	case a := <-sent:
		_, ok := a.(*action.PingAction)
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected the unsolicited ping to be echoed once")
	}
	select {
	case a := <-sent:
		t.Fatalf("unexpected second echo of the same ping: %#v", a)
	case <-time.After(50 * time.Millisecond):
	}

	atomic.StoreInt32(&c.pingAwait, 1)
	require.NoError(t, c.handleInbound(&action.PingAction{SendTime: 2}))
	select {
	case a := <-sent:
		t.Fatalf("our own outstanding ping's echo must not be re-echoed: %#v", a)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestHandleRequestOrReplyReservesInboundID pins the mux reservation
// fix: a newly-seen inbound request id is reserved before the handler
// runs, so AllocateID can't hand the same id to an outbound request
// while the peer's request is still in flight.
func TestHandleRequestOrReplyReservesInboundID(t *testing.T) {
	block := make(chan struct{})
	release := make(chan struct{})
	c := &Connection{
		mux:      mux.New(),
		registry: StaticRegistry{1: blockingHandler{block: block, release: release}},
	}

	// A fresh Mux always hands out id 0 first; use that as the known
	// inbound id so the test doesn't need to reach into Mux internals.
	const id = uint16(0)
	require.NoError(t, c.handleRequestOrReply(id, &action.Action{HandlerID: 1, MessageID: id}))
	<-block // handler is now running with id reserved

	allocated, err := c.mux.AllocateID()
	require.NoError(t, err)
	require.NotEqual(t, id, allocated)

	close(release)
	c.Wait()
}

type blockingHandler struct {
	block, release chan struct{}
}

func (h blockingHandler) Prepare(Context) error { return nil }

func (h blockingHandler) Handle(Context) (action.Envelope, error) {
	close(h.block)
	<-h.release
	return nil, nil
}
