// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/compressor"
	"github.com/cifrazia/cats-go/core/schemeformat"
)

type testEchoHandler struct{}

func (testEchoHandler) Prepare(Context) error { return nil }

func (testEchoHandler) Handle(ctx Context) (action.Envelope, error) {
	return &action.Action{Payload: ctx.Payload().Bytes}, nil
}

func newTestPair(t *testing.T) (*Connection, *Connection) {
	t.Helper()
	serverSide, clientSide := net.Pipe()

	serverCfg := &ServerConfig{
		ProtocolVersion:     1,
		Registry:            StaticRegistry{1: testEchoHandler{}},
		DefaultSchemeFormat: schemeformat.JSON,
	}
	clientCfg := &ClientConfig{
		ProtocolVersion: 1,
		Statement: ClientStatementConfig{
			API:          1,
			SchemeFormat: schemeformat.JSON,
			Compressors:  []compressor.ID{compressor.None},
		},
	}

	s := NewServerConnection(serverSide, serverCfg)
	c := NewClientConnection(clientSide, clientCfg)
	return s, c
}

func TestConnectionHappyPathRequestReply(t *testing.T) {
	s, c := newTestPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go s.Serve(ctx)
	go c.Serve(ctx)
	defer func() { c.Close(); s.Close() }()

	require.NoError(t, c.WaitReady(ctx))
	require.NoError(t, s.WaitReady(ctx))

	id, err := c.mux.AllocateID()
	require.NoError(t, err)
	waiter, err := c.mux.Register(id)
	require.NoError(t, err)

	req := &action.Action{HandlerID: 1, MessageID: id, Payload: []byte("ping")}
	require.NoError(t, c.Send(req))

	reply, err := waiter.Wait()
	require.NoError(t, err)
	got, ok := reply.(*action.Action)
	require.True(t, ok)
	require.Equal(t, []byte("ping"), got.Payload)
}

func TestConnectionStatementClockOffset(t *testing.T) {
	s, c := newTestPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go s.Serve(ctx)
	go c.Serve(ctx)
	defer func() { c.Close(); s.Close() }()

	require.NoError(t, c.WaitReady(ctx))
	require.NoError(t, s.WaitReady(ctx))

	require.Equal(t, uint32(1), s.PeerAPI())
	require.InDelta(t, 0, c.ClockOffsetMillis(), float64(2*time.Second.Milliseconds()))
}

func TestConnectionUnknownHandlerGetsStatus404(t *testing.T) {
	s, c := newTestPair(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go s.Serve(ctx)
	go c.Serve(ctx)
	defer func() { c.Close(); s.Close() }()

	require.NoError(t, c.WaitReady(ctx))
	require.NoError(t, s.WaitReady(ctx))

	id, err := c.mux.AllocateID()
	require.NoError(t, err)
	waiter, err := c.mux.Register(id)
	require.NoError(t, err)

	req := &action.Action{HandlerID: 99, MessageID: id}
	require.NoError(t, c.Send(req))

	reply, err := waiter.Wait()
	require.NoError(t, err)
	got, ok := reply.(*action.Action)
	require.True(t, ok)
	require.Equal(t, 404, got.Headers.Status())
}
