// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package conn implements the CATS connection state machine, message
// multiplexing, and dispatch loop (spec.md §4.4/§4.7): the layer that
// ties core/frame, core/mux, core/scheduler, core/handshake and
// core/codec together into a runnable protocol engine, generalizing
// client2.connection's shape: one cooperative read/write/dispatch
// loop per connection, driven by an embedded workerutil.Worker.
package conn

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/compressor"
	"github.com/cifrazia/cats-go/core/errs"
	"github.com/cifrazia/cats-go/core/frame"
	"github.com/cifrazia/cats-go/core/handshake"
	"github.com/cifrazia/cats-go/core/mux"
	"github.com/cifrazia/cats-go/core/scheduler"
	"github.com/cifrazia/cats-go/core/schemeformat"
	"github.com/cifrazia/cats-go/internal/broadcast"
	"github.com/cifrazia/cats-go/internal/workerutil"
)

// State is the connection's position in the lifecycle state machine
// (spec.md §4.4).
type State uint8

const (
	StateInit State = iota
	StateReadProtoVersion
	StateStatementExchange
	StateHandshake
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateReadProtoVersion:
		return "READ_PROTO_VERSION"
	case StateStatementExchange:
		return "STATEMENT_EXCHANGE"
	case StateHandshake:
		return "HANDSHAKE"
	case StateRunning:
		return "RUNNING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

type sendRequest struct {
	action action.Envelope
	done   chan error
}

type inboundMsg struct {
	a   action.Envelope
	err error
}

// countingReader tallies every byte pulled off the wire so readLoop can
// feed BytesReceived the same way writeActionLocked feeds BytesSent.
type countingReader struct {
	r     io.Reader
	total *int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		atomic.AddInt64(cr.total, int64(n))
	}
	return n, err
}

// Connection is one CATS peer connection: a transport handle, the
// negotiated statement, the multiplexer, the send scheduler, and the
// dispatch loop that drives them (spec.md §3 "Connection").
type Connection struct {
	workerutil.Worker

	netConn net.Conn
	reader  *frame.Reader
	writer  *frame.Writer
	sched   *scheduler.Scheduler
	mux     *mux.Mux
	log     *charmlog.Logger

	isServer         bool
	protocolVersion  uint32
	registry         HandlerRegistry
	handshakeScheme  handshake.Scheme
	handshakeTimeout time.Duration
	idleTimeout      time.Duration
	inputTimeout     time.Duration
	inputLimit       int
	inMemThreshold   int64
	enablePing       bool
	inputHandler     InputHandlerFunc
	onBroadcast      func(action.Envelope)
	broadcasts       *broadcast.Registry
	metrics          *Metrics

	state State

	activeFormat           schemeformat.Format
	peerAPI                uint32
	peerCompressors        []compressor.ID
	supportedCompressors   map[compressor.ID]bool
	peerDefaultCompression *compressor.ID
	clockOffsetMs          int64

	sendCh    chan sendRequest
	inboundCh chan inboundMsg

	lastActivity   int64 // atomic, UnixNano
	pingAwait      int32 // atomic bool: 1 while our own ping loop awaits its echo
	bytesReadTotal int64 // atomic, cumulative bytes pulled off netConn

	readyCh  chan struct{}
	readyErr error

	subscriptions []func()

	// clientStatementCfg is non-nil only for client-side connections;
	// it's what exchangeStatement sends during STATEMENT_EXCHANGE.
	clientStatementCfg *ClientStatementConfig
}

// SubscribeBroadcast joins named broadcast channel name; every action
// Published on it is delivered to this connection until Unsubscribe is
// called or the connection closes. Requires a Broadcasts registry to
// have been configured.
func (c *Connection) SubscribeBroadcast(name string) (unsubscribe func(), err error) {
	if c.broadcasts == nil {
		return nil, errs.NewProtocolError("conn: no broadcast registry configured")
	}
	unsub := c.broadcasts.Subscribe(name, c)
	c.subscriptions = append(c.subscriptions, unsub)
	return unsub, nil
}

func newConnection(nc net.Conn, isServer bool) *Connection {
	c := &Connection{
		netConn:   nc,
		mux:       mux.New(),
		sched:     scheduler.New(),
		sendCh:    make(chan sendRequest),
		inboundCh: make(chan inboundMsg, 16),
		readyCh:   make(chan struct{}),
		isServer:  isServer,
	}
	prefix := "conn/server"
	if !isServer {
		prefix = "conn/client"
	}
	c.log = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          fmt.Sprintf("%s %s", prefix, nc.RemoteAddr()),
	})
	return c
}

// NewServerConnection wraps an accepted net.Conn as a server-side
// Connection, ready for Serve.
func NewServerConnection(nc net.Conn, cfg *ServerConfig) *Connection {
	cfg = cfg.withDefaults()
	c := newConnection(nc, true)
	c.protocolVersion = cfg.ProtocolVersion
	c.registry = cfg.Registry
	c.handshakeScheme = cfg.Handshake
	c.handshakeTimeout = cfg.HandshakeTimeout
	c.idleTimeout = cfg.IdleTimeout
	c.inputTimeout = cfg.InputTimeout
	c.inputLimit = cfg.InputLimit
	c.inMemThreshold = cfg.InMemoryThreshold
	c.enablePing = cfg.EnablePing
	c.inputHandler = cfg.InputHandler
	c.onBroadcast = cfg.OnBroadcast
	c.broadcasts = cfg.Broadcasts
	c.metrics = cfg.Metrics
	c.supportedCompressors = toSupportedSet(cfg.SupportedCompressors)
	c.activeFormat = cfg.DefaultSchemeFormat
	return c
}

// NewClientConnection wraps a dialed net.Conn as a client-side
// Connection, ready for Serve.
func NewClientConnection(nc net.Conn, cfg *ClientConfig) *Connection {
	cfg = cfg.withDefaults()
	c := newConnection(nc, false)
	c.protocolVersion = cfg.ProtocolVersion
	c.registry = cfg.Registry
	c.handshakeScheme = cfg.Handshake
	c.handshakeTimeout = cfg.HandshakeTimeout
	c.idleTimeout = cfg.IdleTimeout
	c.inputTimeout = cfg.InputTimeout
	c.inputLimit = cfg.InputLimit
	c.inMemThreshold = cfg.InMemoryThreshold
	// No client-side ping loop: spec.md §4.4 runs the ping loop
	// server side only. The client still answers any ping the server
	// sends, via handleInbound's echo path.
	c.inputHandler = cfg.InputHandler
	c.onBroadcast = cfg.OnBroadcast
	c.metrics = cfg.Metrics
	c.supportedCompressors = toSupportedSet(cfg.Statement.Compressors)
	c.activeFormat = cfg.Statement.SchemeFormat
	c.clientStatementCfg = &cfg.Statement
	return c
}

func toSupportedSet(ids []compressor.ID) map[compressor.ID]bool {
	set := make(map[compressor.ID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// State reports the connection's current lifecycle state.
func (c *Connection) State() State { return c.state }

// PeerAPI returns the peer's negotiated api version.
func (c *Connection) PeerAPI() uint32 { return c.peerAPI }

// ClockOffsetMillis returns server_time - client_time in milliseconds.
func (c *Connection) ClockOffsetMillis() int64 { return c.clockOffsetMs }

// ActiveFormat returns the scheme format used for headers and Scheme
// payloads going forward.
func (c *Connection) ActiveFormat() schemeformat.Format { return c.activeFormat }

// WaitReady blocks until the connection reaches RUNNING (the preamble
// succeeded and Send/dispatch are live) or the preamble failed, in
// which case it returns the failure reason. Callers that start Serve
// on its own goroutine use this to know when it's safe to Send.
func (c *Connection) WaitReady(ctx context.Context) error {
	select {
	case <-c.readyCh:
		return c.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Serve runs the connection's full lifecycle: version exchange,
// statement exchange, optional handshake, then the dispatch loop. It
// blocks until the connection closes and returns the reason. It may
// return nil when Close halted the dispatch loop. Cancelling ctx closes
// the transport, so Serve then returns the resulting read error.
func (c *Connection) Serve(ctx context.Context) error {
	br := bufio.NewReader(&countingReader{r: c.netConn, total: &c.bytesReadTotal})

	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.netConn.Close()
		case <-c.HaltCh():
		case <-stopWatch:
		}
	}()
	defer close(stopWatch)

	if err := c.runPreamble(br); err != nil {
		c.readyErr = err
		close(c.readyCh)
		c.closeWith(err)
		return err
	}

	c.reader = frame.NewReader(br, c.inMemThreshold)
	c.writer = frame.NewWriter(c.netConn)
	c.state = StateRunning
	atomic.StoreInt64(&c.lastActivity, time.Now().UnixNano())
	c.metrics.connOpened()
	close(c.readyCh)

	c.Go(c.readLoop)
	c.Go(c.writeLoop)
	if c.enablePing {
		c.Go(c.pingLoop)
	}

	err := c.dispatchLoop()
	c.closeWith(err)
	return err
}

func (c *Connection) runPreamble(br *bufio.Reader) error {
	c.state = StateReadProtoVersion
	if err := c.exchangeProtoVersion(br); err != nil {
		return err
	}

	c.state = StateStatementExchange
	if err := c.exchangeStatement(br); err != nil {
		return err
	}

	if c.handshakeScheme != nil {
		c.state = StateHandshake
		if c.handshakeTimeout > 0 {
			c.netConn.SetDeadline(time.Now().Add(c.handshakeTimeout))
			defer c.netConn.SetDeadline(time.Time{})
		}
		if err := c.runHandshake(br); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) exchangeProtoVersion(br *bufio.Reader) error {
	if c.isServer {
		clientVersion, err := readU32Raw(br)
		if err != nil {
			return err
		}
		if clientVersion != c.protocolVersion {
			_ = writeU32Raw(c.netConn, c.protocolVersion)
			return errs.NewProtocolError("conn: client protocol version %d unsupported (want %d)", clientVersion, c.protocolVersion)
		}
		return writeU32Raw(c.netConn, 0)
	}

	if err := writeU32Raw(c.netConn, c.protocolVersion); err != nil {
		return err
	}
	reply, err := readU32Raw(br)
	if err != nil {
		return err
	}
	if reply != 0 {
		return errs.NewProtocolError("conn: server rejected protocol version, prefers %d", reply)
	}
	return nil
}

func (c *Connection) runHandshake(br *bufio.Reader) error {
	now := time.Now()
	if c.isServer {
		token := make([]byte, c.handshakeScheme.Size())
		if _, err := readFull(br, token); err != nil {
			return errs.NewTransportError(err)
		}
		if err := c.handshakeScheme.Verify(now, token); err != nil {
			_, _ = c.netConn.Write([]byte{0x00})
			return errs.NewHandshakeError("verifying peer token: %v", err)
		}
		_, werr := c.netConn.Write([]byte{0x01})
		return errs.NewTransportError(werr)
	}

	token, err := c.handshakeScheme.Token(now)
	if err != nil {
		return errs.NewHandshakeError("generating token: %v", err)
	}
	if _, err := c.netConn.Write(token); err != nil {
		return errs.NewTransportError(err)
	}
	ack := make([]byte, 1)
	if _, err := readFull(br, ack); err != nil {
		return errs.NewTransportError(err)
	}
	if ack[0] != 0x01 {
		return errs.NewHandshakeError("peer rejected handshake")
	}
	return nil
}

func readFull(br *bufio.Reader, b []byte) (int, error) {
	n := 0
	for n < len(b) {
		m, err := br.Read(b[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// closeWith transitions to CLOSED, releases all resources, and fails
// every outstanding waiter with the given reason (spec.md §4.4 CLOSED).
func (c *Connection) closeWith(reason error) {
	if c.IsHalted() {
		return
	}
	c.Halt()
	if reason == nil {
		reason = errs.ErrConnectionClosed
	}
	c.netConn.Close()
	c.mux.CloseAll(reason)
	for _, unsub := range c.subscriptions {
		unsub()
	}
	c.Wait()
	c.state = StateClosed
	c.metrics.connClosed()
	c.log.Debugf("connection closed: %v", reason)
}

// Close closes the connection from outside the dispatch loop (e.g. a
// server shutting down idle connections).
func (c *Connection) Close() error {
	c.closeWith(errs.ErrConnectionClosed)
	return nil
}
