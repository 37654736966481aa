// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"net"
	"time"
)

// defaultDialer mirrors client2.defaultDialer: a bounded connect
// timeout plus TCP keep-alive, rather than a bare net.Dial.
var defaultDialer = net.Dialer{
	KeepAlive: 30 * time.Second,
	Timeout:   10 * time.Second,
}

// Dial opens a TCP connection to addr and wraps it as a client-side
// Connection. Callers still need to run Serve (typically on its own
// goroutine) to complete the preamble and start the dispatch loop.
func Dial(addr string, cfg *ClientConfig) (*Connection, error) {
	nc, err := defaultDialer.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClientConnection(nc, cfg), nil
}

// Listener wraps a net.Listener, handing out server-side Connections
// that still need Serve run on them.
type Listener struct {
	ln  net.Listener
	cfg *ServerConfig
}

// Listen binds addr and returns a Listener serving cfg.
func Listen(addr string, cfg *ServerConfig) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, cfg: cfg}, nil
}

// Accept blocks for the next inbound connection and wraps it as a
// server-side Connection, ready for Serve.
func (l *Listener) Accept() (*Connection, error) {
	nc, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return NewServerConnection(nc, l.cfg), nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }
