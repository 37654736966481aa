// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package errs defines the error kinds the CATS engine surfaces, per
// the connection's error handling design: protocol/transport errors
// are always fatal to the connection, exchange-scoped errors fail
// only the in-flight handler.
package errs

import "fmt"

// ProtocolError indicates malformed framing, an unknown action id, an
// out-of-range message id, or an input reply with no pending waiter.
// Always fatal to the connection.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("cats: protocol error: %v", e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

// NewProtocolError wraps f/a as a fatal ProtocolError.
func NewProtocolError(f string, a ...interface{}) error {
	return &ProtocolError{Err: fmt.Errorf(f, a...)}
}

// HandshakeError indicates the handshake was rejected or timed out.
// Fatal; the connection is closed after writing the reject byte.
type HandshakeError struct {
	Err error
}

func (e *HandshakeError) Error() string { return fmt.Sprintf("cats: handshake error: %v", e.Err) }
func (e *HandshakeError) Unwrap() error { return e.Err }

func NewHandshakeError(f string, a ...interface{}) error {
	return &HandshakeError{Err: fmt.Errorf(f, a...)}
}

// ValidationError indicates handler-level input was invalid. Recovered:
// returned as an error response action if the handler chooses to, else
// propagated as a ProtocolError scoped to the one exchange.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("cats: validation error: %v", e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidationError(f string, a ...interface{}) error {
	return &ValidationError{Err: fmt.Errorf(f, a...)}
}

// TransportError indicates an underlying I/O failure. Fatal.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("cats: transport error: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

func NewTransportError(err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Err: err}
}

// Exchange-scoped sentinel errors. These never kill the dispatch loop;
// they only resolve the one pending ask() or fail the one handler.
var (
	// ErrInputLimitExceeded is returned when a handler's nested ask()
	// chain exceeds the configured input_limit.
	ErrInputLimitExceeded = fmt.Errorf("cats: input chain limit exceeded")

	// ErrInputTimeout is returned when a pending input is not answered
	// before its input_timeout elapses.
	ErrInputTimeout = fmt.Errorf("cats: input timed out")

	// ErrInputCancelled is returned when the peer sends CancelInputAction
	// instead of answering a pending ask().
	ErrInputCancelled = fmt.Errorf("cats: input cancelled by peer")

	// ErrConnectionClosed is returned to any suspended operation on a
	// connection that has transitioned to CLOSED.
	ErrConnectionClosed = fmt.Errorf("cats: connection closed")

	// ErrIdleTimeout is the fatal reason recorded when a connection's
	// idle timer expires with no activity (spec.md §4.4/§5).
	ErrIdleTimeout = fmt.Errorf("cats: idle timeout exceeded")
)
