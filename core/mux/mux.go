// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package mux implements the CATS message multiplexer (spec.md §4.5):
// outbound message-id allocation with collision avoidance, a pending
// waiter table correlating inbound replies/inputs to the request that
// is awaiting them, and the input-chain depth limit. The waiter
// correlation style — register before send, resolve on a matching
// inbound id, fail waiters on teardown — mirrors the
// getConsensusCh/sendCh dance in client2/connection.go, generalized
// from "one outstanding GetConsensus" to an arbitrary table of
// concurrently in-flight message ids.
package mux

import (
	"sync"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/errs"
)

// Waiter is resolved exactly once, either with a reply action or an
// error (spec.md §8: "exactly one inbound action ... resolves its
// waiter; subsequent duplicates are ProtocolError").
type Waiter struct {
	ch chan result
}

type result struct {
	action action.Envelope
	err    error
}

func newWaiter() *Waiter {
	return &Waiter{ch: make(chan result, 1)}
}

// Wait blocks until the waiter resolves.
func (w *Waiter) Wait() (action.Envelope, error) {
	r := <-w.ch
	return r.action, r.err
}

func (w *Waiter) resolve(a action.Envelope, err error) {
	select {
	case w.ch <- result{action: a, err: err}:
	default:
		// Already resolved; a correctly behaving Mux never does this.
	}
}

// pendingInput tracks a handler's in-flight ask() call (spec.md §3:
// "Pending input").
type pendingInput struct {
	waiter      *Waiter
	bypassCount bool
}

// Mux owns one connection's message-id space: the active set of
// request/reply ids, their waiters, and the nested ask() depth per
// request.
type Mux struct {
	mu sync.Mutex

	nextID  uint16
	waiters map[uint16]*Waiter       // request/reply ids awaiting a final Action/StreamAction reply
	inputs  map[uint16]*pendingInput // request/reply ids awaiting an InputAction reply
	depth   map[uint16]int           // nested ask() depth per message id
	inbound map[uint16]bool          // ids of in-flight inbound requests, reserved against AllocateID
	closed  bool
}

// DefaultInputLimit is the nested ask() depth bound BeginAsk applies
// when given a limit <= 0, unless the caller sets bypassCount
// (spec.md §4.5, default 5).
const DefaultInputLimit = 5

// New returns an empty Mux.
func New() *Mux {
	return &Mux{
		waiters: make(map[uint16]*Waiter),
		inputs:  make(map[uint16]*pendingInput),
		depth:   make(map[uint16]int),
		inbound: make(map[uint16]bool),
	}
}

// AllocateID picks the next free id in the request/reply half-range
// (0x0000..0x7FFF), skipping ids already active, per spec.md §4.5's
// "incrementing counter modulo 0x8000 with collision check".
func (m *Mux) AllocateID() (uint16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errs.ErrConnectionClosed
	}
	for i := uint16(0); i < action.MessageIDRangeSplit; i++ {
		id := m.nextID
		m.nextID = (m.nextID + 1) % action.MessageIDRangeSplit
		if _, busy := m.waiters[id]; busy {
			continue
		}
		if m.inbound[id] {
			continue
		}
		return id, nil
	}
	return 0, errs.NewProtocolError("mux: request/reply id space exhausted")
}

// ReserveInbound marks id as an in-flight inbound request so AllocateID
// never hands it to a newly originated outbound request while the
// peer's request is still being handled (spec.md §4.5: "reserve the id
// and hand to dispatch").
func (m *Mux) ReserveInbound(id uint16) {
	m.mu.Lock()
	m.inbound[id] = true
	m.mu.Unlock()
}

// ReleaseInbound releases a reservation made by ReserveInbound, once the
// inbound request has been fully handled.
func (m *Mux) ReleaseInbound(id uint16) {
	m.mu.Lock()
	delete(m.inbound, id)
	m.mu.Unlock()
}

// Register installs a waiter for id, returned by AllocateID, before
// the corresponding action is sent.
func (m *Mux) Register(id uint16) (*Waiter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errs.ErrConnectionClosed
	}
	if _, exists := m.waiters[id]; exists {
		return nil, errs.NewProtocolError("mux: message id %#x already has a waiter", id)
	}
	w := newWaiter()
	m.waiters[id] = w
	return w, nil
}

// Forget releases the waiter for id once its result has been consumed.
func (m *Mux) Forget(id uint16) {
	m.mu.Lock()
	delete(m.waiters, id)
	m.mu.Unlock()
}

// Resolve wakes the waiter for id with a and removes it from the
// active set, so a duplicate reply for the same id finds no waiter and
// surfaces as a ProtocolError (spec.md §8: "subsequent duplicates are
// ProtocolError"). It is itself a ProtocolError for id to have no
// registered waiter (spec.md §4.5: request/reply id "not in the active
// set" is a new incoming request instead, handled by the caller before
// Resolve is ever reached for that case).
func (m *Mux) Resolve(id uint16, a action.Envelope) error {
	m.mu.Lock()
	w, ok := m.waiters[id]
	if ok {
		delete(m.waiters, id)
	}
	m.mu.Unlock()
	if !ok {
		return errs.NewProtocolError("mux: reply for unknown message id %#x", id)
	}
	w.resolve(a, nil)
	return nil
}

// IsActive reports whether id currently has a registered waiter.
func (m *Mux) IsActive(id uint16) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.waiters[id]
	return ok
}

// BeginAsk registers a pending input for id, enforcing the input-chain
// depth limit unless bypassCount is set.
func (m *Mux) BeginAsk(id uint16, limit int, bypassCount bool) (*Waiter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errs.ErrConnectionClosed
	}
	if _, exists := m.inputs[id]; exists {
		return nil, errs.NewProtocolError("mux: message id %#x already has a pending input", id)
	}
	if !bypassCount {
		if limit <= 0 {
			limit = DefaultInputLimit
		}
		if m.depth[id] >= limit {
			return nil, errs.ErrInputLimitExceeded
		}
		m.depth[id]++
	}
	w := newWaiter()
	m.inputs[id] = &pendingInput{waiter: w, bypassCount: bypassCount}
	return w, nil
}

// ResolveInput wakes the pending ask() for id with the peer's answer.
func (m *Mux) ResolveInput(id uint16, a *action.InputAction) error {
	m.mu.Lock()
	p, ok := m.inputs[id]
	if ok {
		delete(m.inputs, id)
	}
	m.mu.Unlock()
	if !ok {
		return errs.NewProtocolError("mux: input reply for message id %#x with no pending ask", id)
	}
	p.waiter.resolve(a, nil)
	return nil
}

// CancelInput resolves the pending ask() for id as cancelled, per a
// peer CancelInputAction.
func (m *Mux) CancelInput(id uint16) error {
	m.mu.Lock()
	p, ok := m.inputs[id]
	if ok {
		delete(m.inputs, id)
	}
	m.mu.Unlock()
	if !ok {
		return errs.NewProtocolError("mux: CancelInputAction for message id %#x with no pending ask", id)
	}
	p.waiter.resolve(nil, errs.ErrInputCancelled)
	return nil
}

// EndAsk releases the per-request nested-ask depth counter once a
// handler's ask() call has returned by any means (answered, cancelled,
// timed out).
func (m *Mux) EndAsk(id uint16) {
	m.mu.Lock()
	if m.depth[id] > 0 {
		m.depth[id]--
	}
	m.mu.Unlock()
}

// CloseAll fails every registered waiter and pending input with err
// (spec.md §4.4 CLOSED: "all pending input waiters are cancelled").
func (m *Mux) CloseAll(err error) {
	m.mu.Lock()
	m.closed = true
	waiters := m.waiters
	inputs := m.inputs
	m.waiters = make(map[uint16]*Waiter)
	m.inputs = make(map[uint16]*pendingInput)
	m.inbound = make(map[uint16]bool)
	m.mu.Unlock()

	for _, w := range waiters {
		w.resolve(nil, err)
	}
	for _, p := range inputs {
		p.waiter.resolve(nil, err)
	}
}
