// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package mux

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cifrazia/cats-go/core/action"
	"github.com/cifrazia/cats-go/core/errs"
)

func TestResolveWakesWaiter(t *testing.T) {
	m := New()
	id, err := m.AllocateID()
	require.NoError(t, err)

	w, err := m.Register(id)
	require.NoError(t, err)

	reply := &action.Action{MessageID: id}
	require.NoError(t, m.Resolve(id, reply))

	got, err := w.Wait()
	require.NoError(t, err)
	require.Equal(t, reply, got)
}

func TestResolveDuplicateIsProtocolError(t *testing.T) {
	m := New()
	id, err := m.AllocateID()
	require.NoError(t, err)
	_, err = m.Register(id)
	require.NoError(t, err)

	require.NoError(t, m.Resolve(id, &action.Action{MessageID: id}))
	err = m.Resolve(id, &action.Action{MessageID: id})
	require.Error(t, err)
}

func TestIsActive(t *testing.T) {
	m := New()
	id, err := m.AllocateID()
	require.NoError(t, err)
	require.False(t, m.IsActive(id))

	_, err = m.Register(id)
	require.NoError(t, err)
	require.True(t, m.IsActive(id))

	require.NoError(t, m.Resolve(id, &action.Action{}))
	require.False(t, m.IsActive(id))
}

func TestBeginAskDepthLimit(t *testing.T) {
	m := New()
	const id = uint16(1)

	for i := 0; i < 2; i++ {
		w, err := m.BeginAsk(id, 2, false)
		require.NoError(t, err)
		require.NoError(t, m.ResolveInput(id, &action.InputAction{MessageID: id}))
		_, err = w.Wait()
		require.NoError(t, err)
		m.EndAsk(id)
	}

	// Depth counter released by EndAsk after each round, so a third
	// round is still within the limit of 2.
	_, err := m.BeginAsk(id, 2, false)
	require.NoError(t, err)
}

func TestBeginAskDepthLimitExceededWithoutEndAsk(t *testing.T) {
	m := New()
	const id = uint16(2)

	_, err := m.BeginAsk(id, 1, false)
	require.NoError(t, err)
	// Answer the first ask so the second fails on depth, not on a
	// still-pending input for the same id.
	require.NoError(t, m.ResolveInput(id, &action.InputAction{MessageID: id}))

	_, err = m.BeginAsk(id, 1, false)
	require.ErrorIs(t, err, errs.ErrInputLimitExceeded)
}

func TestBeginAskBypassCount(t *testing.T) {
	m := New()
	const id = uint16(3)

	_, err := m.BeginAsk(id, 1, true)
	require.NoError(t, err)
	// bypassCount skips the depth increment entirely, so this fails not
	// on depth but because id already has a pending input.
	_, err = m.BeginAsk(id, 1, true)
	require.Error(t, err)
}

func TestCancelInput(t *testing.T) {
	m := New()
	const id = uint16(4)

	w, err := m.BeginAsk(id, 1, false)
	require.NoError(t, err)

	require.NoError(t, m.CancelInput(id))
	_, err = w.Wait()
	require.ErrorContains(t, err, "cancelled")
}

func TestAllocateIDSkipsReservedInbound(t *testing.T) {
	m := New()
	m.nextID = 5

	m.ReserveInbound(5)
	id, err := m.AllocateID()
	require.NoError(t, err)
	require.NotEqual(t, uint16(5), id)

	m.ReleaseInbound(5)
	m.nextID = 5
	id, err = m.AllocateID()
	require.NoError(t, err)
	require.Equal(t, uint16(5), id)
}

func TestCloseAllFailsWaiters(t *testing.T) {
	m := New()
	id, err := m.AllocateID()
	require.NoError(t, err)
	w, err := m.Register(id)
	require.NoError(t, err)

	m.CloseAll(require.AnError)
	_, err = w.Wait()
	require.Error(t, err)
}
