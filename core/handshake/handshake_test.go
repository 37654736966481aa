// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package handshake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSHA256SchemeVerifyAcceptsWithinWindow(t *testing.T) {
	s := NewSHA256Scheme([]byte("shared-secret"), 1)
	now := time.Now()

	token, err := s.Token(now)
	require.NoError(t, err)
	require.Equal(t, s.Size(), len(token))

	require.NoError(t, s.Verify(now.Add(5*time.Second), token))
}

func TestSHA256SchemeVerifyRejectsOutsideWindow(t *testing.T) {
	s := NewSHA256Scheme([]byte("shared-secret"), 1)
	now := time.Now()

	token, err := s.Token(now)
	require.NoError(t, err)

	require.Error(t, s.Verify(now.Add(time.Hour), token))
}

func TestSHA256SchemeVerifyRejectsWrongSecret(t *testing.T) {
	a := NewSHA256Scheme([]byte("secret-a"), 3)
	b := NewSHA256Scheme([]byte("secret-b"), 3)
	now := time.Now()

	token, err := a.Token(now)
	require.NoError(t, err)
	require.Error(t, b.Verify(now, token))
}
