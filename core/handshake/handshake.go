// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package handshake implements the pluggable post-statement
// authentication exchange (spec.md §4.4/§6.1): the initiator writes a
// handshake token, the responder verifies it within a time window and
// writes a single accept/reject byte. The shipped scheme is a
// time-bounded SHA-256 of a shared secret.
//
// The secret is held in locked, zeroed-on-close memory via
// github.com/awnumar/memguard, used elsewhere in this codebase
// directly for protecting key material that must not be swapped to
// disk or linger in a GC'd byte slice.
package handshake

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"time"

	"github.com/awnumar/memguard"
)

// Scheme is a pluggable handshake implementation. Tokens are
// fixed-length (Size) so the wire exchange needs no length prefix,
// matching spec.md §6.1's "handshake bytes" with no framed length.
type Scheme interface {
	// Token returns the bytes the initiator sends.
	Token(now time.Time) ([]byte, error)
	// Verify checks a received token, returning nil on success.
	Verify(now time.Time, token []byte) error
	// Size is the fixed byte length of a token.
	Size() int
}

// TimeStep is the rounding granularity for the default SHA-256
// scheme's timestamp component (spec.md §6.1: "rounded down to 10s").
const TimeStep = 10 * time.Second

// SHA256Scheme is the default handshake: 32 raw bytes =
// sha256(secret_key || ascii_decimal(t_seconds_floor_to_10)). The
// responder tries t in {now, now±10s, now±20s, ...} up to
// ValidWindow*10s of slop (spec.md §6.1).
type SHA256Scheme struct {
	secret     *memguard.Enclave
	ValidWindow int
}

// NewSHA256Scheme locks secret in protected memory and returns a
// Scheme built on it. validWindow <= 0 defaults to 3 (±30s).
func NewSHA256Scheme(secret []byte, validWindow int) *SHA256Scheme {
	if validWindow <= 0 {
		validWindow = 3
	}
	buf := memguard.NewBufferFromBytes(append([]byte(nil), secret...))
	return &SHA256Scheme{secret: buf.Seal(), ValidWindow: validWindow}
}

func (s *SHA256Scheme) digest(t int64) ([]byte, error) {
	lb, err := s.secret.Open()
	if err != nil {
		return nil, fmt.Errorf("handshake: opening sealed secret: %w", err)
	}
	defer lb.Destroy()

	h := sha256.New()
	h.Write(lb.Bytes())
	h.Write([]byte(strconv.FormatInt(t, 10)))
	return h.Sum(nil), nil
}

func floorTo10(t time.Time) int64 {
	sec := t.Unix()
	return sec - (sec % int64(TimeStep/time.Second))
}

// Token implements Scheme.
func (s *SHA256Scheme) Token(now time.Time) ([]byte, error) {
	return s.digest(floorTo10(now))
}

// Verify implements Scheme, trying every candidate timestamp within
// ValidWindow*10s of now.
func (s *SHA256Scheme) Verify(now time.Time, token []byte) error {
	base := floorTo10(now)
	step := int64(TimeStep / time.Second)
	for i := -s.ValidWindow; i <= s.ValidWindow; i++ {
		candidate, err := s.digest(base + i*step)
		if err != nil {
			return err
		}
		if constantTimeEqual(candidate, token) {
			return nil
		}
	}
	return fmt.Errorf("handshake: token did not match any candidate within %d steps", s.ValidWindow)
}

// Size implements Scheme: SHA-256 digests are always 32 bytes.
func (s *SHA256Scheme) Size() int { return sha256.Size }

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
