// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package scheduler implements the CATS send scheduler and
// download-rate limiter (spec.md §4.6): a single FIFO write path per
// connection, paced by a golang.org/x/time/rate token bucket when a
// DownloadSpeedAction has set a nonzero cap. Token-bucket pacing over
// the monotonic clock is exactly the domain dependency the corpus's
// rate-shaping backup agent reaches for; we reuse it here instead of
// hand-rolling a leaky bucket.
package scheduler

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Scheduler serializes writes for one connection and optionally paces
// them to a bytes-per-second ceiling.
type Scheduler struct {
	writeMu sync.Mutex // spec.md §4.2/§4.6: the per-connection write lock

	rateMu  sync.Mutex
	limiter *rate.Limiter // nil when unthrottled
}

// New returns an unthrottled Scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// SetLimit installs or clears the download-rate cap, in bytes per
// second. bytesPerSec <= 0 disables shaping (spec.md §4.5/§6.1:
// DownloadSpeedAction with speed 0 means "no reply, no cap").
//
// The limiter's burst equals one second's worth of bytes, so pacing is
// evaluated over a rolling ~1s window as spec.md §4.6 specifies,
// without forcing every single write down to exactly the per-second
// rate (which would serialize unrelated small writes needlessly).
func (s *Scheduler) SetLimit(bytesPerSec int) {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()
	if bytesPerSec <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
}

// Wait blocks, if a rate cap is set, until n bytes may be sent without
// exceeding it. It never reorders writes: callers serialize through
// Lock/Unlock around the whole write, so Wait+write+Unlock for one
// action always completes before the next caller's Wait begins.
func (s *Scheduler) Wait(ctx context.Context, n int) error {
	s.rateMu.Lock()
	lim := s.limiter
	s.rateMu.Unlock()
	if lim == nil {
		return nil
	}
	// The bucket holds one second's worth of bytes; n may exceed the
	// limiter's burst for large actions, so reserve in burst-sized
	// slices rather than failing outright.
	burst := lim.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := lim.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Lock acquires the write lock for the duration of one outbound
// action. Every action, streaming ones included, is written whole while
// the lock is held; it is never released between stream chunks.
func (s *Scheduler) Lock() { s.writeMu.Lock() }

// Unlock releases the write lock.
func (s *Scheduler) Unlock() { s.writeMu.Unlock() }
