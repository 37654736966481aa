// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

// Package broadcast implements the process-wide broadcast-channel
// registry (spec.md §4.4/§9): named channels, each fanning an action
// out to every currently subscribed connection. One mutex guards the
// whole registry, the same granularity map/client uses for its
// small shared subscriber tables — broadcast
// channel churn (subscribe/unsubscribe) is far rarer than per-action
// traffic, so a single non-reentrant lock is the right tradeoff over a
// per-channel lock hierarchy.
package broadcast

import (
	"fmt"
	"sync"

	"github.com/cifrazia/cats-go/core/action"
)

// Subscriber is the minimal connection-side surface the registry needs
// to fan a broadcast out. Connection implements it directly; keeping
// the dependency this narrow avoids an import cycle between conn and
// broadcast.
type Subscriber interface {
	// SendBroadcast delivers a on a broadcast message id. Implementations
	// must not block the registry's Publish call for long: a slow or
	// wedged subscriber should queue internally and return quickly.
	SendBroadcast(a action.Envelope) error
}

// Registry is a process-wide table of named broadcast channels. The
// zero value is not usable; use New.
type Registry struct {
	mu   sync.Mutex
	subs map[string]map[Subscriber]struct{}
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{subs: make(map[string]map[Subscriber]struct{})}
}

// Subscribe adds sub to channel name, returning an unsubscribe func.
// Calling the returned func more than once is a no-op.
func (r *Registry) Subscribe(name string, sub Subscriber) (unsubscribe func()) {
	r.mu.Lock()
	set, ok := r.subs[name]
	if !ok {
		set = make(map[Subscriber]struct{})
		r.subs[name] = set
	}
	set[sub] = struct{}{}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			if set, ok := r.subs[name]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(r.subs, name)
				}
			}
			r.mu.Unlock()
		})
	}
}

// Publish fans a out to every current subscriber of name, returning
// the number of subscribers it was delivered to and the first error
// encountered (delivery to remaining subscribers still proceeds).
func (r *Registry) Publish(name string, a action.Envelope) (int, error) {
	r.mu.Lock()
	set := r.subs[name]
	targets := make([]Subscriber, 0, len(set))
	for s := range set {
		targets = append(targets, s)
	}
	r.mu.Unlock()

	var firstErr error
	delivered := 0
	for _, s := range targets {
		if err := s.SendBroadcast(a); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("broadcast: delivering to channel %q: %w", name, err)
			}
			continue
		}
		delivered++
	}
	return delivered, firstErr
}

// SubscriberCount reports how many subscribers channel name currently
// has, for diagnostics and tests.
func (r *Registry) SubscriberCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[name])
}
