// Copyright 2026 The Canopy Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake is a Clock whose time only moves when the test calls Advance or
// Set. After channels fire when the fake time passes their deadline.
// Sleep returns immediately — single-threaded tests would otherwise
// deadlock waiting for an Advance that nothing can issue.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewFake returns a Fake clock starting at a fixed, arbitrary instant.
// Tests that care about the absolute value should call Set first.
func NewFake() *Fake {
	return &Fake{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the fake time to t and fires any waiters whose deadline
// has passed.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.fireLocked()
	f.mu.Unlock()
}

// Advance moves the fake time forward by d and fires any waiters whose
// deadline has passed.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.fireLocked()
	f.mu.Unlock()
}

// After returns a channel that receives when the fake time reaches
// now+d. If d <= 0 the channel receives immediately.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- f.now
		return ch
	}
	f.waiters = append(f.waiters, fakeWaiter{deadline: f.now.Add(d), ch: ch})
	return ch
}

// Sleep returns immediately. See the type comment.
func (f *Fake) Sleep(time.Duration) {}

// fireLocked delivers to every waiter whose deadline is at or before
// the current fake time. Caller holds f.mu.
func (f *Fake) fireLocked() {
	remaining := f.waiters[:0]
	for _, waiter := range f.waiters {
		if !waiter.deadline.After(f.now) {
			waiter.ch <- f.now
		} else {
			remaining = append(remaining, waiter)
		}
	}
	f.waiters = remaining
}
