// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit paces calls to a remote API under a fixed window policy:
// at most MaxCalls calls per Window. A caller arriving at an exhausted window
// is suspended until the window resets; calls are never rejected.
//
// Each Limiter is one call identity with its own window. Operations that the
// provider meters separately should use separate limiters. A Limiter is safe
// for concurrent use: the slot is reserved under a lock, so concurrent callers
// never exceed the policy.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// Policy of a Limiter.
type Policy struct {
	MaxCalls int           // must be > 0
	Window   time.Duration // must be > 0
}

// Validate the policy values.
func (p Policy) Validate() error {
	if p.MaxCalls <= 0 {
		return errors.Reason("MaxCalls = %d must be > 0", p.MaxCalls)
	}
	if p.Window <= 0 {
		return errors.Reason("Window = %s must be > 0", p.Window)
	}
	return nil
}

// Clock is the source of time and the way to wait. Tests substitute it with
// TestClock.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

// Limiter enforces a Policy for a single call identity.
type Limiter struct {
	name   string
	policy Policy
	clock  Clock

	mu          sync.Mutex
	calls       int       // calls admitted in the current window
	windowStart time.Time // zero until the first call
}

// New creates a Limiter. The name identifies it in logs. A nil clock means
// SystemClock. It panics on an invalid policy, which is a programming error.
func New(name string, p Policy, clock Clock) *Limiter {
	if err := p.Validate(); err != nil {
		panic(errors.Annotate(err, "invalid policy for limiter %s", name))
	}
	if clock == nil {
		clock = SystemClock
	}
	return &Limiter{name: name, policy: p, clock: clock}
}

// Name of the limiter.
func (l *Limiter) Name() string { return l.name }

// Policy of the limiter.
func (l *Limiter) Policy() Policy { return l.policy }

// reserve admits a call in the current window if possible. Otherwise it
// returns how long to wait for the window to reset.
func (l *Limiter) reserve() (wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if l.windowStart.IsZero() || !now.Before(l.windowStart.Add(l.policy.Window)) {
		l.windowStart = now
		l.calls = 0
	}
	if l.calls < l.policy.MaxCalls {
		l.calls++
		return 0, true
	}
	return l.windowStart.Add(l.policy.Window).Sub(now), false
}

// Wait blocks until a call may proceed and counts it against the current
// window. It returns an error only when ctx is done while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		wait, ok := l.reserve()
		if ok {
			return nil
		}
		logging.Debugf(ctx, "rate limiter %s: %d calls per %s exhausted, waiting %s",
			l.name, l.policy.MaxCalls, l.policy.Window, wait)
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return errors.Annotate(err, "rate limiter %s: wait interrupted", l.name)
		}
	}
}

// Do runs f once the limiter admits the call. The call counts against the
// window whether or not f succeeds.
func (l *Limiter) Do(ctx context.Context, f func() error) error {
	if err := l.Wait(ctx); err != nil {
		return err
	}
	return f()
}

// Calls returns the number of calls admitted in the window that is current at
// the time of the call.
func (l *Limiter) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.windowStart.IsZero() || !l.clock.Now().Before(l.windowStart.Add(l.policy.Window)) {
		return 0
	}
	return l.calls
}

// Wrap composes f with the limiter: the returned function waits for the
// limiter before each call to f.
func Wrap[T any](l *Limiter, f func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		var res T
		err := l.Do(ctx, func() error {
			var err error
			res, err = f(ctx)
			return err
		})
		return res, err
	}
}

// TestClock is a simulated clock for tests. Sleep advances the time instantly
// and records the requested duration.
type TestClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

var _ Clock = &TestClock{}

// NewTestClock starts the clock at t.
func NewTestClock(t time.Time) *TestClock {
	return &TestClock{now: t}
}

// Now implements Clock.
func (c *TestClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep implements Clock.
func (c *TestClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// Advance moves the clock forward without recording a sleep.
func (c *TestClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns a copy of all the recorded sleep durations.
func (c *TestClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration{}, c.sleeps...)
}
