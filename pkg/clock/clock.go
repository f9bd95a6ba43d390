// Package clock abstracts time so workflow timestamps and retry backoff
// can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source injected into systems that stamp records or wait.
type Clock interface {
	Now() time.Time
	// After behaves like time.After. A zero or negative d fires immediately.
	After(d time.Duration) <-chan time.Time
}

type system struct{}

// Real returns a Clock backed by the time package. Times are UTC.
func Real() Clock {
	return system{}
}

func (system) Now() time.Time {
	return time.Now().UTC()
}

func (system) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Fake is a manually controlled Clock. After never blocks: it advances
// the fake time by d and fires at once.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake creates a Fake starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start.UTC()}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- f.Advance(max(d, 0))
	return ch
}

// Advance moves the fake time forward and returns the new instant.
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}

// Set jumps the fake time to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC()
}
