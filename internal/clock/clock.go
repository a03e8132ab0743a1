// Package clock abstracts waiting so timed flows can run without wall-clock
// delays in tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock tells time and waits.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is done, in which case it returns
	// ctx.Err().
	Sleep(ctx context.Context, d time.Duration) error
}

// Real sleeps on the wall clock.
type Real struct{}

// Now implements Clock.
func (Real) Now() time.Time {
	return time.Now()
}

// Sleep implements Clock.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fake records requested sleeps and returns immediately. Its time starts at
// the zero time.Time and advances by each recorded sleep.
type Fake struct {
	mu     sync.Mutex
	sleeps []time.Duration
	now    time.Time

	// OnSleep, if set, is called after each recorded sleep with the number
	// of sleeps so far.
	OnSleep func(n int, d time.Duration)
}

// Sleep implements Clock.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	n := len(f.sleeps)
	f.mu.Unlock()

	if f.OnSleep != nil {
		f.OnSleep(n, d)
	}
	return ctx.Err()
}

// Now implements Clock.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Sleeps returns the durations slept so far.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}
