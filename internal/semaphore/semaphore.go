// Package semaphore implements the non-blocking counting permit described in
// spec.md §4.4 (component C4): tryAcquire/release with no fairness, no
// queueing, and no blocking. max is polled on every acquire so properties
// reloads take effect without replacing the Semaphore.
//
// This does not wrap golang.org/x/sync/semaphore.Weighted: Weighted's
// capacity is fixed at construction, and spec.md §4.4 requires max to be
// re-read on every acquire (a live properties snapshot can change it between
// calls). Rebuilding a Weighted on every ceiling change would orphan permits
// already acquired against the old instance — a caller's later Release would
// target a different object than the one it acquired from. A CAS loop on a
// single atomic counter, in the same style internal/rolling and
// internal/breaker already use for their hot paths, gives the dynamic
// ceiling without that hazard. golang.org/x/sync is wired elsewhere in this
// module (internal/pool's errgroup-based shutdown) where its fixed-capacity
// model fits the worker pool's statically-sized core.
package semaphore

import "sync/atomic"

// MaxFunc returns the current permit ceiling, polled on every TryAcquire so
// limits can be tuned without replacing the Semaphore, per spec.md §4.4
// ("max is read from the properties snapshot on each acquire").
type MaxFunc func() int64

// Semaphore is a non-blocking counting permit with a dynamically re-readable
// ceiling.
type Semaphore struct {
	maxFunc MaxFunc
	inUse   atomic.Int64
}

// New creates a Semaphore whose ceiling is read from maxFunc on every
// acquire attempt.
func New(maxFunc MaxFunc) *Semaphore {
	return &Semaphore{maxFunc: maxFunc}
}

// TryAcquire attempts to reserve one permit, returning true on success. It
// never blocks and never queues: a caller that loses the race simply gets
// false back immediately.
func (s *Semaphore) TryAcquire() bool {
	max := s.maxFunc()
	for {
		current := s.inUse.Load()
		if current >= max {
			return false
		}
		if s.inUse.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release returns one permit.
func (s *Semaphore) Release() {
	s.inUse.Add(-1)
}

// InUse returns the instantaneous number of held permits.
func (s *Semaphore) InUse() int64 { return s.inUse.Load() }

// Max returns the current permit ceiling.
func (s *Semaphore) Max() int64 { return s.maxFunc() }

// Static returns a MaxFunc that always reports n, for callers with a fixed
// ceiling rather than a live properties snapshot.
func Static(n int64) MaxFunc {
	return func() int64 { return n }
}
