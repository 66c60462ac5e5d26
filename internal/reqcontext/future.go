// Package reqcontext implements the request-scoped ambient context described
// in spec.md §4.6 (component C6): a per-request cache of pending-or-complete
// futures keyed by (CommandKey, cache key), and a bounded append-only
// executed-command log used to render the request-log summary from §6.
//
// spec.md §9 explicitly calls for replacing thread-local ambient state with
// "an explicit, caller-supplied context value ... plus a convenience
// 'current context' slot keyed by the runtime's unit of concurrency" — the
// idiomatic Go answer to that is context.Context value propagation, which is
// what WithContext/FromContext below provide instead of a goroutine-local
// registry.
package reqcontext

import "sync"

// Future holds the eventual result of one command execution. It is an
// immutable result once Complete has been called: per spec.md §9's
// re-architecture note, cache hits get a wrapper that appends
// ResponseFromCache and reports -1 execution time rather than mutating the
// stored Future.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value interface{}
	err   error
}

// NewFuture creates an incomplete Future.
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Complete resolves the future exactly once; subsequent calls are no-ops.
func (f *Future) Complete(value interface{}, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the future is resolved and returns its value.
func (f *Future) Wait() (interface{}, error) {
	<-f.done
	return f.value, f.err
}

// Done reports whether the future has resolved, without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
