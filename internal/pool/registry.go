package pool

import (
	"sync"
	"time"
)

// Registry is the process-wide, PoolKey-keyed singleton map of Pools
// (spec.md §4.5 "Pool registry" / §5's shared-resource registries).
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]*Pool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*Pool)}
}

// GetOrCreate returns the Pool for name, constructing one with build on
// first access.
func (r *Registry) GetOrCreate(name string, build func() *Pool) *Pool {
	r.mu.RLock()
	if p, ok := r.byKey[name]; ok {
		r.mu.RUnlock()
		return p
	}
	r.mu.RUnlock()

	candidate := build()

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byKey[name]; ok {
		go candidate.Shutdown(0) // lost the race; don't leak its workers
		return existing
	}
	r.byKey[name] = candidate
	return candidate
}

// Get returns the Pool for name if one has been created.
func (r *Registry) Get(name string) (*Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byKey[name]
	return p, ok
}

// All returns a snapshot of every registered pool, keyed by name.
func (r *Registry) All() map[string]*Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Pool, len(r.byKey))
	for k, v := range r.byKey {
		out[k] = v
	}
	return out
}

// Shutdown stops accepting submissions on every registered pool and waits up
// to timeout (applied per pool) for them to drain, then empties the
// registry. After Shutdown, every pool reports IsShutdown()=true and the
// registry is empty, per spec.md §4.5.
func (r *Registry) Shutdown(timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.byKey {
		p.Shutdown(timeout)
	}
	r.byKey = make(map[string]*Pool)
}
