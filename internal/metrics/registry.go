package metrics

import "sync"

// Registry is the process-wide, per-CommandKey-name singleton map of
// Aggregators described in spec.md §5 ("metrics registry... initialized
// lazily with check-then-insert race tolerated; losers discard their
// construct").
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]*Aggregator
	cfg   Config
}

// NewRegistry creates an empty Registry. Every Aggregator it constructs uses
// cfg unless a future per-command override is introduced; today all
// commands share one rolling-window shape, consistent with the teacher
// library's single global Settings-per-breaker shape generalized to
// per-command metrics.
func NewRegistry(cfg Config) *Registry {
	return &Registry{byKey: make(map[string]*Aggregator), cfg: cfg}
}

// GetOrCreate returns the Aggregator for name, constructing one on first
// access. Concurrent first-accessors race; only one construct wins and is
// stored, the other is discarded (check-then-insert, not compute-if-absent
// under a single lock held across construction, to keep the common "already
// exists" path lock-light).
func (r *Registry) GetOrCreate(name string) *Aggregator {
	r.mu.RLock()
	if a, ok := r.byKey[name]; ok {
		r.mu.RUnlock()
		return a
	}
	r.mu.RUnlock()

	candidate := NewAggregator(name, r.cfg)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byKey[name]; ok {
		return existing
	}
	r.byKey[name] = candidate
	return candidate
}

// Get returns the Aggregator for name if one has been created, or nil.
func (r *Registry) Get(name string) (*Aggregator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byKey[name]
	return a, ok
}

// All returns a snapshot map of every registered command name to its Aggregator, used by
// reporting/eventstream consumers that iterate the whole registry.
func (r *Registry) All() map[string]*Aggregator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Aggregator, len(r.byKey))
	for k, v := range r.byKey {
		out[k] = v
	}
	return out
}

// Reset clears the registry entirely — the "global reset" testing hook from
// spec.md §5, used to isolate test cases from one another.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey = make(map[string]*Aggregator)
}
