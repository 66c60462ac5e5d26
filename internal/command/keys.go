// Package command implements the command execution runtime described in
// spec.md §4.7 (component C7): the orchestration heart that wires the
// circuit breaker (C3), worker pool (C5) or semaphore (C4), request cache
// and log (C6), and metrics aggregator (C2) into a single execute()/queue()
// pipeline per invocation.
package command

// CommandKey identifies one command class: it drives which metrics
// aggregator and circuit breaker a Command's executions share. GroupKey is
// a logical owner grouping commands for reporting. PoolKey selects the
// worker pool a Thread-isolated command submits to. Equality for all three
// is by (kind, name); names are case-sensitive — Go's own string equality
// already gives that, so each type is a thin, comparable wrapper rather
// than an interned-pointer scheme, kept distinct so a CommandKey can never
// be passed where a PoolKey is expected.
type CommandKey struct{ name string }

// NewCommandKey constructs a CommandKey for name.
func NewCommandKey(name string) CommandKey { return CommandKey{name: name} }

// String returns the key's name.
func (k CommandKey) String() string { return k.name }

// GroupKey groups commands for reporting purposes.
type GroupKey struct{ name string }

// NewGroupKey constructs a GroupKey for name.
func NewGroupKey(name string) GroupKey { return GroupKey{name: name} }

func (k GroupKey) String() string { return k.name }

// PoolKey selects a worker pool.
type PoolKey struct{ name string }

// NewPoolKey constructs a PoolKey for name.
func NewPoolKey(name string) PoolKey { return PoolKey{name: name} }

func (k PoolKey) String() string { return k.name }
