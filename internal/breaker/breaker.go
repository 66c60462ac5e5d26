package breaker

import (
	"math"
	"sync/atomic"
	"time"
)

// HealthCounts is the derived error-rate snapshot a HealthSource provides.
// It mirrors metrics.HealthCounts field-for-field; the breaker package
// doesn't import metrics directly to avoid a dependency cycle risk as the
// command package wires both together, so it declares its own identical
// shape and internal/command's healthAdapter converts metrics.HealthCounts
// to it.
type HealthCounts struct {
	TotalCount      int64
	ErrorCount      int64
	ErrorPercentage float64
}

// HealthSource supplies the rolling health snapshot a CircuitBreaker trips
// on, and the reset hook called when the breaker closes back up out of
// HalfOpen. internal/command's healthAdapter wraps a *metrics.Aggregator to
// satisfy this interface.
type HealthSource interface {
	HealthCounts() HealthCounts
	ResetRolling()
}

// CircuitBreaker is the per-command gate described in spec.md §4.3. Unlike
// the teacher library's CircuitBreaker, it does not wrap request execution:
// callers call AllowRequest before running a command body, then report the
// outcome via OnSuccess or OnFailure. All mutable state is atomic; there is
// no mutex on the hot path.
type CircuitBreaker struct {
	name   string
	health HealthSource

	enabled     atomic.Bool
	forceOpen   atomic.Bool
	forceClosed atomic.Bool

	requestVolumeThreshold atomic.Uint64
	errorThresholdPct      atomic.Uint64 // math.Float64bits
	sleepWindowNanos       atomic.Int64

	state          atomic.Int32
	openedAt       atomic.Int64 // unix nanos; when the breaker most recently opened
	stateChangedAt atomic.Int64

	onStateChange func(name string, from, to State)
}

// New constructs a CircuitBreaker reading health from health. Panics on
// invalid settings, mirroring the teacher library's validate-at-construction
// convention.
func New(settings Settings, health HealthSource) *CircuitBreaker {
	if health == nil {
		panic("breaker: HealthSource must not be nil")
	}
	if settings.ErrorThresholdPercentage < 0 || settings.ErrorThresholdPercentage > 100 {
		panic("breaker: ErrorThresholdPercentage must be within [0, 100]")
	}
	if settings.SleepWindow < 0 {
		panic("breaker: SleepWindow must be >= 0")
	}

	sleepWindow := settings.SleepWindow
	if sleepWindow == 0 {
		sleepWindow = 5 * time.Second
	}

	cb := &CircuitBreaker{
		name:          settings.Name,
		health:        health,
		onStateChange: settings.OnStateChange,
	}
	cb.enabled.Store(settings.Enabled)
	cb.forceOpen.Store(settings.ForceOpen)
	cb.forceClosed.Store(settings.ForceClosed)
	cb.requestVolumeThreshold.Store(settings.RequestVolumeThreshold)
	cb.errorThresholdPct.Store(math.Float64bits(settings.ErrorThresholdPercentage))
	cb.sleepWindowNanos.Store(int64(sleepWindow))
	cb.state.Store(int32(StateClosed))
	now := time.Now().UnixNano()
	cb.stateChangedAt.Store(now)
	return cb
}

// Name returns the breaker's identifying name.
func (cb *CircuitBreaker) Name() string { return cb.name }

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() State { return State(cb.state.Load()) }

// IsOpen reports whether the breaker is currently refusing admission. It is
// a read-only view: unlike AllowRequest, it never triggers a Closed→Open
// trip or an Open→HalfOpen transition, so it's safe for dashboards and
// health checks to poll without side effects.
func (cb *CircuitBreaker) IsOpen() bool {
	if cb.forceOpen.Load() {
		return true
	}
	if cb.forceClosed.Load() || !cb.enabled.Load() {
		return false
	}
	s := cb.State()
	return s == StateOpen || s == StateHalfOpen
}

// AllowRequest evaluates whether a new execution may proceed, performing any
// due state transition as a side effect: it may trip Closed→Open on
// unhealthy metrics (refusing the call that trips it), or admit a single
// HalfOpen probe once SleepWindow has
// elapsed since the breaker opened.
//
// Exactly one caller is admitted per sleep window while the breaker is Open:
// the CAS winner of the Open→HalfOpen transition below. Every other
// concurrent caller, and every caller while the state is already HalfOpen,
// is refused until OnSuccess or OnFailure resolves the in-flight probe.
func (cb *CircuitBreaker) AllowRequest() bool {
	if cb.forceOpen.Load() {
		return false
	}
	if !cb.enabled.Load() || cb.forceClosed.Load() {
		return true
	}

	switch cb.State() {
	case StateClosed:
		cb.maybeTrip()
		return cb.State() == StateClosed
	case StateOpen:
		if !cb.sleepWindowElapsed() {
			return false
		}
		return cb.tryTransitionToHalfOpen()
	case StateHalfOpen:
		return false
	default:
		return true
	}
}

// OnSuccess reports that an admitted execution succeeded. In HalfOpen, this
// resolves the probe by closing the circuit and resetting rolling health so
// the stale failure history that tripped the breaker doesn't immediately
// re-trip it.
func (cb *CircuitBreaker) OnSuccess() {
	if cb.State() == StateHalfOpen {
		cb.transitionTo(StateClosed)
		cb.health.ResetRolling()
	}
}

// OnFailure reports that an admitted execution failed. In HalfOpen, this
// resolves the probe by reopening the circuit for another full sleep
// window.
func (cb *CircuitBreaker) OnFailure() {
	if cb.State() == StateHalfOpen {
		cb.openedAt.Store(time.Now().UnixNano())
		cb.transitionTo(StateOpen)
	}
}

func (cb *CircuitBreaker) maybeTrip() {
	counts := cb.health.HealthCounts()
	if uint64(counts.TotalCount) < cb.requestVolumeThreshold.Load() {
		return
	}
	threshold := math.Float64frombits(cb.errorThresholdPct.Load())
	if counts.ErrorPercentage < threshold {
		return
	}
	if cb.state.CompareAndSwap(int32(StateClosed), int32(StateOpen)) {
		cb.openedAt.Store(time.Now().UnixNano())
		cb.stateChangedAt.Store(time.Now().UnixNano())
		cb.notify(StateClosed, StateOpen)
	}
}

func (cb *CircuitBreaker) sleepWindowElapsed() bool {
	elapsed := time.Duration(time.Now().UnixNano() - cb.openedAt.Load())
	return elapsed >= time.Duration(cb.sleepWindowNanos.Load())
}

func (cb *CircuitBreaker) tryTransitionToHalfOpen() bool {
	if cb.state.CompareAndSwap(int32(StateOpen), int32(StateHalfOpen)) {
		cb.stateChangedAt.Store(time.Now().UnixNano())
		cb.notify(StateOpen, StateHalfOpen)
		return true
	}
	return false
}

func (cb *CircuitBreaker) transitionTo(to State) {
	from := cb.State()
	if cb.state.CompareAndSwap(int32(from), int32(to)) {
		cb.stateChangedAt.Store(time.Now().UnixNano())
		cb.notify(from, to)
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	if cb.onStateChange != nil {
		safeCallOnStateChange(cb.onStateChange, cb.name, from, to)
	}
}
