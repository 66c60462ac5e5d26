// Package breaker implements the health-driven circuit breaker state machine
// (spec.md §4.3, component C3): a three-state machine (Closed/Open/HalfOpen)
// that reads error-rate health from an external HealthSource (in practice,
// a metrics.Aggregator) rather than keeping its own request counts.
//
// This package descends from the teacher library's internal/breaker package:
// it keeps the same lock-free, atomic-fields-only architecture, the same
// CAS-based single-probe admission for Open→HalfOpen, and the same State
// naming and panic-safety conventions. What changes is the trip decision and
// the shape of the public API: the teacher's CircuitBreaker wrapped request
// execution itself (Execute/ExecuteContext) and tracked its own Counts; this
// breaker only gates admission (AllowRequest/OnSuccess/OnFailure) and asks an
// external HealthSource for the rolling (totalCount, errorCount,
// errorPercentage) snapshot described in spec.md §3 and §4.2, so metrics stay
// the single source of truth across every consumer (breaker, eventstream,
// dashboards) instead of being duplicated per consumer. Execution
// orchestration belongs to the command package (C7), which calls AllowRequest
// before running a command body and OnSuccess/OnFailure after.
package breaker

import (
	"errors"
	"time"
)

// State is the circuit breaker's current position in the Closed/Open/HalfOpen
// state machine.
type State int32

const (
	// StateClosed: requests are allowed through; health is opportunistically
	// evaluated on every AllowRequest call and may trip the breaker as a
	// side effect.
	StateClosed State = iota
	// StateOpen: requests are rejected outright except for the single probe
	// admitted once per SleepWindow.
	StateOpen
	// StateHalfOpen: exactly one probe request is in flight, testing
	// recovery. All other callers are rejected until it resolves.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpenState names the breaker's refusal of admission, mirroring the
// teacher library's error of the same name. Nothing in this module returns
// it: the command runtime uses AllowRequest's bool return directly and maps
// a false result to the ShortCircuited event rather than allocating this
// error on every rejection.
var ErrOpenState = errors.New("breaker: circuit is open")

// Settings configures a CircuitBreaker. Every field maps directly onto a
// circuitBreaker.* property from spec.md §3.
type Settings struct {
	// Name identifies the breaker (and its owning command) for logging.
	Name string

	// Enabled disables breaker gating entirely when false: AllowRequest
	// always returns true and IsOpen always returns false (a no-op
	// breaker), per spec.md §3 ("circuitBreaker.enabled").
	Enabled bool

	// RequestVolumeThreshold is the minimum totalCount within the rolling
	// window before the breaker may trip, preventing a handful of failures
	// at low traffic from tripping the circuit prematurely.
	RequestVolumeThreshold uint64

	// ErrorThresholdPercentage is the error rate (0-100) at or above which
	// the breaker opens, once RequestVolumeThreshold is satisfied.
	ErrorThresholdPercentage float64

	// SleepWindow is how long the breaker stays Open before admitting a
	// single HalfOpen probe.
	SleepWindow time.Duration

	// ForceOpen administratively forces the breaker open regardless of
	// health, for incident response or maintenance windows.
	ForceOpen bool

	// ForceClosed administratively forces the breaker closed regardless of
	// health. Requests still flow through and are still counted, per
	// spec.md §4.3 ("effective, but counts still recorded").
	ForceClosed bool

	// OnStateChange is called whenever the breaker transitions between
	// states, in the teacher library's OnStateChange tradition. Optional.
	OnStateChange func(name string, from, to State)
}

// DefaultSettings returns the Hystrix-classic defaults: a 20-request volume
// threshold, 50% error threshold, and a 5s sleep window.
func DefaultSettings(name string) Settings {
	return Settings{
		Name:                     name,
		Enabled:                  true,
		RequestVolumeThreshold:   20,
		ErrorThresholdPercentage: 50,
		SleepWindow:              5 * time.Second,
	}
}

// SettingsUpdate carries a partial update for UpdateSettings; nil fields
// leave the corresponding setting unchanged, matching the teacher library's
// SettingsUpdate pointer-semantics pattern (all-or-nothing validation, then
// apply).
type SettingsUpdate struct {
	Enabled                  *bool
	RequestVolumeThreshold   *uint64
	ErrorThresholdPercentage *float64
	SleepWindow              *time.Duration
	ForceOpen                *bool
	ForceClosed              *bool
}

// BoolPtr, Uint64Ptr, Float64Ptr and DurationPtr build SettingsUpdate fields,
// mirroring the teacher library's Uint32Ptr/DurationPtr/Float64Ptr helpers.
func BoolPtr(v bool) *bool                       { return &v }
func Uint64Ptr(v uint64) *uint64                 { return &v }
func Float64Ptr(v float64) *float64              { return &v }
func DurationPtr(v time.Duration) *time.Duration { return &v }
