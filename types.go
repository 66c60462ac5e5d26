package commandbreaker

import (
	"github.com/vnykmshr/commandbreaker/internal/breaker"
	"github.com/vnykmshr/commandbreaker/internal/metrics"
	"github.com/vnykmshr/commandbreaker/internal/pool"
	"github.com/vnykmshr/commandbreaker/internal/publish"
)

// Breaker Settings
//
// Settings configures a single CircuitBreaker: its tripping thresholds and
// its sleep window (the rolling window the thresholds are measured over is
// sized by MetricsConfig). SettingsUpdate carries a partial,
// pointer-based update applied atomically by CircuitBreaker.UpdateSettings,
// and by Runtime.ReconfigureBreaker when a PropertiesStrategy reload
// changes a live command's circuit breaker properties.
type Settings = breaker.Settings
type SettingsUpdate = breaker.SettingsUpdate

// DefaultSettings returns the Hystrix-classic breaker defaults for name.
var DefaultSettings = breaker.DefaultSettings

// BoolPtr, Uint64Ptr, Float64Ptr, and DurationPtr build the pointer fields
// of a SettingsUpdate from plain values.
var (
	BoolPtr     = breaker.BoolPtr
	Uint64Ptr   = breaker.Uint64Ptr
	Float64Ptr  = breaker.Float64Ptr
	DurationPtr = breaker.DurationPtr
)

// ErrOpenState names a CircuitBreaker's refusal of admission. Nothing in
// this module returns it: the command runtime records a refused admission
// as a ShortCircuited event and takes the fallback path instead.
var ErrOpenState = breaker.ErrOpenState

// HealthCounts is the rolling success/failure tally a CircuitBreaker reads
// from its HealthSource to decide whether to trip. The command runtime
// adapts each command's Aggregator to HealthSource.
type HealthCounts = breaker.HealthCounts
type HealthSource = breaker.HealthSource

// Metrics
//
// MetricsConfig sizes the rolling statistical window every command's
// Aggregator maintains (bucket count, bucket duration, percentile
// histogram buckets, and the health-snapshot cache interval the
// CircuitBreaker polls through).
type MetricsConfig = metrics.Config

// DefaultMetricsConfig returns the Hystrix-classic rolling window sizing:
// ten one-second buckets, a one-second cached health snapshot.
var DefaultMetricsConfig = metrics.DefaultConfig

// Event enumerates the kinds of outcomes an Aggregator tallies per
// command: Success, Failure, Timeout, ShortCircuited, ThreadPoolRejected,
// SemaphoreRejected, FallbackSuccess, FallbackFailure, FallbackRejection,
// ExceptionThrown, ResponseFromCache, and Collapsed.
type Event = metrics.Event

const (
	Success            = metrics.Success
	Failure            = metrics.Failure
	TimeoutEvent       = metrics.Timeout
	ShortCircuited     = metrics.ShortCircuited
	ThreadPoolRejected = metrics.ThreadPoolRejected
	SemaphoreRejected  = metrics.SemaphoreRejected
	FallbackSuccess    = metrics.FallbackSuccess
	FallbackFailure    = metrics.FallbackFailure
	FallbackRejection  = metrics.FallbackRejection
	ExceptionThrown    = metrics.ExceptionThrown
	ResponseFromCache  = metrics.ResponseFromCache
	Collapsed          = metrics.Collapsed
)

// Aggregator is the per-command rolling window of event counts, concurrent
// execution gauges, and latency percentiles that a CircuitBreaker reads its
// HealthCounts from and a MetricsPublisher snapshots for reporting.
type Aggregator = metrics.Aggregator

// Pool is the bounded worker pool a Thread-isolated command submits its
// executions to.
type Pool = pool.Pool

// Publishing
//
// CommandSnapshot and PoolSnapshot are the point-in-time views a
// MetricsPublisher receives once per Poller tick, for one command or one
// worker pool respectively.
type CommandSnapshot = publish.CommandSnapshot
type PoolSnapshot = publish.PoolSnapshot

// Poller is the periodic loop that snapshots every registered command and
// pool and hands each snapshot to a MetricsPublisher.
type Poller = publish.Poller

// LogPublisher and PrometheusCollector are the two metrics outputs shipped
// alongside the runtime: LogPublisher is a MetricsPublisher that writes one
// line per snapshot through a standard library *log.Logger, and
// PrometheusCollector is a prometheus.Collector (not a MetricsPublisher)
// that exposes every command and pool as Prometheus metrics on demand.
type LogPublisher = publish.LogPublisher
type PrometheusCollector = publish.PrometheusCollector
