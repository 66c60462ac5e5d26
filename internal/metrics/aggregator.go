package metrics

import (
	"sync/atomic"
	"time"

	"github.com/vnykmshr/commandbreaker/internal/rolling"
)

// HealthCounts is the derived (totalCount, errorCount, errorPercentage)
// summary described in spec.md §3 ("Health snapshot"). ShortCircuited does
// not enter the error count: it's an effect of the breaker already being
// open, not a cause of tripping it. Fallback events never enter health.
type HealthCounts struct {
	TotalCount      int64
	ErrorCount      int64
	ErrorPercentage float64
}

// Aggregator is the per-command singleton wrapping one rolling.Number for
// events, one rolling.Percentile for latencies, and a concurrent-execution
// gauge. One Aggregator exists per CommandKey, created lazily by Registry.
type Aggregator struct {
	name string

	events  *rolling.Number
	latency *rolling.Percentile

	concurrentExecutions atomic.Int64

	healthInterval time.Duration
	healthMu       int32 // try-lock guarding healthCache recomputation
	healthCache    atomic.Pointer[cachedHealth]
}

type cachedHealth struct {
	at     time.Time
	counts HealthCounts
}

// Config controls how an Aggregator's rolling window and percentile ring are
// shaped; it mirrors the metrics.* properties in spec.md §3.
type Config struct {
	// Window is the total duration the rolling counters cover.
	Window time.Duration
	// Buckets is the number of buckets the window is divided into.
	Buckets int
	// PercentileBuckets/PercentileWindow/PercentileSamplesPerBucket shape
	// the latency reservoir independently of the event counters, per
	// spec.md's "parallel percentile ring" (§4.1).
	PercentileWindow            time.Duration
	PercentileBuckets           int
	PercentileSamplesPerBucket  int
	// HealthSnapshotInterval caps how often HealthCounts recomputes,
	// per spec.md §3 ("A snapshot is cached for healthSnapshot.interval").
	HealthSnapshotInterval time.Duration
}

// DefaultConfig matches Hystrix's classic defaults: a 10s rolling window in
// 10 buckets, a 60s/60-bucket percentile ring, and a 1s health snapshot
// cache.
func DefaultConfig() Config {
	return Config{
		Window:                     10 * time.Second,
		Buckets:                    10,
		PercentileWindow:           60 * time.Second,
		PercentileBuckets:          60,
		PercentileSamplesPerBucket: 100,
		HealthSnapshotInterval:     1 * time.Second,
	}
}

// NewAggregator builds an Aggregator for the given command name and config.
func NewAggregator(name string, cfg Config) *Aggregator {
	return &Aggregator{
		name:           name,
		events:         rolling.New(cfg.Window, cfg.Buckets),
		latency:        rolling.NewPercentile(cfg.PercentileWindow, cfg.PercentileBuckets, cfg.PercentileSamplesPerBucket),
		healthInterval: cfg.HealthSnapshotInterval,
	}
}

// MarkSuccess records a Success event with its latency. "Latent success is
// still success": the latency is recorded regardless of how large it is.
func (a *Aggregator) MarkSuccess(latency time.Duration) {
	a.events.Increment(int(Success))
	a.latency.Record(latency)
}

// MarkFailure records a Failure event with its latency.
func (a *Aggregator) MarkFailure(latency time.Duration) {
	a.events.Increment(int(Failure))
	a.latency.Record(latency)
}

// MarkTimeout records a Timeout event with its latency (typically >= the
// configured timeout budget).
func (a *Aggregator) MarkTimeout(latency time.Duration) {
	a.events.Increment(int(Timeout))
	a.latency.Record(latency)
}

// MarkShortCircuited records that the breaker refused the request.
func (a *Aggregator) MarkShortCircuited() { a.events.Increment(int(ShortCircuited)) }

// MarkThreadPoolRejection records a worker-pool admission rejection.
func (a *Aggregator) MarkThreadPoolRejection() { a.events.Increment(int(ThreadPoolRejected)) }

// MarkSemaphoreRejection records an execution-semaphore admission rejection.
func (a *Aggregator) MarkSemaphoreRejection() { a.events.Increment(int(SemaphoreRejected)) }

// MarkFallbackSuccess records that the fallback produced a value.
func (a *Aggregator) MarkFallbackSuccess() { a.events.Increment(int(FallbackSuccess)) }

// MarkFallbackFailure records that the fallback failed, was absent, or threw.
func (a *Aggregator) MarkFallbackFailure() { a.events.Increment(int(FallbackFailure)) }

// MarkFallbackRejection records that the fallback semaphore had no permit.
func (a *Aggregator) MarkFallbackRejection() { a.events.Increment(int(FallbackRejection)) }

// MarkExceptionThrown records that the caller observed a RuntimeFailure.
func (a *Aggregator) MarkExceptionThrown() { a.events.Increment(int(ExceptionThrown)) }

// MarkResponseFromCache records a per-request cache hit.
func (a *Aggregator) MarkResponseFromCache() { a.events.Increment(int(ResponseFromCache)) }

// MarkCollapsed records that batchSize requests were folded into one
// downstream call by the (out-of-scope) collapser.
func (a *Aggregator) MarkCollapsed(batchSize int64) { a.events.Add(int(Collapsed), batchSize) }

// IncrementConcurrentExecutions marks one more command body as running,
// updating the rolling max-updates gauge alongside the live atomic counter.
// Call before running user code; pair with DecrementConcurrentExecutions in
// a defer.
func (a *Aggregator) IncrementConcurrentExecutions() int64 {
	v := a.concurrentExecutions.Add(1)
	a.events.UpdateMax(int(concurrentExecutionGaugeEvent), v)
	return v
}

// DecrementConcurrentExecutions marks a command body as finished.
func (a *Aggregator) DecrementConcurrentExecutions() int64 {
	return a.concurrentExecutions.Add(-1)
}

// ConcurrentExecutionCount returns the instantaneous number of command
// bodies currently executing under this command.
func (a *Aggregator) ConcurrentExecutionCount() int64 {
	return a.concurrentExecutions.Load()
}

// RollingMaxConcurrentExecutions returns the peak concurrent-execution count
// observed within the rolling window.
func (a *Aggregator) RollingMaxConcurrentExecutions() int64 {
	return a.events.RollingMaxUpdates(int(concurrentExecutionGaugeEvent))
}

// EventCount returns the rolling sum for one event.
func (a *Aggregator) EventCount(e Event) int64 {
	return a.events.RollingSum(int(e))
}

// LatencyPercentile returns the pctile-th (0-100) latency percentile within
// the percentile ring's window.
func (a *Aggregator) LatencyPercentile(pctile float64) time.Duration {
	return a.latency.Percentile(pctile)
}

// LatencyMean returns the mean latency within the percentile ring's window.
func (a *Aggregator) LatencyMean() time.Duration {
	return a.latency.Mean()
}

// HealthCounts returns the (totalCount, errorCount, errorPercentage) derived
// snapshot, recomputing at most once per healthSnapshot.interval. Concurrent
// callers during the stale window share the same cached value; one of them
// recomputes via a non-blocking try-lock, identical in spirit to
// rolling.Number's rotation try-lock.
func (a *Aggregator) HealthCounts() HealthCounts {
	if cached := a.healthCache.Load(); cached != nil {
		if time.Since(cached.at) < a.healthInterval {
			return cached.counts
		}
	}

	if !atomic.CompareAndSwapInt32(&a.healthMu, 0, 1) {
		// Someone else is recomputing; serve the stale value rather than
		// blocking (readers may observe up to interval-stale values, per
		// spec.md §3).
		if cached := a.healthCache.Load(); cached != nil {
			return cached.counts
		}
		return HealthCounts{}
	}
	defer atomic.StoreInt32(&a.healthMu, 0)

	success := a.events.RollingSum(int(Success))
	failure := a.events.RollingSum(int(Failure))
	timeout := a.events.RollingSum(int(Timeout))
	threadRejected := a.events.RollingSum(int(ThreadPoolRejected))
	semaRejected := a.events.RollingSum(int(SemaphoreRejected))

	errorCount := failure + timeout + threadRejected + semaRejected
	total := success + errorCount

	var pct float64
	if total > 0 {
		pct = 100 * float64(errorCount) / float64(total)
	}

	counts := HealthCounts{TotalCount: total, ErrorCount: errorCount, ErrorPercentage: pct}
	a.healthCache.Store(&cachedHealth{at: time.Now(), counts: counts})
	return counts
}

// ResetRolling zeroes the event counters (latency samples are kept), used when the
// circuit breaker closes out of HalfOpen to avoid an immediate re-trip on
// stale error history (spec.md §4.3).
func (a *Aggregator) ResetRolling() {
	a.events.Reset()
}
