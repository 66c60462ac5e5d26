package command

import (
	"context"
	"time"
)

// RunFunc is a command body: the externally-dependent call the runtime
// isolates, times, and governs. It receives a context.Context derived from
// the caller's, cancelled when InterruptOnTimeout fires so well-behaved Run
// implementations can abandon in-flight work promptly.
type RunFunc func(ctx context.Context) (interface{}, error)

// FallbackFunc produces a degraded result when Run cannot. cause is the
// originating error (nil for a short-circuit or rejection that never ran
// Run).
type FallbackFunc func(ctx context.Context, cause error) (interface{}, error)

// Config configures one Command. Each field maps onto a properties-snapshot
// option from spec.md §3.
type Config struct {
	CommandKey CommandKey
	GroupKey   GroupKey
	PoolKey    PoolKey // zero value: defaults to GroupKey, then CommandKey

	Run      RunFunc
	Fallback FallbackFunc

	RequestCacheEnabled bool
	CacheKey            string // empty disables caching for this instance regardless of RequestCacheEnabled
	RequestLogEnabled   bool

	IsolationStrategy           IsolationStrategy
	ThreadTimeout               time.Duration // execution.isolation.thread.timeout
	InterruptOnTimeout          bool          // execution.isolation.thread.interruptOnTimeout
	PoolCoreSize                int
	PoolMaxQueueSize            int
	PoolQueueRejectionThreshold int

	SemaphoreMaxConcurrentRequests int64 // execution.isolation.semaphore.maxConcurrentRequests

	FallbackEnabled               bool
	FallbackMaxConcurrentRequests int64 // fallback.isolation.semaphore.maxConcurrentRequests

	CircuitBreakerDisabled            bool // set true to force-bypass breaker gating entirely
	CircuitBreakerRequestVolumeThresh uint64
	CircuitBreakerErrorThresholdPct   float64
	CircuitBreakerSleepWindow         time.Duration
	CircuitBreakerForceOpen           bool
	CircuitBreakerForceClosed         bool

	Hook                ExecutionHook
	Notifier            EventNotifier
	ConcurrencyStrategy ConcurrencyStrategy
}

func (c *Config) applyDefaults() {
	if c.ThreadTimeout <= 0 {
		c.ThreadTimeout = 1 * time.Second
	}
	if c.PoolCoreSize <= 0 {
		c.PoolCoreSize = 10
	}
	if c.PoolMaxQueueSize <= 0 {
		c.PoolMaxQueueSize = 10
	}
	if c.PoolQueueRejectionThreshold <= 0 {
		c.PoolQueueRejectionThreshold = c.PoolMaxQueueSize
	}
	if c.SemaphoreMaxConcurrentRequests <= 0 {
		c.SemaphoreMaxConcurrentRequests = 10
	}
	if c.FallbackMaxConcurrentRequests <= 0 {
		c.FallbackMaxConcurrentRequests = 10
	}
	if c.CircuitBreakerRequestVolumeThresh == 0 {
		c.CircuitBreakerRequestVolumeThresh = 20
	}
	if c.CircuitBreakerErrorThresholdPct == 0 {
		c.CircuitBreakerErrorThresholdPct = 50
	}
	if c.CircuitBreakerSleepWindow <= 0 {
		c.CircuitBreakerSleepWindow = 5 * time.Second
	}
	if c.PoolKey == (PoolKey{}) {
		if c.GroupKey != (GroupKey{}) {
			c.PoolKey = PoolKey{name: c.GroupKey.name}
		} else {
			c.PoolKey = PoolKey{name: c.CommandKey.name}
		}
	}
	if c.Hook == nil {
		c.Hook = NoopHook{}
	}
	if c.Notifier == nil {
		c.Notifier = NoopNotifier{}
	}
	if c.ConcurrencyStrategy == nil {
		c.ConcurrencyStrategy = PassthroughConcurrencyStrategy{}
	}
}
