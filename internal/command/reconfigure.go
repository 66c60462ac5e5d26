package command

import (
	"github.com/vnykmshr/commandbreaker/internal/breaker"
	"github.com/vnykmshr/commandbreaker/internal/hystrixconfig"
)

// ConfigFromProperties builds a Config for key from a resolved
// hystrixconfig.CommandProperties/ThreadPoolProperties pair, the shape a
// PropertiesStrategy-backed caller uses instead of hand-assembling Config
// literals. Run and Fallback are never set here; the caller attaches those
// after the properties-derived fields are filled in.
func ConfigFromProperties(key CommandKey, props hystrixconfig.CommandProperties, pool hystrixconfig.ThreadPoolProperties) Config {
	cfg := Config{
		CommandKey: key,

		RequestCacheEnabled: props.RequestCacheEnabled,
		RequestLogEnabled:   props.RequestLogEnabled,

		ThreadTimeout:                  props.Execution.ThreadTimeout,
		InterruptOnTimeout:             props.Execution.InterruptOnTimeout,
		SemaphoreMaxConcurrentRequests: props.Execution.SemaphoreMaxConcurrentRequests,
		PoolCoreSize:                   pool.CoreSize,
		PoolMaxQueueSize:               pool.MaxQueueSize,
		PoolQueueRejectionThreshold:    pool.QueueSizeRejectionThreshold,

		FallbackEnabled:               props.Fallback.Enabled,
		FallbackMaxConcurrentRequests: props.Fallback.IsolationMaxConcurrentRequests,

		CircuitBreakerDisabled:            !props.CircuitBreaker.Enabled,
		CircuitBreakerRequestVolumeThresh: props.CircuitBreaker.RequestVolumeThreshold,
		CircuitBreakerErrorThresholdPct:   props.CircuitBreaker.ErrorThresholdPercentage,
		CircuitBreakerSleepWindow:         props.CircuitBreaker.SleepWindow,
		CircuitBreakerForceOpen:           props.CircuitBreaker.ForceOpen,
		CircuitBreakerForceClosed:         props.CircuitBreaker.ForceClosed,
	}
	if props.Execution.IsolationStrategy == "SEMAPHORE" {
		cfg.IsolationStrategy = Semaphore
	} else {
		cfg.IsolationStrategy = Thread
	}
	return cfg
}

// ReconfigureBreaker pushes props's circuit breaker fields into the live
// breaker for key, if one has already been constructed by a prior
// NewCommand call. This is the concrete mechanism behind spec.md §6's
// "configuration as an immutable snapshot... polled per use": each poll of
// a PropertiesStrategy produces a new snapshot, and the caller (typically a
// goroutine driven by hystrixconfig.YAMLPropertiesStrategy.Watch) pushes it
// here to take effect immediately rather than waiting for the next
// NewCommand call for that key. A key with no breaker yet constructed is a
// no-op: props is discarded, and the breaker is later built from the Config
// passed to the first NewCommand call for that key.
func (r *Runtime) ReconfigureBreaker(key CommandKey, props hystrixconfig.CommandProperties) error {
	cb, ok := r.breakers.Get(key.String())
	if !ok {
		return nil
	}
	cbProps := props.CircuitBreaker
	return cb.UpdateSettings(breaker.SettingsUpdate{
		Enabled:                  breaker.BoolPtr(cbProps.Enabled),
		RequestVolumeThreshold:   breaker.Uint64Ptr(cbProps.RequestVolumeThreshold),
		ErrorThresholdPercentage: breaker.Float64Ptr(cbProps.ErrorThresholdPercentage),
		SleepWindow:              breaker.DurationPtr(cbProps.SleepWindow),
		ForceOpen:                breaker.BoolPtr(cbProps.ForceOpen),
		ForceClosed:              breaker.BoolPtr(cbProps.ForceClosed),
	})
}
