// Package hystrixconfig resolves per-command configuration snapshots
// (spec.md §3, §6): an immutable CommandProperties/ThreadPoolProperties pair
// per key, refreshed by re-polling a PropertiesStrategy rather than mutated
// in place. The command runtime (internal/command) never polls a strategy
// itself: its callers turn a resolved snapshot into a Config
// (ConfigFromProperties) or push it into a live breaker
// (Runtime.ReconfigureBreaker). Nothing here is read on a command's hot path.
package hystrixconfig

import "time"

// CircuitBreakerProperties mirrors the circuitBreaker.* group from spec.md §3.
type CircuitBreakerProperties struct {
	Enabled                  bool          `yaml:"enabled"`
	RequestVolumeThreshold   uint64        `yaml:"requestVolumeThreshold"`
	ErrorThresholdPercentage float64       `yaml:"errorThresholdPercentage"`
	SleepWindow              time.Duration `yaml:"sleepWindow"`
	ForceOpen                bool          `yaml:"forceOpen"`
	ForceClosed              bool          `yaml:"forceClosed"`
}

// ExecutionProperties mirrors the execution.isolation.* group.
type ExecutionProperties struct {
	IsolationStrategy              string        `yaml:"isolationStrategy"` // "THREAD" or "SEMAPHORE"
	ThreadTimeout                  time.Duration `yaml:"threadTimeout"`
	InterruptOnTimeout             bool          `yaml:"interruptOnTimeout"`
	SemaphoreMaxConcurrentRequests int64         `yaml:"semaphoreMaxConcurrentRequests"`
}

// FallbackProperties mirrors the fallback.* group.
type FallbackProperties struct {
	Enabled                        bool  `yaml:"enabled"`
	IsolationMaxConcurrentRequests int64 `yaml:"isolationMaxConcurrentRequests"`
}

// ThreadPoolProperties mirrors one named thread pool's properties, shared by
// every command whose PoolKey resolves to it.
type ThreadPoolProperties struct {
	CoreSize                    int `yaml:"coreSize"`
	MaxQueueSize                int `yaml:"maxQueueSize"`
	QueueSizeRejectionThreshold int `yaml:"queueSizeRejectionThreshold"`
}

// CommandProperties is one command's full resolved, immutable configuration
// snapshot. Nothing in this module diffs two snapshots for the same key:
// internal/command's reconfiguration path pushes every circuit breaker
// field of the new snapshot as a whole.
type CommandProperties struct {
	CircuitBreaker      CircuitBreakerProperties `yaml:"circuitBreaker"`
	Execution           ExecutionProperties      `yaml:"execution"`
	Fallback            FallbackProperties       `yaml:"fallback"`
	RequestCacheEnabled bool                     `yaml:"requestCacheEnabled"`
	RequestLogEnabled   bool                     `yaml:"requestLogEnabled"`
}

// DefaultCommandProperties returns the Hystrix-classic defaults. Unlike
// internal/command.Config.applyDefaults, which leaves them off, it turns on
// the fallback, the request cache and the request log.
func DefaultCommandProperties() CommandProperties {
	return CommandProperties{
		CircuitBreaker: CircuitBreakerProperties{
			Enabled:                  true,
			RequestVolumeThreshold:   20,
			ErrorThresholdPercentage: 50,
			SleepWindow:              5 * time.Second,
		},
		Execution: ExecutionProperties{
			IsolationStrategy:              "THREAD",
			ThreadTimeout:                  1 * time.Second,
			SemaphoreMaxConcurrentRequests: 10,
		},
		Fallback: FallbackProperties{
			Enabled:                        true,
			IsolationMaxConcurrentRequests: 10,
		},
		RequestCacheEnabled: true,
		RequestLogEnabled:   true,
	}
}

// DefaultThreadPoolProperties returns the Hystrix-classic pool defaults.
func DefaultThreadPoolProperties() ThreadPoolProperties {
	return ThreadPoolProperties{
		CoreSize:                    10,
		MaxQueueSize:                10,
		QueueSizeRejectionThreshold: 10,
	}
}
