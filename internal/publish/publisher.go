// Package publish implements the metrics-publishing side of the command
// runtime: a small MetricsPublisher port, a stdlib-only logging default, and
// a Prometheus adapter generalizing the teacher's examples/prometheus
// single-breaker collector into a registry-wide one (SPEC_FULL.md §2).
package publish

// CommandSnapshot is a point-in-time view of one command's rolling metrics
// and breaker state, the shape every MetricsPublisher implementation
// consumes.
type CommandSnapshot struct {
	Name                           string
	BreakerState                   string
	Requests                       int64
	Successes                      int64
	Failures                       int64
	Timeouts                       int64
	ShortCircuits                  int64
	ThreadPoolRejections           int64
	SemaphoreRejections            int64
	FallbackSuccesses              int64
	FallbackFailures               int64
	ErrorPercentage                float64
	ConcurrentExecutions           int64
	RollingMaxConcurrentExecutions int64
	LatencyMeanMs                  float64
	LatencyP50Ms                   float64
	LatencyP99Ms                   float64
}

// PoolSnapshot is a point-in-time view of one worker pool's queue depth.
type PoolSnapshot struct {
	Name        string
	QueueLength int64
}

// MetricsPublisher receives one snapshot per registered command and pool on
// every Poller tick. Implementations should return quickly: Poller calls
// these synchronously, once per key, from its own ticking goroutine.
type MetricsPublisher interface {
	PublishCommand(CommandSnapshot)
	PublishPool(PoolSnapshot)
}
