package publish

import (
	"time"

	"github.com/vnykmshr/commandbreaker/internal/command"
	"github.com/vnykmshr/commandbreaker/internal/metrics"
)

// Poller ticks on an interval, snapshotting every command and pool a
// command.Runtime currently knows about and handing each snapshot to a
// MetricsPublisher. This generalizes the teacher's examples/prometheus
// single-breaker ticker loop into a registry-wide sweep, since a command
// runtime may have an unbounded number of CommandKeys/PoolKeys registered
// over its lifetime.
type Poller struct {
	runtime   *command.Runtime
	publisher MetricsPublisher
	interval  time.Duration
}

// NewPoller builds a Poller. interval <= 0 defaults to one second, matching
// the teacher's eventstream-style one-second tick.
func NewPoller(rt *command.Runtime, publisher MetricsPublisher, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{runtime: rt, publisher: publisher, interval: interval}
}

// Run ticks until stop is closed. Intended to be run in its own goroutine.
func (p *Poller) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Poller) tick() {
	for _, snap := range p.commandSnapshots() {
		p.publisher.PublishCommand(snap)
	}
	for name, pl := range p.runtime.Pools().All() {
		p.publisher.PublishPool(PoolSnapshot{Name: name, QueueLength: pl.QueueLength()})
	}
}

// commandSnapshots builds one CommandSnapshot per registered metrics
// aggregator, joined against the breaker registry by command name (the same
// key both registries use).
func (p *Poller) commandSnapshots() map[string]CommandSnapshot {
	aggregators := p.runtime.Metrics().All()
	out := make(map[string]CommandSnapshot, len(aggregators))
	for name, agg := range aggregators {
		health := agg.HealthCounts()
		snap := CommandSnapshot{
			Name:                           name,
			Requests:                       health.TotalCount,
			ErrorPercentage:                health.ErrorPercentage,
			ConcurrentExecutions:           agg.ConcurrentExecutionCount(),
			RollingMaxConcurrentExecutions: agg.RollingMaxConcurrentExecutions(),
			LatencyMeanMs:                  durationMs(agg.LatencyMean()),
			LatencyP50Ms:                   durationMs(agg.LatencyPercentile(50)),
			LatencyP99Ms:                   durationMs(agg.LatencyPercentile(99)),
		}
		snap.Successes = agg.EventCount(metrics.Success)
		snap.Failures = agg.EventCount(metrics.Failure)
		snap.Timeouts = agg.EventCount(metrics.Timeout)
		snap.ShortCircuits = agg.EventCount(metrics.ShortCircuited)
		snap.ThreadPoolRejections = agg.EventCount(metrics.ThreadPoolRejected)
		snap.SemaphoreRejections = agg.EventCount(metrics.SemaphoreRejected)
		snap.FallbackSuccesses = agg.EventCount(metrics.FallbackSuccess)
		snap.FallbackFailures = agg.EventCount(metrics.FallbackFailure)

		if cb, ok := p.runtime.Breakers().Get(name); ok {
			snap.BreakerState = cb.State().String()
		}
		out[name] = snap
	}
	return out
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
