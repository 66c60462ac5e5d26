package publish

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/commandbreaker/internal/command"
	"github.com/vnykmshr/commandbreaker/internal/metrics"
)

// PrometheusCollector generalizes the teacher's examples/prometheus
// CircuitBreakerCollector (one breaker, descriptors built once at
// construction) into a registry-wide collector: the set of commands and
// pools is discovered fresh on every Collect call, since a command.Runtime
// may register new CommandKeys/PoolKeys at any point in its lifetime. It
// intentionally sends no descriptors from Describe, making it an "unchecked"
// collector in prometheus terms — the standard escape hatch for exporters
// whose metric set isn't known until scrape time (client_golang's own
// registry explicitly supports this; see Registerer.Unregister docs on
// unchecked collectors).
type PrometheusCollector struct {
	runtime *command.Runtime

	state                *prometheus.Desc
	requests             *prometheus.Desc
	successes            *prometheus.Desc
	failures             *prometheus.Desc
	timeouts             *prometheus.Desc
	shortCircuits        *prometheus.Desc
	threadPoolRejections *prometheus.Desc
	semaphoreRejections  *prometheus.Desc
	fallbackSuccesses    *prometheus.Desc
	fallbackFailures     *prometheus.Desc
	errorPercentage      *prometheus.Desc
	concurrentExecutions *prometheus.Desc
	latencyMeanMs        *prometheus.Desc
	latencyP99Ms         *prometheus.Desc
	poolQueueLength      *prometheus.Desc
}

// NewPrometheusCollector builds a collector pulling live snapshots from rt.
// Register it with a prometheus.Registerer the usual way:
//
//	prometheus.MustRegister(publish.NewPrometheusCollector(runtime))
func NewPrometheusCollector(rt *command.Runtime) *PrometheusCollector {
	commandLabels := []string{"command"}
	poolLabels := []string{"pool"}
	return &PrometheusCollector{
		runtime: rt,
		state: prometheus.NewDesc(
			"commandbreaker_circuit_state",
			"Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			commandLabels, nil,
		),
		requests: prometheus.NewDesc(
			"commandbreaker_requests_total", "Total rolling-window request count", commandLabels, nil,
		),
		successes: prometheus.NewDesc(
			"commandbreaker_successes_total", "Total rolling-window successes", commandLabels, nil,
		),
		failures: prometheus.NewDesc(
			"commandbreaker_failures_total", "Total rolling-window failures", commandLabels, nil,
		),
		timeouts: prometheus.NewDesc(
			"commandbreaker_timeouts_total", "Total rolling-window timeouts", commandLabels, nil,
		),
		shortCircuits: prometheus.NewDesc(
			"commandbreaker_short_circuits_total", "Total rolling-window short-circuit rejections", commandLabels, nil,
		),
		threadPoolRejections: prometheus.NewDesc(
			"commandbreaker_thread_pool_rejections_total", "Total rolling-window thread pool rejections", commandLabels, nil,
		),
		semaphoreRejections: prometheus.NewDesc(
			"commandbreaker_semaphore_rejections_total", "Total rolling-window semaphore rejections", commandLabels, nil,
		),
		fallbackSuccesses: prometheus.NewDesc(
			"commandbreaker_fallback_successes_total", "Total rolling-window fallback successes", commandLabels, nil,
		),
		fallbackFailures: prometheus.NewDesc(
			"commandbreaker_fallback_failures_total", "Total rolling-window fallback failures", commandLabels, nil,
		),
		errorPercentage: prometheus.NewDesc(
			"commandbreaker_error_percentage", "Current rolling-window error percentage", commandLabels, nil,
		),
		concurrentExecutions: prometheus.NewDesc(
			"commandbreaker_concurrent_executions", "Currently in-flight executions", commandLabels, nil,
		),
		latencyMeanMs: prometheus.NewDesc(
			"commandbreaker_latency_mean_ms", "Mean execution latency in milliseconds", commandLabels, nil,
		),
		latencyP99Ms: prometheus.NewDesc(
			"commandbreaker_latency_p99_ms", "P99 execution latency in milliseconds", commandLabels, nil,
		),
		poolQueueLength: prometheus.NewDesc(
			"commandbreaker_pool_queue_length", "Current worker pool queue length", poolLabels, nil,
		),
	}
}

// Describe intentionally sends nothing: the command/pool label set isn't
// known until Collect runs against the live registries.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {}

func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	for name, agg := range c.runtime.Metrics().All() {
		health := agg.HealthCounts()

		state := -1.0
		if cb, ok := c.runtime.Breakers().Get(name); ok {
			state = float64(cb.State())
		}
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, state, name)
		ch <- prometheus.MustNewConstMetric(c.requests, prometheus.CounterValue, float64(health.TotalCount), name)
		ch <- prometheus.MustNewConstMetric(c.successes, prometheus.CounterValue, float64(agg.EventCount(metrics.Success)), name)
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(agg.EventCount(metrics.Failure)), name)
		ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(agg.EventCount(metrics.Timeout)), name)
		ch <- prometheus.MustNewConstMetric(c.shortCircuits, prometheus.CounterValue, float64(agg.EventCount(metrics.ShortCircuited)), name)
		ch <- prometheus.MustNewConstMetric(c.threadPoolRejections, prometheus.CounterValue, float64(agg.EventCount(metrics.ThreadPoolRejected)), name)
		ch <- prometheus.MustNewConstMetric(c.semaphoreRejections, prometheus.CounterValue, float64(agg.EventCount(metrics.SemaphoreRejected)), name)
		ch <- prometheus.MustNewConstMetric(c.fallbackSuccesses, prometheus.CounterValue, float64(agg.EventCount(metrics.FallbackSuccess)), name)
		ch <- prometheus.MustNewConstMetric(c.fallbackFailures, prometheus.CounterValue, float64(agg.EventCount(metrics.FallbackFailure)), name)
		ch <- prometheus.MustNewConstMetric(c.errorPercentage, prometheus.GaugeValue, health.ErrorPercentage, name)
		ch <- prometheus.MustNewConstMetric(c.concurrentExecutions, prometheus.GaugeValue, float64(agg.ConcurrentExecutionCount()), name)
		ch <- prometheus.MustNewConstMetric(c.latencyMeanMs, prometheus.GaugeValue, durationMs(agg.LatencyMean()), name)
		ch <- prometheus.MustNewConstMetric(c.latencyP99Ms, prometheus.GaugeValue, durationMs(agg.LatencyPercentile(99)), name)
	}

	for name, pl := range c.runtime.Pools().All() {
		ch <- prometheus.MustNewConstMetric(c.poolQueueLength, prometheus.GaugeValue, float64(pl.QueueLength()), name)
	}
}
