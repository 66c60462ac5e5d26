package command

import (
	"sync"
	"time"

	"github.com/vnykmshr/commandbreaker/internal/breaker"
	"github.com/vnykmshr/commandbreaker/internal/metrics"
	"github.com/vnykmshr/commandbreaker/internal/pool"
	"github.com/vnykmshr/commandbreaker/internal/semaphore"
)

// IsolationStrategy selects how a command's executions are bounded:
// Thread submits to a worker pool; Semaphore runs on the caller's own
// goroutine behind a counting permit. spec.md §3
// ("execution.isolation.strategy").
type IsolationStrategy int

const (
	Thread IsolationStrategy = iota
	Semaphore
)

// Runtime owns the process-wide registries shared across every Command:
// metrics aggregators, circuit breakers, worker pools, and the execution/
// fallback semaphores, each keyed by CommandKey or PoolKey with
// check-then-insert construction, per spec.md §5.
type Runtime struct {
	metrics  *metrics.Registry
	breakers *breaker.Registry
	pools    *pool.Registry
	logger   Logger

	mu                 sync.Mutex
	execSemaphores     map[string]*semaphore.Semaphore
	fallbackSemaphores map[string]*semaphore.Semaphore
}

// NewRuntime constructs a Runtime with empty registries. Pass nil for logger
// to get a ZapLogger default, and a zero metricsCfg to get
// metrics.DefaultConfig().
func NewRuntime(logger Logger, metricsCfg metrics.Config) *Runtime {
	if logger == nil {
		logger = NewZapLogger()
	}
	if metricsCfg.Window == 0 {
		metricsCfg = metrics.DefaultConfig()
	}
	return &Runtime{
		metrics:            metrics.NewRegistry(metricsCfg),
		breakers:           breaker.NewRegistry(),
		pools:              pool.NewRegistry(),
		logger:             logger,
		execSemaphores:     make(map[string]*semaphore.Semaphore),
		fallbackSemaphores: make(map[string]*semaphore.Semaphore),
	}
}

// Metrics exposes the shared metrics registry for read-only consumers such
// as internal/publish, which iterates every registered Aggregator to build a
// point-in-time snapshot.
func (r *Runtime) Metrics() *metrics.Registry { return r.metrics }

// Breakers exposes the shared breaker registry for read-only consumers.
func (r *Runtime) Breakers() *breaker.Registry { return r.breakers }

// Pools exposes the shared pool registry for read-only consumers.
func (r *Runtime) Pools() *pool.Registry { return r.pools }

// Reset stops every pool and clears the metrics and breaker registries — the
// "global reset" testing hook from spec.md §5.
func (r *Runtime) Reset() {
	r.pools.Shutdown(5 * time.Second)
	r.metrics.Reset()
	r.breakers.Reset()
	r.mu.Lock()
	r.execSemaphores = make(map[string]*semaphore.Semaphore)
	r.fallbackSemaphores = make(map[string]*semaphore.Semaphore)
	r.mu.Unlock()
}

// healthAdapter adapts a *metrics.Aggregator to the breaker.HealthSource
// interface: the two HealthCounts structs are field-identical by design (see
// breaker.HealthCounts's doc) but are kept as distinct types so
// internal/breaker never imports internal/metrics.
type healthAdapter struct{ agg *metrics.Aggregator }

func (h healthAdapter) HealthCounts() breaker.HealthCounts {
	c := h.agg.HealthCounts()
	return breaker.HealthCounts{TotalCount: c.TotalCount, ErrorCount: c.ErrorCount, ErrorPercentage: c.ErrorPercentage}
}

func (h healthAdapter) ResetRolling() { h.agg.ResetRolling() }

func (r *Runtime) getOrCreateSemaphore(store map[string]*semaphore.Semaphore, key string, maxFunc semaphore.MaxFunc) *semaphore.Semaphore {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := store[key]; ok {
		return s
	}
	s := semaphore.New(maxFunc)
	store[key] = s
	return s
}

func (r *Runtime) execSemaphore(key string, maxFunc semaphore.MaxFunc) *semaphore.Semaphore {
	return r.getOrCreateSemaphore(r.execSemaphores, key, maxFunc)
}

func (r *Runtime) fallbackSemaphore(key string, maxFunc semaphore.MaxFunc) *semaphore.Semaphore {
	return r.getOrCreateSemaphore(r.fallbackSemaphores, key, maxFunc)
}

// NewCommand builds a Command from cfg, applying defaults and wiring it to
// this Runtime's shared metrics aggregator, circuit breaker, and (for
// Thread-isolated commands) worker pool, each looked up or lazily created by
// key.
func (r *Runtime) NewCommand(cfg Config) *Command {
	cfg.applyDefaults()

	agg := r.metrics.GetOrCreate(cfg.CommandKey.String())

	cb := r.breakers.GetOrCreate(cfg.CommandKey.String(), func() *breaker.CircuitBreaker {
		settings := breaker.Settings{
			Name:                     cfg.CommandKey.String(),
			Enabled:                  !cfg.CircuitBreakerDisabled,
			RequestVolumeThreshold:   cfg.CircuitBreakerRequestVolumeThresh,
			ErrorThresholdPercentage: cfg.CircuitBreakerErrorThresholdPct,
			SleepWindow:              cfg.CircuitBreakerSleepWindow,
			ForceOpen:                cfg.CircuitBreakerForceOpen,
			ForceClosed:              cfg.CircuitBreakerForceClosed,
		}
		return breaker.New(settings, healthAdapter{agg: agg})
	})

	var workerPool *pool.Pool
	if cfg.IsolationStrategy == Thread {
		workerPool = r.pools.GetOrCreate(cfg.PoolKey.String(), func() *pool.Pool {
			return pool.New(cfg.PoolKey.String(), pool.Config{
				CoreSize:                    cfg.PoolCoreSize,
				MaxQueueSize:                cfg.PoolMaxQueueSize,
				QueueSizeRejectionThreshold: cfg.PoolQueueRejectionThreshold,
			})
		})
	}

	execSem := r.execSemaphore(cfg.CommandKey.String(), semaphore.Static(cfg.SemaphoreMaxConcurrentRequests))
	fallbackSem := r.fallbackSemaphore(cfg.CommandKey.String(), semaphore.Static(cfg.FallbackMaxConcurrentRequests))

	cmd := &Command{
		runtime:       r,
		cfg:           cfg,
		aggregator:    agg,
		breaker:       cb,
		pool:          workerPool,
		execSemaphore: execSem,
		fallbackSem:   fallbackSem,
		logger:        r.logger,
	}
	cmd.startedAt.Store(notStarted)
	return cmd
}
