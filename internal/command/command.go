package command

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/commandbreaker/internal/breaker"
	"github.com/vnykmshr/commandbreaker/internal/metrics"
	"github.com/vnykmshr/commandbreaker/internal/pool"
	"github.com/vnykmshr/commandbreaker/internal/reqcontext"
	"github.com/vnykmshr/commandbreaker/internal/semaphore"
)

// notStarted is the startedAt sentinel a fresh Command carries before its
// single Execute/Queue call, per spec.md §4.7 step 1 and §9's "atomic
// timestamp CAS initialised at a sentinel".
const notStarted = -1

// Command is a single-shot execution of one command class: constructing it
// via Runtime.NewCommand wires it to the shared metrics aggregator, circuit
// breaker, and (for Thread isolation) worker pool keyed by CommandKey/
// PoolKey. Execute (or Queue) may be called exactly once.
type Command struct {
	runtime *Runtime
	cfg     Config

	aggregator    *metrics.Aggregator
	breaker       *breaker.CircuitBreaker
	pool          *pool.Pool // nil when cfg.IsolationStrategy == Semaphore
	execSemaphore *semaphore.Semaphore
	fallbackSem   *semaphore.Semaphore
	logger        Logger

	startedAt atomic.Int64 // CAS guard: notStarted until the first Execute/Queue call wins it
}

// Execute runs the command synchronously, implementing the 11-step pipeline
// from spec.md §4.7. ctx should carry a *reqcontext.RequestContext via
// reqcontext.WithContext when RequestCacheEnabled is set; if it doesn't,
// Execute returns an IllegalStateError rather than silently disabling the
// cache.
func (c *Command) Execute(ctx context.Context) (interface{}, error) {
	if !c.startedAt.CompareAndSwap(notStarted, time.Now().UnixNano()) {
		return nil, IllegalState("command already executed")
	}

	key := c.cfg.CommandKey
	c.cfg.Hook.OnStart(key)

	rc, _ := reqcontext.FromContext(ctx)

	if c.cfg.RequestCacheEnabled && c.cfg.CacheKey != "" {
		if rc == nil {
			err := IllegalState("cache key set but no active request context")
			c.cfg.Hook.OnComplete(key, nil, err)
			return nil, err
		}

		if existing, ok := rc.Cache.Get(key.String(), c.cfg.CacheKey); ok {
			return c.serveFromCache(rc, existing)
		}

		// Thread isolation pre-inserts a pending future before running, so
		// every overlapping caller joins the same in-flight execution
		// instead of duplicating it. Semaphore isolation keeps the source
		// behavior's weaker guarantee instead: run first, then best-effort
		// publish the completed result for whoever asks next — concurrent
		// Semaphore callers racing on an empty cache entry may still both
		// run (SPEC_FULL.md §5's resolved Open Question).
		if c.cfg.IsolationStrategy == Thread {
			future := reqcontext.NewFuture()
			owned, inserted := rc.Cache.PutIfAbsent(key.String(), c.cfg.CacheKey, future)
			if !inserted {
				return c.serveFromCache(rc, owned)
			}
			return c.runGated(ctx, rc, owned)
		}

		value, err := c.runGated(ctx, rc, nil)
		settled := reqcontext.NewFuture()
		settled.Complete(value, err)
		rc.Cache.PutIfAbsent(key.String(), c.cfg.CacheKey, settled)
		return value, err
	}

	return c.runGated(ctx, rc, nil)
}

// serveFromCache waits on an already-registered cache future and records the
// cache-hit event taxonomy from spec.md §4.7 step 2 (ResponseFromCache plus
// the underlying outcome, -1 latency sentinel).
func (c *Command) serveFromCache(rc *reqcontext.RequestContext, future *reqcontext.Future) (interface{}, error) {
	key := c.cfg.CommandKey
	value, err := future.Wait()
	c.aggregator.MarkResponseFromCache()
	events := []string{"ResponseFromCache"}
	if err != nil {
		events = append(events, "Failure")
	} else {
		events = append(events, "Success")
	}
	c.appendLog(rc, events, -1)
	c.cfg.Hook.OnComplete(key, value, err)
	return value, err
}

// runGated executes the breaker-gated body and, on the way out, settles
// cacheFuture (if non-nil) so any concurrent cache waiter observes the same
// result this call returns.
func (c *Command) runGated(ctx context.Context, rc *reqcontext.RequestContext, cacheFuture *reqcontext.Future) (interface{}, error) {
	key := c.cfg.CommandKey
	start := time.Now()
	var events []string

	settle := func(value interface{}, err error) (interface{}, error) {
		if cacheFuture != nil {
			cacheFuture.Complete(value, err)
		}
		latency := time.Since(start)
		for _, e := range events {
			c.cfg.Notifier.MarkEvent(e, key)
		}
		c.cfg.Notifier.MarkCommandExecution(key, isolationName(c.cfg.IsolationStrategy), latency, events)
		c.appendLog(rc, events, latency.Milliseconds())
		c.cfg.Hook.OnComplete(key, value, err)
		return value, err
	}

	if !c.breaker.AllowRequest() {
		c.aggregator.MarkShortCircuited()
		events = append(events, "ShortCircuited")
		value, err := c.runFallback(ctx, Shortcircuit, nil, &events)
		return settle(value, err)
	}

	value, runErr := c.runIsolated(ctx, &events)

	var badRequest *BadRequestError
	if errors.As(runErr, &badRequest) {
		events = append(events, "BadRequest")
		return settle(nil, runErr)
	}

	if runErr == nil {
		events = append(events, "Success")
		c.breaker.OnSuccess()
		return settle(value, nil)
	}

	c.breaker.OnFailure()
	failureType := classifyFailure(runErr)
	if failureType == CommandException && !containsEventSlice(events, "Timeout") {
		events = append(events, "Failure")
	}
	value, err := c.runFallback(ctx, failureType, runErr, &events)
	return settle(value, err)
}

// runIsolated runs cfg.Run under the configured isolation strategy, marking
// Success/Failure/Timeout and the concurrent-execution gauge as it goes.
// Events already appended here (e.g. "Timeout") are not duplicated by the
// caller.
func (c *Command) runIsolated(ctx context.Context, events *[]string) (interface{}, error) {
	key := c.cfg.CommandKey

	switch c.cfg.IsolationStrategy {
	case Semaphore:
		if !c.execSemaphore.TryAcquire() {
			c.aggregator.MarkSemaphoreRejection()
			*events = append(*events, "SemaphoreRejected")
			return nil, RuntimeFailure(RejectedSemaphoreExecution, nil, nil)
		}
		defer c.execSemaphore.Release()

		c.aggregator.IncrementConcurrentExecutions()
		defer c.aggregator.DecrementConcurrentExecutions()

		start := time.Now()
		c.cfg.Hook.OnRunStart(key)
		value, err := c.cfg.Run(ctx)
		latency := time.Since(start)
		if err != nil {
			c.cfg.Hook.OnRunError(key, err)
			if !isBadRequest(err) {
				c.aggregator.MarkFailure(latency)
			}
		} else {
			c.cfg.Hook.OnRunSuccess(key, value)
			c.aggregator.MarkSuccess(latency)
		}
		return value, err

	default: // Thread
		return c.runThread(ctx, events)
	}
}

// runThread submits cfg.Run to the worker pool and enforces ThreadTimeout. A
// completion that arrives after the timeout has already fired is discarded:
// timedOut is checked before the result is ever sent on done, so late user
// code can never produce a Success after Execute has already returned a
// Timeout failure (spec.md §7).
func (c *Command) runThread(ctx context.Context, events *[]string) (interface{}, error) {
	key := c.cfg.CommandKey

	type result struct {
		value interface{}
		err   error
	}
	done := make(chan result, 1)
	completed := make(chan struct{})
	var timedOut atomic.Bool

	runCtx, cancel := context.WithCancel(ctx)

	wrapped := c.cfg.ConcurrencyStrategy.Wrap(func() {
		defer close(completed)
		c.cfg.Hook.OnThreadStart(key)
		defer c.cfg.Hook.OnThreadComplete(key)

		c.aggregator.IncrementConcurrentExecutions()
		defer c.aggregator.DecrementConcurrentExecutions()

		c.cfg.Hook.OnRunStart(key)
		value, err := c.cfg.Run(runCtx)
		if timedOut.Load() {
			return
		}
		select {
		case done <- result{value: value, err: err}:
		default:
		}
	})

	p := c.pool
	if p == nil || !p.Submit(wrapped) {
		cancel()
		c.aggregator.MarkThreadPoolRejection()
		*events = append(*events, "ThreadPoolRejected")
		return nil, RuntimeFailure(RejectedThreadExecution, nil, nil)
	}

	start := time.Now()
	select {
	case r := <-done:
		cancel()
		latency := time.Since(start)
		if r.err != nil {
			c.cfg.Hook.OnRunError(key, r.err)
			if !isBadRequest(r.err) {
				c.aggregator.MarkFailure(latency)
			}
		} else {
			c.cfg.Hook.OnRunSuccess(key, r.value)
			c.aggregator.MarkSuccess(latency)
		}
		return r.value, r.err

	case <-time.After(c.cfg.ThreadTimeout):
		timedOut.Store(true)
		if c.cfg.InterruptOnTimeout {
			cancel()
		} else {
			// Leave the worker running to finish on its own; release runCtx
			// once it does, instead of interrupting it.
			go func() {
				<-completed
				cancel()
			}()
		}
		latency := time.Since(start)
		c.aggregator.MarkTimeout(latency)
		*events = append(*events, "Timeout")
		return nil, RuntimeFailure(Timeout, context.DeadlineExceeded, nil)
	}
}

// runFallback handles every rejection/failure/timeout path uniformly, per
// spec.md §4.7 step 9: it surfaces the originating failure directly when
// fallback is disabled or absent, otherwise gates the fallback body behind
// its own semaphore and runs it.
func (c *Command) runFallback(ctx context.Context, failureType FailureType, cause error, events *[]string) (interface{}, error) {
	key := c.cfg.CommandKey
	c.cfg.Hook.OnError(key, failureType, cause)

	// fail surfaces the originating failure with no fallback ever attempted:
	// only ExceptionThrown is recorded alongside it (spec.md §4.7 step 9
	// bullet 1).
	fail := func(rejectType FailureType) (interface{}, error) {
		c.aggregator.MarkExceptionThrown()
		*events = append(*events, "ExceptionThrown")
		err := RuntimeFailure(rejectType, cause, nil)
		c.logger.Error("command failed with no usable fallback", err, "command", key.String())
		return nil, err
	}

	// failFallback is for the fallback-enabled paths where a fallback was
	// attempted-but-rejected or is absent: FallbackFailure is recorded in
	// addition to the originating failure.
	failFallback := func(rejectType FailureType) (interface{}, error) {
		c.aggregator.MarkFallbackFailure()
		*events = append(*events, "FallbackFailure")
		return fail(rejectType)
	}

	if !c.cfg.FallbackEnabled {
		return fail(failureType)
	}

	if !c.fallbackSem.TryAcquire() {
		c.aggregator.MarkFallbackRejection()
		*events = append(*events, "FallbackRejection")
		return failFallback(RejectedSemaphoreFallback)
	}
	defer c.fallbackSem.Release()

	if c.cfg.Fallback == nil {
		return failFallback(failureType)
	}

	c.cfg.Hook.OnFallbackStart(key)
	value, fbErr := c.cfg.Fallback(ctx, cause)
	if fbErr != nil {
		c.cfg.Hook.OnFallbackError(key, fbErr)
		c.aggregator.MarkFallbackFailure()
		*events = append(*events, "FallbackFailure")
		c.aggregator.MarkExceptionThrown()
		*events = append(*events, "ExceptionThrown")
		return nil, RuntimeFailure(failureType, cause, fbErr)
	}

	c.cfg.Hook.OnFallbackSuccess(key, value)
	c.aggregator.MarkFallbackSuccess()
	*events = append(*events, "FallbackSuccess")
	return value, nil
}

// appendLog adds one entry to the active request log, if RequestLogEnabled
// and a RequestContext is in play.
func (c *Command) appendLog(rc *reqcontext.RequestContext, events []string, latencyMs int64) {
	if !c.cfg.RequestLogEnabled || rc == nil {
		return
	}
	rc.Log.Append(reqcontext.LogEntry{
		CommandKey: c.cfg.CommandKey.String(),
		Events:     append([]string(nil), events...),
		LatencyMs:  latencyMs,
	})
}

// classifyFailure maps a RuntimeFailureError's own FailureType through
// unchanged, and anything else to CommandException (the "ordinary Run
// error" case from spec.md §7).
func classifyFailure(err error) FailureType {
	var rf *RuntimeFailureError
	if errors.As(err, &rf) {
		return rf.FailureType
	}
	return CommandException
}

// isolationName renders an IsolationStrategy for the EventNotifier's
// MarkCommandExecution call.
func isolationName(s IsolationStrategy) string {
	if s == Semaphore {
		return "semaphore"
	}
	return "thread"
}

// isBadRequest reports whether err is (or wraps) a BadRequestError, used to
// suppress metrics recording for user-signalled invalid input (spec.md §7).
func isBadRequest(err error) bool {
	var badRequest *BadRequestError
	return errors.As(err, &badRequest)
}

func containsEventSlice(events []string, name string) bool {
	for _, e := range events {
		if e == name {
			return true
		}
	}
	return false
}

// Queue runs Execute asynchronously, returning a Future that settles when it
// completes. Per spec.md §4.7's queue() semantics, a rejection knowable
// before any execution is attempted — the breaker already open, or (for
// Thread isolation) the pool already at its virtual cap — with no fallback
// configured to absorb it is raised directly as an error rather than via the
// future, matching the "implementation-defined but consistent" split spec.md
// §9 leaves open. Every other outcome, including a fallback-absorbed
// rejection, settles through the returned future.
//
// The pre-submission check below deliberately uses the breaker's read-only
// IsOpen() and the pool's read-only IsQueueSpaceAvailable() rather than
// AllowRequest()/Submit(): those side-effecting calls belong to Execute
// alone, since AllowRequest can trip the breaker or admit the one HalfOpen
// probe, and calling it twice for the same logical attempt would consume
// that side effect without actually running anything.
func (c *Command) Queue(ctx context.Context) (*reqcontext.Future, error) {
	noFallback := !c.cfg.FallbackEnabled || c.cfg.Fallback == nil

	if noFallback {
		if c.breaker.IsOpen() {
			return nil, RuntimeFailure(Shortcircuit, nil, nil)
		}
		if c.cfg.IsolationStrategy == Thread && c.pool != nil && !c.pool.IsQueueSpaceAvailable() {
			return nil, RuntimeFailure(RejectedThreadExecution, nil, nil)
		}
	}

	future := reqcontext.NewFuture()
	go func() {
		value, err := c.Execute(ctx)
		future.Complete(value, err)
	}()
	return future, nil
}
