package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vnykmshr/commandbreaker/internal/metrics"
	"github.com/vnykmshr/commandbreaker/internal/reqcontext"
)

// newTestRuntime uses a 1ms health-snapshot interval so a command's own
// rolling counters are visible to the breaker's trip decision on the very
// next call, instead of waiting out the 1s production default.
func newTestRuntime() *Runtime {
	cfg := metrics.DefaultConfig()
	cfg.HealthSnapshotInterval = time.Millisecond
	return NewRuntime(NoopLogger{}, cfg)
}

func TestExecuteHappyPath(t *testing.T) {
	rt := newTestRuntime()
	cmd := rt.NewCommand(Config{
		CommandKey: NewCommandKey("happy-path"),
		Run: func(ctx context.Context) (interface{}, error) {
			return "ok", nil
		},
	})

	value, err := cmd.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "ok" {
		t.Fatalf("got %v, want ok", value)
	}
}

func TestExecuteTwiceReturnsIllegalState(t *testing.T) {
	rt := newTestRuntime()
	cmd := rt.NewCommand(Config{
		CommandKey: NewCommandKey("double-execute"),
		Run: func(ctx context.Context) (interface{}, error) {
			return nil, nil
		},
	})

	if _, err := cmd.Execute(context.Background()); err != nil {
		t.Fatalf("first execute: unexpected error: %v", err)
	}
	_, err := cmd.Execute(context.Background())
	var illegal *IllegalStateError
	if !errors.As(err, &illegal) {
		t.Fatalf("second execute: want IllegalStateError, got %v", err)
	}
}

func TestCircuitTripsAfterSufficientFailures(t *testing.T) {
	rt := newTestRuntime()
	key := NewCommandKey("trips-on-failures")
	boom := errors.New("boom")

	run := func() (interface{}, error) {
		cmd := rt.NewCommand(Config{
			CommandKey:                        key,
			CircuitBreakerRequestVolumeThresh: 3,
			CircuitBreakerErrorThresholdPct:   50,
			Run: func(ctx context.Context) (interface{}, error) {
				return nil, boom
			},
		})
		_, err := cmd.Execute(context.Background())
		return nil, err
	}

	// The breaker evaluates whether to trip at the START of each AllowRequest
	// call, using the health recorded by calls before it — so tripping open
	// takes one call beyond the one that pushes the rolling totals past the
	// volume/error thresholds.
	for i := 0; i < 4; i++ {
		if _, err := run(); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}

	cmd := rt.NewCommand(Config{CommandKey: key})
	if cmd.breaker.State().String() != "open" {
		t.Fatalf("expected breaker open after repeated failures, got %s", cmd.breaker.State())
	}

	_, err := cmd.Execute(context.Background())
	var rf *RuntimeFailureError
	if !errors.As(err, &rf) || rf.FailureType != Shortcircuit {
		t.Fatalf("expected Shortcircuit failure once open, got %v", err)
	}
}

func TestTimeoutFallsBackToFallback(t *testing.T) {
	rt := newTestRuntime()
	cmd := rt.NewCommand(Config{
		CommandKey:      NewCommandKey("timeout-with-fallback"),
		ThreadTimeout:   10 * time.Millisecond,
		FallbackEnabled: true,
		Run: func(ctx context.Context) (interface{}, error) {
			time.Sleep(100 * time.Millisecond)
			return "too late", nil
		},
		Fallback: func(ctx context.Context, cause error) (interface{}, error) {
			return "fallback-value", nil
		},
	})

	value, err := cmd.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "fallback-value" {
		t.Fatalf("got %v, want fallback-value", value)
	}
}

func TestPoolRejectionFallsBackToFallback(t *testing.T) {
	rt := newTestRuntime()
	key := NewCommandKey("pool-rejection")
	block := make(chan struct{})
	defer close(block)

	blocker := func() (interface{}, error) {
		cmd := rt.NewCommand(Config{
			CommandKey:                  key,
			PoolCoreSize:                1,
			PoolMaxQueueSize:            1,
			PoolQueueRejectionThreshold: 1,
			Run: func(ctx context.Context) (interface{}, error) {
				<-block
				return nil, nil
			},
		})
		return cmd.Execute(context.Background())
	}
	go blocker()
	go blocker()
	time.Sleep(20 * time.Millisecond) // let both occupy the single worker + queue slot

	cmd := rt.NewCommand(Config{
		CommandKey:                  key,
		PoolCoreSize:                1,
		PoolMaxQueueSize:            1,
		PoolQueueRejectionThreshold: 1,
		FallbackEnabled:             true,
		Run: func(ctx context.Context) (interface{}, error) {
			return nil, nil
		},
		Fallback: func(ctx context.Context, cause error) (interface{}, error) {
			return "degraded", nil
		},
	})
	value, err := cmd.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "degraded" {
		t.Fatalf("got %v, want degraded (pool should have been saturated)", value)
	}
}

func TestRequestCacheDedupesSecondExecution(t *testing.T) {
	rt := newTestRuntime()
	key := NewCommandKey("cache-dedup")
	calls := 0

	rc := reqcontext.Initialize()
	ctx := reqcontext.WithContext(context.Background(), rc)

	newCmd := func() *Command {
		return rt.NewCommand(Config{
			CommandKey:          key,
			RequestCacheEnabled: true,
			CacheKey:            "user:42",
			Run: func(ctx context.Context) (interface{}, error) {
				calls++
				return calls, nil
			},
		})
	}

	v1, err1 := newCmd().Execute(ctx)
	if err1 != nil {
		t.Fatalf("unexpected error: %v", err1)
	}
	v2, err2 := newCmd().Execute(ctx)
	if err2 != nil {
		t.Fatalf("unexpected error: %v", err2)
	}
	if v1 != v2 {
		t.Fatalf("expected cached value to match, got %v and %v", v1, v2)
	}
	if calls != 1 {
		t.Fatalf("expected Run to execute exactly once, ran %d times", calls)
	}
}

func TestExecuteWithoutRequestContextAndCacheKeyIsIllegalState(t *testing.T) {
	rt := newTestRuntime()
	cmd := rt.NewCommand(Config{
		CommandKey:          NewCommandKey("cache-no-context"),
		RequestCacheEnabled: true,
		CacheKey:            "k",
		Run: func(ctx context.Context) (interface{}, error) {
			return nil, nil
		},
	})

	_, err := cmd.Execute(context.Background())
	var illegal *IllegalStateError
	if !errors.As(err, &illegal) {
		t.Fatalf("want IllegalStateError, got %v", err)
	}
}

func TestHalfOpenProbeRecoversCircuit(t *testing.T) {
	rt := newTestRuntime()
	key := NewCommandKey("half-open-recovery")
	boom := errors.New("boom")
	failing := true

	newCmd := func() *Command {
		return rt.NewCommand(Config{
			CommandKey:                        key,
			CircuitBreakerRequestVolumeThresh: 2,
			CircuitBreakerErrorThresholdPct:   50,
			CircuitBreakerSleepWindow:         10 * time.Millisecond,
			Run: func(ctx context.Context) (interface{}, error) {
				if failing {
					return nil, boom
				}
				return "recovered", nil
			},
		})
	}

	// Same evaluate-before-this-call semantics as the trip test: one extra
	// call beyond the volume threshold is needed to observe the open state.
	for i := 0; i < 3; i++ {
		if _, err := newCmd().Execute(context.Background()); err == nil {
			t.Fatalf("call %d: expected failure while tripping breaker", i)
		}
	}

	probe := newCmd()
	if probe.breaker.State().String() != "open" {
		t.Fatalf("expected open breaker before sleep window, got %s", probe.breaker.State())
	}

	time.Sleep(20 * time.Millisecond)
	failing = false

	value, err := newCmd().Execute(context.Background())
	if err != nil {
		t.Fatalf("expected half-open probe to succeed, got error: %v", err)
	}
	if value != "recovered" {
		t.Fatalf("got %v, want recovered", value)
	}

	closedCmd := newCmd()
	if closedCmd.breaker.State().String() != "closed" {
		t.Fatalf("expected breaker closed after successful probe, got %s", closedCmd.breaker.State())
	}
}

func TestBadRequestBypassesFallbackAndBreaker(t *testing.T) {
	rt := newTestRuntime()
	cmd := rt.NewCommand(Config{
		CommandKey:      NewCommandKey("bad-request"),
		FallbackEnabled: true,
		Run: func(ctx context.Context) (interface{}, error) {
			return nil, BadRequest(errors.New("invalid input"))
		},
		Fallback: func(ctx context.Context, cause error) (interface{}, error) {
			t.Fatal("fallback must not run for a BadRequestError")
			return nil, nil
		},
	})

	_, err := cmd.Execute(context.Background())
	var badRequest *BadRequestError
	if !errors.As(err, &badRequest) {
		t.Fatalf("want BadRequestError, got %v", err)
	}
}

func TestRuntimeFailureUnwrapsBothCauseAndFallbackCause(t *testing.T) {
	rt := newTestRuntime()
	runErr := errors.New("run failed")
	fallbackErr := errors.New("fallback failed")

	cmd := rt.NewCommand(Config{
		CommandKey:      NewCommandKey("fallback-failure-unwrap"),
		FallbackEnabled: true,
		Run: func(ctx context.Context) (interface{}, error) {
			return nil, runErr
		},
		Fallback: func(ctx context.Context, cause error) (interface{}, error) {
			return nil, fallbackErr
		},
	})

	_, err := cmd.Execute(context.Background())
	if !errors.Is(err, runErr) {
		t.Fatalf("expected errors.Is to find the run error, got %v", err)
	}
	if !errors.Is(err, fallbackErr) {
		t.Fatalf("expected errors.Is to find the fallback error, got %v", err)
	}
}
