package commandbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

// newTestRuntime uses a 1ms health-snapshot interval so a command's own
// rolling counters are visible to the breaker's trip decision on the very
// next call, instead of waiting out the 1s production default.
func newTestRuntime() *Runtime {
	cfg := DefaultMetricsConfig()
	cfg.HealthSnapshotInterval = time.Millisecond
	return NewRuntime(NoopLogger{}, cfg)
}

func TestExecuteHappyPath(t *testing.T) {
	rt := newTestRuntime()
	cmd := rt.NewCommand(Config{
		CommandKey: NewCommandKey("facade-happy-path"),
		Run: func(ctx context.Context) (interface{}, error) {
			return "ok", nil
		},
	})

	value, err := cmd.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "ok" {
		t.Fatalf("value = %v, want ok", value)
	}
}

func TestExecuteFailureFallsBackToFallback(t *testing.T) {
	rt := newTestRuntime()
	boom := errors.New("boom")
	cmd := rt.NewCommand(Config{
		CommandKey:      NewCommandKey("facade-failure-fallback"),
		FallbackEnabled: true,
		Run: func(ctx context.Context) (interface{}, error) {
			return nil, boom
		},
		Fallback: func(ctx context.Context, cause error) (interface{}, error) {
			if !errors.Is(cause, boom) {
				t.Fatalf("fallback cause = %v, want %v", cause, boom)
			}
			return "degraded", nil
		},
	})

	value, err := cmd.Execute(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "degraded" {
		t.Fatalf("value = %v, want degraded", value)
	}
}

func TestCircuitTripsAndShortCircuits(t *testing.T) {
	rt := newTestRuntime()
	key := NewCommandKey("facade-trips-on-failures")
	boom := errors.New("boom")

	run := func() error {
		cmd := rt.NewCommand(Config{
			CommandKey:                        key,
			CircuitBreakerRequestVolumeThresh: 3,
			CircuitBreakerErrorThresholdPct:   50,
			Run: func(ctx context.Context) (interface{}, error) {
				return nil, boom
			},
		})
		_, err := cmd.Execute(context.Background())
		return err
	}

	// Tripping open takes one call beyond the one that first pushes the
	// rolling totals past the volume/error thresholds, since the breaker
	// evaluates whether to trip at the start of AllowRequest using the
	// health recorded by prior calls.
	for i := 0; i < 4; i++ {
		if err := run(); err == nil {
			t.Fatalf("call %d: expected failure", i)
		}
	}

	cmd := rt.NewCommand(Config{
		CommandKey: key,
		Run: func(ctx context.Context) (interface{}, error) {
			return nil, boom
		},
	})
	_, err := cmd.Execute(context.Background())
	var rf *RuntimeFailureError
	if !errors.As(err, &rf) || rf.FailureType != Shortcircuit {
		t.Fatalf("expected Shortcircuit failure once open, got %v", err)
	}
}

func TestRequestCacheDedupesSecondExecution(t *testing.T) {
	rt := newTestRuntime()
	key := NewCommandKey("facade-cache-dedup")
	calls := 0

	rc := Initialize()
	ctx := WithContext(context.Background(), rc)

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

func TestReconfigureBreakerLowersTripThreshold(t *testing.T) {
	rt := newTestRuntime()
	key := NewCommandKey("facade-reconfigure")
	boom := errors.New("boom")

	cmd := rt.NewCommand(Config{
		CommandKey:                        key,
		CircuitBreakerRequestVolumeThresh: 1000,
		CircuitBreakerErrorThresholdPct:   99,
		Run: func(ctx context.Context) (interface{}, error) {
			return nil, boom
		},
	})
	if _, err := cmd.Execute(context.Background()); err == nil {
		t.Fatalf("expected failure")
	}

	props := DefaultCommandProperties()
	props.CircuitBreaker.RequestVolumeThreshold = 1
	props.CircuitBreaker.ErrorThresholdPercentage = 1
	if err := rt.ReconfigureBreaker(key, props); err != nil {
		t.Fatalf("ReconfigureBreaker: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	cmd2 := rt.NewCommand(Config{
		CommandKey: key,
		Run: func(ctx context.Context) (interface{}, error) {
			return nil, boom
		},
	})
	_, err := cmd2.Execute(context.Background())
	var rf *RuntimeFailureError
	if !errors.As(err, &rf) || rf.FailureType != Shortcircuit {
		t.Fatalf("expected Shortcircuit failure after reconfiguring thresholds down, got %v", err)
	}
}
