package publish

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/commandbreaker/internal/command"
	"github.com/vnykmshr/commandbreaker/internal/metrics"
)

type recordingPublisher struct {
	mu       sync.Mutex
	commands []CommandSnapshot
	pools    []PoolSnapshot
}

func (r *recordingPublisher) PublishCommand(s CommandSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, s)
}

func (r *recordingPublisher) PublishPool(s PoolSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pools = append(r.pools, s)
}

func (r *recordingPublisher) snapshotCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands)
}

func newTestRuntime() *command.Runtime {
	cfg := metrics.DefaultConfig()
	cfg.HealthSnapshotInterval = time.Millisecond
	return command.NewRuntime(command.NoopLogger{}, cfg)
}

func TestPollerPublishesCommandAndPoolSnapshots(t *testing.T) {
	rt := newTestRuntime()
	boom := errors.New("boom")

	cmd := rt.NewCommand(command.Config{
		CommandKey: command.NewCommandKey("poller-target"),
		Run: func(ctx context.Context) (interface{}, error) {
			return nil, boom
		},
	})
	_, _ = cmd.Execute(context.Background())

	rec := &recordingPublisher{}
	poller := NewPoller(rt, rec, 5*time.Millisecond)

	stop := make(chan struct{})
	go poller.Run(stop)
	defer close(stop)

	require.Eventually(t, func() bool {
		return rec.snapshotCount() > 0
	}, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	var found bool
	for _, snap := range rec.commands {
		if snap.Name == "poller-target" {
			found = true
			require.Equal(t, int64(1), snap.Requests)
			require.Equal(t, int64(1), snap.Failures)
			require.Equal(t, "closed", snap.BreakerState)
		}
	}
	require.True(t, found, "expected a snapshot for poller-target")
}

func TestPollerDefaultsIntervalWhenNonPositive(t *testing.T) {
	rt := newTestRuntime()
	poller := NewPoller(rt, &recordingPublisher{}, 0)
	require.Equal(t, time.Second, poller.interval)
}
