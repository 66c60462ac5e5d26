package publish

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/commandbreaker/internal/command"
)

func TestPrometheusCollectorReportsOneSeriesPerCommand(t *testing.T) {
	rt := newTestRuntime()
	cmd := rt.NewCommand(command.Config{
		CommandKey: command.NewCommandKey("prom-target"),
		Run: func(ctx context.Context) (interface{}, error) {
			return "ok", nil
		},
	})
	_, err := cmd.Execute(context.Background())
	require.NoError(t, err)

	collector := NewPrometheusCollector(rt)
	require.Equal(t, 1, testutil.CollectAndCount(collector, "commandbreaker_requests_total"))
	require.Equal(t, 1, testutil.CollectAndCount(collector, "commandbreaker_successes_total"))
}

func TestPrometheusCollectorReportsPoolQueueLength(t *testing.T) {
	rt := newTestRuntime()
	cmd := rt.NewCommand(command.Config{
		CommandKey: command.NewCommandKey("prom-pool-target"),
		Run: func(ctx context.Context) (interface{}, error) {
			return "ok", nil
		},
	})
	_, err := cmd.Execute(context.Background())
	require.NoError(t, err)

	collector := NewPrometheusCollector(rt)
	require.Equal(t, 1, testutil.CollectAndCount(collector, "commandbreaker_pool_queue_length"))
}
