package publish

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogPublisherFormatsCommandSnapshot(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(log.New(&buf, "", 0))

	p.PublishCommand(CommandSnapshot{
		Name:            "charge-card",
		BreakerState:    "closed",
		Requests:        10,
		Successes:       9,
		Failures:        1,
		ErrorPercentage: 10,
	})

	line := buf.String()
	require.True(t, strings.Contains(line, "command=charge-card"))
	require.True(t, strings.Contains(line, "state=closed"))
	require.True(t, strings.Contains(line, "requests=10"))
}

func TestLogPublisherFormatsPoolSnapshot(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(log.New(&buf, "", 0))

	p.PublishPool(PoolSnapshot{Name: "charge-pool", QueueLength: 3})

	line := buf.String()
	require.True(t, strings.Contains(line, "pool=charge-pool"))
	require.True(t, strings.Contains(line, "queueLength=3"))
}

func TestNewLogPublisherDefaultsNilLogger(t *testing.T) {
	p := NewLogPublisher(nil)
	require.NotNil(t, p.logger)
}
