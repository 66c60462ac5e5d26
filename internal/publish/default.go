package publish

import (
	"fmt"
	"log"
)

// LogPublisher is the stdlib-only MetricsPublisher default: one line per
// snapshot via a *log.Logger, with no third-party dependency. This is a
// deliberate exception to the rest of the module's "always reach for the
// pack's library" rule: the teacher's own examples/prometheus only ever
// wires a real backend (Prometheus), so there is no pack precedent for a
// structured-logging metrics sink to draw from, and a bare counter printer
// has no real library surface worth adding a dependency for.
type LogPublisher struct {
	logger *log.Logger
}

// NewLogPublisher wraps logger. A nil logger falls back to log.Default().
func NewLogPublisher(logger *log.Logger) *LogPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishCommand(s CommandSnapshot) {
	p.logger.Print(fmt.Sprintf(
		"command=%s state=%s requests=%d successes=%d failures=%d timeouts=%d shortCircuits=%d errorPct=%.1f concurrent=%d",
		s.Name, s.BreakerState, s.Requests, s.Successes, s.Failures, s.Timeouts, s.ShortCircuits, s.ErrorPercentage, s.ConcurrentExecutions,
	))
}

func (p *LogPublisher) PublishPool(s PoolSnapshot) {
	p.logger.Print(fmt.Sprintf("pool=%s queueLength=%d", s.Name, s.QueueLength))
}
