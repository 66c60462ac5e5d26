// Package pool implements the bounded worker pool described in spec.md §4.5
// (component C5): coreSize workers draining a bounded FIFO queue, with two
// independent admission tests — a virtual-cap precheck that can be tuned
// without recreating the pool, and the queue's own hard capacity.
//
// Grounded on the dual worker-pool design in
// _examples/other_examples/15fdd975_TheEntropyCollective-noisefs__pkg-common-workers-pool.go.go:
// that file's SimpleWorkerPool (lightweight, channel-and-semaphore based, no
// task abstraction) is the closer fit to spec.md's thread pool, which has no
// notion of Task.ID()/ordered results — just submit-and-run. Shutdown uses
// golang.org/x/sync/errgroup to wait for every worker goroutine to drain
// within a timeout.
package pool

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job is one unit of work submitted to a Pool. SubmittedAt records when the
// job was queued; workerLoop does not read it, so no time-in-queue check is
// made before Run.
type Job struct {
	Run         func()
	SubmittedAt time.Time
}

// Config shapes a Pool's capacity, mirroring the thread-pool properties in
// spec.md §3.
type Config struct {
	// CoreSize is the number of worker goroutines.
	CoreSize int
	// MaxQueueSize is the queue's hard capacity; sends beyond this block
	// never happen because Submit only ever tries a non-blocking send.
	MaxQueueSize int
	// QueueSizeRejectionThreshold is the virtual-cap precheck: a command
	// arriving while the queue's observed length is already at or past this
	// value is rejected before ever being offered to the queue, so operators can
	// tighten admission without recreating the pool (spec.md §4.5).
	QueueSizeRejectionThreshold int
}

// Pool is a bounded worker pool keyed by PoolKey in the Registry.
type Pool struct {
	name string
	cfg  Config

	jobs      chan Job
	queueLen  atomic.Int64
	rejThresh atomic.Int64

	shutdown atomic.Bool
	group    *errgroup.Group
	groupCtx context.Context
	cancel   context.CancelFunc
}

// New constructs and starts a Pool with cfg.CoreSize worker goroutines.
func New(name string, cfg Config) *Pool {
	if cfg.CoreSize <= 0 {
		cfg.CoreSize = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 1
	}
	if cfg.QueueSizeRejectionThreshold <= 0 {
		cfg.QueueSizeRejectionThreshold = cfg.MaxQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(ctx)

	p := &Pool{
		name:     name,
		cfg:      cfg,
		jobs:     make(chan Job, cfg.MaxQueueSize),
		group:    group,
		groupCtx: groupCtx,
		cancel:   cancel,
	}
	p.rejThresh.Store(int64(cfg.QueueSizeRejectionThreshold))

	for i := 0; i < cfg.CoreSize; i++ {
		p.group.Go(p.workerLoop)
	}
	return p
}

func (p *Pool) workerLoop() error {
	for job := range p.jobs {
		p.queueLen.Add(-1)
		job.Run()
	}
	return nil
}

// IsQueueSpaceAvailable reports whether the virtual-cap precheck currently
// admits another submission (spec.md §4.5's "isQueueSpaceAvailable").
func (p *Pool) IsQueueSpaceAvailable() bool {
	return p.queueLen.Load() < p.rejThresh.Load()
}

// Submit offers run to the pool. It returns false without running run if
// either admission test fails: the virtual-cap precheck, or the queue's own
// hard capacity (a non-blocking channel send that would otherwise block).
// Returns false if the pool has been shut down.
func (p *Pool) Submit(run func()) bool {
	if p.shutdown.Load() {
		return false
	}
	if !p.IsQueueSpaceAvailable() {
		return false
	}

	job := Job{Run: run, SubmittedAt: time.Now()}
	p.queueLen.Add(1)
	select {
	case p.jobs <- job:
		return true
	default:
		p.queueLen.Add(-1)
		return false
	}
}

// SetQueueSizeRejectionThreshold updates the virtual-cap precheck live,
// without recreating the pool, per spec.md §4.5.
func (p *Pool) SetQueueSizeRejectionThreshold(n int) {
	if n <= 0 {
		n = p.cfg.MaxQueueSize
	}
	p.rejThresh.Store(int64(n))
}

// QueueLength returns the pool's currently observed queue length.
func (p *Pool) QueueLength() int64 { return p.queueLen.Load() }

// IsShutdown reports whether Shutdown has been called.
func (p *Pool) IsShutdown() bool { return p.shutdown.Load() }

// Shutdown stops accepting submissions and waits up to timeout for queued
// and in-flight jobs to drain. If timeout is 0, it returns immediately after
// closing the submission path without waiting.
func (p *Pool) Shutdown(timeout time.Duration) error {
	if !p.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	close(p.jobs)

	if timeout <= 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		p.cancel()
		return context.DeadlineExceeded
	}
}
