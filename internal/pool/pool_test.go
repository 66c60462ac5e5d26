package pool

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// TestMain guards against worker goroutines leaking past Shutdown.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubmitRunsJob(t *testing.T) {
	p := New("test", Config{CoreSize: 1, MaxQueueSize: 4})
	defer p.Shutdown(time.Second)

	done := make(chan struct{})
	if !p.Submit(func() { close(done) }) {
		t.Fatal("expected Submit to accept")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
}

func TestSubmitRejectsAtVirtualCap(t *testing.T) {
	block := make(chan struct{})
	p := New("test", Config{CoreSize: 1, MaxQueueSize: 10, QueueSizeRejectionThreshold: 1})
	defer func() {
		close(block)
		p.Shutdown(time.Second)
	}()

	// Occupy the single worker so the next submission sits in the queue.
	started := make(chan struct{})
	if !p.Submit(func() { close(started); <-block }) {
		t.Fatal("expected first submit to be accepted")
	}
	<-started

	if !p.Submit(func() { <-block }) {
		t.Fatal("expected second submit to be queued (at virtual cap)")
	}
	if p.Submit(func() {}) {
		t.Fatal("expected third submit to be rejected by the virtual-cap precheck")
	}
}

func TestSubmitRejectsAtHardQueueCap(t *testing.T) {
	block := make(chan struct{})
	p := New("test", Config{CoreSize: 1, MaxQueueSize: 1, QueueSizeRejectionThreshold: 100})
	defer func() {
		close(block)
		p.Shutdown(time.Second)
	}()

	started := make(chan struct{})
	p.Submit(func() { close(started); <-block })
	<-started

	if !p.Submit(func() { <-block }) {
		t.Fatal("expected the queue's one slot to accept")
	}
	if p.Submit(func() {}) {
		t.Fatal("expected rejection once the hard queue capacity is full")
	}
}

func TestShutdownDrainsQueuedWork(t *testing.T) {
	p := New("test", Config{CoreSize: 2, MaxQueueSize: 10})

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		p.Submit(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}

	if err := p.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if ran != 5 {
		t.Fatalf("ran = %d, want 5 jobs drained before shutdown completed", ran)
	}
	if !p.IsShutdown() {
		t.Fatal("expected IsShutdown to be true")
	}
	if p.Submit(func() {}) {
		t.Fatal("expected Submit to reject after shutdown")
	}
}

func TestRegistryGetOrCreateIsSingleton(t *testing.T) {
	r := NewRegistry()
	build := func() *Pool { return New("svc", Config{CoreSize: 1, MaxQueueSize: 1}) }

	p1 := r.GetOrCreate("svc", build)
	p2 := r.GetOrCreate("svc", build)
	if p1 != p2 {
		t.Fatal("GetOrCreate returned distinct pools for the same name")
	}
	r.Shutdown(time.Second)
}

func TestRegistryShutdownEmptiesRegistryAndMarksPools(t *testing.T) {
	r := NewRegistry()
	p := r.GetOrCreate("svc", func() *Pool { return New("svc", Config{CoreSize: 1, MaxQueueSize: 1}) })

	r.Shutdown(time.Second)

	if !p.IsShutdown() {
		t.Fatal("expected pool to be shut down after registry shutdown")
	}
	if _, ok := r.Get("svc"); ok {
		t.Fatal("expected registry to be empty after shutdown")
	}
}
