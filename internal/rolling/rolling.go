// Package rolling implements bucketed event counters over a sliding time window.
//
// A Number divides a window of duration W into B fixed-size buckets so that
// sum(buckets) always reflects activity within the trailing W, at
// bucket-quantized resolution. Buckets are created lazily: a write to a stale
// bucket rolls the ring forward, zeroing any buckets it skips over.
//
// Rotation is serialized by a non-blocking try-lock. A writer that loses the
// race to roll does not block; it proceeds to write against whatever bucket
// is current, on the assumption that the winning writer will finish the roll
// before the window closes again. Reads are advisory: a reader may observe a
// bucket mid-rotation and must tolerate it.
package rolling

import (
	"sync"
	"sync/atomic"
	"time"
)

// Number is a ring of buckets, each holding per-event counters, used to
// compute rolling sums and per-bucket maxima over a trailing time window.
//
// Safe for concurrent use. Increment/Add are lock-free; rotation uses a
// non-blocking try-lock so that concurrent rolls never block the hot path.
type Number struct {
	bucketDuration time.Duration
	numBuckets     int

	mu      sync.Mutex // guards rotation only; never held across a counter write
	rolling int32       // 0/1 try-lock flag for the rotation critical section

	buckets []bucket
	head    atomic.Int64 // start time (unix nanos) of the most recently rolled-to bucket
}

type bucket struct {
	start    atomic.Int64 // bucket start time, unix nanos
	counters []atomic.Int64
}

// numEvents is the fixed cardinality of the event taxonomy tracked per bucket.
// Callers address counters by a small integer Event id (see the metrics
// package's event taxonomy) rather than by string, to keep increments
// allocation-free.
const numEvents = 16

// New creates a Number with numBuckets buckets each covering windowDuration/numBuckets.
// Panics if numBuckets <= 0 or windowDuration <= 0, mirroring the teacher
// library's validate-at-construction convention (autobreaker.New panics on
// invalid Settings rather than returning an error).
func New(windowDuration time.Duration, numBuckets int) *Number {
	if numBuckets <= 0 {
		panic("rolling: numBuckets must be > 0")
	}
	if windowDuration <= 0 {
		panic("rolling: windowDuration must be > 0")
	}

	n := &Number{
		bucketDuration: windowDuration / time.Duration(numBuckets),
		numBuckets:     numBuckets,
		buckets:        make([]bucket, numBuckets),
	}
	now := time.Now().UnixNano()
	for i := range n.buckets {
		n.buckets[i].start.Store(now)
		n.buckets[i].counters = make([]atomic.Int64, numEvents)
	}
	n.head.Store(now - now%int64(n.bucketDuration))
	return n
}

// NumEvents is the fixed cardinality of the event taxonomy a Number can track.
func NumEvents() int { return numEvents }

func (n *Number) currentIndex(now int64) int {
	tick := now / int64(n.bucketDuration)
	return int(((tick % int64(n.numBuckets)) + int64(n.numBuckets)) % int64(n.numBuckets))
}

// roll advances the head to the bucket owning `now`, zeroing any buckets
// skipped over. Concurrent callers race on a try-lock; the loser returns
// immediately without rolling, per the package doc.
func (n *Number) roll(now int64) {
	if !atomic.CompareAndSwapInt32(&n.rolling, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&n.rolling, 0)

	n.mu.Lock()
	defer n.mu.Unlock()

	idx := n.currentIndex(now)
	b := &n.buckets[idx]
	start := b.start.Load()
	bucketStart := now - (now % int64(n.bucketDuration))

	if start == bucketStart {
		return // already current; another writer rolled first
	}
	if bucketStart < start {
		// Clock moved backwards: treat as a no-op advance per the package
		// contract rather than rewinding bucket state.
		return
	}

	// Determine how far we've skipped since the old head. If the gap covers
	// the whole ring (long idle period), reset every bucket instead of
	// looping numBuckets times redundantly.
	last := n.head.Load()
	gap := (bucketStart - last) / int64(n.bucketDuration)
	if gap >= int64(n.numBuckets) {
		n.resetLocked(bucketStart)
		n.head.Store(bucketStart)
		return
	}

	// Zero every bucket strictly between the old head and the new one,
	// inclusive of the new one, walking forward around the ring.
	cur := last
	for cur < bucketStart {
		cur += int64(n.bucketDuration)
		i := n.currentIndex(cur)
		zeroBucket(&n.buckets[i])
		n.buckets[i].start.Store(cur)
	}
	n.head.Store(bucketStart)
}

func zeroBucket(b *bucket) {
	for i := range b.counters {
		b.counters[i].Store(0)
	}
}

func (n *Number) resetLocked(now int64) {
	for i := range n.buckets {
		zeroBucket(&n.buckets[i])
		n.buckets[i].start.Store(now)
	}
}

func (n *Number) ensureCurrent(now int64) *bucket {
	idx := n.currentIndex(now)
	b := &n.buckets[idx]
	bucketStart := now - (now % int64(n.bucketDuration))
	if b.start.Load() != bucketStart {
		n.roll(now)
	}
	return &n.buckets[n.currentIndex(now)]
}

// Increment adds 1 to event's counter in the current bucket.
func (n *Number) Increment(event int) {
	n.Add(event, 1)
}

// Add adds delta to event's counter in the current bucket, rolling the ring
// forward first if the current time has moved past the active bucket.
func (n *Number) Add(event int, delta int64) {
	now := time.Now().UnixNano()
	b := n.ensureCurrent(now)
	b.counters[event].Add(delta)
}

// UpdateMax sets event's counter in the current bucket to the larger of its
// current value and candidate, without blocking concurrent writers. Used for
// gauge-style metrics (e.g. concurrent execution count) where the
// interesting per-bucket quantity is a high-water mark, not a running total.
func (n *Number) UpdateMax(event int, candidate int64) {
	now := time.Now().UnixNano()
	b := n.ensureCurrent(now)
	counter := &b.counters[event]
	for {
		current := counter.Load()
		if candidate <= current {
			return
		}
		if counter.CompareAndSwap(current, candidate) {
			return
		}
	}
}

// RollingSum returns the sum of event's counter across every bucket
// currently within the window. Buckets that have aged out (their start
// timestamp is older than one full window) are excluded.
func (n *Number) RollingSum(event int) int64 {
	now := time.Now().UnixNano()
	n.ensureCurrent(now)

	windowStart := now - int64(n.bucketDuration)*int64(n.numBuckets)
	var sum int64
	for i := range n.buckets {
		if n.buckets[i].start.Load() > windowStart {
			sum += n.buckets[i].counters[event].Load()
		}
	}
	return sum
}

// RollingMaxUpdates returns the maximum value of event's per-bucket counter
// across every live bucket in the window — used for gauges like concurrent
// execution count where the interesting quantity is the peak, not the sum.
func (n *Number) RollingMaxUpdates(event int) int64 {
	now := time.Now().UnixNano()
	n.ensureCurrent(now)

	windowStart := now - int64(n.bucketDuration)*int64(n.numBuckets)
	var max int64
	for i := range n.buckets {
		if n.buckets[i].start.Load() <= windowStart {
			continue
		}
		if v := n.buckets[i].counters[event].Load(); v > max {
			max = v
		}
	}
	return max
}

// Reset zeroes every bucket, discarding all recorded events.
func (n *Number) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resetLocked(time.Now().UnixNano())
}
