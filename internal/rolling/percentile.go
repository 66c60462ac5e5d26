package rolling

import (
	"sort"
	"sync"
	"time"
)

// Percentile records latency samples into per-bucket reservoirs, rotating on
// the same bucket-boundary rules as Number, and serves percentile queries
// computed on demand from the live samples on every call. Results are not
// cached, here or in metrics.Aggregator (whose healthCache holds only
// HealthCounts).
//
// Unlike Number's lock-free counters, each bucket's reservoir is protected by
// its own mutex: percentile samples are values, not increments, so they can't
// be merged with an atomic add.
type Percentile struct {
	bucketDuration time.Duration
	numBuckets     int
	maxPerBucket   int

	buckets []percentileBucket

	rolling int32
	mu      sync.Mutex
}

type percentileBucket struct {
	start   int64
	mu      sync.Mutex
	samples []time.Duration
	next    int // slot the next sample overwrites once samples is full
}

// NewPercentile creates a Percentile ring with numBuckets buckets spanning
// windowDuration, each retaining up to maxSamplesPerBucket latency samples
// (older samples within a bucket are dropped once the reservoir is full,
// favoring recency over a true random reservoir — adequate for the
// dashboard-grade percentiles this runtime reports).
func NewPercentile(windowDuration time.Duration, numBuckets int, maxSamplesPerBucket int) *Percentile {
	if numBuckets <= 0 {
		panic("rolling: numBuckets must be > 0")
	}
	if windowDuration <= 0 {
		panic("rolling: windowDuration must be > 0")
	}
	if maxSamplesPerBucket <= 0 {
		maxSamplesPerBucket = 100
	}

	p := &Percentile{
		bucketDuration: windowDuration / time.Duration(numBuckets),
		numBuckets:     numBuckets,
		maxPerBucket:   maxSamplesPerBucket,
		buckets:        make([]percentileBucket, numBuckets),
	}
	now := time.Now().UnixNano()
	for i := range p.buckets {
		p.buckets[i].start = now
	}
	return p
}

func (p *Percentile) currentIndex(now int64) int {
	tick := now / int64(p.bucketDuration)
	return int(((tick % int64(p.numBuckets)) + int64(p.numBuckets)) % int64(p.numBuckets))
}

func (p *Percentile) roll(now int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.currentIndex(now)
	bucketStart := now - (now % int64(p.bucketDuration))
	b := &p.buckets[idx]

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.start == bucketStart {
		return
	}
	if bucketStart < b.start {
		return // clock went backwards: no-op
	}
	b.start = bucketStart
	b.samples = b.samples[:0]
	b.next = 0
}

// Record adds a latency sample to the current bucket.
func (p *Percentile) Record(d time.Duration) {
	now := time.Now().UnixNano()
	idx := p.currentIndex(now)
	bucketStart := now - (now % int64(p.bucketDuration))

	b := &p.buckets[idx]
	b.mu.Lock()
	if b.start != bucketStart {
		b.mu.Unlock()
		p.roll(now)
		b.mu.Lock()
	}
	if len(b.samples) < p.maxPerBucket {
		b.samples = append(b.samples, d)
	} else {
		// Reservoir full: overwrite a slot round-robin by recency rather
		// than blocking or growing unbounded.
		b.samples[b.next] = d
		b.next = (b.next + 1) % p.maxPerBucket
	}
	b.mu.Unlock()
}

// Percentile returns the pctile-th percentile (0-100) of samples recorded
// within the trailing window. Returns 0 if no samples are live.
func (p *Percentile) Percentile(pctile float64) time.Duration {
	now := time.Now().UnixNano()
	windowStart := now - int64(p.bucketDuration)*int64(p.numBuckets)

	var all []time.Duration
	for i := range p.buckets {
		b := &p.buckets[i]
		b.mu.Lock()
		if b.start > windowStart {
			all = append(all, b.samples...)
		}
		b.mu.Unlock()
	}
	if len(all) == 0 {
		return 0
	}

	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	rank := int(pctile/100*float64(len(all)-1) + 0.5)
	if rank < 0 {
		rank = 0
	}
	if rank >= len(all) {
		rank = len(all) - 1
	}
	return all[rank]
}

// Mean returns the arithmetic mean latency within the trailing window.
func (p *Percentile) Mean() time.Duration {
	now := time.Now().UnixNano()
	windowStart := now - int64(p.bucketDuration)*int64(p.numBuckets)

	var sum time.Duration
	var count int
	for i := range p.buckets {
		b := &p.buckets[i]
		b.mu.Lock()
		if b.start > windowStart {
			for _, s := range b.samples {
				sum += s
				count++
			}
		}
		b.mu.Unlock()
	}
	if count == 0 {
		return 0
	}
	return sum / time.Duration(count)
}
