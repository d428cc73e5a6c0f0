package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/softtcam-network/softtcam/pkg/route"
)

// Bucket is the throughput-oriented engine: routes live in a concurrent
// map keyed by the exact (masked address, length) pair. A lookup masks the
// query address at every length from 32 down to 0 and probes the map once
// per length, so latency is bounded by 33 probes instead of table size.
// Inserts and lookups never take an engine-wide lock.
type Bucket struct {
	counters
	buckets sync.Map // uint64 packed prefix -> *bucketEntry
}

// bucketEntry holds every route inserted for one exact prefix. The slice
// is copy-on-write behind an atomic pointer so readers never block;
// the small mutex only serializes writers to the same prefix.
type bucketEntry struct {
	mu     sync.Mutex
	routes atomic.Pointer[[]*route.Route]
}

func (b *bucketEntry) add(r *route.Route) {
	b.mu.Lock()
	old := b.routes.Load()
	var next []*route.Route
	if old != nil {
		next = make([]*route.Route, len(*old), len(*old)+1)
		copy(next, *old)
	}
	next = append(next, r)
	b.routes.Store(&next)
	b.mu.Unlock()
}

// first returns the lowest-sequence route in the bucket, nil if empty.
func (b *bucketEntry) first() *route.Route {
	rs := b.routes.Load()
	if rs == nil {
		return nil
	}
	var min *route.Route
	for _, r := range *rs {
		if min == nil || r.Seq < min.Seq {
			min = r
		}
	}
	return min
}

// NewBucket creates an empty bucket engine.
func NewBucket() *Bucket {
	return &Bucket{}
}

func (e *Bucket) ID() string { return BucketID }

func packPrefix(p route.Prefix) uint64 {
	return uint64(p.Addr)<<8 | uint64(p.Len)
}

// Insert stores the route under its exact prefix key.
func (e *Bucket) Insert(r *route.Route) error {
	v, _ := e.buckets.LoadOrStore(packPrefix(r.Prefix), &bucketEntry{})
	v.(*bucketEntry).add(r)
	e.recordInsert()
	return nil
}

// Lookup probes lengths 32 down to 0; the first populated bucket is the
// longest match by construction.
func (e *Bucket) Lookup(ip string) (*Result, error) {
	addr, err := route.ParseAddr(ip)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var best *route.Route
	for length := 32; length >= 0; length-- {
		key := packPrefix(route.NewPrefix(addr, uint8(length)))
		if v, ok := e.buckets.Load(key); ok {
			if r := v.(*bucketEntry).first(); r != nil {
				best = r
				break
			}
		}
	}

	latency := time.Since(start).Nanoseconds()
	e.recordLookup(best != nil, latency)
	if best == nil {
		return nil, nil
	}
	return &Result{
		NextHop:   best.NextHop,
		Metric:    best.Metric,
		LatencyNs: latency,
		EngineID:  BucketID,
	}, nil
}

// Stats returns a snapshot of the engine counters.
func (e *Bucket) Stats() Stats {
	return e.snapshot()
}
