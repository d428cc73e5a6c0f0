// Package engine provides the lookup-engine contract and three
// interchangeable longest-prefix-match implementations with different
// indexing strategies and latency/throughput trade-offs.
package engine

import (
	"sync/atomic"

	"github.com/softtcam-network/softtcam/pkg/route"
)

// Engine IDs of the built-in implementations.
const (
	LinearID = "linear"
	BucketID = "bucket"
	HybridID = "hybrid"
)

// Result is a successful lookup answer. A nil *Result from Lookup means
// no covering route exists for the queried address.
type Result struct {
	NextHop   string `json:"next_hop"`
	Metric    uint32 `json:"metric"`
	LatencyNs int64  `json:"latency_ns"`
	EngineID  string `json:"engine_id"`
}

// Stats is a cheap point-in-time snapshot of an engine's counters.
type Stats struct {
	Inserts      uint64  `json:"inserts"`
	Lookups      uint64  `json:"lookups"`
	Hits         uint64  `json:"hits"`
	Routes       uint64  `json:"routes"`
	AvgLatencyNs float64 `json:"avg_latency_ns"`
}

// Engine is the contract every lookup backend implements.
//
// Insert stores a route whose sequence number was already assigned by the
// caller; duplicates are permitted and remain distinct entries. Lookup
// returns the longest-prefix match for a dotted-quad address, breaking
// equal-length ties toward the smallest sequence. Stats never blocks.
type Engine interface {
	ID() string
	Insert(r *route.Route) error
	Lookup(ip string) (*Result, error)
	Stats() Stats
}

// counters tracks engine activity with atomics so Stats stays
// non-blocking while inserts and lookups are in flight.
type counters struct {
	inserts   atomic.Uint64
	lookups   atomic.Uint64
	hits      atomic.Uint64
	routes    atomic.Uint64
	latencyNs atomic.Int64
}

func (c *counters) recordInsert() {
	c.inserts.Add(1)
	c.routes.Add(1)
}

func (c *counters) recordLookup(hit bool, latencyNs int64) {
	c.lookups.Add(1)
	c.latencyNs.Add(latencyNs)
	if hit {
		c.hits.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	s := Stats{
		Inserts: c.inserts.Load(),
		Lookups: c.lookups.Load(),
		Hits:    c.hits.Load(),
		Routes:  c.routes.Load(),
	}
	if s.Lookups > 0 {
		s.AvgLatencyNs = float64(c.latencyNs.Load()) / float64(s.Lookups)
	}
	return s
}
