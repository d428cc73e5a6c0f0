package engine

import (
	"sync"
	"time"

	"github.com/softtcam-network/softtcam/pkg/route"
)

// Linear is the scan-based engine: an append-only route table behind a
// reader/writer lock. Each stored prefix is also keyed through a GF(2^32)
// automorphism into an auxiliary index that narrows a lookup to candidate
// rows, but the authoritative answer always comes from scanning those
// candidates and keeping the longest match seen (equal lengths keep the
// earliest sequence). Simple and predictable rather than fast: O(n) worst
// case per lookup, inserts serialize behind the writer lock.
type Linear struct {
	counters

	mu     sync.RWMutex
	routes []*route.Route
	index  map[uint64][]int
}

// NewLinear creates an empty linear engine.
func NewLinear() *Linear {
	return &Linear{index: make(map[uint64][]int)}
}

func (e *Linear) ID() string { return LinearID }

// indexKey packs the field-mapped prefix address with its length.
func indexKey(p route.Prefix) uint64 {
	return uint64(fieldKey(p.Addr))<<8 | uint64(p.Len)
}

// Insert appends the route and records it in the candidate index.
func (e *Linear) Insert(r *route.Route) error {
	e.mu.Lock()
	e.routes = append(e.routes, r)
	key := indexKey(r.Prefix)
	e.index[key] = append(e.index[key], len(e.routes)-1)
	e.mu.Unlock()

	e.recordInsert()
	return nil
}

// Lookup probes the candidate index once per mask length, then scans the
// collected candidates keeping the longest covering match.
func (e *Linear) Lookup(ip string) (*Result, error) {
	addr, err := route.ParseAddr(ip)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var best *route.Route

	e.mu.RLock()
	for length := 32; length >= 0; length-- {
		key := indexKey(route.NewPrefix(addr, uint8(length)))
		for _, idx := range e.index[key] {
			cand := e.routes[idx]
			if cand.Covers(addr) && cand.Better(best) {
				best = cand
			}
		}
	}
	e.mu.RUnlock()

	latency := time.Since(start).Nanoseconds()
	e.recordLookup(best != nil, latency)
	if best == nil {
		return nil, nil
	}
	return &Result{
		NextHop:   best.NextHop,
		Metric:    best.Metric,
		LatencyNs: latency,
		EngineID:  LinearID,
	}, nil
}

// Stats returns a snapshot of the engine counters.
func (e *Linear) Stats() Stats {
	return e.snapshot()
}
