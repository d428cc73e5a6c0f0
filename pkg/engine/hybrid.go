package engine

import (
	"encoding/binary"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/softtcam-network/softtcam/pkg/route"
)

const (
	denseSlots = 1 << 16
	cacheSlots = 256

	// Routes at or below this metric are considered hot and eligible
	// for the direct-mapped cache.
	defaultHotMetricLimit = 128
)

// Hybrid is the two-tier engine. Prefixes of length <= 16 are replicated
// into a dense 65,536-slot array indexed by the top 16 address bits;
// longer prefixes go into a compressed binary trie. Both tiers sit behind
// one reader/writer lock. A small direct-mapped cache of hot routes fronts
// the slow path.
//
// The cache is never allowed to disagree with the array/trie: an entry is
// only written from a dense-array answer on a slot with no trie routes,
// inserts invalidate every covered entry before releasing the writer lock,
// and a slot that ever gains a trie route is shadowed and stays
// uncacheable. A tag-matched hit is therefore always the authoritative
// answer.
type Hybrid struct {
	counters
	cacheHits atomic.Uint64

	mu       sync.RWMutex
	dense    []*route.Route // denseSlots entries
	shadowed [denseSlots / 64]uint64
	trie     *trieNode

	cache          [cacheSlots]atomic.Pointer[hotEntry]
	hotMetricLimit uint32
}

type hotEntry struct {
	top16 uint16
	r     *route.Route
}

// NewHybrid creates an empty hybrid engine.
func NewHybrid() *Hybrid {
	return &Hybrid{
		dense:          make([]*route.Route, denseSlots),
		hotMetricLimit: defaultHotMetricLimit,
	}
}

func (e *Hybrid) ID() string { return HybridID }

func cacheSlot(top16 uint16) uint64 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], top16)
	return xxhash.Sum64(b[:]) & (cacheSlots - 1)
}

func (e *Hybrid) isShadowed(top16 uint16) bool {
	return e.shadowed[top16>>6]&(1<<(top16&63)) != 0
}

func (e *Hybrid) shadow(top16 uint16) {
	e.shadowed[top16>>6] |= 1 << (top16 & 63)
}

// Insert places the route in its tier and synchronously invalidates any
// cache entry the route could shadow.
func (e *Hybrid) Insert(r *route.Route) error {
	e.mu.Lock()
	if r.Prefix.Len <= 16 {
		lo := uint32(r.Prefix.Addr >> 16)
		count := uint32(1) << (16 - r.Prefix.Len)
		for slot := lo; slot < lo+count; slot++ {
			if r.Better(e.dense[slot]) {
				e.dense[slot] = r
			}
		}
		for i := range e.cache {
			if h := e.cache[i].Load(); h != nil {
				if s := uint32(h.top16); s >= lo && s < lo+count {
					e.cache[i].Store(nil)
				}
			}
		}
	} else {
		e.trie = trieInsert(e.trie, r)
		top16 := uint16(r.Prefix.Addr >> 16)
		e.shadow(top16)
		slot := cacheSlot(top16)
		if h := e.cache[slot].Load(); h != nil && h.top16 == top16 {
			e.cache[slot].Store(nil)
		}
	}
	e.mu.Unlock()

	e.recordInsert()
	return nil
}

// Lookup checks the hot cache, then the trie (only when the slot holds
// long prefixes), then the dense array.
func (e *Hybrid) Lookup(ip string) (*Result, error) {
	addr, err := route.ParseAddr(ip)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	top16 := uint16(addr >> 16)
	slot := cacheSlot(top16)

	e.mu.RLock()
	if h := e.cache[slot].Load(); h != nil && h.top16 == top16 && !e.isShadowed(top16) {
		r := h.r
		e.mu.RUnlock()
		e.cacheHits.Add(1)
		latency := time.Since(start).Nanoseconds()
		e.recordLookup(true, latency)
		return &Result{
			NextHop:   r.NextHop,
			Metric:    r.Metric,
			LatencyNs: latency,
			EngineID:  HybridID,
		}, nil
	}

	best := e.dense[top16]
	shadowed := e.isShadowed(top16)
	if shadowed {
		if r := trieLookup(e.trie, addr); r != nil && r.Better(best) {
			best = r
		}
	} else if best != nil && best.Metric <= e.hotMetricLimit {
		// Dense answer on an unshadowed slot covers the whole /16, so
		// caching it while holding the read lock cannot race an insert.
		e.cache[slot].Store(&hotEntry{top16: top16, r: best})
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
		EngineID:  HybridID,
	}, nil
}

// Stats returns a snapshot of the engine counters.
func (e *Hybrid) Stats() Stats {
	return e.snapshot()
}

// CacheHits reports how many lookups were answered from the hot cache.
func (e *Hybrid) CacheHits() uint64 {
	return e.cacheHits.Load()
}

// trieNode is a path-compressed binary trie node. The node's prefix holds
// the full bit pattern from the root; split nodes carry no route.
type trieNode struct {
	prefix route.Prefix
	r      *route.Route
	child  [2]*trieNode
}

func bitAt(addr uint32, i uint8) int {
	return int(addr >> (31 - i) & 1)
}

// commonLen returns the length of the shared leading bits of two
// prefixes, capped at the shorter length.
func commonLen(a, b route.Prefix) uint8 {
	limit := a.Len
	if b.Len < limit {
		limit = b.Len
	}
	lz := uint8(bits.LeadingZeros32(a.Addr ^ b.Addr))
	if lz < limit {
		return lz
	}
	return limit
}

func trieInsert(n *trieNode, r *route.Route) *trieNode {
	if n == nil {
		return &trieNode{prefix: r.Prefix, r: r}
	}
	common := commonLen(n.prefix, r.Prefix)
	switch {
	case common == n.prefix.Len && common == r.Prefix.Len:
		// Same prefix. First inserted keeps the node; sequences are
		// monotonic so a later duplicate never displaces it.
		if n.r == nil || r.Seq < n.r.Seq {
			n.r = r
		}
		return n
	case common == n.prefix.Len:
		b := bitAt(r.Prefix.Addr, n.prefix.Len)
		n.child[b] = trieInsert(n.child[b], r)
		return n
	default:
		mid := &trieNode{prefix: route.NewPrefix(n.prefix.Addr, common)}
		mid.child[bitAt(n.prefix.Addr, common)] = n
		if common == r.Prefix.Len {
			mid.r = r
		} else {
			mid.child[bitAt(r.Prefix.Addr, common)] = &trieNode{prefix: r.Prefix, r: r}
		}
		return mid
	}
}

// trieLookup walks toward the address, remembering the deepest node whose
// prefix covers it and that carries a route.
func trieLookup(n *trieNode, addr uint32) *route.Route {
	var best *route.Route
	for n != nil {
		if !n.prefix.Matches(addr) {
			break
		}
		if n.r != nil && n.r.Better(best) {
			best = n.r
		}
		if n.prefix.Len == 32 {
			break
		}
		n = n.child[bitAt(addr, n.prefix.Len)]
	}
	return best
}
