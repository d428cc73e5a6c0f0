package route

import "fmt"

// Route binds a prefix to its forwarding decision. Seq is the
// insertion sequence assigned by the control plane and is the
// deterministic tie-breaker between equal-length matches: the
// lowest sequence (first inserted) wins. Routes are immutable.
type Route struct {
	Prefix  Prefix
	NextHop string
	Metric  uint32
	Seq     uint64
}

// New creates a route. The sequence is supplied by the caller; engines
// never assign ordering themselves.
func New(prefix Prefix, nextHop string, metric uint32, seq uint64) *Route {
	return &Route{Prefix: prefix, NextHop: nextHop, Metric: metric, Seq: seq}
}

// Covers reports whether this route's prefix contains addr.
func (r *Route) Covers(addr uint32) bool {
	return r.Prefix.Matches(addr)
}

// Better reports whether r beats current as the longest-prefix match.
// A nil current always loses; otherwise the longer prefix wins and
// equal lengths fall back to the smaller insertion sequence.
func (r *Route) Better(current *Route) bool {
	if current == nil {
		return true
	}
	if r.Prefix.Len != current.Prefix.Len {
		return r.Prefix.Len > current.Prefix.Len
	}
	return r.Seq < current.Seq
}

func (r *Route) String() string {
	return fmt.Sprintf("%s via %s metric %d seq %d", r.Prefix, r.NextHop, r.Metric, r.Seq)
}
