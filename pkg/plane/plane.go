package plane

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/softtcam-network/softtcam/pkg/engine"
	"github.com/softtcam-network/softtcam/pkg/health"
	"github.com/softtcam-network/softtcam/pkg/route"
	"github.com/softtcam-network/softtcam/pkg/util"
)

// Canary route used by the recovery probe. Sits in the RFC 2544
// benchmarking range so it can never shadow production prefixes.
const (
	canaryCIDR    = "198.18.255.255/32"
	canaryAddr    = "198.18.255.255"
	canaryNextHop = "probe"
)

// EngineFailure pairs an engine with the error it returned during a
// fan-out insert.
type EngineFailure struct {
	EngineID string `json:"engine_id"`
	Err      error  `json:"error"`
}

// InsertReport tells the caller which engines accepted a route and which
// rejected it. Partial failure is still a successful insert.
type InsertReport struct {
	Seq      uint64          `json:"seq"`
	Accepted []string        `json:"accepted"`
	Failures []EngineFailure `json:"failures,omitempty"`
}

// Metrics aggregates request counters across every registered engine.
type Metrics struct {
	TotalRequests uint64  `json:"total_requests"`
	TotalFailures uint64  `json:"total_failures"`
	SuccessRate   float64 `json:"success_rate"`
	AvgLatencyNs  float64 `json:"avg_latency_ns"`
}

// Plane owns a set of lookup engines and their health records. All state
// is per-instance; two planes in one process never share counters.
type Plane struct {
	cfg      Config
	engines  []engine.Engine
	byID     map[string]engine.Engine
	monitor  *health.Monitor
	seq      atomic.Uint64
	failover []string

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds a plane with the built-in engines selected by cfg and starts
// the periodic health probe when an interval is configured.
func New(cfg Config) (*Plane, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var engines []engine.Engine
	if cfg.EnableLinear {
		engines = append(engines, engine.NewLinear())
	}
	if cfg.EnableBucket {
		engines = append(engines, engine.NewBucket())
	}
	if cfg.EnableHybrid {
		engines = append(engines, engine.NewHybrid())
	}
	return NewWithEngines(cfg, engines)
}

// NewWithEngines builds a plane around caller-supplied engines. Useful
// for embedding a custom backend alongside or instead of the built-ins.
func NewWithEngines(cfg Config, engines []engine.Engine) (*Plane, error) {
	if len(engines) == 0 {
		return nil, util.ErrInvalidConfig
	}
	p := &Plane{
		cfg:     cfg,
		engines: engines,
		byID:    make(map[string]engine.Engine, len(engines)),
		monitor: health.NewMonitor(cfg.WarnThreshold, cfg.FailoverThreshold, cfg.RecoverySuccesses),
		done:    make(chan struct{}),
	}
	for _, e := range engines {
		p.byID[e.ID()] = e
		p.monitor.Register(e.ID())
		util.WithEngine(e.ID()).Debug("Engine registered")
	}

	// Failover priority: configured order first, then any remaining
	// engines in registration order.
	seen := make(map[string]bool)
	for _, id := range cfg.FailoverOrder {
		if _, ok := p.byID[id]; ok && !seen[id] {
			p.failover = append(p.failover, id)
			seen[id] = true
		}
	}
	for _, e := range engines {
		if !seen[e.ID()] {
			p.failover = append(p.failover, e.ID())
		}
	}

	if cfg.HealthProbeInterval > 0 {
		p.wg.Add(1)
		go p.probeLoop()
	}
	return p, nil
}

// Close stops the probe loop. Safe to call more than once.
func (p *Plane) Close() {
	p.closeOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

// Engines returns the registered engine IDs in registration order.
func (p *Plane) Engines() []string {
	ids := make([]string, len(p.engines))
	for i, e := range p.engines {
		ids[i] = e.ID()
	}
	return ids
}

// Insert parses the route, assigns its sequence number, and fans it out
// to every engine. Insert is best-effort per engine: failures are
// reported back and recorded against that engine's health, and the call
// errors only when no engine accepted the route.
func (p *Plane) Insert(cidr, nextHop string, metric uint32) (*InsertReport, error) {
	prefix, err := route.ParsePrefix(cidr)
	if err != nil {
		return nil, err
	}
	seq := p.seq.Add(1)
	r := route.New(prefix, nextHop, metric, seq)

	var (
		mu       sync.Mutex
		accepted []string
		failures []EngineFailure
	)
	g := new(errgroup.Group)
	for _, e := range p.engines {
		e := e
		g.Go(func() error {
			insertErr := e.Insert(r)
			mu.Lock()
			defer mu.Unlock()
			if insertErr != nil {
				p.monitor.RecordFailure(e.ID(), insertErr)
				failures = append(failures, EngineFailure{EngineID: e.ID(), Err: insertErr})
				util.WithEngine(e.ID()).Warnf("Insert of %s failed: %v", r.Prefix, insertErr)
				return nil
			}
			p.monitor.RecordSuccess(e.ID(), 0)
			accepted = append(accepted, e.ID())
			return nil
		})
	}
	g.Wait()

	if len(accepted) == 0 {
		failed := make(map[string]error, len(failures))
		for _, f := range failures {
			failed[f.EngineID] = f.Err
		}
		return nil, util.NewInsertError(failed)
	}
	return &InsertReport{Seq: seq, Accepted: accepted, Failures: failures}, nil
}

// engineOutcome carries one engine's answer back to the collector.
type engineOutcome struct {
	engineID string
	res      *engine.Result
	err      error
}

// LookupRedundant races every dispatchable engine and returns the first
// completed answer that found a route, tagged with the winning engine and
// the total wall latency. A deadline of zero waits for all engines.
// ErrTimeout is returned only when the deadline fires before any engine
// completed; engines still running at that point are abandoned and their
// results discarded (health is still recorded when they finish).
func (p *Plane) LookupRedundant(ip string, deadline time.Duration) (*engine.Result, error) {
	if _, err := route.ParseAddr(ip); err != nil {
		return nil, err
	}
	engines := p.dispatchable()
	if len(engines) == 0 {
		util.WithOperation("lookup-redundant").Warn("No dispatchable engines")
		return nil, nil
	}

	start := time.Now()
	outcomes := make(chan engineOutcome, len(engines))
	for _, e := range engines {
		e := e
		go func() {
			opStart := time.Now()
			res, err := e.Lookup(ip)
			p.recordLookup(e.ID(), err, time.Since(opStart).Nanoseconds())
			outcomes <- engineOutcome{engineID: e.ID(), res: res, err: err}
		}()
	}

	var timeout <-chan time.Time
	if deadline > 0 {
		t := time.NewTimer(deadline)
		defer t.Stop()
		timeout = t.C
	}

	completed := 0
	for completed < len(engines) {
		select {
		case o := <-outcomes:
			completed++
			if o.err == nil && o.res != nil {
				return &engine.Result{
					NextHop:   o.res.NextHop,
					Metric:    o.res.Metric,
					LatencyNs: time.Since(start).Nanoseconds(),
					EngineID:  o.engineID,
				}, nil
			}
		case <-timeout:
			if completed == 0 {
				return nil, util.ErrTimeout
			}
			return nil, nil
		}
	}
	return nil, nil
}

// LookupFailover tries engines in priority order and returns the first
// answer that found a route. Engines that are failed out or that error
// are skipped; a clean no-match moves on to the next engine and the call
// returns no-match only after the order is exhausted.
func (p *Plane) LookupFailover(ip string) (*engine.Result, error) {
	if _, err := route.ParseAddr(ip); err != nil {
		return nil, err
	}

	start := time.Now()
	for _, id := range p.failover {
		if !p.monitor.Dispatchable(id) {
			continue
		}
		e := p.byID[id]
		opStart := time.Now()
		res, err := e.Lookup(ip)
		p.recordLookup(id, err, time.Since(opStart).Nanoseconds())
		if err != nil {
			util.WithEngine(id).Debugf("Failover lookup error, trying next: %v", err)
			continue
		}
		if res != nil {
			return &engine.Result{
				NextHop:   res.NextHop,
				Metric:    res.Metric,
				LatencyNs: time.Since(start).Nanoseconds(),
				EngineID:  id,
			}, nil
		}
	}
	return nil, nil
}

// recordLookup folds one engine call into that engine's health record.
// Address parse errors never reach here; any engine error counts as a
// failure, including ones from abandoned redundant tasks.
func (p *Plane) recordLookup(engineID string, err error, latencyNs int64) {
	if err != nil {
		p.monitor.RecordFailure(engineID, err)
		return
	}
	p.monitor.RecordSuccess(engineID, latencyNs)
}

// HealthStatus returns a snapshot of every engine's health record.
func (p *Plane) HealthStatus() []health.Record {
	return p.monitor.Records()
}

// EngineStats returns per-engine counters keyed by engine ID.
func (p *Plane) EngineStats() map[string]engine.Stats {
	out := make(map[string]engine.Stats, len(p.engines))
	for _, e := range p.engines {
		out[e.ID()] = e.Stats()
	}
	return out
}

// Metrics aggregates health counters across all engines.
func (p *Plane) Metrics() Metrics {
	requests, failures, totalLatency, samples := p.monitor.Aggregate()
	m := Metrics{TotalRequests: requests, TotalFailures: failures}
	if requests > 0 {
		m.SuccessRate = float64(requests-failures) / float64(requests)
	}
	if samples > 0 {
		m.AvgLatencyNs = float64(totalLatency) / float64(samples)
	}
	return m
}

// dispatchable returns the engines eligible for live traffic.
func (p *Plane) dispatchable() []engine.Engine {
	out := make([]engine.Engine, 0, len(p.engines))
	for _, e := range p.engines {
		if p.monitor.Dispatchable(e.ID()) {
			out = append(out, e)
		}
	}
	return out
}

// probeLoop periodically probes failed engines with a canary
// insert+lookup so they can re-enter rotation.
func (p *Plane) probeLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.HealthProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.runProbes()
		}
	}
}

// runProbes sweeps every failed engine concurrently.
func (p *Plane) runProbes() {
	failed := p.monitor.FailedEngines()
	if len(failed) == 0 {
		return
	}
	g := new(errgroup.Group)
	for _, id := range failed {
		e, ok := p.byID[id]
		if !ok {
			continue
		}
		g.Go(func() error {
			p.probeEngine(e)
			return nil
		})
	}
	g.Wait()
}

// probeEngine runs the synthetic canary insert+lookup against one failed
// engine. The canary is inserted only into the engine under probe, which
// is excluded from dispatch for as long as it stays failed.
func (p *Plane) probeEngine(e engine.Engine) {
	prefix, err := route.ParsePrefix(canaryCIDR)
	if err != nil {
		return
	}
	canary := route.New(prefix, canaryNextHop, 0, p.seq.Add(1))
	if err := e.Insert(canary); err != nil {
		util.WithEngine(e.ID()).Debugf("Probe insert failed: %v", err)
		return
	}
	res, err := e.Lookup(canaryAddr)
	if err != nil || res == nil {
		util.WithEngine(e.ID()).Debugf("Probe lookup failed: %v", err)
		return
	}
	p.monitor.RecordProbeSuccess(e.ID())
	util.WithEngine(e.ID()).Info("Probe succeeded, engine back in rotation")
}
