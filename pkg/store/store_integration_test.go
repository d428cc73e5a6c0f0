//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/softtcam-network/softtcam/internal/testutil"
	"github.com/softtcam-network/softtcam/pkg/plane"
)

const testDB = 9

func newTestStore(t *testing.T) *RouteStore {
	t.Helper()
	testutil.SkipIfNoRedis(t)
	testutil.FlushDB(t, testutil.RedisAddr(), testDB)

	s := NewRouteStore(testutil.RedisAddr(), testDB)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadRoutes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	routes := []StoredRoute{
		{CIDR: "192.168.1.0/24", NextHop: "gw1", Metric: 10, Seq: 2},
		{CIDR: "192.168.0.0/16", NextHop: "gw2", Metric: 5, Seq: 1},
		{CIDR: "10.0.0.0/8", NextHop: "gw3", Metric: 20, Seq: 3},
	}
	for _, r := range routes {
		if err := s.SaveRoute(ctx, r); err != nil {
			t.Fatalf("SaveRoute(%s): %v", r.CIDR, err)
		}
	}

	loaded, err := s.LoadRoutes(ctx)
	if err != nil {
		t.Fatalf("LoadRoutes: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("loaded %d routes, want 3", len(loaded))
	}
	// Sorted by sequence, not save order.
	for i, want := range []uint64{1, 2, 3} {
		if loaded[i].Seq != want {
			t.Errorf("loaded[%d].Seq = %d, want %d", i, loaded[i].Seq, want)
		}
	}

	n, err := s.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("Count = %d, %v, want 3", n, err)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("Count after Clear = %d, want 0", n)
	}
}

func TestRestoreReplaysInOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Two routes on the same prefix: the lower stored sequence must win
	// the tie-break after restore.
	seed := []StoredRoute{
		{CIDR: "10.0.0.0/8", NextHop: "gwB", Metric: 1, Seq: 5},
		{CIDR: "10.0.0.0/8", NextHop: "gwA", Metric: 1, Seq: 2},
		{CIDR: "192.168.1.0/24", NextHop: "gw1", Metric: 10, Seq: 7},
	}
	for _, r := range seed {
		if err := s.SaveRoute(ctx, r); err != nil {
			t.Fatalf("SaveRoute: %v", err)
		}
	}

	cfg := plane.DefaultConfig()
	cfg.HealthProbeInterval = 0
	p, err := plane.New(cfg)
	if err != nil {
		t.Fatalf("plane.New: %v", err)
	}
	defer p.Close()

	n, err := s.Restore(ctx, p)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 3 {
		t.Errorf("restored %d routes, want 3", n)
	}

	res, err := p.LookupFailover("10.1.1.1")
	if err != nil || res == nil {
		t.Fatalf("LookupFailover after restore = %+v, %v", res, err)
	}
	if res.NextHop != "gwA" {
		t.Errorf("tie-break after restore = %s, want gwA (lower stored seq)", res.NextHop)
	}

	res, err = p.LookupFailover("192.168.1.42")
	if err != nil || res == nil || res.NextHop != "gw1" {
		t.Errorf("LookupFailover(192.168.1.42) = %+v, %v, want gw1", res, err)
	}
}
