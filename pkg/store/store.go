// Package store persists route tables to Redis so a control plane can be
// reseeded across restarts. Each route is a Redis hash at
// "ROUTE|<cidr>|<seq>", mirroring the table|key encoding used by SONiC
// config databases.
package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/softtcam-network/softtcam/pkg/plane"
	"github.com/softtcam-network/softtcam/pkg/util"
)

const routeTable = "ROUTE"

// StoredRoute is one persisted route table entry.
type StoredRoute struct {
	CIDR    string `json:"cidr"`
	NextHop string `json:"next_hop"`
	Metric  uint32 `json:"metric"`
	Seq     uint64 `json:"seq"`
}

// RouteStore reads and writes route tables in a Redis database.
type RouteStore struct {
	client *redis.Client
}

// NewRouteStore connects to the given Redis address and database.
func NewRouteStore(addr string, db int) *RouteStore {
	return &RouteStore{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
	}
}

// NewRouteStoreFromClient wraps an existing client, which the caller
// remains responsible for closing.
func NewRouteStoreFromClient(client *redis.Client) *RouteStore {
	return &RouteStore{client: client}
}

// Close releases the underlying connection.
func (s *RouteStore) Close() error {
	return s.client.Close()
}

// Ping verifies connectivity.
func (s *RouteStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func routeKey(cidr string, seq uint64) string {
	return fmt.Sprintf("%s|%s|%d", routeTable, cidr, seq)
}

// SaveRoute persists one route entry.
func (s *RouteStore) SaveRoute(ctx context.Context, r StoredRoute) error {
	key := routeKey(r.CIDR, r.Seq)
	err := s.client.HSet(ctx, key,
		"next_hop", r.NextHop,
		"metric", strconv.FormatUint(uint64(r.Metric), 10),
		"seq", strconv.FormatUint(r.Seq, 10),
	).Err()
	if err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

// SaveReport persists a route using the sequence the control plane
// assigned at insert time.
func (s *RouteStore) SaveReport(ctx context.Context, cidr, nextHop string, metric uint32, report *plane.InsertReport) error {
	return s.SaveRoute(ctx, StoredRoute{
		CIDR:    cidr,
		NextHop: nextHop,
		Metric:  metric,
		Seq:     report.Seq,
	})
}

// LoadRoutes returns every persisted route sorted by sequence, so a
// replay reproduces the original insert order and tie-breaks.
func (s *RouteStore) LoadRoutes(ctx context.Context) ([]StoredRoute, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return nil, err
	}

	routes := make([]StoredRoute, 0, len(keys))
	for _, key := range keys {
		fields, err := s.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", key, err)
		}
		r, err := parseStoredRoute(key, fields)
		if err != nil {
			util.WithOperation("store-load").Warnf("Skipping malformed entry %s: %v", key, err)
			continue
		}
		routes = append(routes, r)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Seq < routes[j].Seq })
	return routes, nil
}

// Count returns the number of persisted routes.
func (s *RouteStore) Count(ctx context.Context) (int, error) {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Clear removes every persisted route.
func (s *RouteStore) Clear(ctx context.Context) error {
	keys, err := s.scanKeys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Restore replays every persisted route through the plane in sequence
// order. Partial insert failures are logged and skipped; the restore
// fails only when the plane rejects a route outright.
func (s *RouteStore) Restore(ctx context.Context, p *plane.Plane) (int, error) {
	routes, err := s.LoadRoutes(ctx)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, r := range routes {
		if ctx.Err() != nil {
			return restored, ctx.Err()
		}
		report, err := p.Insert(r.CIDR, r.NextHop, r.Metric)
		if err != nil {
			return restored, fmt.Errorf("restoring %s: %w", r.CIDR, err)
		}
		if len(report.Failures) > 0 {
			util.WithOperation("store-restore").Warnf("Route %s not accepted by %d engine(s)",
				r.CIDR, len(report.Failures))
		}
		restored++
	}
	util.WithOperation("store-restore").Infof("Restored %d routes", restored)
	return restored, nil
}

func (s *RouteStore) scanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, routeTable+"|*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning route table: %w", err)
	}
	return keys, nil
}

func parseStoredRoute(key string, fields map[string]string) (StoredRoute, error) {
	parts := strings.Split(key, "|")
	if len(parts) != 3 {
		return StoredRoute{}, fmt.Errorf("bad key format")
	}
	seq, err := strconv.ParseUint(fields["seq"], 10, 64)
	if err != nil {
		return StoredRoute{}, fmt.Errorf("bad seq %q", fields["seq"])
	}
	metric, err := strconv.ParseUint(fields["metric"], 10, 32)
	if err != nil {
		return StoredRoute{}, fmt.Errorf("bad metric %q", fields["metric"])
	}
	return StoredRoute{
		CIDR:    parts[1],
		NextHop: fields["next_hop"],
		Metric:  uint32(metric),
		Seq:     seq,
	}, nil
}
