package engine

import (
	"fmt"
	"sync"
	"testing"

	"github.com/softtcam-network/softtcam/pkg/route"
)

// Inserts and lookups run concurrently without an engine-wide lock; the
// race detector is the main assertion here, plus final-state correctness.
func TestBucketConcurrentInsertLookup(t *testing.T) {
	e := NewBucket()
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				octet := w*100 + i
				p := route.NewPrefix(uint32(10)<<24|uint32(octet)<<8, 24)
				seq := uint64(octet + 1)
				if err := e.Insert(route.New(p, fmt.Sprintf("gw%d", octet), 1, seq)); err != nil {
					t.Errorf("Insert: %v", err)
					return
				}
			}
		}()
	}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if _, err := e.Lookup("10.0.1.1"); err != nil {
					t.Errorf("Lookup: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	res, err := e.Lookup("10.0.1.1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if res == nil || res.NextHop != "gw1" {
		t.Errorf("Lookup(10.0.1.1) = %+v, want gw1", res)
	}
	if got := e.Stats().Routes; got != 400 {
		t.Errorf("route count = %d, want 400", got)
	}
}

func TestBucketDuplicatesStayDistinct(t *testing.T) {
	e := NewBucket()
	p, _ := route.ParsePrefix("10.0.0.0/8")
	if err := e.Insert(route.New(p, "gwA", 1, 1)); err != nil {
		t.Fatal(err)
	}
	if err := e.Insert(route.New(p, "gwA", 1, 2)); err != nil {
		t.Fatal(err)
	}
	if got := e.Stats().Routes; got != 2 {
		t.Errorf("duplicate insert should keep both routes, count = %d", got)
	}
}
