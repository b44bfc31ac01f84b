package zone

import (
	"context"
	"sync"
	"testing"
	"time"

	"dropfee/internal/types"
)

// Readers hold one snapshot for the whole query; versions never go backwards.
func TestRegistry_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	r := newTestRegistry(nil)
	ctx := context.Background()
	drop := types.Point{Lat: 0.5, Lng: 0.5}

	const rounds = 200
	stop := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan string, 16)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last int64
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := r.Snapshot()
				if snap.Version() < last {
					errs <- "snapshot version went backwards"
					return
				}
				last = snap.Version()
				zones, err := snap.Query(drop, time.Now())
				if err != nil {
					errs <- err.Error()
					return
				}
				if len(zones) != snap.Len() {
					errs <- "query result disagrees with its own snapshot"
					return
				}
			}
		}()
	}

	for i := 0; i < rounds; i++ {
		z, err := r.Upsert(ctx, cmd(CategoryHighDemand, "1.5", square(0, 0, 1, 1)))
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if err := r.Remove(ctx, z.ID); err != nil {
			t.Fatalf("Remove: %v", err)
		}
	}
	close(stop)
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Fatal(e)
	}
	if got := r.Snapshot().Version(); got != 2*rounds {
		t.Fatalf("expected version %d, got %d", 2*rounds, got)
	}
}
