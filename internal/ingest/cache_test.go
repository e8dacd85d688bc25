package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/david/b2-radar/internal/models"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func countingLoader(calls *int32) Loader {
	return func(context.Context) (*models.Dataset, error) {
		n := atomic.AddInt32(calls, 1)
		return &models.Dataset{Source: "s", Stats: models.DatasetStats{RowsRead: int(n)}}, nil
	}
}

func TestCache_IsStale(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCache(15*time.Minute, clock)

	if !c.IsStale("s", clock.Now()) {
		t.Fatal("missing key should be stale")
	}
	c.Put("s", &models.Dataset{})
	if c.IsStale("s", clock.Now().Add(14*time.Minute)) {
		t.Fatal("expected fresh before TTL")
	}
	if !c.IsStale("s", clock.Now().Add(15*time.Minute)) {
		t.Fatal("expected stale at TTL")
	}

	c.Invalidate("s")
	if _, _, ok := c.Get("s"); ok {
		t.Fatal("expected entry removed")
	}

	c.Put("a", &models.Dataset{})
	c.Put("b", &models.Dataset{})
	c.Clear()
	if !c.IsStale("a", clock.Now()) || !c.IsStale("b", clock.Now()) {
		t.Fatal("expected clear to drop every key")
	}
}

func TestCache_LoadReadThrough(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewCache(10*time.Minute, clock)
	var calls int32

	ds, err := c.Load(context.Background(), "s", countingLoader(&calls))
	if err != nil || ds.Stats.RowsRead != 1 {
		t.Fatalf("first load: ds=%+v err=%v", ds, err)
	}

	clock.Advance(5 * time.Minute)
	ds, _ = c.Load(context.Background(), "s", countingLoader(&calls))
	if calls != 1 || ds.Stats.RowsRead != 1 {
		t.Fatalf("expected cached dataset, calls=%d", calls)
	}

	clock.Advance(6 * time.Minute)
	ds, _ = c.Load(context.Background(), "s", countingLoader(&calls))
	if calls != 2 || ds.Stats.RowsRead != 2 {
		t.Fatalf("expected reload after expiry, calls=%d", calls)
	}
}

func TestCache_FailedLoadNotCached(t *testing.T) {
	c := NewCache(time.Minute, &manualClock{now: time.Now()})
	boom := errors.New("boom")
	empty := &models.Dataset{Opportunities: []models.Opportunity{}}

	ds, err := c.Load(context.Background(), "s", func(context.Context) (*models.Dataset, error) {
		return empty, boom
	})
	if !errors.Is(err, boom) || ds != empty {
		t.Fatalf("expected loader result passed through, ds=%v err=%v", ds, err)
	}
	if _, _, ok := c.Get("s"); ok {
		t.Fatal("failed load must not be cached")
	}
}

func TestCache_ConcurrentLoadsShareOneCall(t *testing.T) {
	c := NewCache(time.Minute, &manualClock{now: time.Now()})
	var calls int32
	release := make(chan struct{})

	loader := func(context.Context) (*models.Dataset, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &models.Dataset{Source: "s"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Load(context.Background(), "s", loader); err != nil {
				t.Errorf("load: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single load, got %d", got)
	}
}

func TestCache_LoadDuringInvalidateNeverReturnsNil(t *testing.T) {
	c := NewCache(time.Minute, &manualClock{now: time.Now()})
	loader := func(context.Context) (*models.Dataset, error) {
		return &models.Dataset{Source: "s"}, nil
	}

	stop := make(chan struct{})
	var churn sync.WaitGroup
	churn.Add(1)
	go func() {
		defer churn.Done()
		for {
			select {
			case <-stop:
				return
			default:
				c.Invalidate("s")
				c.Put("s", &models.Dataset{Source: "s"})
			}
		}
	}()

	var nils int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20000; j++ {
				ds, err := c.Load(context.Background(), "s", loader)
				if ds == nil && err == nil {
					atomic.AddInt32(&nils, 1)
				}
			}
		}()
	}
	wg.Wait()
	close(stop)
	churn.Wait()

	if n := atomic.LoadInt32(&nils); n != 0 {
		t.Fatalf("Load returned a nil dataset without error %d times", n)
	}
}

func TestNewCache_DefaultTTL(t *testing.T) {
	if got := NewCache(0, nil).TTL(); got != DefaultCacheTTL {
		t.Fatalf("expected default TTL, got %v", got)
	}
}
