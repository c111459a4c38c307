package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingFetch returns value and records how often it was called.
func countingFetch(value string, calls *int32) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(calls, 1)
		return []byte(value), nil
	}
}

func TestEngine_HitAvoidsFetch(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Set(ctx, "api:/api/product/1", []byte("cached"), time.Minute)

	e := NewEngine(store)
	var calls int32
	res, err := e.Lookup(ctx, "api:/api/product/1", time.Minute, countingFetch("fresh", &calls))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !res.Hit {
		t.Error("Lookup should report a hit")
	}
	if string(res.Value) != "cached" {
		t.Errorf("Value = %q, want %q", res.Value, "cached")
	}
	if calls != 0 {
		t.Errorf("fetch called %d times, want 0", calls)
	}
}

func TestEngine_MissPopulatesOnce(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()
	e := NewEngine(store)

	var calls int32
	fetch := countingFetch("fresh", &calls)

	got, err := e.GetCached(ctx, "k", 600*time.Second, fetch)
	if err != nil {
		t.Fatalf("GetCached failed: %v", err)
	}
	if string(got) != "fresh" {
		t.Errorf("GetCached = %q, want %q", got, "fresh")
	}

	for i := 0; i < 3; i++ {
		if _, err := e.GetCached(ctx, "k", 600*time.Second, fetch); err != nil {
			t.Fatalf("GetCached failed: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}

	// The value carries the TTL it was written with.
	clock.Advance(600 * time.Second)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("entry should expire after 600s")
	}

	if _, err := e.GetCached(ctx, "k", 600*time.Second, fetch); err != nil {
		t.Fatalf("GetCached failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times after expiry, want 2", calls)
	}
}

func TestEngine_FetchErrorNotCached(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	e := NewEngine(store)

	wantErr := errors.New("upstream down")
	_, err := e.GetCached(ctx, "k", time.Minute, func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("GetCached error = %v, want %v", err, wantErr)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("failed fetch must not write the key")
	}

	var calls int32
	got, err := e.GetCached(ctx, "k", time.Minute, countingFetch("ok", &calls))
	if err != nil || string(got) != "ok" {
		t.Errorf("GetCached = %q, %v; want ok, nil", got, err)
	}
	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
}

func TestEngine_StoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("store unavailable")
	e := NewEngine(&failingStore{err: storeErr})

	var calls int32
	_, err := e.GetCached(context.Background(), "k", time.Minute, countingFetch("v", &calls))
	if !errors.Is(err, storeErr) {
		t.Errorf("GetCached error = %v, want %v", err, storeErr)
	}
	if calls != 0 {
		t.Errorf("fetch called %d times, want 0", calls)
	}
}

func TestEngine_InvalidArguments(t *testing.T) {
	e := NewEngine(NewMemoryStore())
	ctx := context.Background()
	var calls int32
	fetch := countingFetch("v", &calls)

	if _, err := e.GetCached(ctx, "", time.Minute, fetch); err != ErrInvalidKey {
		t.Errorf("empty key error = %v, want ErrInvalidKey", err)
	}
	if _, err := e.GetCached(ctx, "k", 0, fetch); err != ErrInvalidTTL {
		t.Errorf("zero ttl error = %v, want ErrInvalidTTL", err)
	}
	if _, err := e.GetCached(ctx, "k", time.Minute, nil); err != ErrNilFetch {
		t.Errorf("nil fetch error = %v, want ErrNilFetch", err)
	}

	var nilEngine *Engine
	if _, err := nilEngine.GetCached(ctx, "k", time.Minute, fetch); err != ErrNilStore {
		t.Errorf("nil engine error = %v, want ErrNilStore", err)
	}
	if calls != 0 {
		t.Errorf("fetch called %d times, want 0", calls)
	}
}

func TestEngine_EmptyStoredValueIsMiss(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Set(ctx, "k", []byte{}, time.Minute)

	e := NewEngine(store)
	var calls int32
	res, err := e.Lookup(ctx, "k", time.Minute, countingFetch("v", &calls))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if res.Hit || calls != 1 {
		t.Errorf("Hit = %v, calls = %d; want false, 1", res.Hit, calls)
	}
}

func TestEngine_SingleflightCoalesces(t *testing.T) {
	store := NewMemoryStore()
	e := NewEngine(store, WithSingleflight())
	ctx := context.Background()

	release := make(chan struct{})
	var calls int32
	fetch := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("shared"), nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([][]byte, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.GetCached(ctx, "k", time.Minute, fetch)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil || string(results[i]) != "shared" {
			t.Errorf("caller %d got %q, %v", i, results[i], errs[i])
		}
	}
}

func TestEngine_SingleflightWaiterCancel(t *testing.T) {
	store := NewMemoryStore()
	e := NewEngine(store, WithSingleflight())

	release := make(chan struct{})
	done := make(chan struct{})
	fetch := func(ctx context.Context) ([]byte, error) {
		defer close(done)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte("late"), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := e.GetCached(ctx, "k", time.Minute, fetch)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("GetCached error = %v, want context.Canceled", err)
	}

	// The shared fetch is detached from the caller and still completes.
	close(release)
	<-done

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v, ok, _ := store.Get(context.Background(), "k"); ok {
			if string(v) != "late" {
				t.Errorf("stored value = %q, want late", v)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("detached fetch should still populate the key")
}

func TestEngine_StaleCopy(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()
	e := NewEngine(store, WithStaleTTL(time.Hour))

	var calls int32
	if _, err := e.GetCached(ctx, "k", time.Minute, countingFetch("v1", &calls)); err != nil {
		t.Fatalf("GetCached failed: %v", err)
	}

	v, ok, err := e.Peek(ctx, "k")
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("Peek = %q, %v, %v; want v1, true, nil", v, ok, err)
	}

	clock.Advance(2 * time.Minute)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("primary key should have expired")
	}

	v, ok, err = e.Peek(ctx, "k")
	if err != nil || !ok || string(v) != "v1" {
		t.Errorf("Peek after expiry = %q, %v, %v; want stale v1", v, ok, err)
	}

	clock.Advance(time.Hour)
	if _, ok, _ := e.Peek(ctx, "k"); ok {
		t.Error("stale copy should expire after its own TTL")
	}
}

func TestEngine_StaleTTLNeverShorterThanTTL(t *testing.T) {
	clock := newFakeClock()
	store := NewMemoryStore(WithClock(clock.Now))
	ctx := context.Background()
	e := NewEngine(store, WithStaleTTL(time.Second))

	var calls int32
	_, _ = e.GetCached(ctx, "k", time.Hour, countingFetch("v", &calls))

	clock.Advance(30 * time.Minute)
	if _, ok, _ := store.Get(ctx, StaleKey("k")); !ok {
		t.Error("stale copy should live at least as long as the entry")
	}
}

func TestEngine_PeekWithoutStale(t *testing.T) {
	e := NewEngine(NewMemoryStore())
	if _, ok, err := e.Peek(context.Background(), "missing"); ok || err != nil {
		t.Errorf("Peek = %v, %v; want false, nil", ok, err)
	}
}
