package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNilFetch is returned when Lookup is called without a fetch function.
var ErrNilFetch = errors.New("cache: fetch function is nil")

// FetchFunc produces the authoritative value for a key on a cache miss.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Result describes how a Lookup was served.
type Result struct {
	Value []byte

	// Hit is true when Value came from the store without calling fetch.
	Hit bool

	// Shared is true when Value came from a fetch started by another
	// concurrent caller for the same key.
	Shared bool
}

// Engine is a read-through cache over a Store.
//
// Contract:
// - Concurrency: safe for concurrent use. Without WithSingleflight,
//   concurrent misses for one key each call fetch and each write the key;
//   the last write wins.
// - Errors: fetch errors are returned unchanged and never cached. Store
//   errors are returned to the caller.
type Engine struct {
	store    Cache
	group    *singleflight.Group
	staleTTL time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSingleflight coalesces concurrent misses for the same key into one
// fetch. A caller whose context ends stops waiting; the shared fetch keeps
// running for the others.
func WithSingleflight() EngineOption {
	return func(e *Engine) { e.group = &singleflight.Group{} }
}

// WithStaleTTL also writes each fetched value under StaleKey(key) with the
// given lifetime, for use by Peek when upstream later fails.
func WithStaleTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.staleTTL = ttl }
}

// NewEngine creates an engine over store.
func NewEngine(store Cache, opts ...EngineOption) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetCached returns the stored value for key, or calls fetch, stores its
// result for ttl and returns it.
func (e *Engine) GetCached(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	res, err := e.Lookup(ctx, key, ttl, fetch)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// Lookup is GetCached with hit/miss reporting.
func (e *Engine) Lookup(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (Result, error) {
	if e == nil || e.store == nil {
		return Result{}, ErrNilStore
	}
	if err := ValidateKey(key); err != nil {
		return Result{}, err
	}
	if ttl <= 0 {
		return Result{}, ErrInvalidTTL
	}
	if fetch == nil {
		return Result{}, ErrNilFetch
	}

	cached, ok, err := e.store.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if ok && len(cached) > 0 {
		return Result{Value: cached, Hit: true}, nil
	}

	if e.group == nil {
		value, err := e.fill(ctx, key, ttl, fetch)
		if err != nil {
			return Result{}, err
		}
		return Result{Value: value}, nil
	}

	// The shared fetch must not be cancelled by whichever caller started it.
	detached := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (any, error) {
		return e.fill(detached, key, ttl, fetch)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return Result{Value: r.Val.([]byte), Shared: r.Shared}, nil
	}
}

// Peek reads key without fetching. If key is absent it falls back to the
// stale copy written under WithStaleTTL.
func (e *Engine) Peek(ctx context.Context, key string) ([]byte, bool, error) {
	if e == nil || e.store == nil {
		return nil, false, ErrNilStore
	}

	value, ok, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if ok && len(value) > 0 {
		return value, true, nil
	}

	value, ok, err = e.store.Get(ctx, StaleKey(key))
	if err != nil {
		return nil, false, err
	}
	return value, ok && len(value) > 0, nil
}

func (e *Engine) fill(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := e.store.Set(ctx, key, value, ttl); err != nil {
		return nil, err
	}

	if e.staleTTL > 0 {
		staleTTL := e.staleTTL
		if staleTTL < ttl {
			staleTTL = ttl
		}
		if err := e.store.Set(ctx, StaleKey(key), value, staleTTL); err != nil {
			return nil, err
		}
	}

	return value, nil
}
