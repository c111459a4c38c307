package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key. Longer
// requests are served uncached.
const MaxKeyLength = 8 << 10

// Sentinel errors for cache operations.
var (
	ErrNilStore   = errors.New("cache: store is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
	ErrInvalidTTL = errors.New("cache: ttl must be positive")
)

// Cache is the key/value half of a Store.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines.
// - Errors: Get returns (nil, false, nil) on miss; a non-nil error means the
//   store itself failed.
type Cache interface {
	// Get retrieves a stored value.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value that expires after ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys in one call. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Exists reports which of the given keys are currently present.
	Exists(ctx context.Context, keys ...string) ([]bool, error)
}

// SetStore holds the string sets backing the tag index.
type SetStore interface {
	// SAdd adds members to a set. Adding an existing member is a no-op.
	SAdd(ctx context.Context, set string, members ...string) error

	// SMembers returns all members of a set, empty if the set is absent.
	SMembers(ctx context.Context, set string) ([]string, error)

	// SRem removes members from a set.
	SRem(ctx context.Context, set string, members ...string) error
}

// Store is the shared external store the engine and tag index run against.
// The core never owns its lifecycle.
type Store interface {
	Cache
	SetStore
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
