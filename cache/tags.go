package cache

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// TagIndex groups cache keys under logical tags so they can be invalidated
// together.
//
// Contract:
// - Concurrency: safe for concurrent use. There is no barrier between
//   tagging and invalidation; a key tagged while a sweep runs may survive it.
// - Errors: store errors are returned; partial progress is not rolled back.
type TagIndex struct {
	store     Store
	clearSets bool
}

// TagOption configures a TagIndex.
type TagOption func(*TagIndex)

// WithClearSets makes InvalidateTags delete the tag sets after deleting
// their members, so sets do not grow without bound.
func WithClearSets() TagOption {
	return func(t *TagIndex) { t.clearSets = true }
}

// NewTagIndex creates a tag index over store.
func NewTagIndex(store Store, opts ...TagOption) *TagIndex {
	t := &TagIndex{store: store}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TagKey adds key to the set of every tag. Idempotent.
func (t *TagIndex) TagKey(ctx context.Context, key string, tags []string) error {
	if t == nil || t.store == nil {
		return ErrNilStore
	}
	if err := ValidateKey(key); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, tag := range tags {
		g.Go(func() error {
			return t.store.SAdd(gctx, TagSetKey(tag), key)
		})
	}
	return g.Wait()
}

// InvalidateTags deletes every key listed under any of tags in one batch and
// returns how many distinct keys were targeted.
func (t *TagIndex) InvalidateTags(ctx context.Context, tags []string) (int, error) {
	if t == nil || t.store == nil {
		return 0, ErrNilStore
	}
	if len(tags) == 0 {
		return 0, nil
	}

	keys, err := t.collect(ctx, tags)
	if err != nil {
		return 0, err
	}

	if len(keys) > 0 {
		if err := t.store.Delete(ctx, keys...); err != nil {
			return 0, err
		}
	}

	if t.clearSets {
		sets := make([]string, len(tags))
		for i, tag := range tags {
			sets[i] = TagSetKey(tag)
		}
		if err := t.store.Delete(ctx, sets...); err != nil {
			return len(keys), err
		}
	}

	return len(keys), nil
}

// Members returns the keys currently listed under tag, sorted.
func (t *TagIndex) Members(ctx context.Context, tag string) ([]string, error) {
	if t == nil || t.store == nil {
		return nil, ErrNilStore
	}
	members, err := t.store.SMembers(ctx, TagSetKey(tag))
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}

// Prune removes members whose cache entry no longer exists, e.g. after TTL
// expiry. It returns the number of members removed across all tags.
func (t *TagIndex) Prune(ctx context.Context, tags []string) (int, error) {
	if t == nil || t.store == nil {
		return 0, ErrNilStore
	}

	removed := 0
	for _, tag := range tags {
		set := TagSetKey(tag)
		members, err := t.store.SMembers(ctx, set)
		if err != nil {
			return removed, err
		}
		if len(members) == 0 {
			continue
		}

		present, err := t.store.Exists(ctx, members...)
		if err != nil {
			return removed, err
		}

		var dangling []string
		for i, m := range members {
			if !present[i] {
				dangling = append(dangling, m)
			}
		}
		if len(dangling) == 0 {
			continue
		}
		if err := t.store.SRem(ctx, set, dangling...); err != nil {
			return removed, err
		}
		removed += len(dangling)
	}
	return removed, nil
}

// collect reads all tag sets in parallel and returns their deduplicated,
// non-empty members in sorted order.
func (t *TagIndex) collect(ctx context.Context, tags []string) ([]string, error) {
	perTag := make([][]string, len(tags))

	g, gctx := errgroup.WithContext(ctx)
	for i, tag := range tags {
		g.Go(func() error {
			members, err := t.store.SMembers(gctx, TagSetKey(tag))
			if err != nil {
				return err
			}
			perTag[i] = members
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var keys []string
	for _, members := range perTag {
		for _, m := range members {
			if m == "" {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			keys = append(keys, m)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
