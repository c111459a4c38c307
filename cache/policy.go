package cache

import (
	"strings"
	"time"
)

// TTLFunc selects a time-to-live from a request path.
type TTLFunc func(pathname string) time.Duration

// Policy configures caching behavior for one resource family.
type Policy struct {
	// DefaultTTL is the TTL to use when no rule matches.
	// If zero, caching is disabled.
	DefaultTTL time.Duration

	// MaxTTL is the maximum allowed TTL. Rule TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// Rules are checked in order; the first match wins.
	Rules []TTLRule
}

// TTLRule maps a path predicate to a TTL.
type TTLRule struct {
	Match func(pathname string) bool
	TTL   time.Duration
}

// FixedPolicy returns a policy with a single TTL for every path.
func FixedPolicy(ttl time.Duration) Policy {
	return Policy{DefaultTTL: ttl}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// TTL returns the TTL for pathname, applying rules, defaults and clamping.
func (p Policy) TTL(pathname string) time.Duration {
	ttl := p.DefaultTTL
	for _, r := range p.Rules {
		if r.Match != nil && r.Match(pathname) {
			ttl = r.TTL
			break
		}
	}

	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}

// Func adapts the policy to a TTLFunc.
func (p Policy) Func() TTLFunc {
	return p.TTL
}

// HasSuffix matches paths ending in any of the suffixes.
func HasSuffix(suffixes ...string) func(string) bool {
	return func(pathname string) bool {
		for _, s := range suffixes {
			if strings.HasSuffix(pathname, s) {
				return true
			}
		}
		return false
	}
}

// Contains matches paths containing any of the fragments.
func Contains(fragments ...string) func(string) bool {
	return func(pathname string) bool {
		for _, f := range fragments {
			if strings.Contains(pathname, f) {
				return true
			}
		}
		return false
	}
}

// AnyOf matches when any predicate matches.
func AnyOf(preds ...func(string) bool) func(string) bool {
	return func(pathname string) bool {
		for _, p := range preds {
			if p(pathname) {
				return true
			}
		}
		return false
	}
}
