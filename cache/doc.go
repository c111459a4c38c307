// Package cache provides a read-through response cache over a shared
// key/value store.
//
// It provides deterministic key derivation from request path and query,
// a Store interface with Redis and in-memory implementations, a read-through
// Engine with optional request coalescing and stale copies, a TagIndex for
// group invalidation, and per-family TTL policies.
//
// Store layout:
//
//	api:<pathname>[?<sorted-query>]        cached JSON body, expires after TTL
//	stale:api:<pathname>[?<sorted-query>]  last-known-good copy (optional)
//	tag:<tag>                              set of cache keys carrying tag
package cache
