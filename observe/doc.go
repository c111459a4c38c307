// Package observe provides logging, tracing and metrics for cache lookups.
//
// The Observer wires OpenTelemetry tracer and meter providers from exporter
// names and a zerolog-backed Logger from a level. Route handlers wrap each
// lookup with a Middleware, which opens a span named
// cache.lookup.<family>, records the cache.lookup.* instruments labelled by
// family and outcome, and logs failures and stale fallbacks.
package observe
