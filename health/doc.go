// Package health reports whether the cache service can do its job.
//
// The cache store is critical: without it every request fails, so a store
// checker reports unhealthy. The upstream is not: cached and stale copies
// still serve while it is down, so an upstream checker reports degraded.
//
//	agg := health.NewAggregator()
//	agg.Register("store", health.NewPingChecker("store", store.Ping, 250*time.Millisecond))
//	agg.Register("upstream", health.NewUpstreamChecker("upstream", resolver.Base(), nil))
//
//	health.Mount(router, agg) // /healthz, /readyz, /health, /health/{name}
package health
