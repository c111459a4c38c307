// Package upstream resolves and calls the storefront backend the cache sits
// in front of.
//
// A Resolver maps an inbound request URL onto the backend's base URL,
// keeping the full path (including the /api prefix) and the raw query. A
// Client performs the calls: GetJSON for cacheable reads, which rejects
// non-2xx statuses and bodies that are not JSON, and Forward for mutating
// requests, which relays status, headers and body unchanged.
package upstream
