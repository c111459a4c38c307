// Package auth guards the cache administration endpoints.
//
// Operators authenticate with a static API key (X-API-Key) or an HS256
// bearer token. Middleware resolves the credentials to an Identity, rejects
// the request with 401 when they are missing or invalid, and with 403 when
// the identity lacks the required role.
package auth
