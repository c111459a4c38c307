package auth

import (
	"slices"
	"time"
)

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// RoleCacheAdmin allows invalidating and inspecting cache tags.
const RoleCacheAdmin = "cache-admin"

// Identity represents an authenticated operator.
type Identity struct {
	// Principal identifies the operator or key.
	Principal string

	Roles  []string
	Method AuthMethod

	// Claims contains the raw token claims, or key metadata.
	Claims map[string]any

	// ExpiresAt is zero when the credential never expires.
	ExpiresAt time.Time
}

// HasRole checks if the identity has a specific role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IsExpired checks if the identity has expired.
func (id *Identity) IsExpired() bool {
	return !id.ExpiresAt.IsZero() && time.Now().After(id.ExpiresAt)
}
