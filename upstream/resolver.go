package upstream

import (
	"net/url"
	"strings"
)

// Default backend locations.
const (
	DevelopmentBase = "http://localhost:8080"
	ProductionBase  = "https://clientsidebackend.onrender.com"
)

// EnvProduction is the environment name that selects ProductionBase.
const EnvProduction = "production"

// Resolver computes upstream URLs.
//
// The base is chosen per call: an explicit Override wins, otherwise Env
// selects the production or development default.
type Resolver struct {
	Override string
	Env      string
}

// Base returns the upstream base URL without a trailing slash.
func (r Resolver) Base() string {
	base := strings.TrimSpace(r.Override)
	if base == "" {
		if r.Env == EnvProduction {
			base = ProductionBase
		} else {
			base = DevelopmentBase
		}
	}
	return strings.TrimRight(base, "/")
}

// URL maps an inbound request URL onto the upstream.
// The path is kept verbatim, /api prefix included, and the raw query is
// appended unchanged.
func (r Resolver) URL(req *url.URL) string {
	target := r.Base() + req.EscapedPath()
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}
	return target
}
