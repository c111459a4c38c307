package auth

import (
	"encoding/json"
	"errors"
	"net/http"
)

type middlewareConfig struct {
	role    string
	onError func(r *http.Request, err error)
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

// RequireRole rejects authenticated identities without role with 403.
func RequireRole(role string) MiddlewareOption {
	return func(c *middlewareConfig) { c.role = role }
}

// OnError observes rejected and failed requests, e.g. for logging.
func OnError(fn func(r *http.Request, err error)) MiddlewareOption {
	return func(c *middlewareConfig) { c.onError = fn }
}

// Middleware authenticates each request with a and stores the identity in
// the request context.
func Middleware(a Authenticator, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := &AuthRequest{Headers: r.Header}

			if !a.Supports(r.Context(), req) {
				reject(w, r, cfg, http.StatusUnauthorized, ErrMissingCredentials)
				return
			}

			result, err := a.Authenticate(r.Context(), req)
			if err != nil {
				if cfg.onError != nil {
					cfg.onError(r, err)
				}
				writeError(w, http.StatusInternalServerError, "authentication unavailable")
				return
			}
			if !result.Authenticated {
				err := result.Error
				if err == nil {
					err = ErrInvalidCredentials
				}
				reject(w, r, cfg, http.StatusUnauthorized, err)
				return
			}

			if cfg.role != "" && !result.Identity.HasRole(cfg.role) {
				reject(w, r, cfg, http.StatusForbidden, ErrForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), result.Identity)))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, cfg *middlewareConfig, status int, err error) {
	if cfg.onError != nil {
		cfg.onError(r, err)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="apicache"`)
	}
	msg := "unauthorized"
	if errors.Is(err, ErrForbidden) {
		msg = "forbidden"
	}
	writeError(w, status, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
