package routes

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jonwraymond/apicache/cache"
	"github.com/jonwraymond/apicache/observe"
	"github.com/jonwraymond/apicache/resilience"
)

// Response headers describing how a cached route was served.
const (
	HeaderCache         = "X-Cache"
	HeaderCacheFallback = "X-Cache-Fallback"
)

// X-Cache values.
const (
	CacheHit    = "HIT"
	CacheMiss   = "MISS"
	CacheStale  = "STALE"
	CacheBypass = "BYPASS"
)

func (s *Server) handleCached(f Family) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := cache.KeyForURL(r.URL)
		meta := observe.LookupMeta{
			Family: f.Name,
			Method: r.Method,
			Path:   r.URL.Path,
			Key:    key,
		}
		// Keys the store refuses are served straight from upstream.
		bypass := cache.ValidateKey(key) != nil
		if bypass {
			meta.Key = ""
		}

		var body []byte
		lookup := s.lookups.Wrap(func(ctx context.Context, meta observe.LookupMeta) (observe.Outcome, error) {
			if bypass {
				v, err := s.fetch(f, r.URL)(ctx)
				if err != nil {
					return observe.OutcomeError, err
				}
				body = v
				return observe.OutcomeBypass, nil
			}

			var fallback []byte
			if f.StaleFallback {
				v, ok, err := s.engine.Peek(ctx, key)
				if err != nil {
					s.log.Warn(ctx, "stale peek failed",
						observe.Field{Key: "key", Value: key},
						observe.Field{Key: "error", Value: err},
					)
				} else if ok {
					fallback = v
				}
			}

			res, err := s.engine.Lookup(ctx, key, f.TTL(r.URL.Path), s.fetch(f, r.URL))
			if err != nil {
				if fallback != nil {
					body = fallback
					return observe.OutcomeStale, err
				}
				return observe.OutcomeError, err
			}
			body = res.Value

			if err := s.tags.TagKey(ctx, key, f.Tags); err != nil {
				s.log.Warn(ctx, "tag key failed",
					observe.Field{Key: "key", Value: key},
					observe.Field{Key: "error", Value: err},
				)
			}
			if res.Hit {
				return observe.OutcomeHit, nil
			}
			return observe.OutcomeMiss, nil
		})

		outcome, _ := lookup(r.Context(), meta)
		switch outcome {
		case observe.OutcomeHit:
			writeCached(w, body, CacheHit)
		case observe.OutcomeMiss:
			writeCached(w, body, CacheMiss)
		case observe.OutcomeStale:
			w.Header().Set(HeaderCacheFallback, "stale")
			writeCached(w, body, CacheStale)
		case observe.OutcomeBypass:
			writeCached(w, body, CacheBypass)
		default:
			writeError(w, http.StatusInternalServerError, "upstream unavailable")
		}
	}
}

// fetch calls upstream for u, bounded by the family timeout.
func (s *Server) fetch(f Family, u *url.URL) cache.FetchFunc {
	target := s.resolver.URL(u)
	timeout := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: f.Timeout})
	return func(ctx context.Context) ([]byte, error) {
		return resilience.Call(ctx, timeout, func(ctx context.Context) ([]byte, error) {
			return s.upstream.GetJSON(ctx, target)
		})
	}
}

func writeCached(w http.ResponseWriter, body []byte, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderCache, state)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
