package routes

import (
	"context"
	"net/http"

	"github.com/jonwraymond/apicache/observe"
	"github.com/jonwraymond/apicache/resilience"
	"github.com/jonwraymond/apicache/upstream"
)

// handlePassthrough relays a mutating request upstream without touching the
// cache. Only the body and its content type are forwarded.
func (s *Server) handlePassthrough(f Family) http.HandlerFunc {
	timeout := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: f.Timeout})

	return func(w http.ResponseWriter, r *http.Request) {
		meta := observe.LookupMeta{Family: f.Name, Method: r.Method, Path: r.URL.Path}
		target := s.resolver.URL(r.URL)

		header := http.Header{}
		if ct := r.Header.Get("Content-Type"); ct != "" {
			header.Set("Content-Type", ct)
		}
		body := http.MaxBytesReader(w, r.Body, upstream.MaxBodyBytes)

		var resp *upstream.Response
		forward := s.lookups.Wrap(func(ctx context.Context, _ observe.LookupMeta) (observe.Outcome, error) {
			var err error
			resp, err = resilience.Call(ctx, timeout, func(ctx context.Context) (*upstream.Response, error) {
				return s.upstream.Forward(ctx, r.Method, target, header, body)
			})
			if err != nil {
				return observe.OutcomeError, err
			}
			return observe.OutcomePassthrough, nil
		})

		if _, err := forward(r.Context(), meta); err != nil {
			writeError(w, http.StatusBadGateway, "upstream unavailable")
			return
		}

		for k, vs := range resp.Header {
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		w.WriteHeader(resp.Status)
		_, _ = w.Write(resp.Body)
	}
}
