// Package routes serves the cached storefront API and the cache admin
// endpoints.
package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/jonwraymond/apicache/auth"
	"github.com/jonwraymond/apicache/cache"
	"github.com/jonwraymond/apicache/health"
	"github.com/jonwraymond/apicache/internal/jobs"
	"github.com/jonwraymond/apicache/observe"
	"github.com/jonwraymond/apicache/resilience"
	"github.com/jonwraymond/apicache/upstream"
)

// Server serves the cached storefront routes, the pass-through POST routes
// and, when configured, the cache admin API.
type Server struct {
	Router *chi.Mux

	engine   *cache.Engine
	tags     *cache.TagIndex
	resolver upstream.Resolver
	upstream *upstream.Client
	families Families
	lookups  *observe.Middleware
	log      observe.Logger
	enqueuer jobs.Enqueuer
}

// ServerOptions configures New.
type ServerOptions struct {
	Engine   *cache.Engine
	Tags     *cache.TagIndex
	Resolver upstream.Resolver
	Upstream *upstream.Client

	// Families defaults to DefaultFamilies(resilience.DefaultTimeout).
	Families *Families

	Lookups *observe.Middleware
	Logger  zerolog.Logger

	// Health, Metrics, Auth and Enqueuer are optional. Without Auth the
	// admin routes are not mounted.
	Health   *health.Aggregator
	Metrics  http.Handler
	Auth     auth.Authenticator
	Enqueuer jobs.Enqueuer
}

// New builds the router and mounts every route.
func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Str("request_id", chimw.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)

	s := &Server{
		Router:   r,
		engine:   opts.Engine,
		tags:     opts.Tags,
		resolver: opts.Resolver,
		upstream: opts.Upstream,
		lookups:  opts.Lookups,
		log:      observe.FromZerolog(opts.Logger),
		enqueuer: opts.Enqueuer,
	}
	if opts.Families != nil {
		s.families = *opts.Families
	} else {
		s.families = DefaultFamilies(resilience.DefaultTimeout)
	}
	if s.upstream == nil {
		s.upstream = upstream.NewClient()
	}
	if s.lookups == nil {
		s.lookups = observe.NewMiddleware(nil, nil, s.log)
	}

	if opts.Health != nil {
		health.Mount(r, opts.Health)
	}
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Get("/api/product", s.handleCached(s.families.ProductRoot))
	r.Get("/api/product/*", s.handleCached(s.families.Product))
	r.Post("/api/product/*", s.handlePassthrough(s.families.Product))
	r.Get("/api/search", s.handleCached(s.families.Search))
	r.Get("/api/suppliers/*", s.handleCached(s.families.Suppliers))

	if opts.Auth != nil {
		r.Route("/api/cache", func(ar chi.Router) {
			ar.Use(auth.Middleware(opts.Auth,
				auth.RequireRole(auth.RoleCacheAdmin),
				auth.OnError(func(r *http.Request, err error) {
					s.log.Warn(r.Context(), "admin request rejected",
						observe.Field{Key: "path", Value: r.URL.Path},
						observe.Field{Key: "error", Value: err},
					)
				}),
			))
			ar.Post("/invalidate", s.handleInvalidate)
			ar.Get("/tags/{tag}", s.handleTagMembers)
		})
	}

	return s
}

// Families returns the families the server routes.
func (s *Server) Families() Families {
	return s.families
}
