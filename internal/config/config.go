// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/apicache/cache"
	"github.com/jonwraymond/apicache/observe"
	"github.com/jonwraymond/apicache/upstream"
)

// Config holds all application configuration
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development" validate:"required"`
	Port     int    `env:"PORT" envDefault:"3000" validate:"min=1,max=65535"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	Upstream  UpstreamConfig
	Store     StoreConfig
	Admin     AdminConfig
	Telemetry TelemetryConfig
	Worker    WorkerConfig
}

// UpstreamConfig configures the storefront backend.
type UpstreamConfig struct {
	Base    string        `env:"UPSTREAM_BASE" validate:"omitempty,url"`
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"8s" validate:"gt=0"`
}

// StoreConfig configures the shared cache store.
type StoreConfig struct {
	URL       string        `env:"CACHE_STORE_URL" validate:"required,url"`
	Token     string        `env:"CACHE_STORE_TOKEN" validate:"required"`
	KeyPrefix string        `env:"CACHE_KEY_PREFIX"`
	Coalesce  bool          `env:"CACHE_COALESCE" envDefault:"true"`
	StaleTTL  time.Duration `env:"CACHE_STALE_TTL" envDefault:"24h" validate:"gte=0"`
	ClearSets bool          `env:"CACHE_CLEAR_TAG_SETS" envDefault:"true"`
}

// AdminConfig holds credentials for the cache admin endpoints. Both empty
// disables them.
type AdminConfig struct {
	APIKeys     []string `env:"ADMIN_API_KEYS" envSeparator:","`
	JWTSecret   string   `env:"ADMIN_JWT_SECRET" validate:"omitempty,min=16"`
	JWTIssuer   string   `env:"ADMIN_JWT_ISSUER"`
	JWTAudience string   `env:"ADMIN_JWT_AUDIENCE"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	TracingExporter string  `env:"TRACING_EXPORTER" envDefault:"none" validate:"oneof=otlp jaeger stdout none"`
	SamplePct       float64 `env:"TRACING_SAMPLE_PCT" envDefault:"1" validate:"gte=0,lte=1"`
	MetricsExporter string  `env:"METRICS_EXPORTER" envDefault:"prometheus" validate:"oneof=otlp prometheus stdout none"`
}

// WorkerConfig configures cmd/worker.
type WorkerConfig struct {
	PruneSchedule string `env:"TAG_PRUNE_SCHEDULE" envDefault:"@every 1h" validate:"required"`
	Concurrency   int    `env:"WORKER_CONCURRENCY" envDefault:"4" validate:"min=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads configuration from the given variables instead of the
// process environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	if environ == nil {
		environ = map[string]string{}
	}
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether APP_ENV selects production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == upstream.EnvProduction
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// AdminEnabled returns true if any admin credential is configured.
func (c *Config) AdminEnabled() bool {
	return len(c.Admin.APIKeys) > 0 || c.Admin.JWTSecret != ""
}

// Resolver returns the upstream URL resolver.
func (c *Config) Resolver() upstream.Resolver {
	return upstream.Resolver{Override: c.Upstream.Base, Env: c.AppEnv}
}

// Redis returns the store client configuration.
func (c *Config) Redis() cache.RedisConfig {
	return cache.RedisConfig{URL: c.Store.URL, Token: c.Store.Token}
}

// Observe builds the telemetry configuration for a process.
func (c *Config) Observe(service, version string, reg prometheus.Registerer) observe.Config {
	return observe.Config{
		ServiceName: service,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Telemetry.TracingExporter != "none",
			Exporter:  c.Telemetry.TracingExporter,
			SamplePct: c.Telemetry.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:    c.Telemetry.MetricsExporter != "none",
			Exporter:   c.Telemetry.MetricsExporter,
			Registerer: reg,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.LogLevel,
		},
	}
}
