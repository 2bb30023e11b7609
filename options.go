package engine

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/surfaceguard/engine/check"
	"github.com/surfaceguard/engine/dispatch"
)

// Option configures the Engine.
type Option func(*engineConfig)

// engineConfig holds configuration for an Engine instance.
type engineConfig struct {
	logger          *slog.Logger
	tracer          trace.Tracer
	meter           metric.Meter
	backend         dispatch.Backend
	catalog         *check.Catalog
	breach          check.BreachClient
	quotaLimit      int
	dispatchTimeout time.Duration
	now             func() time.Time
}

// WithLogger sets a custom logger for the engine.
// If not provided, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer for distributed tracing.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *engineConfig) {
		c.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter for engine counters.
func WithMeter(meter metric.Meter) Option {
	return func(c *engineConfig) {
		c.meter = meter
	}
}

// WithBackend sets the external scan queue. Without a backend every scan
// runs in-process via the dispatch fallback.
func WithBackend(backend dispatch.Backend) Option {
	return func(c *engineConfig) {
		c.backend = backend
	}
}

// WithCatalog replaces the production check catalog. Tests use this to
// substitute deterministic probes.
func WithCatalog(catalog *check.Catalog) Option {
	return func(c *engineConfig) {
		c.catalog = catalog
	}
}

// WithBreachClient sets the external breach-database client used by the
// email check. Without one the check reports itself as unconfigured.
func WithBreachClient(client check.BreachClient) Option {
	return func(c *engineConfig) {
		c.breach = client
	}
}

// WithQuotaLimit sets the per-user daily breach-lookup limit.
func WithQuotaLimit(limit int) Option {
	return func(c *engineConfig) {
		c.quotaLimit = limit
	}
}

// WithDispatchTimeout bounds the queue enqueue attempt before falling back
// to an in-process run.
func WithDispatchTimeout(d time.Duration) Option {
	return func(c *engineConfig) {
		c.dispatchTimeout = d
	}
}

// WithClock overrides the engine's time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *engineConfig) {
		c.now = now
	}
}
