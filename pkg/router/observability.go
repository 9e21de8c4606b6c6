package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Default tracer name for wayfind routers.
const defaultTracerName = "wayfind"

// Navigation result labels recorded on the navigations counter.
const (
	navResultCompleted  = "completed"
	navResultNotFound   = "not_found"
	navResultRedirected = "redirected"
)

// MetricsConfig configures the router's Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "wayfind").
	Namespace string

	// Subsystem is the metrics subsystem (default: "router").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for loader/action duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) { c.Namespace = namespace }
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) { c.Subsystem = subsystem }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) { c.ConstLabels = labels }
}

// WithBuckets sets the duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) { c.Buckets = buckets }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) { c.Registry = registry }
}

// metrics holds the router's Prometheus collectors.
type metrics struct {
	navigations    *prometheus.CounterVec
	handlerSeconds *prometheus.HistogramVec
	activeFetchers prometheus.Gauge
}

func newMetrics(opts ...MetricsOption) *metrics {
	cfg := MetricsConfig{
		Namespace: "wayfind",
		Subsystem: "router",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.Registry)
	return &metrics{
		navigations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "navigations_total",
			Help:        "Completed navigations by result.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"result"}),
		handlerSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "handler_duration_seconds",
			Help:        "Loader and action call duration by route.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"type", "route"}),
		activeFetchers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "active_fetchers",
			Help:        "Fetchers currently loading or submitting.",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// config holds the router's ambient collaborators.
type config struct {
	log     *zap.Logger
	metrics *metrics
	tracer  trace.Tracer
	scroll  ScrollHandler
}

// Option configures a Router.
type Option func(*config)

// WithLogger sets the logger for non-fatal engine warnings and debug
// output. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithMetrics enables Prometheus metrics for navigations, loader/action
// durations and active fetchers.
func WithMetrics(opts ...MetricsOption) Option {
	return func(c *config) { c.metrics = newMetrics(opts...) }
}

// WithTracerProvider enables OpenTelemetry spans around navigations and
// loader/action calls.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) { c.tracer = tp.Tracer(defaultTracerName) }
}

// WithScrollHandler installs the scroll restoration collaborator.
func WithScrollHandler(h ScrollHandler) Option {
	return func(c *config) { c.scroll = h }
}

func defaultConfig() config {
	return config{
		log:    zap.NewNop(),
		tracer: otel.Tracer(defaultTracerName),
	}
}
