package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gossip-lsp/lspframe/transport"
)

// PrometheusConfig configures the Prometheus observer.
type PrometheusConfig struct {
	// Namespace is the metrics namespace (default: "lspframe").
	Namespace string

	// Subsystem is the metrics subsystem (default: "transport").
	Subsystem string

	// ConstLabels are added to every metric.
	ConstLabels prometheus.Labels

	// SizeBuckets are the histogram buckets for payload sizes in bytes.
	SizeBuckets []float64

	// Registry receives the collectors (default: prometheus.DefaultRegisterer).
	Registry prometheus.Registerer
}

// PrometheusOption configures the Prometheus observer.
type PrometheusOption func(*PrometheusConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) PrometheusOption {
	return func(c *PrometheusConfig) { c.Namespace = namespace }
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) PrometheusOption {
	return func(c *PrometheusConfig) { c.Subsystem = subsystem }
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) PrometheusOption {
	return func(c *PrometheusConfig) { c.ConstLabels = labels }
}

// WithSizeBuckets sets the payload size histogram buckets.
func WithSizeBuckets(buckets []float64) PrometheusOption {
	return func(c *PrometheusConfig) { c.SizeBuckets = buckets }
}

// WithRegistry sets the registerer.
func WithRegistry(registry prometheus.Registerer) PrometheusOption {
	return func(c *PrometheusConfig) { c.Registry = registry }
}

func defaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{
		Namespace:   "lspframe",
		Subsystem:   "transport",
		SizeBuckets: prometheus.ExponentialBuckets(64, 4, 8), // 64B to 1MiB
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Prometheus exports transport activity as Prometheus metrics. The pending
// bytes gauge tracks a single transport; use one Prometheus per transport
// (with distinct ConstLabels) when serving several.
type Prometheus struct {
	bytes        *prometheus.CounterVec
	messages     *prometheus.CounterVec
	messageSize  *prometheus.HistogramVec
	pendingBytes prometheus.Gauge
	streamsEnded prometheus.Counter
	failures     *prometheus.CounterVec
}

// NewPrometheus registers the transport collectors and returns an Observer
// feeding them. Metrics collected:
//   - lspframe_transport_bytes_total{direction}
//   - lspframe_transport_messages_total{direction}
//   - lspframe_transport_message_size_bytes{direction}
//   - lspframe_transport_pending_bytes
//   - lspframe_transport_streams_ended_total
//   - lspframe_transport_errors_total{kind}
func NewPrometheus(opts ...PrometheusOption) *Prometheus {
	config := defaultPrometheusConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Prometheus{
		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "bytes_total",
			Help:        "Bytes moved over the handle",
			ConstLabels: config.ConstLabels,
		}, []string{"direction"}),

		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "messages_total",
			Help:        "Payloads received and queued for sending",
			ConstLabels: config.ConstLabels,
		}, []string{"direction"}),

		messageSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "message_size_bytes",
			Help:        "Payload size in bytes",
			ConstLabels: config.ConstLabels,
			Buckets:     config.SizeBuckets,
		}, []string{"direction"}),

		pendingBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pending_bytes",
			Help:        "Encoded bytes waiting for the handle to become writable",
			ConstLabels: config.ConstLabels,
		}),

		streamsEnded: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "streams_ended_total",
			Help:        "Streams the peer ended cleanly",
			ConstLabels: config.ConstLabels,
		}),

		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "errors_total",
			Help:        "Terminal transport failures by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),
	}
}

const (
	directionIn  = "in"
	directionOut = "out"
)

func (p *Prometheus) BytesRead(n int) {
	p.bytes.WithLabelValues(directionIn).Add(float64(n))
}

func (p *Prometheus) BytesWritten(n int) {
	p.bytes.WithLabelValues(directionOut).Add(float64(n))
	p.pendingBytes.Sub(float64(n))
}

func (p *Prometheus) MessageReceived(size int) {
	p.messages.WithLabelValues(directionIn).Inc()
	p.messageSize.WithLabelValues(directionIn).Observe(float64(size))
}

func (p *Prometheus) MessageQueued(size, pending int) {
	p.messages.WithLabelValues(directionOut).Inc()
	p.messageSize.WithLabelValues(directionOut).Observe(float64(size))
	p.pendingBytes.Set(float64(pending))
}

func (p *Prometheus) StreamEnded() { p.streamsEnded.Inc() }

func (p *Prometheus) Failed(err *transport.Error) {
	p.failures.WithLabelValues(err.Kind.String()).Inc()
}
