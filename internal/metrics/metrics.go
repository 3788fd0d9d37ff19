package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	notificationsTotal *prometheus.CounterVec
	sendDuration       *prometheus.HistogramVec
	fieldLookupsTotal  *prometheus.CounterVec
	channelsConfigured prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushrelay_notifications_total",
			Help: "Total number of notifications handed to notifiers",
		},
		[]string{"notifier", "channel", "status"},
	)
	r.sendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pushrelay_send_duration_seconds",
			Help:    "Time spent sending one notification to a provider",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"notifier"},
	)
	r.fieldLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushrelay_field_lookups_total",
			Help: "Total number of dynamic field resolutions",
		},
		[]string{"notifier", "field", "status"},
	)
	r.channelsConfigured = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pushrelay_channels_configured",
			Help: "Number of configured notification channels",
		},
	)

	reg.MustRegister(r.notificationsTotal)
	reg.MustRegister(r.sendDuration)
	reg.MustRegister(r.fieldLookupsTotal)
	reg.MustRegister(r.channelsConfigured)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordNotification records the outcome of one send.
func (r *Registry) RecordNotification(notifier, channel, status string, duration float64) {
	r.notificationsTotal.WithLabelValues(notifier, channel, status).Inc()
	r.sendDuration.WithLabelValues(notifier).Observe(duration)
}

// RecordFieldLookup records a dynamic field resolution.
func (r *Registry) RecordFieldLookup(notifier, field, status string) {
	r.fieldLookupsTotal.WithLabelValues(notifier, field, status).Inc()
}

// SetChannelsConfigured sets the number of configured channels.
func (r *Registry) SetChannelsConfigured(count int) {
	r.channelsConfigured.Set(float64(count))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
