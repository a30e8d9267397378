package events

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements MetricsRecorder backed by prometheus
// collectors.
type PrometheusRecorder struct {
	published   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	subscribers prometheus.Gauge
	subDuration prometheus.Histogram
}

// NewPrometheusRecorder creates the recorder and registers its
// collectors with the given registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wayline",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events published to the bus, by event type.",
		}, []string{"event_type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wayline",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events dropped for slow subscribers, by event type.",
		}, []string{"event_type"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wayline",
			Subsystem: "events",
			Name:      "subscribers",
			Help:      "Currently active bus subscribers.",
		}),
		subDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wayline",
			Subsystem: "events",
			Name:      "subscription_duration_seconds",
			Help:      "Lifetime of completed subscriptions.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 10, 6),
		}),
	}

	reg.MustRegister(r.published, r.dropped, r.subscribers, r.subDuration)
	return r
}

// RecordEventPublished counts one published event.
func (r *PrometheusRecorder) RecordEventPublished(eventType string, _ int) {
	r.published.WithLabelValues(eventType).Inc()
}

// RecordEventDropped counts one dropped event.
func (r *PrometheusRecorder) RecordEventDropped(eventType string, _ string) {
	r.dropped.WithLabelValues(eventType).Inc()
}

// RecordSubscriberAdded tracks the subscriber gauge.
func (r *PrometheusRecorder) RecordSubscriberAdded(_ string) {
	r.subscribers.Inc()
}

// RecordSubscriberRemoved tracks the subscriber gauge and lifetime.
func (r *PrometheusRecorder) RecordSubscriberRemoved(_ string, duration time.Duration) {
	r.subscribers.Dec()
	r.subDuration.Observe(duration.Seconds())
}

// Ensure PrometheusRecorder implements MetricsRecorder.
var _ MetricsRecorder = (*PrometheusRecorder)(nil)
