package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Batch outcomes
const (
	OutcomeDelivered = "delivered"
	OutcomeSkipped   = "skipped"
	OutcomeDecode    = "decode_error"
	OutcomeConfig    = "config_error"
	OutcomeRejected  = "rejected"
	OutcomeTransient = "transient"
)

// Metrics holds the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Batches          *prometheus.CounterVec
	EventsForwarded  prometheus.Counter
	CacheLookups     *prometheus.CounterVec
	DeliveryAttempts prometheus.Counter
	Archived         prometheus.Counter
}

// New registers the pipeline collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cwlogs2hec_batches_total",
				Help: "Subscription batches handled, by outcome",
			},
			[]string{"outcome"},
		),
		EventsForwarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cwlogs2hec_events_forwarded_total",
				Help: "Log events accepted by HEC",
			},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cwlogs2hec_config_cache_lookups_total",
				Help: "Delivery config cache lookups, by result",
			},
			[]string{"result"},
		),
		DeliveryAttempts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cwlogs2hec_delivery_attempts_total",
				Help: "HEC POST attempts including retries",
			},
		),
		Archived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cwlogs2hec_batches_archived_total",
				Help: "Undeliverable batches written to the failure archive",
			},
		),
	}
	m.registry.MustRegister(m.Batches, m.EventsForwarded, m.CacheLookups, m.DeliveryAttempts, m.Archived)
	return m
}

func (m *Metrics) Batch(outcome string) {
	if m != nil {
		m.Batches.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Forwarded(n int) {
	if m != nil {
		m.EventsForwarded.Add(float64(n))
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheLookups.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheLookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) Attempt() {
	if m != nil {
		m.DeliveryAttempts.Inc()
	}
}

func (m *Metrics) Archive() {
	if m != nil {
		m.Archived.Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
