package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "projmatch"

const (
	OutcomeOK           = "ok"
	OutcomeShortCircuit = "short_circuit"
	OutcomeEmpty        = "empty"
	OutcomeFallback     = "fallback"
	OutcomeError        = "error"
)

// Collector is a prometheus.Collector for the matching pipeline and the
// assignment engine. A nil *Collector records nothing.
type Collector struct {
	aiRequests      *prometheus.CounterVec
	aiDuration      *prometheus.HistogramVec
	quotaRejections prometheus.Counter
	events          *prometheus.CounterVec
}

func NewCollector() *Collector {
	return &Collector{
		aiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ai_requests_total",
				Help:      "Requirement analysis and ranking requests by outcome.",
			}, []string{"operation", "outcome"},
		),
		aiDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "ai_request_duration_seconds",
				Help:      "Time spent waiting on the completion service.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			}, []string{"operation"},
		),
		quotaRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "quota_rejections_total",
				Help:      "Group assignments refused because the supervisor was full.",
			},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "assignment_events_total",
				Help:      "Assignment events handed to the message bus.",
			}, []string{"type", "outcome"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.aiRequests.Describe(ch)
	c.aiDuration.Describe(ch)
	c.quotaRejections.Describe(ch)
	c.events.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.aiRequests.Collect(ch)
	c.aiDuration.Collect(ch)
	c.quotaRejections.Collect(ch)
	c.events.Collect(ch)
}

func (c *Collector) AIRequest(operation, outcome string) {
	if c == nil {
		return
	}
	c.aiRequests.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) AIDuration(operation string, d time.Duration) {
	if c == nil {
		return
	}
	c.aiDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (c *Collector) QuotaRejected() {
	if c == nil {
		return
	}
	c.quotaRejections.Inc()
}

func (c *Collector) EventPublished(eventType string, err error) {
	if c == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	c.events.WithLabelValues(eventType, outcome).Inc()
}

// NewRegistry returns a registry holding c plus the Go runtime collectors.
func NewRegistry(c *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
