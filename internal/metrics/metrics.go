// Package metrics exposes coordinator activity as Prometheus series.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/sandwichbot/internal/domain"
)

// Collector implements coordinator.Metrics on a private registry.
type Collector struct {
	reg *prometheus.Registry

	classified prometheus.Counter
	rejected   *prometheus.CounterVec
	inFlight   prometheus.Gauge
	dispatched prometheus.Histogram
	resolved   *prometheus.CounterVec
	dropped    *prometheus.CounterVec
	sinkErrors *prometheus.CounterVec
}

// New registers the sandwich series under namespace. Go runtime and process
// collectors are registered alongside.
func New(namespace string) *Collector {
	if namespace == "" {
		namespace = "sandwich"
	}
	c := &Collector{
		reg: prometheus.NewRegistry(),
		classified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_classified_total",
			Help:      "Pending transactions decoded into a trade intent.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_rejected_total",
			Help:      "Opportunities rejected, by reason.",
		}, []string{"reason"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "opportunities_in_flight",
			Help:      "Admitted opportunities awaiting dispatch or expiry.",
		}),
		dispatched: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_latency_seconds",
			Help:      "Time from detection to sandwich submission.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_resolved_total",
			Help:      "Execution attempts by final state.",
		}, []string{"state"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_dropped_total",
			Help:      "Records dropped because a stream consumer lagged.",
		}, []string{"stream"}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Records a fan-out sink failed to accept.",
		}, []string{"sink"}),
	}
	c.reg.MustRegister(
		c.classified, c.rejected, c.inFlight, c.dispatched,
		c.resolved, c.dropped, c.sinkErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Classified() { c.classified.Inc() }

func (c *Collector) Rejected(reason domain.RejectReason) {
	c.rejected.WithLabelValues(string(reason)).Inc()
}

func (c *Collector) InFlight(n int) { c.inFlight.Set(float64(n)) }

func (c *Collector) Dispatched(latency time.Duration) {
	c.dispatched.Observe(latency.Seconds())
}

func (c *Collector) AttemptResolved(state domain.AttemptState) {
	c.resolved.WithLabelValues(string(state)).Inc()
}

func (c *Collector) StreamDropped(stream string) {
	c.dropped.WithLabelValues(stream).Inc()
}

// SinkFailed counts a record a sink rejected.
func (c *Collector) SinkFailed(sink string) {
	c.sinkErrors.WithLabelValues(sink).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{Registry: c.reg})
}
