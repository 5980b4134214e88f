// Package prometheus exposes the query pipeline's metrics through a
// dedicated registry so the HTTP layer can serve them on /metrics.
package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eastgrand/geoinsight/internal/application/insight"
)

const namespace = "geoinsight"

// Collector records pipeline events into prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	classificationDecided  *prometheus.CounterVec
	classificationRejected prometheus.Counter
	endpointCallDuration   *prometheus.HistogramVec
	cacheHits              prometheus.Counter
	cacheMisses            prometheus.Counter
	batchesDegraded        prometheus.Counter
}

var _ insight.Metrics = (*Collector)(nil)

// NewCollector builds a collector with its own registry, including the
// standard process and Go runtime metrics.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		classificationDecided: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_decided_total",
			Help:      "Queries classified, by deciding layer.",
		}, []string{"layer"}),
		classificationRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classification_rejected_total",
			Help:      "Queries rejected as out of scope.",
		}),
		endpointCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "endpoint_call_duration_seconds",
			Help:      "Analysis endpoint call latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint", "success"}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Insight cache hits.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Insight cache misses.",
		}),
		batchesDegraded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_degraded_total",
			Help:      "Endpoint batches completed with partial failures.",
		}),
	}
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for extra collectors.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) ClassificationDecided(layer string) {
	c.classificationDecided.WithLabelValues(layer).Inc()
}

func (c *Collector) ClassificationRejected() {
	c.classificationRejected.Inc()
}

func (c *Collector) EndpointCall(endpointID string, elapsed time.Duration, success bool) {
	c.endpointCallDuration.WithLabelValues(endpointID, strconv.FormatBool(success)).Observe(elapsed.Seconds())
}

func (c *Collector) CacheHit() { c.cacheHits.Inc() }

func (c *Collector) CacheMiss() { c.cacheMisses.Inc() }

func (c *Collector) BatchDegraded() { c.batchesDegraded.Inc() }
