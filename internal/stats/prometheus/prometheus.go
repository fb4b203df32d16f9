// Package prometheus provides a Prometheus-based stats collector.
package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lecternlabs/marginalia/internal/stats"
)

// Collector implements stats.Collector using Prometheus metrics. Metrics
// register lazily on first use so callers never declare them up front.
type Collector struct {
	registry prometheus.Registerer

	mu         sync.RWMutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// New creates a new Prometheus collector.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Collector{
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// IncCounter increments a counter metric.
func (c *Collector) IncCounter(name string, delta int64) {
	c.getOrCreateCounter(name).Add(float64(delta))
}

// SetGauge sets a gauge metric.
func (c *Collector) SetGauge(name string, value int64) {
	c.getOrCreateGauge(name).Set(float64(value))
}

// ObserveHistogram records a value in a histogram.
func (c *Collector) ObserveHistogram(name string, value float64) {
	c.getOrCreateHistogram(name).Observe(value)
}

func (c *Collector) getOrCreateCounter(name string) prometheus.Counter {
	c.mu.RLock()
	counter, ok := c.counters[name]
	c.mu.RUnlock()
	if ok {
		return counter
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock.
	if counter, ok = c.counters[name]; ok {
		return counter
	}

	counter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: name,
		Help: helpFor(name),
	})
	if err := c.registry.Register(counter); err != nil {
		// If already registered, reuse the existing metric.
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				c.counters[name] = existing
				return existing
			}
		}
	}
	c.counters[name] = counter
	return counter
}

func (c *Collector) getOrCreateGauge(name string) prometheus.Gauge {
	c.mu.RLock()
	gauge, ok := c.gauges[name]
	c.mu.RUnlock()
	if ok {
		return gauge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gauge, ok = c.gauges[name]; ok {
		return gauge
	}

	gauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: name,
		Help: helpFor(name),
	})
	if err := c.registry.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				c.gauges[name] = existing
				return existing
			}
		}
	}
	c.gauges[name] = gauge
	return gauge
}

func (c *Collector) getOrCreateHistogram(name string) prometheus.Histogram {
	c.mu.RLock()
	histogram, ok := c.histograms[name]
	c.mu.RUnlock()
	if ok {
		return histogram
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if histogram, ok = c.histograms[name]; ok {
		return histogram
	}

	histogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    helpFor(name),
		Buckets: prometheus.DefBuckets,
	})
	if err := c.registry.Register(histogram); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				c.histograms[name] = existing
				return existing
			}
		}
	}
	c.histograms[name] = histogram
	return histogram
}

// helpFor returns descriptive help text for the library's own metrics and
// falls back to the metric name for everything else.
func helpFor(name string) string {
	if help, ok := metricHelp[name]; ok {
		return help
	}
	return name
}

var metricHelp = map[string]string{
	stats.MetricGets:              "Lookups handled by the cache.",
	stats.MetricL1Hits:            "Lookups served from the in-process tier.",
	stats.MetricL2Hits:            "Lookups served from the shared tier.",
	stats.MetricSemanticHits:      "Lookups served via semantic matching.",
	stats.MetricMisses:            "Lookups no tier could serve.",
	stats.MetricSets:              "Entries written to the cache.",
	stats.MetricEvictions:         "Entries dropped by capacity pressure or expiry.",
	stats.MetricCorruptEntries:    "Undecodable shared-tier entries evicted on read.",
	stats.MetricStoreErrors:       "Transient shared-tier failures degraded to misses.",
	stats.MetricL2WritesDropped:   "Async shared-tier writes skipped under pressure.",
	stats.MetricInvalidations:     "Per-book invalidation requests.",
	stats.MetricInvalidatedKeys:   "Entries removed by invalidation requests.",
	stats.MetricScopeViolations:   "Reads that surfaced an entry from a foreign scope.",
	stats.MetricGenerations:       "Answers produced by the generator.",
	stats.MetricGenerationErrors:  "Generator calls that returned an error.",
	stats.MetricCoalescedWaits:    "Callers served by another caller's generation.",
	stats.MetricL1Entries:         "Entries currently held by the in-process tier.",
	stats.MetricL1Bytes:           "Payload bytes currently held by the in-process tier.",
	stats.MetricGenerationSeconds: "Latency of generator calls in seconds.",
}
