package observability

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// MetricsCollector provides Prometheus-style metrics in a simple text format.
type MetricsCollector struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	mu         sync.RWMutex
}

// Counter tracks cumulative values
type Counter struct {
	value float64
	mu    sync.Mutex
}

// Gauge tracks current values
type Gauge struct {
	value float64
	mu    sync.Mutex
}

// Histogram tracks distribution of values
type Histogram struct {
	sum   float64
	count uint64
	mu    sync.Mutex
}

var (
	defaultCollector *MetricsCollector
	once             sync.Once
)

// GetCollector returns the singleton metrics collector
func GetCollector() *MetricsCollector {
	once.Do(func() {
		defaultCollector = &MetricsCollector{
			counters:   make(map[string]*Counter),
			gauges:     make(map[string]*Gauge),
			histograms: make(map[string]*Histogram),
		}
	})
	return defaultCollector
}

// Inc increments the counter by one.
func (c *Counter) Inc() {
	c.Add(1)
}

// Add increments the counter by val.
func (c *Counter) Add(val float64) {
	c.mu.Lock()
	c.value += val
	c.mu.Unlock()
}

// Value returns the counter value.
func (c *Counter) Value() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the gauge value.
func (g *Gauge) Set(val float64) {
	g.mu.Lock()
	g.value = val
	g.mu.Unlock()
}

// Value returns the gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Observe records one sample.
func (h *Histogram) Observe(val float64) {
	h.mu.Lock()
	h.sum += val
	h.count++
	h.mu.Unlock()
}

// Sum returns the total of observed samples.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Count returns the number of observed samples.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Counter returns (creating if needed) the named counter.
func (m *MetricsCollector) Counter(name string) *Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return c
	}
	c := &Counter{}
	m.counters[name] = c
	return c
}

// Gauge returns (creating if needed) the named gauge.
func (m *MetricsCollector) Gauge(name string) *Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gauges[name]; ok {
		return g
	}
	g := &Gauge{}
	m.gauges[name] = g
	return g
}

// Histogram returns (creating if needed) the named histogram.
func (m *MetricsCollector) Histogram(name string) *Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.histograms[name]; ok {
		return h
	}
	h := &Histogram{}
	m.histograms[name] = h
	return h
}

// Timer measures duration and records to histogram
func (m *MetricsCollector) Timer(name string) func() {
	start := time.Now()
	return func() {
		m.Histogram(name).Observe(time.Since(start).Seconds())
	}
}

// Handler returns HTTP handler for /metrics endpoint
func (m *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m.mu.RLock()
		defer m.mu.RUnlock()

		for name, counter := range m.counters {
			fmt.Fprintf(w, "# TYPE %s counter\n", name)
			fmt.Fprintf(w, "%s %.2f\n", name, counter.Value())
		}
		for name, gauge := range m.gauges {
			fmt.Fprintf(w, "# TYPE %s gauge\n", name)
			fmt.Fprintf(w, "%s %.2f\n", name, gauge.Value())
		}
		for name, histogram := range m.histograms {
			fmt.Fprintf(w, "# TYPE %s histogram\n", name)
			fmt.Fprintf(w, "%s_sum %.6f\n", name, histogram.Sum())
			fmt.Fprintf(w, "%s_count %d\n", name, histogram.Count())
		}
	}
}

// Predefined metric names
const (
	// Evaluation engine metrics
	MetricCyclesRun          = "alert_engine_cycles_total"
	MetricCycleDuration      = "alert_engine_cycle_duration_seconds"
	MetricTriggersCreated    = "alert_engine_triggers_created_total"
	MetricCandlesIngested    = "alert_engine_candles_ingested_total"

	// NATS metrics
	MetricNATSMessagesReceived  = "nats_messages_received_total"
	MetricNATSMessagesPublished = "nats_messages_published_total"
	MetricNATSPublishErrors     = "nats_publish_errors_total"
)
