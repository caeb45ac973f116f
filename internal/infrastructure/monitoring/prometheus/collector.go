// Package prometheus registers and serves application metrics.
package prometheus

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/logging"
)

// MetricsCollector registers metric vectors on an isolated registry.
type MetricsCollector interface {
	RegisterCounter(name, help string, labels ...string) *prometheus.CounterVec
	RegisterGauge(name, help string, labels ...string) *prometheus.GaugeVec
	RegisterHistogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec
	Handler() http.Handler
}

// CollectorConfig holds collector options.
type CollectorConfig struct {
	Namespace            string
	EnableProcessMetrics bool
	EnableGoMetrics      bool
}

type prometheusCollector struct {
	registry *prometheus.Registry
	config   CollectorConfig
	mu       sync.Mutex
	metrics  map[string]prometheus.Collector
	logger   logging.Logger
}

// NewCollector creates a MetricsCollector with its own registry so tests and
// multiple instances never collide on the global default.
func NewCollector(cfg CollectorConfig, logger logging.Logger) MetricsCollector {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	registry := prometheus.NewRegistry()
	if cfg.EnableProcessMetrics {
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	if cfg.EnableGoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
	}
	return &prometheusCollector{
		registry: registry,
		config:   cfg,
		metrics:  map[string]prometheus.Collector{},
		logger:   logger.Named("metrics"),
	}
}

func (c *prometheusCollector) RegisterCounter(name, help string, labels ...string) *prometheus.CounterVec {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.metrics[name]; ok {
		return existing.(*prometheus.CounterVec)
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.config.Namespace,
		Name:      name,
		Help:      help,
	}, labels)
	c.registry.MustRegister(vec)
	c.metrics[name] = vec
	return vec
}

func (c *prometheusCollector) RegisterGauge(name, help string, labels ...string) *prometheus.GaugeVec {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.metrics[name]; ok {
		return existing.(*prometheus.GaugeVec)
	}
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.config.Namespace,
		Name:      name,
		Help:      help,
	}, labels)
	c.registry.MustRegister(vec)
	c.metrics[name] = vec
	return vec
}

func (c *prometheusCollector) RegisterHistogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.metrics[name]; ok {
		return existing.(*prometheus.HistogramVec)
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.config.Namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
	c.registry.MustRegister(vec)
	c.metrics[name] = vec
	return vec
}

func (c *prometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
