package container

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector collects and manages bean metrics
type MetricsCollector interface {
	RecordDependencyCount(beanName string, count int)
	RecordInitDuration(beanName string, duration time.Duration)
	RecordStopDuration(beanName string, duration time.Duration)
	RecordLookup(beanName string, duration time.Duration, err error)
	GetMetrics() map[string]*BeanMetrics
}

// unresolvedBean collects lookups that matched no bean, so the requested
// type never becomes a label value.
const unresolvedBean = "<unresolved>"

// BeanMetrics stores metrics for a bean
type BeanMetrics struct {
	Name            string
	InitDuration    time.Duration
	StopDuration    time.Duration
	DependencyCount int
	// Instances counts constructions: at most one for singletons.
	Instances int
	Lookups   int
	Failures  int
}

// defaultMetricsCollector implements MetricsCollector. It keeps an in-memory
// snapshot per bean and mirrors it into Prometheus when a registry is given.
type defaultMetricsCollector struct {
	metrics map[string]*BeanMetrics
	mu      sync.RWMutex
	enabled bool

	lookups        *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec
	instances      *prometheus.CounterVec
	initDuration   *prometheus.HistogramVec
	stopDuration   *prometheus.HistogramVec
}

// newMetricsCollector registers the Prometheus series on registry. Series
// left behind by an earlier context on the same registry are reused.
func newMetricsCollector(enabled bool, registry *prometheus.Registry) (*defaultMetricsCollector, error) {
	c := &defaultMetricsCollector{
		metrics: make(map[string]*BeanMetrics),
		enabled: enabled,
	}
	if !enabled || registry == nil {
		return c, nil
	}

	c.lookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gocdi",
			Name:      "lookups_total",
			Help:      "Total number of bean lookups",
		},
		[]string{"bean", "status"},
	)
	c.lookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gocdi",
			Name:      "lookup_duration_seconds",
			Help:      "Bean lookup duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"bean"},
	)
	c.instances = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gocdi",
			Name:      "instances_created_total",
			Help:      "Total number of bean instances created",
		},
		[]string{"bean"},
	)
	c.initDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gocdi",
			Name:      "instance_creation_duration_seconds",
			Help:      "Bean construction duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"bean"},
	)
	c.stopDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gocdi",
			Name:      "pre_destroy_duration_seconds",
			Help:      "PreDestroy callback duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"bean"},
	)

	var err error
	if c.lookups, err = register(registry, c.lookups); err != nil {
		return nil, err
	}
	if c.lookupDuration, err = register(registry, c.lookupDuration); err != nil {
		return nil, err
	}
	if c.instances, err = register(registry, c.instances); err != nil {
		return nil, err
	}
	if c.initDuration, err = register(registry, c.initDuration); err != nil {
		return nil, err
	}
	if c.stopDuration, err = register(registry, c.stopDuration); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](registry *prometheus.Registry, collector T) (T, error) {
	err := registry.Register(collector)
	if err == nil {
		return collector, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return collector, err
}

func (c *defaultMetricsCollector) ensureMetricExists(beanName string) *BeanMetrics {
	m, exists := c.metrics[beanName]
	if !exists {
		m = &BeanMetrics{Name: beanName}
		c.metrics[beanName] = m
	}
	return m
}

func (c *defaultMetricsCollector) RecordDependencyCount(beanName string, count int) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureMetricExists(beanName).DependencyCount = count
}

func (c *defaultMetricsCollector) RecordInitDuration(beanName string, duration time.Duration) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	m := c.ensureMetricExists(beanName)
	m.InitDuration = duration
	m.Instances++
	c.mu.Unlock()

	if c.instances != nil {
		c.instances.WithLabelValues(beanName).Inc()
		c.initDuration.WithLabelValues(beanName).Observe(duration.Seconds())
	}
}

func (c *defaultMetricsCollector) RecordStopDuration(beanName string, duration time.Duration) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	c.ensureMetricExists(beanName).StopDuration = duration
	c.mu.Unlock()

	if c.stopDuration != nil {
		c.stopDuration.WithLabelValues(beanName).Observe(duration.Seconds())
	}
}

func (c *defaultMetricsCollector) RecordLookup(beanName string, duration time.Duration, err error) {
	if !c.enabled {
		return
	}

	status := "ok"
	c.mu.Lock()
	m := c.ensureMetricExists(beanName)
	m.Lookups++
	if err != nil {
		m.Failures++
		status = "error"
	}
	c.mu.Unlock()

	if c.lookups != nil {
		c.lookups.WithLabelValues(beanName, status).Inc()
		c.lookupDuration.WithLabelValues(beanName).Observe(duration.Seconds())
	}
}

func (c *defaultMetricsCollector) GetMetrics() map[string]*BeanMetrics {
	if !c.enabled {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	// Create a copy to avoid races
	result := make(map[string]*BeanMetrics, len(c.metrics))
	for k, v := range c.metrics {
		copy := *v
		result[k] = &copy
	}

	return result
}
