// Package metrics exports the bootstrap lifecycle as Prometheus metrics.
//
// A Collector subscribes to the lifecycle topics of an event bus and keeps:
//
//	<ns>_module_events_total{event="setUp"}
//	<ns>_module_failures_total{module="db"}
//	<ns>_module_start_duration_seconds{module="db"}
//	<ns>_modules_started
//	<ns>_app_startup_seconds
//
// Usage:
//
//	collector := metrics.NewCollector("modboot")
//	prometheus.MustRegister(collector)
//	_ = collector.Attach(app)
package metrics

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/GoCodeAlone/modboot/eventbus"
	"github.com/GoCodeAlone/modboot/lifecycle"
)

// DefaultNamespace prefixes every metric name when none is given.
const DefaultNamespace = "modboot"

var errNilSubscriber = errors.New("metrics: nil subscriber supplied")

// Subscriber is the part of the event bus the collector needs. Both
// *eventbus.Bus and *modboot.Application satisfy it.
type Subscriber interface {
	Subscribe(topic string, handler eventbus.Handler) (*eventbus.Subscription, error)
}

// Collector implements prometheus.Collector for lifecycle events.
type Collector struct {
	events        *prometheus.CounterVec
	failures      *prometheus.CounterVec
	startDuration *prometheus.HistogramVec
	started       prometheus.Gauge
	startup       prometheus.Gauge

	mu       sync.Mutex
	starting map[string]time.Time
	subs     []*eventbus.Subscription
	now      func() time.Time
}

// NewCollector creates a collector whose metric names start with namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_events_total",
			Help:      "Total module lifecycle events by event name",
		}, []string{"event"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "module_failures_total",
			Help:      "Total module failures by module",
		}, []string{"module"}),
		startDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "module_start_duration_seconds",
			Help:      "Time from a module's starting event to its started event",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		}, []string{"module"}),
		started: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "modules_started",
			Help:      "Number of modules currently started",
		}),
		startup: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "app_startup_seconds",
			Help:      "Time from process start to app.started",
		}),
		starting: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Describe sends the metric descriptors.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.events.Describe(ch)
	c.failures.Describe(ch)
	c.startDuration.Describe(ch)
	c.started.Describe(ch)
	c.startup.Describe(ch)
}

// Collect sends the current metric values.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.events.Collect(ch)
	c.failures.Collect(ch)
	c.startDuration.Collect(ch)
	c.started.Collect(ch)
	c.startup.Collect(ch)
}

// Attach subscribes the collector to the lifecycle topics of bus.
func (c *Collector) Attach(bus Subscriber) error {
	if bus == nil {
		return errNilSubscriber
	}

	var subs []*eventbus.Subscription
	for _, topic := range []string{lifecycle.TopicModuleAll, lifecycle.TopicAppStarted} {
		sub, err := bus.Subscribe(topic, c.handle)
		if err != nil {
			for _, s := range subs {
				s.Cancel()
			}
			return fmt.Errorf("failed to subscribe metrics collector to %s: %w", topic, err)
		}
		subs = append(subs, sub)
	}

	c.mu.Lock()
	c.subs = append(c.subs, subs...)
	c.mu.Unlock()
	return nil
}

// Detach cancels every subscription made by Attach.
func (c *Collector) Detach() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
}

func (c *Collector) handle(topic string, payload any) error {
	if topic == lifecycle.TopicAppStarted {
		if event, ok := payload.(lifecycle.AppStartedEvent); ok {
			c.startup.Set(event.Time.Seconds())
		}
		return nil
	}

	c.events.WithLabelValues(strings.TrimPrefix(topic, "module.")).Inc()

	switch topic {
	case lifecycle.TopicModuleStarting:
		if event, ok := payload.(lifecycle.ModuleEvent); ok {
			c.mu.Lock()
			c.starting[event.Module] = c.now()
			c.mu.Unlock()
		}
	case lifecycle.TopicModuleStarted:
		name, ok := payload.(string)
		if !ok {
			return nil
		}
		c.started.Inc()
		c.mu.Lock()
		begin, found := c.starting[name]
		delete(c.starting, name)
		c.mu.Unlock()
		if found {
			c.startDuration.WithLabelValues(name).Observe(c.now().Sub(begin).Seconds())
		}
	case lifecycle.TopicModuleFailed:
		if event, ok := payload.(lifecycle.ModuleFailedEvent); ok {
			c.failures.WithLabelValues(event.Module).Inc()
			c.mu.Lock()
			delete(c.starting, event.Module)
			c.mu.Unlock()
		}
	}
	return nil
}
