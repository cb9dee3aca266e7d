package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoCodeAlone/modboot"
)

// Module makes the collector bootable. It attaches during setup, so it
// should be declared before the modules it is meant to measure. An HTTP
// module can mount Handler through an optional dependency.
type Module struct {
	registry  *prometheus.Registry
	collector *Collector
	handler   http.Handler
}

// NewModule creates a metrics module.
func NewModule() *Module {
	return &Module{}
}

// DefaultConfig returns the module defaults.
func (m *Module) DefaultConfig() modboot.Config {
	return modboot.Config{
		"namespace":      DefaultNamespace,
		"runtimeMetrics": true,
	}
}

// SetUp creates the registry and attaches the collector to the application
// bus.
func (m *Module) SetUp(app *modboot.Application, d *modboot.Descriptor) error {
	cfg := d.Config()
	m.registry = prometheus.NewRegistry()
	m.collector = NewCollector(cfg.String("namespace", DefaultNamespace))

	if err := m.registry.Register(m.collector); err != nil {
		return fmt.Errorf("failed to register lifecycle collector: %w", err)
	}
	if cfg.Bool("runtimeMetrics", true) {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	if err := m.collector.Attach(app); err != nil {
		return err
	}

	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	d.Logger().Debug("Metrics collector attached", "namespace", cfg.String("namespace", DefaultNamespace))
	return nil
}

// Start is a no-op; the collector runs from setup on.
func (m *Module) Start() modboot.Starter {
	return modboot.SyncStart(func(*modboot.Application, *modboot.Descriptor) error { return nil })
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Module) Handler() http.Handler {
	return m.handler
}

// Registry returns the module's registry.
func (m *Module) Registry() *prometheus.Registry {
	return m.registry
}

// Collector returns the lifecycle collector.
func (m *Module) Collector() *Collector {
	return m.collector
}
