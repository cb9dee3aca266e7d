package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/GoCodeAlone/modboot"
)

// MetricsHandler is implemented by the optional "metrics" dependency.
type MetricsHandler interface {
	Handler() http.Handler
}

// Module serves a chi router over HTTP.
type Module struct {
	mu       sync.Mutex
	config   Config
	router   chi.Router
	server   *http.Server
	listener net.Listener
	logger   modboot.Logger
}

// NewModule creates an HTTP server module.
func NewModule() *Module {
	return &Module{}
}

// DefaultConfig returns the module defaults.
func (m *Module) DefaultConfig() modboot.Config {
	timeout := DefaultTimeout.String()
	return modboot.Config{
		"host":            "0.0.0.0",
		"port":            8080,
		"readTimeout":     timeout,
		"writeTimeout":    timeout,
		"idleTimeout":     timeout,
		"shutdownTimeout": timeout,
	}
}

// SetUp validates the config and builds the router. Routes may be added
// through Router or Handle from then on.
func (m *Module) SetUp(app *modboot.Application, d *modboot.Descriptor) error {
	config, err := ConfigFrom(d.Config())
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"id":      app.Options().ID,
			"modules": app.StartedModules(),
		})
	})

	m.mu.Lock()
	m.config = config
	m.router = router
	m.logger = d.Logger()
	m.mu.Unlock()
	return nil
}

// OptionalDependencies mounts /metrics once the module configured as
// metricsId has started.
func (m *Module) OptionalDependencies() []modboot.OptionalDependency {
	return []modboot.OptionalDependency{
		modboot.Optional("metrics", m.mountMetrics),
	}
}

func (m *Module) mountMetrics(_ *modboot.Application, d *modboot.Descriptor) error {
	dep, ok := modboot.DependencyAs[MetricsHandler](d, "metrics")
	if !ok || dep.Handler() == nil {
		return ErrNoMetricsHandler
	}
	m.Handle("/metrics", dep.Handler())
	m.logger.Info("Mounted metrics endpoint", "path", "/metrics")
	return nil
}

// Start binds the listener and serves in the background.
func (m *Module) Start() modboot.Starter {
	return modboot.AsyncStart(m.start)
}

func (m *Module) start(_ *modboot.Application, _ *modboot.Descriptor, done func(error)) {
	m.mu.Lock()
	config := m.config
	listener, err := net.Listen("tcp", config.Address())
	if err != nil {
		m.mu.Unlock()
		done(fmt.Errorf("failed to listen on %s: %w", config.Address(), err))
		return
	}
	server := &http.Server{
		Handler:      m.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	m.listener = listener
	m.server = server
	m.mu.Unlock()

	m.logger.Info("HTTP server listening", "address", listener.Addr().String())
	done(nil)

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.logger.Error("HTTP server error", "error", err)
	}
}

// Router returns the router; nil before setup.
func (m *Module) Router() chi.Router {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.router
}

// Handle registers handler for pattern on the router.
func (m *Module) Handle(pattern string, handler http.Handler) {
	m.Router().Handle(pattern, handler)
}

// Addr returns the bound address, or "" before the server started.
func (m *Module) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// URL returns the base URL of the running server.
func (m *Module) URL() string {
	return "http://" + m.Addr()
}

// Stop shuts the server down gracefully within the shutdown timeout.
func (m *Module) Stop(ctx context.Context) error {
	m.mu.Lock()
	server := m.server
	timeout := m.config.ShutdownTimeout
	m.mu.Unlock()

	if server == nil {
		return ErrServerNotStarted
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}
