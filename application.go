package modboot

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/GoCodeAlone/modboot/eventbus"
	"github.com/GoCodeAlone/modboot/readiness"
)

// ConfigHook adjusts a module's merged config before the module is set up.
type ConfigHook func(module string, cfg Config) error

// Application is the process-wide context of one bootstrap run. Modules
// receive it in every lifecycle callback.
type Application struct {
	options     Options
	logger      Logger
	loader      Loader
	configHooks []ConfigHook

	bus      *eventbus.Bus
	registry *Registry
	tracker  *readiness.Tracker
	resolver *DependencyResolver

	observerMu sync.Mutex
	observers  map[string][]*eventbus.Subscription

	runMu sync.Mutex
	ran   bool
}

// New creates an application. A Loader is required.
func New(opts ...Option) (*Application, error) {
	app := &Application{
		observers: make(map[string][]*eventbus.Subscription),
	}
	app.bus = eventbus.New(busReporter{app})

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.loader == nil {
		return nil, ErrLoaderNotSet
	}
	if app.logger == nil {
		app.logger = nopLogger{}
	}
	app.options = app.options.WithDefaults()
	app.registry = NewRegistry(app.bus, app.logger)
	app.tracker = readiness.NewTracker(app.bus, app.registry)
	app.resolver = NewDependencyResolver(app, app.registry, app.tracker)

	return app, nil
}

// Options returns the application options.
func (app *Application) Options() Options { return app.options }

// Logger returns the application logger.
func (app *Application) Logger() Logger { return app.logger }

// Bus returns the application event bus.
func (app *Application) Bus() *eventbus.Bus { return app.bus }

// Registry returns the module registry.
func (app *Application) Registry() *Registry { return app.registry }

// Tracker returns the readiness tracker.
func (app *Application) Tracker() *readiness.Tracker { return app.tracker }

// Module returns the descriptor of the module registered under name.
func (app *Application) Module(name string) (*Descriptor, bool) {
	return app.registry.Lookup(name)
}

// StartedModules returns the names of the started modules in start order.
func (app *Application) StartedModules() []string {
	return app.registry.StartedModules()
}

// OnModuleReady calls fn once every module in names has started. Empty names
// are ignored; when none remain, fn never fires.
func (app *Application) OnModuleReady(names []string, fn func()) error {
	if _, err := app.tracker.Await(names, fn); err != nil {
		return fmt.Errorf("failed to await modules %v: %w", names, err)
	}
	return nil
}

// PathTo joins parts onto the root path. Absolute first parts are kept as is.
func (app *Application) PathTo(parts ...string) string {
	if len(parts) > 0 && filepath.IsAbs(parts[0]) {
		return filepath.Join(parts...)
	}
	return filepath.Join(append([]string{app.options.RootPath}, parts...)...)
}

// busReporter routes event bus subscriber failures to the application
// logger, which may be configured after the bus is created.
type busReporter struct {
	app *Application
}

func (r busReporter) Error(msg string, args ...any) {
	if r.app.logger != nil {
		r.app.logger.Error(msg, args...)
	}
}
