package modboot

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Default option values.
const (
	DefaultModuleStartTimeout = 2 * time.Second
	DefaultID                 = "nonameapp"
	DefaultEnv                = "development"
)

// ErrLoaderNotSet is returned by New when no Loader was configured.
var ErrLoaderNotSet = errors.New("module loader not set")

// Options are the application-level settings of one bootstrap run.
type Options struct {
	// ID identifies the application in logs and in the app.started event.
	ID string `env:"APP_ID" yaml:"id" toml:"id" json:"id"`

	// Env is the environment tag, e.g. "development" or "production".
	Env string `env:"APP_ENV" yaml:"env" toml:"env" json:"env"`

	// RootPath is the directory relative paths are resolved against.
	RootPath string `env:"APP_ROOT_PATH" yaml:"rootPath" toml:"rootPath" json:"rootPath"`

	// StartTime is when the process started; elapsed time is measured from it.
	StartTime time.Time `yaml:"-" toml:"-" json:"-"`

	// ModuleStartTimeout bounds every asynchronous module start.
	ModuleStartTimeout time.Duration `env:"APP_MODULE_START_TIMEOUT" yaml:"moduleStartTimeout" toml:"moduleStartTimeout" json:"moduleStartTimeout"`
}

// DefaultOptions returns options with every default applied.
func DefaultOptions() Options {
	return Options{}.WithDefaults()
}

// WithDefaults returns a copy of o where every unset field holds its default.
func (o Options) WithDefaults() Options {
	if o.ID == "" {
		o.ID = DefaultID
	}
	if o.Env == "" {
		o.Env = DefaultEnv
	}
	if o.RootPath == "" {
		if wd, err := os.Getwd(); err == nil {
			o.RootPath = wd
		}
	}
	if o.StartTime.IsZero() {
		o.StartTime = time.Now()
	}
	if o.ModuleStartTimeout <= 0 {
		o.ModuleStartTimeout = DefaultModuleStartTimeout
	}
	return o
}

// OptionsFromEnv reads APP_ID, APP_ENV, APP_ROOT_PATH and
// APP_MODULE_START_TIMEOUT from the environment. Unset variables keep their
// defaults.
func OptionsFromEnv() (Options, error) {
	return OverlayEnvironment(Options{}, nil)
}

// OptionsFromEnvironment is OptionsFromEnv reading environ instead of the
// process environment.
func OptionsFromEnvironment(environ map[string]string) (Options, error) {
	return OverlayEnvironment(Options{}, environ)
}

// OverlayEnvironment replaces the fields of base whose variables are set in
// environ, or in the process environment when environ is nil, then applies
// defaults.
func OverlayEnvironment(base Options, environ map[string]string) (Options, error) {
	if err := env.ParseWithOptions(&base, env.Options{Environment: environ}); err != nil {
		return Options{}, fmt.Errorf("failed to parse options from environment: %w", err)
	}
	return base.WithDefaults(), nil
}

// Option configures an Application.
type Option func(*Application) error

// WithOptions replaces the application options. Unset fields get defaults.
func WithOptions(opts Options) Option {
	return func(app *Application) error {
		app.options = opts
		return nil
	}
}

// WithID sets the application id.
func WithID(id string) Option {
	return func(app *Application) error {
		app.options.ID = id
		return nil
	}
}

// WithEnv sets the environment tag.
func WithEnv(env string) Option {
	return func(app *Application) error {
		app.options.Env = env
		return nil
	}
}

// WithRootPath sets the root path.
func WithRootPath(path string) Option {
	return func(app *Application) error {
		app.options.RootPath = path
		return nil
	}
}

// WithStartTime sets the process start time.
func WithStartTime(t time.Time) Option {
	return func(app *Application) error {
		app.options.StartTime = t
		return nil
	}
}

// WithModuleStartTimeout sets the asynchronous start timeout.
func WithModuleStartTimeout(timeout time.Duration) Option {
	return func(app *Application) error {
		if timeout <= 0 {
			return fmt.Errorf("module start timeout must be positive, got %s", timeout)
		}
		app.options.ModuleStartTimeout = timeout
		return nil
	}
}

// WithLogger sets the application logger.
func WithLogger(logger Logger) Option {
	return func(app *Application) error {
		app.logger = logger
		return nil
	}
}

// WithLoader sets the module loader.
func WithLoader(loader Loader) Option {
	return func(app *Application) error {
		app.loader = loader
		return nil
	}
}

// WithConfigHooks adds hooks run on every module's config after the
// component defaults were merged and before the module is set up.
func WithConfigHooks(hooks ...ConfigHook) Option {
	return func(app *Application) error {
		app.configHooks = append(app.configHooks, hooks...)
		return nil
	}
}

// WithObserver registers observer for the given CloudEvent types, or for all
// lifecycle events when eventTypes is empty.
func WithObserver(observer Observer, eventTypes ...string) Option {
	return func(app *Application) error {
		return app.RegisterObserver(observer, eventTypes...)
	}
}
