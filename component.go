// Package modboot bootstraps independently authored modules into a running
// application.
//
// Each module is declared with a name, a location and a configuration. The
// location is turned into a Component by a Loader; the component's defaults
// are merged under the caller's configuration; then every module is set up
// and started strictly in declaration order. Required dependencies must
// already be started when a dependent module starts, optional dependencies
// are wired whenever their target starts, and asynchronous starts are
// bounded by a per-module timeout. The first failure aborts the bootstrap.
//
// Basic usage:
//
//	catalog := modboot.NewCatalog()
//	catalog.Register("./modules/db", func() modboot.Component { return db.New() })
//	app := modboot.New(modboot.WithLogger(logger), modboot.WithLoader(catalog))
//	if err := app.Run(ctx, decls); err != nil {
//		log.Fatal(err)
//	}
package modboot

import "strings"

// SyncStartFunc starts a module synchronously. A returned error, or a panic,
// fails the module and aborts the bootstrap.
type SyncStartFunc func(app *Application, d *Descriptor) error

// AsyncStartFunc starts a module asynchronously. The module must call done
// exactly once, with nil on success; calls after the first, or after the
// start timeout expired, are ignored. done may be called from any goroutine.
type AsyncStartFunc func(app *Application, d *Descriptor, done func(error))

// Starter is the start function of a component: either synchronous or
// asynchronous. Create one with SyncStart or AsyncStart.
type Starter struct {
	sync  SyncStartFunc
	async AsyncStartFunc
}

// SyncStart wraps a synchronous start function.
func SyncStart(fn SyncStartFunc) Starter {
	return Starter{sync: fn}
}

// AsyncStart wraps an asynchronous start function.
func AsyncStart(fn AsyncStartFunc) Starter {
	return Starter{async: fn}
}

// IsAsync reports whether the starter signals completion asynchronously.
func (s Starter) IsAsync() bool {
	return s.async != nil
}

// IsZero reports whether the starter carries no start function.
func (s Starter) IsZero() bool {
	return s.sync == nil && s.async == nil
}

// Component is a loaded module. Start is the only required capability; the
// optional ones are expressed by the interfaces below.
type Component interface {
	// Start returns the component's start function.
	Start() Starter
}

// Defaulter is implemented by components that declare configuration
// defaults. Defaults never override caller-supplied keys.
type Defaulter interface {
	DefaultConfig() Config
}

// SetUpper is implemented by components with a setup phase. SetUp runs
// during the registration pass, before any module starts.
type SetUpper interface {
	SetUp(app *Application, d *Descriptor) error
}

// RequiredDependent is implemented by components that need other modules to
// be started before they start. Each entry is a dependency property name, or
// several names separated by spaces; the target module name is read from the
// "<property>Id" config key.
type RequiredDependent interface {
	RequiredDependencies() []string
}

// OptionalDependent is implemented by components that want to be wired to
// other modules whenever those start.
type OptionalDependent interface {
	OptionalDependencies() []OptionalDependency
}

// SetUpObserver is implemented by components that want to observe every
// other module's setup, both those set up before them and those set up after.
type SetUpObserver interface {
	OnModuleSetUp(app *Application, info ModuleInfo)
}

// WireFunc connects a module to its optional dependencies once they started.
// The resolved dependencies are available through d.Dependency.
type WireFunc func(app *Application, d *Descriptor) error

// OptionalDependency is a group of dependency property names and the wiring
// functions to call, in order, once all configured targets started.
type OptionalDependency struct {
	// Names holds one or more space-separated dependency property names.
	Names string
	Wire  []WireFunc
}

// Optional builds an OptionalDependency.
func Optional(names string, wire ...WireFunc) OptionalDependency {
	return OptionalDependency{Names: names, Wire: wire}
}

// Properties returns the dependency property names of the group.
func (o OptionalDependency) Properties() []string {
	return strings.Fields(o.Names)
}

// SplitDependencies normalizes dependency entries, splitting space-separated
// entries and dropping empty ones.
func SplitDependencies(entries []string) []string {
	var props []string
	for _, entry := range entries {
		props = append(props, strings.Fields(entry)...)
	}
	return props
}

// Capabilities describes which optional parts of the contract a component
// implements.
type Capabilities struct {
	Defaults      bool
	SetUp         bool
	OnModuleSetUp bool
	AsyncStart    bool
	Required      bool
	Optional      bool
}

// CapabilitiesOf inspects c once, at load time.
func CapabilitiesOf(c Component) Capabilities {
	_, defaults := c.(Defaulter)
	_, setUp := c.(SetUpper)
	_, onSetUp := c.(SetUpObserver)
	_, required := c.(RequiredDependent)
	_, optional := c.(OptionalDependent)
	return Capabilities{
		Defaults:      defaults,
		SetUp:         setUp,
		OnModuleSetUp: onSetUp,
		AsyncStart:    c.Start().IsAsync(),
		Required:      required,
		Optional:      optional,
	}
}
