package modboot

import (
	"maps"
	"sync"
	"time"

	"github.com/GoCodeAlone/modboot/lifecycle"
)

// ModuleDeclaration is the caller's description of one module to bootstrap.
type ModuleDeclaration struct {
	Name     string `yaml:"name" toml:"name" json:"name"`
	Location string `yaml:"location" toml:"location" json:"location"`
	Config   Config `yaml:"config" toml:"config" json:"config"`
}

// ModuleInfo is a snapshot of a module passed to SetUpObserver hooks.
type ModuleInfo struct {
	Name     string
	Location string
	Config   Config
	State    lifecycle.State
}

// Descriptor is the registry's record of a module for one bootstrap run.
type Descriptor struct {
	name      string
	location  string
	config    Config
	component Component
	starter   Starter
	caps      Capabilities
	logger    Logger

	mu        sync.RWMutex
	state     lifecycle.State
	deps      map[string]Component
	setUpAt   time.Time
	startedAt time.Time
	err       error
}

// Name returns the module's unique name.
func (d *Descriptor) Name() string { return d.name }

// Location returns the location the component was loaded from.
func (d *Descriptor) Location() string { return d.location }

// Config returns the merged module configuration.
func (d *Descriptor) Config() Config { return d.config }

// Component returns the loaded component.
func (d *Descriptor) Component() Component { return d.component }

// Capabilities returns the optional capabilities of the component.
func (d *Descriptor) Capabilities() Capabilities { return d.caps }

// Logger returns a logger whose lines carry the module name.
func (d *Descriptor) Logger() Logger { return d.logger }

// State returns the current lifecycle state.
func (d *Descriptor) State() lifecycle.State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Err returns the error that failed the module, if any.
func (d *Descriptor) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.err
}

// StartedAt returns when the module started, or the zero time.
func (d *Descriptor) StartedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startedAt
}

// SetUpAt returns when the module finished its setup, or the zero time.
func (d *Descriptor) SetUpAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.setUpAt
}

// Dependency returns the component resolved for dependency property prop.
func (d *Descriptor) Dependency(prop string) (Component, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.deps[prop]
	return c, ok
}

// Dependencies returns a copy of every resolved dependency by property name.
func (d *Descriptor) Dependencies() map[string]Component {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return maps.Clone(d.deps)
}

// Info returns a snapshot of the module.
func (d *Descriptor) Info() ModuleInfo {
	return ModuleInfo{
		Name:     d.name,
		Location: d.location,
		Config:   d.config,
		State:    d.State(),
	}
}

func (d *Descriptor) setDependency(prop string, c Component) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deps == nil {
		d.deps = make(map[string]Component)
	}
	d.deps[prop] = c
}

// DependencyAs returns the dependency resolved for prop converted to T.
func DependencyAs[T any](d *Descriptor, prop string) (T, bool) {
	var zero T
	c, ok := d.Dependency(prop)
	if !ok {
		return zero, false
	}
	t, ok := c.(T)
	return t, ok
}
