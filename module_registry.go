package modboot

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/GoCodeAlone/modboot/eventbus"
	"github.com/GoCodeAlone/modboot/lifecycle"
)

// Registry holds the descriptors of one bootstrap run, keyed by module name
// and kept in registration order.
//
// A name is in StartedModules if and only if its descriptor is Started.
type Registry struct {
	bus    *eventbus.Bus
	logger Logger

	mu         sync.RWMutex
	byName     map[string]*Descriptor
	order      []*Descriptor
	setUpOrder []*Descriptor
	started    []string
}

// NewRegistry creates an empty registry publishing state changes on bus.
func NewRegistry(bus *eventbus.Bus, logger Logger) *Registry {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Registry{
		bus:    bus,
		logger: logger,
		byName: make(map[string]*Descriptor),
	}
}

// Register creates a descriptor in the Registered state for decl, backed by
// component c, and merges the component's defaults into its config. The
// declaration's config map is copied, never mutated.
func (r *Registry) Register(decl ModuleDeclaration, c Component) (*Descriptor, error) {
	if decl.Name == "" {
		return nil, ErrEmptyModuleName
	}
	if c == nil {
		return nil, &InvalidComponentError{Module: decl.Name, Reason: "component is nil"}
	}
	starter := c.Start()
	if starter.IsZero() {
		return nil, &InvalidComponentError{Module: decl.Name, Reason: "missing the start function"}
	}

	d := &Descriptor{
		name:      decl.Name,
		location:  decl.Location,
		config:    decl.Config.Clone(),
		component: c,
		starter:   starter,
		caps:      CapabilitiesOf(c),
		logger:    NewModuleLogger(r.logger, decl.Name),
		state:     lifecycle.StateRegistered,
	}

	r.mu.Lock()
	if _, exists := r.byName[decl.Name]; exists {
		r.mu.Unlock()
		return nil, &DuplicateModuleError{Module: decl.Name}
	}
	r.byName[decl.Name] = d
	r.order = append(r.order, d)
	r.mu.Unlock()

	if defaulter, ok := c.(Defaulter); ok {
		r.MergeDefaults(d, defaulter.DefaultConfig())
	}

	return d, nil
}

// MergeDefaults fills the keys of defaults that are absent from the
// descriptor's config. Caller-supplied keys are never overwritten.
func (r *Registry) MergeDefaults(d *Descriptor, defaults Config) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.config = MergeDefaults(d.config, defaults)
}

// MarkState moves d to next. Reaching Started appends the module to
// StartedModules and publishes module.started with the module name.
func (r *Registry) MarkState(d *Descriptor, next lifecycle.State) error {
	return r.transition(d, next, nil)
}

// MarkFailed moves d to the absorbing Failed state and publishes
// module.failed.
func (r *Registry) MarkFailed(d *Descriptor, cause error) error {
	return r.transition(d, lifecycle.StateFailed, cause)
}

func (r *Registry) transition(d *Descriptor, next lifecycle.State, cause error) error {
	r.mu.Lock()
	d.mu.Lock()
	current := d.state
	if !current.CanTransition(next) {
		d.mu.Unlock()
		r.mu.Unlock()
		return fmt.Errorf("%w: %s from %s to %s", ErrInvalidStateTransition, d.name, current, next)
	}
	d.state = next
	switch next {
	case lifecycle.StateSetUp:
		d.setUpAt = time.Now()
		r.setUpOrder = append(r.setUpOrder, d)
	case lifecycle.StateStarted:
		d.startedAt = time.Now()
		r.started = append(r.started, d.name)
	case lifecycle.StateFailed:
		d.err = cause
	}
	d.mu.Unlock()
	r.mu.Unlock()

	// Publish outside the locks: subscribers query the registry.
	switch next {
	case lifecycle.StateStarted:
		r.bus.Publish(lifecycle.TopicModuleStarted, d.name)
	case lifecycle.StateFailed:
		event := lifecycle.ModuleFailedEvent{Module: d.name}
		if cause != nil {
			event.Error = cause.Error()
		}
		r.bus.Publish(lifecycle.TopicModuleFailed, event)
	}

	return nil
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// IsStarted reports whether the module registered under name is Started.
func (r *Registry) IsStarted(name string) bool {
	d, ok := r.Lookup(name)
	return ok && d.State() == lifecycle.StateStarted
}

// StartedModules returns the names of started modules, in start order.
func (r *Registry) StartedModules() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.started)
}

// Modules returns every descriptor in registration order.
func (r *Registry) Modules() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// SetUpModules returns the descriptors that completed setup, in setup order.
func (r *Registry) SetUpModules() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.setUpOrder)
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
