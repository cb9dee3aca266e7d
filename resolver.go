package modboot

import (
	"fmt"

	"github.com/GoCodeAlone/modboot/readiness"
)

// DependencyResolver resolves a starting module's dependencies.
//
// Required dependencies are a hard precondition checked at the moment the
// dependent starts: their targets must already be Started. Optional
// dependencies are wired through the readiness tracker whenever their
// targets start, before or after the dependent itself.
type DependencyResolver struct {
	app      *Application
	registry *Registry
	tracker  *readiness.Tracker
}

// NewDependencyResolver creates a resolver for app.
func NewDependencyResolver(app *Application, registry *Registry, tracker *readiness.Tracker) *DependencyResolver {
	return &DependencyResolver{app: app, registry: registry, tracker: tracker}
}

// ResolveRequired assigns every required dependency of d, failing with a
// MissingRequiredDependencyError on the first one whose target is not
// configured, not registered or not started.
func (r *DependencyResolver) ResolveRequired(d *Descriptor) error {
	dependent, ok := d.component.(RequiredDependent)
	if !ok {
		return nil
	}

	for _, prop := range SplitDependencies(dependent.RequiredDependencies()) {
		target := d.config.TargetName(prop)
		if target == "" {
			return &MissingRequiredDependencyError{Module: d.name, Dependency: prop}
		}

		dep, found := r.registry.Lookup(target)
		if !found || !r.registry.IsStarted(target) {
			return &MissingRequiredDependencyError{Module: d.name, Dependency: prop, Target: target}
		}

		d.setDependency(prop, dep.component)
		d.logger.Debug("Resolved required dependency", "dependency", prop, "target", target)
	}

	return nil
}

// ResolveOptional registers a readiness wait for every optional dependency
// group of d and returns the waits. Properties whose "<prop>Id" key is unset
// are skipped; a group without any configured property never fires.
func (r *DependencyResolver) ResolveOptional(d *Descriptor) ([]*readiness.Wait, error) {
	dependent, ok := d.component.(OptionalDependent)
	if !ok {
		return nil, nil
	}

	var waits []*readiness.Wait
	for _, group := range dependent.OptionalDependencies() {
		targets := make(map[string]string)
		var names []string
		for _, prop := range group.Properties() {
			target := d.config.TargetName(prop)
			if target == "" {
				d.logger.Debug("Optional dependency not configured", "dependency", prop)
				continue
			}
			targets[prop] = target
			names = append(names, target)
		}

		wait, err := r.tracker.Await(names, func() {
			r.wire(d, group, targets)
		})
		if err != nil {
			return waits, fmt.Errorf("failed to await optional dependencies %q of %s: %w", group.Names, d.name, err)
		}
		waits = append(waits, wait)
	}

	return waits, nil
}

func (r *DependencyResolver) wire(d *Descriptor, group OptionalDependency, targets map[string]string) {
	for prop, target := range targets {
		if dep, ok := r.registry.Lookup(target); ok {
			d.setDependency(prop, dep.component)
		}
	}

	d.logger.Debug("Wiring optional dependencies", "dependencies", group.Names)

	for i, fn := range group.Wire {
		if fn == nil {
			continue
		}
		if err := callWire(fn, r.app, d); err != nil {
			args := []any{"dependencies", group.Names, "wire", i, "error", err}
			if stack := StackTrace(err); stack != "" {
				args = append(args, "stack", stack)
			}
			d.logger.Error("Optional dependency wiring failed", args...)
		}
	}
}

func callWire(fn WireFunc, app *Application, d *Descriptor) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError(rec)
		}
	}()
	return fn(app, d)
}
