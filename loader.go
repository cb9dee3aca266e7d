package modboot

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"
)

// Loader turns a module location into a component.
type Loader interface {
	Load(location string) (Component, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(location string) (Component, error)

// Load calls f(location).
func (f LoaderFunc) Load(location string) (Component, error) {
	return f(location)
}

// Factory creates a fresh component instance. Every declaration loading the
// same location gets its own instance.
type Factory func() Component

// Catalog is a Loader backed by factories registered per location.
// Locations are compared after cleaning, so "./modules/db" and
// "modules/db/" name the same component.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds a factory for location.
func (c *Catalog) Register(location string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("%w: nil factory for %q", ErrInvalidComponent, location)
	}
	key := cleanLocation(location)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.factories[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLocation, location)
	}
	c.factories[key] = factory
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// package-level catalog wiring.
func (c *Catalog) MustRegister(location string, factory Factory) {
	if err := c.Register(location, factory); err != nil {
		panic(err)
	}
}

// Load creates a component for location.
func (c *Catalog) Load(location string) (component Component, err error) {
	c.mu.RLock()
	factory, ok := c.factories[cleanLocation(location)]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocationNotFound, location)
	}

	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return factory(), nil
}

// Locations returns the registered locations, sorted.
func (c *Catalog) Locations() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	locations := make([]string, 0, len(c.factories))
	for location := range c.factories {
		locations = append(locations, location)
	}
	slices.Sort(locations)
	return locations
}

func cleanLocation(location string) string {
	cleaned := path.Clean(strings.TrimSpace(location))
	return strings.TrimPrefix(cleaned, "./")
}
