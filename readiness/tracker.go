// Package readiness resolves callbacks once a set of modules has started.
//
// A Wait is satisfied by modules that already started when it was created
// and by later module.started events observed on the event bus. Its callback
// fires at most once, after which the bus subscription is cancelled.
package readiness

import (
	"slices"
	"sync"

	"github.com/GoCodeAlone/modboot/eventbus"
	"github.com/GoCodeAlone/modboot/lifecycle"
)

// StartedChecker reports whether a module has reached the Started state.
type StartedChecker interface {
	IsStarted(name string) bool
}

// Bus is the subset of the event bus the tracker needs.
type Bus interface {
	Subscribe(topic string, handler eventbus.Handler) (*eventbus.Subscription, error)
}

// Tracker creates readiness waits over module names.
type Tracker struct {
	bus     Bus
	started StartedChecker

	mu    sync.Mutex
	waits map[*Wait]struct{}
}

// NewTracker creates a tracker observing bus for started modules.
func NewTracker(bus Bus, started StartedChecker) *Tracker {
	return &Tracker{
		bus:     bus,
		started: started,
		waits:   make(map[*Wait]struct{}),
	}
}

// Await invokes onReady once every module in names has started.
//
// Empty names are dropped first. When nothing is left to wait for, onReady
// never fires: an unset optional dependency is not the same thing as a
// satisfied one. Modules that already started resolve synchronously within
// the call; later ones resolve during the matching module.started publish.
func (t *Tracker) Await(names []string, onReady func()) (*Wait, error) {
	w := &Wait{
		tracker:   t,
		onReady:   onReady,
		remaining: make(map[string]struct{}, len(names)),
	}
	for _, name := range names {
		if name != "" {
			w.remaining[name] = struct{}{}
		}
	}

	if len(w.remaining) == 0 {
		return w, nil
	}

	t.mu.Lock()
	t.waits[w] = struct{}{}
	t.mu.Unlock()

	sub, err := t.bus.Subscribe(lifecycle.TopicModuleStarted, w.onModuleStarted)
	if err != nil {
		t.forget(w)
		return nil, err
	}

	w.mu.Lock()
	w.sub = sub
	if w.done {
		// Resolved by a concurrent publish between Subscribe and here.
		w.mu.Unlock()
		sub.Cancel()
		return w, nil
	}
	for name := range w.remaining {
		if t.started.IsStarted(name) {
			delete(w.remaining, name)
		}
	}
	fire := w.resolveLocked()
	w.mu.Unlock()

	if fire {
		w.finish()
	}

	return w, nil
}

// Pending returns the number of waits that have not resolved yet. Waits over
// an empty name set are not counted.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waits)
}

// PendingNames returns the sorted, de-duplicated module names that unresolved
// waits are still waiting for.
func (t *Tracker) PendingNames() []string {
	t.mu.Lock()
	waits := make([]*Wait, 0, len(t.waits))
	for w := range t.waits {
		waits = append(waits, w)
	}
	t.mu.Unlock()

	var names []string
	for _, w := range waits {
		names = append(names, w.Pending()...)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

func (t *Tracker) forget(w *Wait) {
	t.mu.Lock()
	delete(t.waits, w)
	t.mu.Unlock()
}
