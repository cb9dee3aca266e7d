package readiness

import (
	"slices"
	"sync"

	"github.com/GoCodeAlone/modboot/eventbus"
)

// Wait is a pending resolution over a set of module names.
type Wait struct {
	tracker *Tracker
	onReady func()

	mu        sync.Mutex
	remaining map[string]struct{}
	sub       *eventbus.Subscription
	done      bool
}

// Pending returns the sorted names that have not started yet.
func (w *Wait) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	names := make([]string, 0, len(w.remaining))
	for name := range w.remaining {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolved reports whether the callback has fired.
func (w *Wait) Resolved() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

func (w *Wait) onModuleStarted(_ string, payload any) error {
	name, ok := payload.(string)
	if !ok {
		return nil
	}

	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return nil
	}
	if _, waiting := w.remaining[name]; !waiting {
		w.mu.Unlock()
		return nil
	}
	delete(w.remaining, name)
	fire := w.resolveLocked()
	w.mu.Unlock()

	if fire {
		w.finish()
	}
	return nil
}

// resolveLocked marks the wait done when nothing remains and reports whether
// the caller must fire the callback. w.mu must be held.
func (w *Wait) resolveLocked() bool {
	if w.done || len(w.remaining) > 0 {
		return false
	}
	w.done = true
	return true
}

func (w *Wait) finish() {
	w.mu.Lock()
	sub := w.sub
	w.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	w.tracker.forget(w)

	if w.onReady != nil {
		w.onReady()
	}
}
