package configwatcher

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/GoCodeAlone/modboot"
)

// Module watches paths and publishes their changes.
type Module struct {
	mu      sync.Mutex
	name    string
	config  Config
	paths   []string
	watcher *fsnotify.Watcher
	pending map[string]*time.Timer
	logger  modboot.Logger
	stopped chan struct{}
}

// NewModule creates a config watcher module.
func NewModule() *Module {
	return &Module{pending: make(map[string]*time.Timer)}
}

// DefaultConfig returns the module defaults.
func (m *Module) DefaultConfig() modboot.Config {
	return modboot.Config{
		"debounce": DefaultDebounce.String(),
		"ignore":   DefaultIgnore,
	}
}

// SetUp reads the config and resolves relative paths against the
// application root.
func (m *Module) SetUp(app *modboot.Application, d *modboot.Descriptor) error {
	config, err := ConfigFrom(d.Config())
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(config.Paths))
	for _, p := range config.Paths {
		if !filepath.IsAbs(p) {
			p = app.PathTo(p)
		}
		paths = append(paths, filepath.Clean(p))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = d.Name()
	m.config = config
	m.paths = paths
	m.logger = d.Logger()
	return nil
}

// Start adds the watches; it signals completion once every path is watched.
func (m *Module) Start() modboot.Starter {
	return modboot.AsyncStart(m.start)
}

func (m *Module) start(app *modboot.Application, _ *modboot.Descriptor, done func(error)) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		done(fmt.Errorf("failed to create watcher: %w", err))
		return
	}

	m.mu.Lock()
	paths := slices.Clone(m.paths)
	m.mu.Unlock()

	for _, p := range paths {
		if err := watcher.Add(p); err != nil {
			_ = watcher.Close()
			done(fmt.Errorf("failed to watch %s: %w", p, err))
			return
		}
	}

	stopped := make(chan struct{})
	m.mu.Lock()
	m.watcher = watcher
	m.stopped = stopped
	m.mu.Unlock()

	go m.loop(app, watcher, stopped)
	m.logger.Info("Watching for config changes", "paths", paths)
	done(nil)
}

func (m *Module) loop(app *modboot.Application, watcher *fsnotify.Watcher, stopped chan struct{}) {
	defer close(stopped)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			if m.config.Ignored(event.Name) {
				continue
			}
			m.schedule(app, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error("Config watcher error", "error", err)
		}
	}
}

// schedule publishes event after the debounce window, restarting the window
// on every new event for the same path.
func (m *Module) schedule(app *modboot.Application, event fsnotify.Event) {
	publish := func() {
		m.mu.Lock()
		delete(m.pending, event.Name)
		m.mu.Unlock()

		m.logger.Debug("Config changed", "path", event.Name, "op", event.Op.String())
		app.Publish(TopicConfigChanged, ChangeEvent{
			Module: m.name,
			Path:   event.Name,
			Op:     event.Op.String(),
			Time:   time.Now(),
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if timer, ok := m.pending[event.Name]; ok {
		timer.Stop()
	}
	m.pending[event.Name] = time.AfterFunc(m.config.Debounce, publish)
}

// Paths returns the resolved watched paths.
func (m *Module) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.paths)
}

// Stop closes the watcher and drops pending notifications.
func (m *Module) Stop() error {
	m.mu.Lock()
	watcher, stopped := m.watcher, m.stopped
	m.watcher = nil
	for name, timer := range m.pending {
		timer.Stop()
		delete(m.pending, name)
	}
	m.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-stopped
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}
