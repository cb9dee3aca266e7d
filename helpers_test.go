package modboot

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type logEntry struct {
	level string
	msg   string
	args  []any
}

// recordingLogger keeps every log call for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *recordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }

func (l *recordingLogger) has(level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && strings.Contains(e.msg, substr) {
			return true
		}
	}
	return false
}

// arg returns the value logged under key by the first entry at level whose
// message contains substr.
func (l *recordingLogger) arg(level, substr, key string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level != level || !strings.Contains(e.msg, substr) {
			continue
		}
		for i := 0; i+1 < len(e.args); i += 2 {
			if e.args[i] == key {
				return e.args[i+1], true
			}
		}
	}
	return nil, false
}

// plainComponent only implements the required part of the contract.
type plainComponent struct {
	starter Starter
}

func (c *plainComponent) Start() Starter { return c.starter }

// testComponent implements every optional capability except SetUpObserver.
type testComponent struct {
	defaults Config
	setUp    func(app *Application, d *Descriptor) error
	starter  Starter
	required []string
	optional []OptionalDependency
}

func (c *testComponent) Start() Starter        { return c.starter }
func (c *testComponent) DefaultConfig() Config { return c.defaults }

func (c *testComponent) SetUp(app *Application, d *Descriptor) error {
	if c.setUp == nil {
		return nil
	}
	return c.setUp(app, d)
}

func (c *testComponent) RequiredDependencies() []string           { return c.required }
func (c *testComponent) OptionalDependencies() []OptionalDependency { return c.optional }

// observingComponent records every OnModuleSetUp notification.
type observingComponent struct {
	testComponent
	mu   sync.Mutex
	seen []string
}

func (c *observingComponent) OnModuleSetUp(_ *Application, info ModuleInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, info.Name)
}

func (c *observingComponent) observed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}

// startRecorder collects module names in the order their start ran.
type startRecorder struct {
	mu    sync.Mutex
	order []string
}

func (r *startRecorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, name)
}

func (r *startRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func (r *startRecorder) syncStart() Starter {
	return SyncStart(func(_ *Application, d *Descriptor) error {
		r.add(d.Name())
		return nil
	})
}

func (r *startRecorder) asyncStart() Starter {
	return AsyncStart(func(_ *Application, d *Descriptor, done func(error)) {
		r.add(d.Name())
		done(nil)
	})
}

// testModule pairs a declaration with the component its location loads.
type testModule struct {
	decl      ModuleDeclaration
	component Component
}

func module(name string, c Component, cfg Config) testModule {
	return testModule{
		decl:      ModuleDeclaration{Name: name, Location: "./modules/" + name, Config: cfg},
		component: c,
	}
}

// newTestApp builds an application whose catalog serves the given modules
// and returns it with their declarations, in order.
func newTestApp(t *testing.T, modules []testModule, opts ...Option) (*Application, []ModuleDeclaration, *recordingLogger) {
	t.Helper()

	catalog := NewCatalog()
	decls := make([]ModuleDeclaration, 0, len(modules))
	for _, m := range modules {
		c := m.component
		if err := catalog.Register(m.decl.Location, func() Component { return c }); err != nil {
			// The same location may back several declarations.
			require.ErrorIs(t, err, ErrDuplicateLocation, fmt.Sprintf("register %s", m.decl.Location))
		}
		decls = append(decls, m.decl)
	}

	logger := &recordingLogger{}
	app, err := New(append([]Option{WithLogger(logger), WithLoader(catalog)}, opts...)...)
	require.NoError(t, err)
	return app, decls, logger
}
