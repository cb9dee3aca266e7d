package modboot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/modboot/lifecycle"
)

func TestRunStartsModulesInRegistrationOrder(t *testing.T) {
	rec := &startRecorder{}
	app, decls, logger := newTestApp(t, []testModule{
		module("sync1", &plainComponent{starter: rec.syncStart()}, nil),
		module("async", &plainComponent{starter: rec.asyncStart()}, nil),
		module("sync2", &plainComponent{starter: rec.syncStart()}, nil),
	})

	require.NoError(t, app.Run(context.Background(), decls))

	assert.Equal(t, []string{"sync1", "async", "sync2"}, rec.names())
	assert.Equal(t, []string{"sync1", "async", "sync2"}, app.StartedModules())
	assert.True(t, logger.has("info", "Started the development environment in"))
	for _, name := range []string{"sync1", "async", "sync2"} {
		d, ok := app.Module(name)
		require.True(t, ok)
		assert.Equal(t, lifecycle.StateStarted, d.State())
	}
}

func TestRunSyncFailureHaltsTheRun(t *testing.T) {
	rec := &startRecorder{}
	errExploded := errors.New("exploded")
	app, decls, logger := newTestApp(t, []testModule{
		module("a", &plainComponent{starter: rec.syncStart()}, nil),
		module("b", &plainComponent{starter: SyncStart(func(*Application, *Descriptor) error {
			return errExploded
		})}, nil),
		module("c", &plainComponent{starter: rec.syncStart()}, nil),
	})

	err := app.Run(context.Background(), decls)

	var startErr *ModuleStartError
	require.ErrorAs(t, err, &startErr)
	assert.Equal(t, "b", startErr.Module)
	assert.ErrorIs(t, err, errExploded)
	assert.ErrorIs(t, err, ErrModuleStart)

	assert.Equal(t, []string{"a"}, rec.names(), "c never starts")
	assert.Equal(t, []string{"a"}, app.StartedModules(), "a is not rolled back")
	b, _ := app.Module("b")
	assert.Equal(t, lifecycle.StateFailed, b.State())
	c, _ := app.Module("c")
	assert.Equal(t, lifecycle.StateSetUp, c.State())
	assert.True(t, logger.has("error", "Bootstrap failed"))
	assert.False(t, logger.has("info", "Started the"))
}

func TestRunSyncPanicBecomesStartError(t *testing.T) {
	app, decls, _ := newTestApp(t, []testModule{
		module("a", &plainComponent{starter: SyncStart(func(*Application, *Descriptor) error {
			panic("kaboom")
		})}, nil),
	})

	err := app.Run(context.Background(), decls)

	var startErr *ModuleStartError
	require.ErrorAs(t, err, &startErr)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRunPanicLogsTheStack(t *testing.T) {
	tests := []struct {
		name    string
		starter Starter
	}{
		{"sync", SyncStart(func(*Application, *Descriptor) error {
			var counts map[string]int
			counts["a"]++
			return nil
		})},
		{"async", AsyncStart(func(*Application, *Descriptor, func(error)) {
			panic("kaboom")
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, decls, logger := newTestApp(t, []testModule{
				module("p", &plainComponent{starter: tt.starter}, nil),
			})

			err := app.Run(context.Background(), decls)
			require.Error(t, err)

			var panicErr *PanicError
			require.ErrorAs(t, err, &panicErr)
			assert.Contains(t, StackTrace(err), "goroutine")
			assert.Contains(t, StackTrace(err), "TestRunPanicLogsTheStack")

			stack, ok := logger.arg("error", "Bootstrap failed", "stack")
			require.True(t, ok, "the failure log carries the stack")
			assert.Equal(t, StackTrace(err), stack)
		})
	}
}

func TestRunSetUpPanicLogsTheStack(t *testing.T) {
	app, decls, logger := newTestApp(t, []testModule{
		module("p", &testComponent{
			starter: syncNoop(),
			setUp:   func(*Application, *Descriptor) error { panic("no config") },
		}, nil),
	})

	err := app.Run(context.Background(), decls)

	assert.ErrorIs(t, err, ErrModuleSetUp)
	assert.NotEmpty(t, StackTrace(err))
	_, ok := logger.arg("error", "Bootstrap failed", "stack")
	assert.True(t, ok)
}

func TestRunErrorWithoutPanicLogsNoStack(t *testing.T) {
	app, decls, logger := newTestApp(t, []testModule{
		module("p", &plainComponent{starter: SyncStart(func(*Application, *Descriptor) error {
			return errDiskFull
		})}, nil),
	})

	require.Error(t, app.Run(context.Background(), decls))

	_, ok := logger.arg("error", "Bootstrap failed", "stack")
	assert.False(t, ok)
}

func TestRunAsyncErrorHaltsTheRun(t *testing.T) {
	errRefused := errors.New("connection refused")
	app, decls, _ := newTestApp(t, []testModule{
		module("a", &plainComponent{starter: AsyncStart(func(_ *Application, _ *Descriptor, done func(error)) {
			go done(errRefused)
		})}, nil),
		module("b", &plainComponent{starter: syncNoop()}, nil),
	})

	err := app.Run(context.Background(), decls)

	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, "a", FailedModule(err))
	assert.Empty(t, app.StartedModules())
}

func TestRunAsyncTimeout(t *testing.T) {
	release := make(chan struct{})
	signalled := make(chan struct{})
	app, decls, _ := newTestApp(t, []testModule{
		module("slow", &plainComponent{starter: AsyncStart(func(_ *Application, _ *Descriptor, done func(error)) {
			go func() {
				<-release
				done(nil)
				close(signalled)
			}()
		})}, nil),
		module("next", &plainComponent{starter: syncNoop()}, nil),
	}, WithModuleStartTimeout(20*time.Millisecond))

	start := time.Now()
	err := app.Run(context.Background(), decls)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)

	var timeout *ModuleStartTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "slow", timeout.Module)
	assert.Equal(t, int64(20), timeout.TimeoutMs())
	assert.Contains(t, err.Error(), "slow module failed to start in the allowed time of")

	// A completion signalled after the timeout has no effect.
	close(release)
	<-signalled
	slow, _ := app.Module("slow")
	assert.Equal(t, lifecycle.StateFailed, slow.State())
	assert.Empty(t, app.StartedModules())
}

func TestRunAsyncSignalledTwiceKeepsTheFirst(t *testing.T) {
	app, decls, _ := newTestApp(t, []testModule{
		module("a", &plainComponent{starter: AsyncStart(func(_ *Application, _ *Descriptor, done func(error)) {
			done(nil)
			done(errors.New("too late"))
		})}, nil),
	})

	require.NoError(t, app.Run(context.Background(), decls))
	assert.Equal(t, []string{"a"}, app.StartedModules())
}

func TestRunAsyncContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	app, decls, _ := newTestApp(t, []testModule{
		module("stuck", &plainComponent{starter: AsyncStart(func(_ *Application, _ *Descriptor, _ func(error)) {
			cancel()
		})}, nil),
	}, WithModuleStartTimeout(time.Minute))

	err := app.Run(ctx, decls)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "stuck", FailedModule(err))
}

func TestRunCancelledContextStopsBeforeStarting(t *testing.T) {
	rec := &startRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	app, decls, _ := newTestApp(t, []testModule{
		module("a", &plainComponent{starter: rec.syncStart()}, nil),
	})

	err := app.Run(ctx, decls)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.names())
}

func TestRunPublishesLifecycleEventsInOrder(t *testing.T) {
	app, decls, _ := newTestApp(t, []testModule{
		module("a", &plainComponent{starter: syncNoop()}, nil),
		module("b", &plainComponent{starter: syncNoop()}, nil),
	})

	var mu sync.Mutex
	var events []string
	record := func(topic string, payload any) error {
		mu.Lock()
		defer mu.Unlock()
		switch p := payload.(type) {
		case lifecycle.ModuleEvent:
			events = append(events, topic+":"+p.Module)
		case string:
			events = append(events, topic+":"+p)
		default:
			events = append(events, topic)
		}
		return nil
	}
	_, err := app.Subscribe(lifecycle.TopicModuleAll, record)
	require.NoError(t, err)
	_, err = app.Subscribe(lifecycle.TopicAppStarted, record)
	require.NoError(t, err)

	require.NoError(t, app.Run(context.Background(), decls))

	assert.Equal(t, []string{
		"module.settingUp:a", "module.setUp:a",
		"module.settingUp:b", "module.setUp:b",
		"module.starting:a", "module.started:a",
		"module.starting:b", "module.started:b",
		"app.started",
	}, events)
}

func TestRunAppStartedPayload(t *testing.T) {
	startTime := time.Now().Add(-50 * time.Millisecond)
	app, decls, _ := newTestApp(t, []testModule{
		module("a", &plainComponent{starter: syncNoop()}, nil),
	}, WithID("shop"), WithEnv("production"), WithStartTime(startTime))

	var got []lifecycle.AppStartedEvent
	_, err := app.Subscribe(lifecycle.TopicAppStarted, func(_ string, payload any) error {
		got = append(got, payload.(lifecycle.AppStartedEvent))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, app.Run(context.Background(), decls))

	require.Len(t, got, 1)
	assert.Equal(t, "shop", got[0].ID)
	assert.Equal(t, "production", got[0].Env)
	assert.GreaterOrEqual(t, got[0].Time, 50*time.Millisecond)
}

func TestRunNoModules(t *testing.T) {
	app, _, _ := newTestApp(t, nil)
	published := 0
	_, err := app.Subscribe(lifecycle.TopicAppStarted, func(string, any) error {
		published++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, app.Run(context.Background(), nil))
	assert.Equal(t, 1, published)
}

func TestRunOnlyOnce(t *testing.T) {
	app, decls, _ := newTestApp(t, []testModule{
		module("a", &plainComponent{starter: syncNoop()}, nil),
	})

	require.NoError(t, app.Run(context.Background(), decls))
	assert.ErrorIs(t, app.Run(context.Background(), decls), ErrApplicationAlreadyRun)
}

func TestRunSetUpHappensBeforeAnyStart(t *testing.T) {
	var order []string
	component := func(name string) *testComponent {
		return &testComponent{
			setUp: func(*Application, *Descriptor) error {
				order = append(order, "setUp:"+name)
				return nil
			},
			starter: SyncStart(func(*Application, *Descriptor) error {
				order = append(order, "start:"+name)
				return nil
			}),
		}
	}
	app, decls, _ := newTestApp(t, []testModule{
		module("a", component("a"), nil),
		module("b", component("b"), nil),
	})

	require.NoError(t, app.Run(context.Background(), decls))
	assert.Equal(t, []string{"setUp:a", "setUp:b", "start:a", "start:b"}, order)
}

func TestRunDefaultsAndConfigHooks(t *testing.T) {
	var seen Config
	app, decls, _ := newTestApp(t, []testModule{
		module("db", &testComponent{
			defaults: Config{"host": "localhost", "port": 5432, "pool": 4},
			setUp: func(_ *Application, d *Descriptor) error {
				seen = d.Config().Clone()
				return nil
			},
			starter: syncNoop(),
		}, Config{"port": 6543}),
	}, WithConfigHooks(func(module string, cfg Config) error {
		if module == "db" {
			cfg["pool"] = 16
		}
		return nil
	}))

	require.NoError(t, app.Run(context.Background(), decls))
	assert.Equal(t, Config{"host": "localhost", "port": 6543, "pool": 16}, seen)
}

func TestRunConfigHookError(t *testing.T) {
	errBadEnv := errors.New("bad override")
	app, decls, _ := newTestApp(t, []testModule{
		module("db", &plainComponent{starter: syncNoop()}, nil),
	}, WithConfigHooks(func(string, Config) error { return errBadEnv }))

	err := app.Run(context.Background(), decls)

	var setUpErr *ModuleSetUpError
	require.ErrorAs(t, err, &setUpErr)
	assert.ErrorIs(t, err, errBadEnv)
}

func TestRunLoadFailure(t *testing.T) {
	app, _, _ := newTestApp(t, nil)

	err := app.Run(context.Background(), []ModuleDeclaration{{Name: "ghost", Location: "./nowhere"}})

	var loadErr *ModuleLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "ghost", loadErr.Module)
	assert.Equal(t, "./nowhere", loadErr.Location)
	assert.ErrorIs(t, err, ErrLocationNotFound)
}

func TestRunInvalidComponent(t *testing.T) {
	app, decls, _ := newTestApp(t, []testModule{
		module("broken", &plainComponent{}, nil),
	})

	err := app.Run(context.Background(), decls)

	var invalid *InvalidComponentError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, err.Error(), "broken is not a valid module")
}

func TestRunDuplicateModuleName(t *testing.T) {
	app, decls, _ := newTestApp(t, []testModule{
		module("db", &plainComponent{starter: syncNoop()}, nil),
		module("db", &plainComponent{starter: syncNoop()}, nil),
	})

	err := app.Run(context.Background(), decls)
	assert.ErrorIs(t, err, ErrDuplicateModule)
	assert.Empty(t, app.StartedModules())
}

func TestRunSetUpFailure(t *testing.T) {
	rec := &startRecorder{}
	errNoSchema := errors.New("schema missing")
	app, decls, _ := newTestApp(t, []testModule{
		module("a", &testComponent{starter: rec.syncStart()}, nil),
		module("b", &testComponent{
			starter: rec.syncStart(),
			setUp:   func(*Application, *Descriptor) error { return errNoSchema },
		}, nil),
	})

	err := app.Run(context.Background(), decls)

	assert.ErrorIs(t, err, errNoSchema)
	assert.ErrorIs(t, err, ErrModuleSetUp)
	assert.Equal(t, "b", FailedModule(err))
	assert.Empty(t, rec.names(), "nothing starts when setup fails")
}

func TestRunRequiredDependencyMustStartFirst(t *testing.T) {
	rec := &startRecorder{}
	app, decls, _ := newTestApp(t, []testModule{
		module("A", &testComponent{starter: rec.syncStart(), required: []string{"b"}}, Config{"bId": "B"}),
		module("B", &plainComponent{starter: rec.syncStart()}, nil),
	})

	err := app.Run(context.Background(), decls)

	var missing *MissingRequiredDependencyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "A", missing.Module)
	assert.Equal(t, "b", missing.Dependency)
	assert.Equal(t, "B", missing.Target)
	assert.Empty(t, rec.names())
}

func TestRunRequiredDependencyResolved(t *testing.T) {
	db := &plainComponent{starter: syncNoop()}
	var resolved Component
	app, decls, _ := newTestApp(t, []testModule{
		module("postgres", db, nil),
		module("api", &testComponent{
			required: []string{"db"},
			starter: SyncStart(func(_ *Application, d *Descriptor) error {
				resolved, _ = d.Dependency("db")
				return nil
			}),
		}, Config{"dbId": "postgres"}),
	})

	require.NoError(t, app.Run(context.Background(), decls))
	assert.Same(t, db, resolved)
}

func TestRunOptionalDependencyWiredAfterLaterStart(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	wired := 0
	app, decls, _ := newTestApp(t, []testModule{
		module("A", &testComponent{
			optional: []OptionalDependency{
				Optional("b", func(_ *Application, d *Descriptor) error {
					_, ok := d.Dependency("b")
					assert.True(t, ok)
					wired++
					record("wire")
					return nil
				}),
			},
			starter: SyncStart(func(*Application, *Descriptor) error {
				record("start:A")
				return nil
			}),
		}, Config{"bId": "B"}),
		module("B", &plainComponent{starter: SyncStart(func(*Application, *Descriptor) error {
			record("start:B")
			return nil
		})}, nil),
	})

	require.NoError(t, app.Run(context.Background(), decls))

	assert.Equal(t, 1, wired)
	assert.Equal(t, []string{"start:A", "start:B", "wire"}, order)
	assert.Zero(t, app.Tracker().Pending())
}

func TestRunUnresolvedOptionalDependencyIsNotFatal(t *testing.T) {
	wired := false
	app, decls, logger := newTestApp(t, []testModule{
		module("A", &testComponent{
			optional: []OptionalDependency{
				Optional("b", func(*Application, *Descriptor) error {
					wired = true
					return nil
				}),
			},
			starter: syncNoop(),
		}, Config{"bId": "never"}),
	})

	require.NoError(t, app.Run(context.Background(), decls))
	assert.False(t, wired)
	assert.Equal(t, []string{"never"}, app.Tracker().PendingNames())
	assert.True(t, logger.has("debug", "Optional dependencies still pending"))
}

func TestRunOnModuleSetUpIsRetroactiveAndProspective(t *testing.T) {
	observer := &observingComponent{testComponent: testComponent{starter: syncNoop()}}
	app, decls, _ := newTestApp(t, []testModule{
		module("a", &plainComponent{starter: syncNoop()}, nil),
		module("b", &plainComponent{starter: syncNoop()}, nil),
		module("watcher", observer, nil),
		module("c", &plainComponent{starter: syncNoop()}, nil),
		module("d", &plainComponent{starter: syncNoop()}, nil),
	})

	require.NoError(t, app.Run(context.Background(), decls))
	assert.Equal(t, []string{"a", "b", "c", "d"}, observer.observed())
}

func TestOnModuleReady(t *testing.T) {
	app, decls, _ := newTestApp(t, []testModule{
		module("a", &plainComponent{starter: syncNoop()}, nil),
		module("b", &plainComponent{starter: syncNoop()}, nil),
	})

	fired := 0
	require.NoError(t, app.OnModuleReady([]string{"a", "", "b"}, func() { fired++ }))
	never := false
	require.NoError(t, app.OnModuleReady([]string{""}, func() { never = true }))

	require.NoError(t, app.Run(context.Background(), decls))

	assert.Equal(t, 1, fired)
	assert.False(t, never)

	late := 0
	require.NoError(t, app.OnModuleReady([]string{"a"}, func() { late++ }))
	assert.Equal(t, 1, late, "already started modules resolve synchronously")
}

func TestModuleLoggerCarriesModuleName(t *testing.T) {
	app, decls, logger := newTestApp(t, []testModule{
		module("db", &plainComponent{starter: SyncStart(func(_ *Application, d *Descriptor) error {
			d.Logger().Info("connected")
			return nil
		})}, nil),
	})

	require.NoError(t, app.Run(context.Background(), decls))

	logger.mu.Lock()
	defer logger.mu.Unlock()
	for _, e := range logger.entries {
		if e.msg == "connected" {
			assert.Equal(t, []any{"module", "db"}, e.args)
			return
		}
	}
	t.Fatal("module log entry not found")
}
