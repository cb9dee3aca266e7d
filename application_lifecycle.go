package modboot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GoCodeAlone/modboot/eventbus"
	"github.com/GoCodeAlone/modboot/lifecycle"
)

// Run bootstraps decls: every module is loaded and set up in declaration
// order, then started one at a time in the same order. The first failure
// aborts the run and is returned; modules that already started are left
// running. On success app.started is published.
//
// Run may be called once per Application.
func (app *Application) Run(ctx context.Context, decls []ModuleDeclaration) error {
	app.runMu.Lock()
	if app.ran {
		app.runMu.Unlock()
		return ErrApplicationAlreadyRun
	}
	app.ran = true
	app.runMu.Unlock()

	app.logger.Info("Starting...", "id", app.options.ID, "modules", len(decls))

	for _, decl := range decls {
		if err := app.setUpModule(decl); err != nil {
			return app.fail(err)
		}
	}

	for _, d := range app.registry.Modules() {
		if err := app.startModule(ctx, d); err != nil {
			return app.fail(err)
		}
	}

	elapsed := time.Since(app.options.StartTime)
	app.logger.Info(fmt.Sprintf("Started the %s environment in %d ms", app.options.Env, elapsed.Milliseconds()),
		"id", app.options.ID, "env", app.options.Env, "elapsed", elapsed)

	if pending := app.tracker.PendingNames(); len(pending) > 0 {
		app.logger.Debug("Optional dependencies still pending", "modules", pending)
	}

	app.bus.Publish(lifecycle.TopicAppStarted, lifecycle.AppStartedEvent{
		ID:   app.options.ID,
		Env:  app.options.Env,
		Time: elapsed,
	})

	return nil
}

func (app *Application) fail(err error) error {
	args := []any{"module", FailedModule(err), "error", err}
	if stack := StackTrace(err); stack != "" {
		args = append(args, "stack", stack)
	}
	app.logger.Error("Bootstrap failed", args...)
	return err
}

// setUpModule runs the registration pass for a single declaration.
func (app *Application) setUpModule(decl ModuleDeclaration) error {
	component, err := app.loader.Load(decl.Location)
	if err != nil {
		return &ModuleLoadError{Module: decl.Name, Location: decl.Location, Err: err}
	}

	d, err := app.registry.Register(decl, component)
	if err != nil {
		return err
	}

	for _, hook := range app.configHooks {
		if err := hook(d.name, d.config); err != nil {
			return app.failModule(d, &ModuleSetUpError{Module: d.name, Cause: err})
		}
	}

	d.logger.Info(fmt.Sprintf("Setting up %s...", d.name))

	if err := app.registry.MarkState(d, lifecycle.StateSettingUp); err != nil {
		return err
	}
	app.bus.Publish(lifecycle.TopicModuleSettingUp, lifecycle.ModuleEvent{Module: d.name})

	if setUpper, ok := component.(SetUpper); ok {
		if err := callSetUp(setUpper, app, d); err != nil {
			return app.failModule(d, &ModuleSetUpError{Module: d.name, Cause: err})
		}
	}

	if err := app.registry.MarkState(d, lifecycle.StateSetUp); err != nil {
		return err
	}
	app.bus.Publish(lifecycle.TopicModuleSetUp, lifecycle.ModuleEvent{Module: d.name})

	if observer, ok := component.(SetUpObserver); ok {
		if err := app.observeSetUps(d, observer); err != nil {
			return app.failModule(d, &ModuleSetUpError{Module: d.name, Cause: err})
		}
	}

	return nil
}

// observeSetUps notifies observer of every module set up before d, in setup
// order, then subscribes it to every later setup.
func (app *Application) observeSetUps(d *Descriptor, observer SetUpObserver) error {
	for _, other := range app.registry.SetUpModules() {
		if other == d {
			continue
		}
		observer.OnModuleSetUp(app, other.Info())
	}

	_, err := app.bus.Subscribe(lifecycle.TopicModuleSetUp, func(_ string, payload any) error {
		event, ok := payload.(lifecycle.ModuleEvent)
		if !ok {
			return nil
		}
		other, ok := app.registry.Lookup(event.Module)
		if !ok {
			return fmt.Errorf("%w: %s", ErrModuleNotFound, event.Module)
		}
		observer.OnModuleSetUp(app, other.Info())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe setup observer: %w", err)
	}
	return nil
}

// startModule runs the start pass for a single module.
func (app *Application) startModule(ctx context.Context, d *Descriptor) error {
	if err := ctx.Err(); err != nil {
		return app.failModule(d, &ModuleStartError{Module: d.name, Cause: err})
	}

	d.logger.Info(fmt.Sprintf("Starting %s...", d.name))
	begin := time.Now()

	if err := app.registry.MarkState(d, lifecycle.StateStarting); err != nil {
		return err
	}
	app.bus.Publish(lifecycle.TopicModuleStarting, lifecycle.ModuleEvent{Module: d.name})

	if err := app.resolver.ResolveRequired(d); err != nil {
		return app.failModule(d, err)
	}
	if _, err := app.resolver.ResolveOptional(d); err != nil {
		return app.failModule(d, &ModuleStartError{Module: d.name, Cause: err})
	}

	var err error
	if d.starter.IsAsync() {
		d.logger.Debug(fmt.Sprintf("%s module starting asynchronously...", d.name))
		err = app.startAsync(ctx, d)
	} else {
		d.logger.Debug(fmt.Sprintf("%s module starting synchronously...", d.name))
		err = app.startSync(d)
	}
	if err != nil {
		return app.failModule(d, err)
	}

	if err := app.registry.MarkState(d, lifecycle.StateStarted); err != nil {
		return err
	}
	d.logger.Debug("Module started", "elapsed", time.Since(begin))

	return nil
}

func (app *Application) startSync(d *Descriptor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ModuleStartError{Module: d.name, Cause: panicError(r)}
		}
	}()

	if startErr := d.starter.sync(app, d); startErr != nil {
		return &ModuleStartError{Module: d.name, Cause: startErr}
	}
	return nil
}

// startAsync races the module's completion signal against the start timeout
// and ctx. The first to settle wins; a completion signalled afterwards is
// ignored.
func (app *Application) startAsync(ctx context.Context, d *Descriptor) error {
	result := make(chan error, 1)
	var once sync.Once
	done := func(err error) {
		once.Do(func() { result <- err })
	}

	timer := time.NewTimer(app.options.ModuleStartTimeout)
	defer timer.Stop()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done(panicError(r))
			}
		}()
		d.starter.async(app, d, done)
	}()

	select {
	case err := <-result:
		if err != nil {
			return &ModuleStartError{Module: d.name, Cause: err}
		}
		return nil
	case <-timer.C:
		done(nil) // closes the race: later signals are no-ops
		return &ModuleStartTimeoutError{Module: d.name, Timeout: app.options.ModuleStartTimeout}
	case <-ctx.Done():
		done(nil)
		return &ModuleStartError{Module: d.name, Cause: ctx.Err()}
	}
}

func (app *Application) failModule(d *Descriptor, err error) error {
	if markErr := app.registry.MarkFailed(d, err); markErr != nil {
		app.logger.Warn("Failed to mark module failed", "module", d.name, "error", markErr)
	}
	return err
}

func callSetUp(setUpper SetUpper, app *Application, d *Descriptor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return setUpper.SetUp(app, d)
}

// Subscribe is a shorthand for app.Bus().Subscribe.
func (app *Application) Subscribe(topic string, handler eventbus.Handler) (*eventbus.Subscription, error) {
	return app.bus.Subscribe(topic, handler)
}

// Publish is a shorthand for app.Bus().Publish.
func (app *Application) Publish(topic string, payload any) {
	app.bus.Publish(topic, payload)
}
