package modboot

import (
	"context"
	"fmt"
	"slices"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/GoCodeAlone/modboot/eventbus"
	"github.com/GoCodeAlone/modboot/lifecycle"
)

// Observer receives the bootstrap lifecycle as CloudEvents.
type Observer interface {
	// OnEvent is called synchronously for every matching lifecycle event.
	// A returned error is logged and does not affect the bootstrap.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// CloudEvent types emitted for the lifecycle topics.
const (
	EventTypeModuleSettingUp = "com.modboot.module.settingUp"
	EventTypeModuleSetUp     = "com.modboot.module.setUp"
	EventTypeModuleStarting  = "com.modboot.module.starting"
	EventTypeModuleStarted   = "com.modboot.module.started"
	EventTypeModuleFailed    = "com.modboot.module.failed"
	EventTypeAppStarted      = "com.modboot.app.started"
)

// EventTypeForTopic returns the CloudEvent type of a lifecycle topic.
func EventTypeForTopic(topic string) string {
	return "com.modboot." + topic
}

// FunctionalObserver adapts a function to the Observer interface.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer calling handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

// OnEvent calls the handler function.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID returns the observer id.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}

// RegisterObserver subscribes observer to the lifecycle topics. When
// eventTypes is non-empty only those CloudEvent types are delivered.
// Registering an id again replaces the previous registration.
func (app *Application) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return fmt.Errorf("%w: observer is nil", eventbus.ErrEventHandlerNil)
	}
	if err := app.UnregisterObserver(observer); err != nil {
		return err
	}

	var subs []*eventbus.Subscription
	for _, topic := range lifecycle.Topics() {
		eventType := EventTypeForTopic(topic)
		if len(eventTypes) > 0 && !slices.Contains(eventTypes, eventType) {
			continue
		}

		sub, err := app.bus.Subscribe(topic, func(topic string, payload any) error {
			event, err := NewCloudEvent(eventType, "modboot/"+app.options.ID, payload, map[string]any{"topic": topic})
			if err != nil {
				return err
			}
			return observer.OnEvent(context.Background(), event)
		})
		if err != nil {
			for _, s := range subs {
				s.Cancel()
			}
			return fmt.Errorf("failed to register observer %s: %w", observer.ObserverID(), err)
		}
		subs = append(subs, sub)
	}

	app.observerMu.Lock()
	app.observers[observer.ObserverID()] = subs
	app.observerMu.Unlock()

	if app.logger != nil {
		app.logger.Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	}
	return nil
}

// UnregisterObserver removes observer. It is idempotent.
func (app *Application) UnregisterObserver(observer Observer) error {
	app.observerMu.Lock()
	subs := app.observers[observer.ObserverID()]
	delete(app.observers, observer.ObserverID())
	app.observerMu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	return nil
}

// Observers returns the ids of registered observers, sorted.
func (app *Application) Observers() []string {
	app.observerMu.Lock()
	defer app.observerMu.Unlock()

	ids := make([]string, 0, len(app.observers))
	for id := range app.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
