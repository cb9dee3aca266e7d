// Package eventbus provides the in-process publish/subscribe channel used
// during an application bootstrap.
//
// Delivery is synchronous: Publish invokes every live subscriber of the topic,
// on the caller's goroutine, in the order the subscribers were added. A
// subscriber that is added while a publish is in flight is not invoked for
// that publish. A failing or panicking subscriber is reported and never stops
// delivery to the remaining subscribers.
package eventbus

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Handler receives a published payload. A returned error is reported through
// the bus ErrorReporter; it does not affect other subscribers.
type Handler func(topic string, payload any) error

// ErrorReporter receives subscriber failures. The application Logger
// satisfies it.
type ErrorReporter interface {
	Error(msg string, args ...any)
}

// Bus is a synchronous, in-process event bus.
type Bus struct {
	mu       sync.Mutex
	subs     []*Subscription
	reporter ErrorReporter
}

// New creates an empty bus. reporter may be nil, in which case subscriber
// failures are dropped silently.
func New(reporter ErrorReporter) *Bus {
	return &Bus{reporter: reporter}
}

// Subscribe registers handler for topic. topic is either an exact topic name
// or a prefix pattern ending in '*', such as "module.*".
func (b *Bus) Subscribe(topic string, handler Handler) (*Subscription, error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if handler == nil {
		return nil, ErrEventHandlerNil
	}

	sub := &Subscription{
		id:      uuid.NewString(),
		topic:   topic,
		handler: handler,
		bus:     b,
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub, nil
}

// Cancel removes sub from the bus. Cancelling twice, or cancelling a nil
// subscription, is a no-op.
func (b *Bus) Cancel(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.cancelled {
		return
	}
	sub.cancelled = true

	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			break
		}
	}
}

// Publish delivers payload to every live subscriber of topic and returns the
// number of subscribers invoked.
func (b *Bus) Publish(topic string, payload any) int {
	b.mu.Lock()
	matching := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if matchesTopic(topic, sub.topic) {
			matching = append(matching, sub)
		}
	}
	b.mu.Unlock()

	delivered := 0
	for _, sub := range matching {
		// A handler earlier in this publish may have cancelled a later one.
		if sub.isCancelled() {
			continue
		}
		delivered++
		if err := b.invoke(sub, topic, payload); err != nil && b.reporter != nil {
			b.reporter.Error("Event subscriber failed", "topic", topic, "subscription", sub.id, "error", err)
		}
	}

	return delivered
}

// Subscribers returns the number of live subscriptions matching topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, sub := range b.subs {
		if matchesTopic(topic, sub.topic) {
			n++
		}
	}
	return n
}

func (b *Bus) invoke(sub *Subscription, topic string, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanicked, r)
		}
	}()
	return sub.handler(topic, payload)
}

// matchesTopic reports whether topic is delivered to a subscription on
// pattern: either the same topic, or a pattern ending in "*" after a
// non-empty prefix, such as "module.*" for every module.<event> topic.
func matchesTopic(topic, pattern string) bool {
	prefix, wildcard := strings.CutSuffix(pattern, "*")
	if !wildcard || prefix == "" {
		return topic == pattern
	}
	return strings.HasPrefix(topic, prefix)
}
