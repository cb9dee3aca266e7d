package eventbus

// Subscription is the cancellation handle returned by Bus.Subscribe.
type Subscription struct {
	id        string
	topic     string
	handler   Handler
	bus       *Bus
	cancelled bool // guarded by bus.mu
}

// ID returns the unique identifier of the subscription.
func (s *Subscription) ID() string {
	return s.id
}

// Topic returns the topic or topic pattern subscribed to.
func (s *Subscription) Topic() string {
	return s.topic
}

// Cancel removes the subscription from its bus. It is idempotent.
func (s *Subscription) Cancel() {
	s.bus.Cancel(s)
}

// Cancelled reports whether the subscription has been cancelled.
func (s *Subscription) Cancelled() bool {
	return s.isCancelled()
}

func (s *Subscription) isCancelled() bool {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return s.cancelled
}
