package eventbus

import "errors"

var (
	// ErrEventHandlerNil is returned when subscribing a nil handler.
	ErrEventHandlerNil = errors.New("event handler cannot be nil")

	// ErrEmptyTopic is returned when subscribing to an empty topic.
	ErrEmptyTopic = errors.New("topic cannot be empty")

	// ErrHandlerPanicked wraps a panic recovered from a handler.
	ErrHandlerPanicked = errors.New("event handler panicked")
)
