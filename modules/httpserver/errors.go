package httpserver

import "errors"

var (
	// ErrInvalidPort is returned for ports outside 0-65535.
	ErrInvalidPort = errors.New("invalid port number")

	// ErrServerNotStarted is returned by Stop before the server started.
	ErrServerNotStarted = errors.New("server not started")

	// ErrNoMetricsHandler is returned when the metrics dependency does not
	// expose an HTTP handler.
	ErrNoMetricsHandler = errors.New("metrics dependency has no HTTP handler")
)
