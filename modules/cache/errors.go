package cache

import "errors"

var (
	ErrNotConnected = errors.New("cache is not connected")
	ErrEmptyKey     = errors.New("cache key cannot be empty")
)
