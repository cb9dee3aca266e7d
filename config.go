package modboot

import (
	"fmt"
	"maps"
	"reflect"
	"time"

	"github.com/golobby/cast"
)

// Config is a module's configuration: caller-supplied values merged over the
// component's declared defaults.
type Config map[string]any

// DependencyIDSuffix is appended to a dependency property name to form the
// config key holding the target module name, e.g. "db" -> "dbId".
const DependencyIDSuffix = "Id"

// MergeDefaults fills every key of defaults that is absent from dst and
// returns dst, allocating it when nil. Keys already present in dst are never
// overwritten. The merge is shallow: nested maps are not merged key by key.
// Merging the same defaults twice is a no-op.
func MergeDefaults(dst, defaults Config) Config {
	if dst == nil {
		dst = make(Config, len(defaults))
	}
	for key, value := range defaults {
		if _, exists := dst[key]; !exists {
			dst[key] = value
		}
	}
	return dst
}

// Clone returns a shallow copy of c.
func (c Config) Clone() Config {
	if c == nil {
		return Config{}
	}
	return maps.Clone(c)
}

// Has reports whether key is set.
func (c Config) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// TargetName returns the module name configured for dependency property
// prop, read from the "<prop>Id" key. It returns "" when the key is absent,
// nil or empty.
func (c Config) TargetName(prop string) string {
	value, ok := c[prop+DependencyIDSuffix]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// String returns the value of key as a string, or fallback when unset.
func (c Config) String(key, fallback string) string {
	value, ok := c[key]
	if !ok || value == nil {
		return fallback
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// Int returns the value of key as an int, or fallback when unset or not
// convertible. Strings may use a 0x, 0o or 0b base prefix.
func (c Config) Int(key string, fallback int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case uint64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := cast.FromType(v, reflect.TypeOf(fallback)); err == nil {
			return n.(int)
		}
	}
	return fallback
}

// Bool returns the value of key as a bool, or fallback when unset or not
// convertible.
func (c Config) Bool(key string, fallback bool) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		if b, err := cast.FromType(v, reflect.TypeOf(fallback)); err == nil {
			return b.(bool)
		}
	}
	return fallback
}

// Duration returns the value of key as a duration. Strings are parsed with
// time.ParseDuration and bare numbers are read as milliseconds.
func (c Config) Duration(key string, fallback time.Duration) time.Duration {
	switch v := c[key].(type) {
	case time.Duration:
		return v
	case int:
		return time.Duration(v) * time.Millisecond
	case int64:
		return time.Duration(v) * time.Millisecond
	case float64:
		return time.Duration(v * float64(time.Millisecond))
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
