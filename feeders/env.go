package feeders

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"unicode"

	"github.com/golobby/cast"

	"github.com/GoCodeAlone/modboot"
)

// DefaultEnvPrefix prefixes module config overrides.
const DefaultEnvPrefix = "MODBOOT"

// ErrEnvOverride is returned when an override cannot be applied to a
// module config key.
var ErrEnvOverride = errors.New("env override")

// Environ returns the process environment as a map, layered over the given
// base maps. Later bases win over earlier ones and the process environment
// wins over all of them.
func Environ(bases ...map[string]string) map[string]string {
	environ := make(map[string]string)
	for _, base := range bases {
		for k, v := range base {
			environ[k] = v
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}
	return environ
}

// EnvVarName returns the variable overriding key of module:
// <PREFIX>_<MODULE>_<KEY>, upper-cased, with every character that is not a
// letter or digit replaced by an underscore.
func EnvVarName(prefix, module, key string) string {
	return envSegment(prefix) + "_" + envSegment(module) + "_" + envSegment(key)
}

func envSegment(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return '_'
	}, s)
}

// EnvOverrides returns a config hook replacing module config values with the
// environment variables named by EnvVarName. Only keys already present in the
// config, from the declaration or the component defaults, are overridden. The
// string value is cast to the type of the value it replaces.
func EnvOverrides(prefix string, environ map[string]string) modboot.ConfigHook {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return func(module string, cfg modboot.Config) error {
		for key, current := range cfg {
			raw, ok := environ[EnvVarName(prefix, module, key)]
			if !ok {
				continue
			}
			value, err := castLike(raw, current)
			if err != nil {
				return fmt.Errorf("%w: %s.%s: %w", ErrEnvOverride, module, key, err)
			}
			cfg[key] = value
		}
		return nil
	}
}

func castLike(raw string, current any) (any, error) {
	if current == nil {
		return raw, nil
	}
	t := reflect.TypeOf(current)
	switch t.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer, reflect.Func, reflect.Chan:
		return nil, fmt.Errorf("cannot override a %s value", t.Kind())
	}
	value, err := cast.FromType(raw, t)
	if err != nil {
		return nil, fmt.Errorf("cannot convert %q to %s: %w", raw, t, err)
	}
	return value, nil
}
