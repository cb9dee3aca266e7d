// Package configwatcher provides a module watching files and directories
// with fsnotify and publishing config.changed on the application bus.
package configwatcher

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/GoCodeAlone/modboot"
)

// DefaultDebounce coalesces bursts of events on the same path.
const DefaultDebounce = 100 * time.Millisecond

// Config errors.
var (
	ErrNoPaths        = errors.New("no paths to watch")
	ErrInvalidPattern = errors.New("invalid ignore pattern")
)

// DefaultIgnore skips editor swap and backup files.
const DefaultIgnore = "*.swp,*~,.#*"

// Config defines the configuration of the config watcher module.
//
//	config:
//	  paths: [config/app.yaml, config/routes]
//	  ignore: ["*.tmp", "*.swp"]
//	  debounce: 250ms
type Config struct {
	Paths    []string
	Ignore   []string
	Debounce time.Duration

	ignore []glob.Glob
}

// ConfigFrom reads the module config. Paths and ignore patterns may be a
// list or a comma-separated string.
func ConfigFrom(cfg modboot.Config) (Config, error) {
	paths, err := stringList(cfg, "paths")
	if err != nil {
		return Config{}, err
	}
	if len(paths) == 0 {
		return Config{}, ErrNoPaths
	}

	patterns, err := stringList(cfg, "ignore")
	if err != nil {
		return Config{}, err
	}
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return Config{}, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
		}
		globs = append(globs, g)
	}

	debounce := cfg.Duration("debounce", DefaultDebounce)
	if debounce < 0 {
		debounce = 0
	}
	return Config{Paths: paths, Ignore: patterns, Debounce: debounce, ignore: globs}, nil
}

// Ignored reports whether the base name of path matches an ignore pattern.
func (c Config) Ignored(path string) bool {
	name := filepath.Base(path)
	for _, g := range c.ignore {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func stringList(cfg modboot.Config, key string) ([]string, error) {
	var list []string
	switch v := cfg[key].(type) {
	case nil:
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				list = append(list, s)
			}
		}
	case []string:
		list = append(list, v...)
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s entries must be strings, got %T", key, item)
			}
			list = append(list, s)
		}
	default:
		return nil, fmt.Errorf("%s must be a list of strings, got %T", key, v)
	}
	return list, nil
}
