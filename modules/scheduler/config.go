// Package scheduler provides a cron scheduler module.
//
// Jobs are added in code with AddFunc, or declared in the module config; a
// declared job publishes scheduler.job on the application bus each time it
// fires, for other modules to subscribe to:
//
//	config:
//	  seconds: false
//	  location: Europe/Paris
//	  jobs:
//	    cleanup: "@every 10m"
//	    report: "0 6 * * *"
//	  jobsDir: jobs
//	  httpId: http
//
// Every *.yaml file in jobsDir, relative to the application root, holds more
// name to spec pairs. Files load in name order.
package scheduler

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/GoCodeAlone/modboot"
)

// Config defines the configuration of the scheduler module.
type Config struct {
	// Seconds enables the optional leading seconds field in job specs.
	Seconds bool

	// Location is the time zone schedules are evaluated in.
	Location *time.Location

	// Jobs maps declared job names to their specs.
	Jobs map[string]string

	// JobsDir is a directory of job files, empty when unset.
	JobsDir string
}

// ConfigFrom reads the module config.
func ConfigFrom(cfg modboot.Config) (Config, error) {
	location, err := time.LoadLocation(cfg.String("location", "UTC"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid scheduler location: %w", err)
	}

	c := Config{
		Seconds:  cfg.Bool("seconds", false),
		Location: location,
		Jobs:     make(map[string]string),
		JobsDir:  cfg.String("jobsDir", ""),
	}
	if err := c.addJobs(cfg["jobs"]); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) addJobs(raw any) error {
	switch jobs := raw.(type) {
	case nil:
	case map[string]any:
		for name, spec := range jobs {
			s, ok := spec.(string)
			if !ok {
				return fmt.Errorf("%w: job %s spec is a %T", ErrInvalidJob, name, spec)
			}
			if err := c.addJob(name, s); err != nil {
				return err
			}
		}
	case map[string]string:
		for name, spec := range jobs {
			if err := c.addJob(name, spec); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: jobs must be a map of name to spec, got %T", ErrInvalidJob, jobs)
	}
	return nil
}

func (c Config) addJob(name, spec string) error {
	if _, exists := c.Jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	c.Jobs[name] = spec
	return nil
}

// loadJobFile adds the jobs of one job file.
func (c Config) loadJobFile(_ *modboot.Application, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var jobs map[string]any
	if err := yaml.Unmarshal(data, &jobs); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	return c.addJobs(jobs)
}

// JobNames returns the declared job names, sorted.
func (c Config) JobNames() []string {
	names := make([]string, 0, len(c.Jobs))
	for name := range c.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
