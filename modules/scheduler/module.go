package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/modboot"
	"github.com/GoCodeAlone/modboot/modules/httpserver"
)

// JobInfo describes a scheduled job.
type JobInfo struct {
	Name string    `json:"name"`
	Spec string    `json:"spec"`
	Next time.Time `json:"next"`
	Prev time.Time `json:"prev"`
	Runs int       `json:"runs"`
}

type job struct {
	spec  string
	entry cron.EntryID
	runs  int
}

// Module runs jobs on cron schedules.
type Module struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   map[string]*job
	logger modboot.Logger
}

// NewModule creates a scheduler module.
func NewModule() *Module {
	return &Module{jobs: make(map[string]*job)}
}

// DefaultConfig returns the module defaults.
func (m *Module) DefaultConfig() modboot.Config {
	return modboot.Config{
		"seconds":  false,
		"location": "UTC",
	}
}

// SetUp creates the cron scheduler and schedules the declared jobs, including
// those of jobsDir. Nothing fires before the module starts.
func (m *Module) SetUp(app *modboot.Application, d *modboot.Descriptor) error {
	config, err := ConfigFrom(d.Config())
	if err != nil {
		return err
	}
	if config.JobsDir != "" {
		err := app.LoadDir(context.Background(), config.JobsDir, ".yaml", modboot.SyncFile(config.loadJobFile))
		if err != nil {
			return err
		}
	}

	logger := cronLogger{d.Logger()}
	opts := []cron.Option{
		cron.WithLocation(config.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	}
	if config.Seconds {
		opts = append(opts, cron.WithSeconds())
	}

	m.mu.Lock()
	m.cron = cron.New(opts...)
	m.logger = d.Logger()
	m.mu.Unlock()

	for _, name := range config.JobNames() {
		err := m.AddFunc(name, config.Jobs[name], func() {
			app.Publish(TopicJobFired, JobFiredEvent{Job: name, Time: time.Now()})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Start starts the scheduler.
func (m *Module) Start() modboot.Starter {
	return modboot.SyncStart(func(*modboot.Application, *modboot.Descriptor) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.cron.Start()
		m.logger.Info("Scheduler started", "jobs", len(m.jobs))
		return nil
	})
}

// OptionalDependencies exposes GET /jobs on the HTTP server configured as
// httpId once it has started.
func (m *Module) OptionalDependencies() []modboot.OptionalDependency {
	return []modboot.OptionalDependency{
		modboot.Optional("http", m.mountJobs),
	}
}

func (m *Module) mountJobs(_ *modboot.Application, d *modboot.Descriptor) error {
	server, ok := modboot.DependencyAs[*httpserver.Module](d, "http")
	if !ok {
		dep, _ := d.Dependency("http")
		return fmt.Errorf("http dependency is a %T, not an HTTP server module", dep)
	}
	server.Router().Get("/jobs", m.serveJobs)
	return nil
}

func (m *Module) serveJobs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.Jobs())
}

// AddFunc schedules fn under name. spec is a standard cron spec, or a
// descriptor such as "@every 1m"; with seconds enabled it has six fields.
func (m *Module) AddFunc(name, spec string, fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cron == nil {
		return ErrNotSetUp
	}
	if _, exists := m.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	j := &job{spec: spec}
	entry, err := m.cron.AddFunc(spec, func() {
		m.mu.Lock()
		j.runs++
		m.mu.Unlock()
		fn()
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidJob, name, err)
	}
	j.entry = entry
	m.jobs[name] = j
	m.logger.Debug("Job scheduled", "job", name, "spec", spec)
	return nil
}

// Remove unschedules the job registered under name.
func (m *Module) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[name]
	if !ok {
		return false
	}
	m.cron.Remove(j.entry)
	delete(m.jobs, name)
	return true
}

// Jobs returns the scheduled jobs, sorted by name.
func (m *Module) Jobs() []JobInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]JobInfo, 0, len(m.jobs))
	for name, j := range m.jobs {
		entry := m.cron.Entry(j.entry)
		infos = append(infos, JobInfo{
			Name: name,
			Spec: j.spec,
			Next: entry.Next,
			Prev: entry.Prev,
			Runs: j.runs,
		})
	}
	sort.Slice(infos, func(i, k int) bool { return infos[i].Name < infos[k].Name })
	return infos
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (m *Module) Stop(ctx context.Context) error {
	m.mu.Lock()
	c := m.cron
	m.mu.Unlock()
	if c == nil {
		return ErrNotSetUp
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts a modboot logger to cron's logger.
type cronLogger struct {
	logger modboot.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
