// Package jobmgr runs named background jobs with cancellation, lifecycle
// reporting and in-memory tracking.
//
//	jm := jobmgr.NewManager(ctx, jobmgr.LogReporter(log))
//
//	err := jm.StartAsync("renderer", func(ctx context.Context) error {
//	    // work until ctx is cancelled
//	    return nil
//	})
//
//	// on shutdown
//	jm.StopAll()
//	jm.Wait()
//
// There is no retry logic or persistence. A job that needs to reconnect does
// so inside its runner.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Job is a running unit of work. Jobs are added and removed by Manager.
type Job struct {
	Name   string
	Cancel context.CancelFunc
}

// StatusReporter receives lifecycle events for jobs:
//
//	running:renderer
//	error:renderer:connection refused
//	done:renderer
type StatusReporter func(string)

// LogReporter reports lifecycle events to log, errors at error level.
func LogReporter(log zerolog.Logger) StatusReporter {
	return func(msg string) {
		state, rest, _ := strings.Cut(msg, ":")
		name, reason, _ := strings.Cut(rest, ":")
		if state == "error" {
			log.Error().Str("job", name).Str("error", reason).Msg("job failed")
			return
		}
		log.Debug().Str("job", name).Str("state", state).Msg("job")
	}
}

// Manager starts, stops and tracks jobs. It is safe for concurrent use.
type Manager struct {
	parent   context.Context
	mu       sync.Mutex
	jobs     map[string]*Job
	wg       sync.WaitGroup
	Reporter StatusReporter
}

// NewManager creates a Manager whose jobs are cancelled with parent.
// A nil parent means context.Background. The reporter may be nil.
func NewManager(parent context.Context, reporter StatusReporter) *Manager {
	if parent == nil {
		parent = context.Background()
	}
	return &Manager{
		parent:   parent,
		jobs:     make(map[string]*Job),
		Reporter: reporter,
	}
}

// StartSync runs a job in the current goroutine and blocks until completion.
func (m *Manager) StartSync(name string, runner func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(m.parent)
	defer cancel()

	m.report("running:" + name)
	err := runner(ctx)
	m.finished(name, err)
	return err
}

// StartAsync runs a job in its own goroutine and returns immediately.
// Starting a name that is already running is an error.
func (m *Manager) StartAsync(name string, runner func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(m.parent)
	job := &Job{Name: name, Cancel: cancel}

	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("job '%s' is already running", name)
	}
	m.jobs[name] = job
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer cancel()

		m.report("running:" + name)
		err := runner(ctx)
		m.finished(name, err)

		m.mu.Lock()
		if m.jobs[name] == job {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()

	return nil
}

// Stop cancels a running job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("job '%s' not running", name)
	}

	job.Cancel()
	delete(m.jobs, name)
	return nil
}

// StopAll cancels every running job.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, job := range m.jobs {
		job.Cancel()
		delete(m.jobs, name)
	}
}

// Wait blocks until every async job has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// List returns the names of active jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	m.mu.Unlock()

	slices.Sort(out)
	return out
}

// Status returns a human-readable summary of active jobs, e.g.
// "Running jobs: renderer, sync".
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}

func (m *Manager) finished(name string, err error) {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		m.report("done:" + name)
	default:
		m.report("error:" + name + ":" + err.Error())
	}
}

func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}
