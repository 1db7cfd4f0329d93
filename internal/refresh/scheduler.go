// Package refresh runs periodic jobs on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "kalena/internal/log"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a cron spec. Runs never overlap; a tick that
// arrives while the previous run is still busy is skipped.
type Scheduler struct {
	name    string
	spec    string
	job     Job
	timeout time.Duration

	cron *cron.Cron
	// first tracks the run kicked off by Start.
	first sync.WaitGroup

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	lastRun time.Time
	lastErr error
}

// New validates spec (standard five-field cron, or descriptors such as
// "@every 10m") and returns a stopped Scheduler.
func New(name, spec string, loc *time.Location, timeout time.Duration, job Job) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("refresh: job is nil")
	}
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	s := &Scheduler{
		name:    name,
		spec:    spec,
		job:     job,
		timeout: timeout,
		cron:    cron.New(cron.WithLocation(loc)),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("refresh: invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start kicks off one run in the background, then runs the job on schedule
// until ctx is done or Stop is called. It does not wait for the first run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	appLog.Info("scheduler started", "name", s.name, "spec", s.spec)
	s.first.Add(1)
	go func() {
		defer s.first.Done()
		s.RunNow()
	}()
	s.cron.Start()

	go func() {
		<-s.ctx.Done()
		s.Stop()
	}()
}

// Stop halts the schedule, cancels a running job and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-s.cron.Stop().Done()
	s.first.Wait()
}

// RunNow runs the job synchronously unless a run is already in progress.
// It reports whether the job ran.
func (s *Scheduler) RunNow() bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		appLog.Debug("scheduler run skipped, previous run busy", "name", s.name)
		return false
	}
	s.running = true
	parent := s.ctx
	s.mu.Unlock()

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.job(ctx)
	if err != nil {
		appLog.Error("scheduled job failed", err, "name", s.name, "elapsed", time.Since(start))
	} else {
		appLog.Debug("scheduled job done", "name", s.name, "elapsed", time.Since(start))
	}

	s.mu.Lock()
	s.running = false
	s.lastRun = start
	s.lastErr = err
	s.mu.Unlock()
	return true
}

// Last returns the start time and result of the most recent run.
func (s *Scheduler) Last() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick() {
	s.RunNow()
}
