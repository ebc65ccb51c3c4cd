// Package schedule runs the periodic background jobs (feed refresh, timeline
// snapshots) on cron schedules in the configured timezone.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "hackcal/internal/log"
)

// Job is a named unit of background work.
type Job struct {
	Name string
	// Spec is a standard 5-field cron expression, e.g. "*/30 * * * *".
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler wraps a cron instance. Runs of the same job never overlap; a
// tick that arrives while the previous run is still busy is skipped.
type Scheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	jobs    []Job
	entries map[string]cron.EntryID
	ctx     context.Context
}

// New creates a scheduler evaluating specs in loc.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		entries: make(map[string]cron.EntryID),
		ctx:     context.Background(),
	}
}

// Add registers job. An invalid spec is an error; jobs are not started until
// Start is called.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("schedule: job needs a name and a run func")
	}
	if _, err := cron.ParseStandard(job.Spec); err != nil {
		return fmt.Errorf("schedule: job %s: invalid spec %q: %w", job.Name, job.Spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[job.Name]; dup {
		return fmt.Errorf("schedule: duplicate job %s", job.Name)
	}
	id, err := s.cron.AddFunc(job.Spec, func() { s.runJob(s.runContext(), job) })
	if err != nil {
		return fmt.Errorf("schedule: job %s: %w", job.Name, err)
	}
	s.entries[job.Name] = id
	s.jobs = append(s.jobs, job)
	return nil
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// RunAll runs every registered job once, in registration order, and returns
// the joined errors.
func (s *Scheduler) RunAll(ctx context.Context) error {
	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	var errs []error
	for _, job := range jobs {
		if err := s.runJob(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Start begins running jobs on their schedules until ctx is canceled, then
// waits for running jobs to finish.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	for _, e := range s.cron.Entries() {
		appLog.Debug("job scheduled", "entry", e.ID, "next", e.Next.Format(time.RFC3339))
	}

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		appLog.Info("scheduler stopped")
	}()
}

// Next returns the next planned run of the named job, or the zero time if
// the job is unknown or the scheduler is not running.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	start := time.Now()
	appLog.Info("job started", "job", job.Name)
	err := job.Run(ctx)
	if err != nil {
		appLog.Error("job failed", err, "job", job.Name, "elapsed", time.Since(start).String())
		return err
	}
	appLog.Info("job finished", "job", job.Name, "elapsed", time.Since(start).String())
	return nil
}

// cronLogger routes cron's own messages into the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
