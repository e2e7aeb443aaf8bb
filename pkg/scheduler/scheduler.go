package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"weibocrawl/pkg/logger"
)

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler runs jobs on cron schedules. A job whose previous run is still in
// progress is skipped rather than queued.
type Scheduler struct {
	cron     *cron.Cron
	jobs     map[string]cron.EntryID
	timezone *time.Location
	logger   logger.Logger

	mu sync.Mutex
	// ctx is the parent of every scheduled run; set by Run
	ctx context.Context
}

// New creates a new scheduler with the given timezone
func New(timezone string, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if timezone == "" {
		timezone = "Local"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return &Scheduler{
		cron:     c,
		jobs:     make(map[string]cron.EntryID),
		timezone: loc,
		logger:   log,
		ctx:      context.Background(),
	}, nil
}

// Validate reports whether schedule would be accepted by AddJob
func Validate(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}

// AddJob adds a job with a cron schedule. Standard five-field expressions
// and descriptors such as "@every 6h" or "@daily" are accepted.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		s.execute(ctx, name, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.logger.InfoWithFields("Scheduled job", map[string]interface{}{
		"job":      name,
		"schedule": schedule,
		"timezone": s.timezone.String(),
	})
	return nil
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.logger.WithField("job", name).Debug("Removed job")
	}
}

// RunNow executes job immediately in the caller's goroutine
func (s *Scheduler) RunNow(ctx context.Context, name string, job Job) error {
	return s.execute(ctx, name, job)
}

func (s *Scheduler) execute(ctx context.Context, name string, job Job) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	log := s.logger.WithField("job", name)
	log.Info("Starting job")
	start := time.Now()

	err := job(ctx)
	if err != nil {
		log.WithError(err).ErrorWithFields("Job failed", map[string]interface{}{
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return err
	}
	log.InfoWithFields("Job completed", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// Run starts the schedule and blocks until ctx is done. Scheduled runs
// receive ctx, so cancelling it also stops a job in progress; Run returns
// once that job has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.logger.Info("Starting scheduler")
	s.cron.Start()
	<-ctx.Done()

	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	return nil
}

// ListJobs returns info about scheduled jobs
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()
	infos := make([]JobInfo, 0, len(entries))

	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}
	return infos
}

// NextRun returns when the named job fires next. Before Run starts the
// schedule it is computed from the current time.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	entryID, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	entry := s.cron.Entry(entryID)
	if !entry.Valid() {
		return time.Time{}, false
	}
	if !entry.Next.IsZero() {
		return entry.Next, true
	}
	return entry.Schedule.Next(time.Now().In(s.timezone)), true
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// cronLogger routes the cron library's own messages into our logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.DebugWithFields("cron: "+msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).ErrorWithFields("cron: "+msg, pairs(keysAndValues))
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
