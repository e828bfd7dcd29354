package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pantrymind/pantrymind-backend/pkg/logger"
	"github.com/pantrymind/pantrymind-backend/pkg/metrics"
)

// Job names
const (
	JobExpirySweep = "expiry-sweep"
	JobAlertPass   = "alert-pass"
)

// Job is a named periodic task that never overlaps itself: a tick or manual
// trigger arriving while a run is in progress is dropped.
type Job struct {
	name    string
	run     func(ctx context.Context, now time.Time) error
	running atomic.Bool
	logger  *logger.Logger
}

// NewJob creates a new job
func NewJob(name string, run func(ctx context.Context, now time.Time) error, log *logger.Logger) *Job {
	return &Job{
		name:   name,
		run:    run,
		logger: log.WithComponent("job"),
	}
}

// Name returns the job name
func (j *Job) Name() string {
	return j.name
}

// Running reports whether a run is in progress
func (j *Job) Running() bool {
	return j.running.Load()
}

// TryRun runs the job for now unless a run is already in progress.
// It reports whether the job ran.
func (j *Job) TryRun(ctx context.Context, now time.Time) (bool, error) {
	if !j.running.CompareAndSwap(false, true) {
		metrics.JobSkips.WithLabelValues(j.name).Inc()
		j.logger.Warn().Str("job", j.name).Msg("previous run still in progress, skipping")
		return false, nil
	}
	defer j.running.Store(false)

	start := time.Now()
	err := j.run(ctx, now)
	metrics.ObserveJob(j.name, start, err)

	if err != nil {
		j.logger.Error().Err(err).Str("job", j.name).Dur("duration", time.Since(start)).Msg("job run failed")
	} else {
		j.logger.Info().Str("job", j.name).Dur("duration", time.Since(start)).Msg("job run completed")
	}
	return true, err
}

type schedule struct {
	job        *Job
	interval   time.Duration
	runOnStart bool
}

// Scheduler drives jobs on fixed intervals. The first tick of each job is
// aligned to the next multiple of its interval after local midnight, so a
// 15m job fires at :00, :15, :30 and :45 and a 24h job at midnight.
type Scheduler struct {
	location  *time.Location
	schedules []schedule
	jobs      map[string]*Job
	logger    *logger.Logger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewScheduler creates a scheduler aligning ticks in loc
func NewScheduler(loc *time.Location, log *logger.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		location: loc,
		jobs:     make(map[string]*Job),
		logger:   log.WithComponent("scheduler"),
	}
}

// Register makes a job available for manual triggering
func (s *Scheduler) Register(job *Job) {
	s.jobs[job.name] = job
}

// Schedule registers a job and runs it every interval once started.
// runOnStart triggers one run immediately on Start.
func (s *Scheduler) Schedule(job *Job, interval time.Duration, runOnStart bool) {
	s.Register(job)
	s.schedules = append(s.schedules, schedule{job: job, interval: interval, runOnStart: runOnStart})
}

// Job returns a registered job by name
func (s *Scheduler) Job(name string) (*Job, bool) {
	job, ok := s.jobs[name]
	return job, ok
}

// Start starts one goroutine per scheduled job
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	for _, sc := range s.schedules {
		s.wg.Add(1)
		go s.loop(ctx, sc)
	}
}

// Stop stops all job loops and waits for in-flight runs to return
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, sc schedule) {
	defer s.wg.Done()

	next := NextBoundary(time.Now(), sc.interval, s.location)
	s.logger.Info().
		Str("job", sc.job.name).
		Dur("interval", sc.interval).
		Time("first_run", next).
		Msg("job scheduled")

	if sc.runOnStart {
		s.fire(ctx, sc.job, time.Now())
	}

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case now := <-timer.C:
		s.fire(ctx, sc.job, now)
	}

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Str("job", sc.job.name).Msg("job stopped")
			return
		case now := <-ticker.C:
			s.fire(ctx, sc.job, now)
		}
	}
}

// fire runs the job in its own goroutine so a long run does not delay the
// ticker; TryRun drops the ticks that arrive meanwhile.
func (s *Scheduler) fire(ctx context.Context, job *Job, now time.Time) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = job.TryRun(ctx, now)
	}()
}

// NextBoundary returns the first instant after now that is a whole number of
// intervals past midnight of now's day in loc.
func NextBoundary(now time.Time, interval time.Duration, loc *time.Location) time.Time {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	elapsed := local.Sub(midnight)
	return midnight.Add((elapsed/interval + 1) * interval)
}
