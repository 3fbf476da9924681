package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every aligned interval.
type TickFunc func(ctx context.Context, bucket time.Time) error

// Job is a named tick function run on every Every-th bucket.
type Job struct {
	Name  string
	Every int
	Run   TickFunc
}

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// Offset delays each aligned tick past the bucket boundary.
	Offset time.Duration
}

// Scheduler drives aligned execution of the fetch and alert jobs.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
	}
}

// Run blocks, invoking the jobs at each aligned interval until ctx is
// cancelled. Jobs run sequentially in the order given; a failing job is
// logged and does not stop the ones after it.
func (s *Scheduler) Run(ctx context.Context, jobs ...Job) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	var tick uint64
	next := s.nextTick(s.now())
	for {
		delay := next.Sub(s.now())
		if delay < 0 {
			next = s.nextTick(s.now())
			delay = next.Sub(s.now())
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_bucket", next).Msg("waiting for next bucket")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		bucket := s.bucketStart(next)
		s.runJobs(ctx, tick, bucket, jobs)
		tick++
		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) runJobs(ctx context.Context, tick uint64, bucket time.Time, jobs []Job) {
	for _, job := range jobs {
		if !due(job, tick) {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		s.logger.Info().Str("job", job.Name).Time("bucket", bucket).Msg("executing scheduled job")
		if err := job.Run(ctx, bucket); err != nil {
			s.logger.Error().Err(err).Str("job", job.Name).Time("bucket", bucket).Msg("job execution failed")
		}
	}
}

func due(job Job, tick uint64) bool {
	if job.Every <= 1 {
		return true
	}
	return tick%uint64(job.Every) == 0
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	bucket := now.Add(-s.opts.Offset).Truncate(s.opts.Interval).Add(s.opts.Offset)
	if !bucket.After(now) {
		bucket = bucket.Add(s.opts.Interval)
	}
	return bucket
}

func (s *Scheduler) bucketStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Add(-s.opts.Offset).Truncate(s.opts.Interval)
}
