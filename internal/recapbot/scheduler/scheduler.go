// Package scheduler runs recap jobs on a daily cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultTimezone is where the NBA schedules its game days.
const DefaultTimezone = "America/New_York"

var clockPattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

// Job is a named task. Fn receives the run time in the scheduler's location.
type Job struct {
	Name string
	Spec string // standard five-field cron expression, e.g. "0 9 * * *"
	Fn   func(ctx context.Context, at time.Time) error
}

// Scheduler runs jobs at their cron times.
type Scheduler struct {
	cron     *cron.Cron
	location *time.Location
	jobs     []Job
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a scheduler for the named timezone. An empty name uses
// DefaultTimezone.
func New(timezone string) (*Scheduler, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		location: loc,
		now:      time.Now,
		logger:   slog.Default(),
	}, nil
}

// Location returns the scheduler's timezone.
func (s *Scheduler) Location() *time.Location { return s.location }

// Add registers a job. The context passed to Start is handed to every run.
func (s *Scheduler) Add(job Job) error {
	if _, err := cron.ParseStandard(job.Spec); err != nil {
		return fmt.Errorf("parse schedule for %s: %w", job.Name, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// RunOnce executes all registered jobs once, stopping at the first error.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	at := s.now().In(s.location)
	for _, job := range s.jobs {
		if err := s.run(ctx, job, at); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) run(ctx context.Context, job Job, at time.Time) error {
	s.logger.Info("running job", "name", job.Name, "at", at.Format(time.RFC3339))
	start := time.Now()
	if err := job.Fn(ctx, at); err != nil {
		s.logger.Error("job failed", "name", job.Name, "error", err, "duration", time.Since(start))
		return err
	}
	s.logger.Info("job completed", "name", job.Name, "duration", time.Since(start))
	return nil
}

// Start runs the registered jobs on schedule until ctx is done, then waits
// for running jobs to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, job := range s.jobs {
		job := job
		_, err := s.cron.AddFunc(job.Spec, func() {
			_ = s.run(ctx, job, s.now().In(s.location))
		})
		if err != nil {
			return fmt.Errorf("add cron job %s: %w", job.Name, err)
		}
	}

	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.logger.Info("scheduler started", "next", e.Next.Format(time.RFC3339), "timezone", s.location.String())
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// DailySpec converts an "HH:MM" clock time into a daily cron expression.
func DailySpec(clock string) (string, error) {
	m := clockPattern.FindStringSubmatch(clock)
	if m == nil {
		return "", fmt.Errorf("invalid time %q (expected HH:MM)", clock)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// GameDay returns the calendar day before t in loc, which is the game day a
// morning recap covers.
func GameDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, loc)
}
