package login

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a five-field cron expression or a descriptor such as
// "@daily" or "@every 6h".
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return sched, nil
}

// Scheduler repeats a job on a cron schedule.
type Scheduler struct {
	Schedule cron.Schedule

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// NewScheduler parses expr into a Scheduler driven by the wall clock.
func NewScheduler(expr string) (*Scheduler, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	return &Scheduler{Schedule: sched, now: time.Now, after: time.After}, nil
}

// Loop runs job at every activation until ctx is cancelled. A failing run is
// logged and the loop waits for the next activation.
func (s *Scheduler) Loop(ctx context.Context, job func(context.Context) error) error {
	for {
		next := s.Schedule.Next(s.now())
		Infof("next run at %s (%s)", next.Format(TimestampLayout), humanize.Time(next))
		select {
		case <-ctx.Done():
			return nil
		case <-s.after(next.Sub(s.now())):
		}
		if err := job(ctx); err != nil {
			Errorf("scheduled run failed: %v", err)
		}
	}
}

// RunScheduled is NewScheduler followed by Loop.
func RunScheduled(ctx context.Context, expr string, job func(context.Context) error) error {
	s, err := NewScheduler(expr)
	if err != nil {
		return err
	}
	return s.Loop(ctx, job)
}
