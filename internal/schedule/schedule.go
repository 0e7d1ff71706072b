package schedule

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Parser accepts standard 5-field expressions and descriptors such as "@daily" or "@every 1h".
var Parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler fires a callback on a cron expression.
type Scheduler struct {
	spec     string
	loc      *time.Location
	schedule cron.Schedule
	cron     *cron.Cron
}

// New validates spec and registers fire. Times are evaluated in loc.
func New(spec string, loc *time.Location, fire func(time.Time)) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if loc == nil {
		loc = time.UTC
	}
	sched, err := Parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(Parser))
	if _, err := c.AddFunc(spec, func() { fire(time.Now().In(loc)) }); err != nil {
		return nil, fmt.Errorf("register schedule %q: %w", spec, err)
	}
	return &Scheduler{spec: spec, loc: loc, schedule: sched, cron: c}, nil
}

// Next reports when the schedule fires after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.loc))
}

// Start runs the scheduler until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	now := time.Now()
	next := s.Next(now)
	log.Printf("schedule: cron=%q next=%s in=%s", s.spec, next.Format("Mon Jan 2 15:04"), next.Sub(now).Round(time.Second))
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
}
