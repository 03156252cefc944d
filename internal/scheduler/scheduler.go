package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is the work the scheduler repeats
type Job interface {
	Update(ctx context.Context, replaceLastDay bool) error
}

// Scheduler runs the dataset update on a cron schedule. A tick that fires
// while an update is still running is skipped.
type Scheduler struct {
	Cron           *cron.Cron
	Job            Job
	ReplaceLastDay bool
	Ctx            context.Context

	running atomic.Bool
	skipped atomic.Int64
}

// NewScheduler creates a scheduler evaluating cron expressions in loc.
func NewScheduler(ctx context.Context, loc *time.Location, job Job, replaceLastDay bool) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		Cron:           cron.New(cron.WithLocation(loc)),
		Job:            job,
		ReplaceLastDay: replaceLastDay,
		Ctx:            ctx,
	}
}

// Register adds the update task under a standard five-field cron expression.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.updateTask); err != nil {
		return fmt.Errorf("register update task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("Scheduler started")
}

// Stop stops the scheduler and waits for a running update to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("Scheduler stopped")
}

// RunNow executes the update immediately (for RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.updateTask()
}

// Skipped returns how many ticks were dropped because an update was running
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

func (s *Scheduler) updateTask() {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		log.Println("Previous update still running, skipping this tick")
		return
	}
	defer s.running.Store(false)

	if err := s.Ctx.Err(); err != nil {
		return
	}

	log.Println("Running scheduled update")
	began := time.Now()
	if err := s.Job.Update(s.Ctx, s.ReplaceLastDay); err != nil {
		log.Printf("Scheduled update failed: %v", err)
		return
	}
	log.Printf("Scheduled update finished in %v", time.Since(began).Round(time.Millisecond))
}
