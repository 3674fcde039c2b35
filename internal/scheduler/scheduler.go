// Package scheduler runs the bot's periodic maintenance work: expired
// reward sweeps, change detection ticks and database snapshots. Each task
// runs on its own ticker; one task failing or panicking never takes down
// the others.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is a named periodic job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler owns a set of tasks and their goroutines.
type Scheduler struct {
	tasks []Task
	wg    sync.WaitGroup
}

func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a task. Must be called before Start.
func (s *Scheduler) Add(name string, interval time.Duration, run func(ctx context.Context) error) {
	s.tasks = append(s.tasks, Task{Name: name, Interval: interval, Run: run})
}

// Start launches one goroutine per task. Tasks stop when ctx is cancelled;
// use Wait to block until they have drained.
func (s *Scheduler) Start(ctx context.Context) {
	for _, task := range s.tasks {
		s.wg.Add(1)
		go func(t Task) {
			defer s.wg.Done()
			s.loop(ctx, t)
		}(task)
	}
}

// Wait blocks until every task goroutine has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	log.Info().Str("task", t.Name).Dur("interval", t.Interval).Msg("Periodic task started")
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("task", t.Name).Msg("Periodic task stopped")
			return
		case <-ticker.C:
			s.tick(ctx, t)
		}
	}
}

// tick runs one iteration, containing both errors and panics. A crashing
// tick is logged and the ticker keeps going.
func (s *Scheduler) tick(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("task", t.Name).Interface("panic", r).Msg("Periodic task panicked")
		}
	}()
	if err := t.Run(ctx); err != nil {
		log.Error().Err(err).Str("task", t.Name).Msg("Periodic task failed")
	}
}
