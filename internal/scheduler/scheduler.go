// Package scheduler runs named periodic tasks on cron expressions.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

var (
	// ErrTaskRunning is returned when a task is triggered while its previous
	// run is still active
	ErrTaskRunning = fmt.Errorf("task is already running: %w", utils.ErrConflict)
	// ErrUnknownTask is returned by RunNow for names that were never registered
	ErrUnknownTask = fmt.Errorf("unknown task: %w", utils.ErrNotFound)
)

// Task is a unit of periodic work
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	task    Task
	spec    string
	id      cron.EntryID
	running atomic.Bool
}

// Scheduler triggers registered tasks from cron expressions with a seconds
// field. A task never overlaps with itself: a trigger that arrives while the
// previous run is active is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *utils.Logger

	mu    sync.RWMutex
	tasks map[string]*entry
}

// New creates a scheduler evaluating cron expressions in loc
func New(logger *utils.Logger, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cronLogger := utils.NewCronLogger(logger)

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		logger: logger.Named("scheduler"),
		tasks:  make(map[string]*entry),
	}
}

// Register adds a task triggered by spec
func (s *Scheduler) Register(spec string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := task.Name()
	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}

	e := &entry{task: task, spec: spec}
	id, err := s.cron.AddFunc(spec, func() {
		// errors are logged by run
		_ = s.run(context.Background(), e)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for task %q: %w", spec, name, err)
	}
	e.id = id
	s.tasks[name] = e

	s.logger.Info("Registered task", zap.String("task", name), zap.String("spec", spec))
	return nil
}

// Start begins triggering tasks in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop prevents further triggers and waits for running timer triggered tasks
// to finish, or for ctx to be done
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow runs the named task synchronously
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	e, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return s.run(ctx, e)
}

// Tasks returns the registered task names in order
func (s *Scheduler) Tasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Next returns the next trigger time of the named task
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.RLock()
	e, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(e.id).Next, true
}

func (s *Scheduler) run(ctx context.Context, e *entry) error {
	name := e.task.Name()
	if !e.running.CompareAndSwap(false, true) {
		s.logger.Warn("Skipping task, previous run still active", zap.String("task", name))
		return ErrTaskRunning
	}
	defer e.running.Store(false)

	start := time.Now()
	err := e.task.Run(ctx)
	if err != nil {
		s.logger.Error("Task failed", zap.String("task", name), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return err
	}

	s.logger.Debug("Task completed", zap.String("task", name), zap.Duration("duration", time.Since(start)))
	return nil
}
