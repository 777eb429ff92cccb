// Package sequencer runs timed MIDI work off the caller's goroutine.
//
// A Task is an ordered list of steps; each step waits its delay on the
// scheduler's clock and then runs its action. Steps of one task never
// overlap or reorder. Separate tasks are independent of each other, so two
// tasks writing to the same port interleave freely.
package sequencer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leandrodaf/midimcp/internal/logger"
	"github.com/leandrodaf/midimcp/sdk/contracts"
	"k8s.io/utils/clock"
)

// Step is one unit of scheduled work.
type Step struct {
	Delay  time.Duration // Wait before Action runs, measured from the previous step.
	Action func()        // May be nil for a trailing rest.
}

// Task is the handle of a scheduled step list.
type Task struct {
	id     string
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// ID returns the unique task identifier.
func (t *Task) ID() string { return t.id }

// Name returns the label given to Schedule.
func (t *Task) Name() string { return t.name }

// Cancel stops the task before its next step. Steps already run are not undone.
func (t *Task) Cancel() { t.cancel() }

// Done is closed when the task finished or was cancelled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Scheduler starts tasks and tracks the ones still running.
type Scheduler struct {
	clock  clock.Clock
	logger contracts.Logger

	mu    sync.Mutex
	tasks map[string]*Task
}

// New creates a scheduler on clk. A nil clk means the real clock and a nil
// log a default zap logger.
func New(clk clock.Clock, log contracts.Logger) *Scheduler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = logger.NewZapLogger()
	}
	return &Scheduler{
		clock:  clk,
		logger: log,
		tasks:  make(map[string]*Task),
	}
}

// Schedule starts steps on a new goroutine and returns immediately.
// Cancelling ctx cancels the task.
func (s *Scheduler) Schedule(ctx context.Context, name string, steps []Step) *Task {
	ctx, cancel := context.WithCancel(ctx)
	task := &Task{
		id:     uuid.NewString(),
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	s.tasks[task.id] = task
	s.mu.Unlock()

	s.logger.Debug("Task scheduled",
		s.logger.Field().String("task", task.id),
		s.logger.Field().String("name", name),
		s.logger.Field().Int("steps", len(steps)))

	go s.run(ctx, task, steps)
	return task
}

// After schedules a single action after d.
func (s *Scheduler) After(ctx context.Context, name string, d time.Duration, action func()) *Task {
	return s.Schedule(ctx, name, []Step{{Delay: d, Action: action}})
}

func (s *Scheduler) run(ctx context.Context, task *Task, steps []Step) {
	defer close(task.done)
	defer task.cancel()
	defer func() {
		s.mu.Lock()
		delete(s.tasks, task.id)
		s.mu.Unlock()
	}()

	for i, step := range steps {
		if step.Delay > 0 {
			select {
			case <-s.clock.After(step.Delay):
			case <-ctx.Done():
				s.logger.Debug("Task cancelled",
					s.logger.Field().String("task", task.id),
					s.logger.Field().Int("step", i))
				return
			}
		} else if ctx.Err() != nil {
			return
		}

		if step.Action != nil {
			step.Action()
		}
	}

	s.logger.Debug("Task finished", s.logger.Field().String("task", task.id))
}

// Active returns the number of tasks still running.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Wait blocks until no task is running or ctx is done. Tasks scheduled
// while waiting are waited for as well.
func (s *Scheduler) Wait(ctx context.Context) error {
	for {
		task := s.anyTask()
		if task == nil {
			return nil
		}
		select {
		case <-task.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Shutdown cancels every running task and waits for their goroutines.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for _, task := range s.tasks {
		task.cancel()
	}
	s.mu.Unlock()

	_ = s.Wait(context.Background())
}

// anyTask returns one running task, or nil when none is left. A task is
// removed from the map before its done channel closes.
func (s *Scheduler) anyTask() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range s.tasks {
		return task
	}
	return nil
}
