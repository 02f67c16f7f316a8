// Package schedule implements cooperative periodic task polling for the
// control loop. Nothing blocks: the loop asks which tasks are due and runs
// them to completion in registration order.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrPeriod    = errors.New("schedule: period must be positive")
	ErrDuplicate = errors.New("schedule: task already registered")
	ErrUnknown   = errors.New("schedule: unknown task")
)

// TaskID identifies a task.
type TaskID int

type task struct {
	id     TaskID
	name   string
	period time.Duration
	last   time.Duration
	runs   uint64
}

// Scheduler holds per-task periods and last-run timestamps.
type Scheduler struct {
	tasks []*task
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a task. Tasks are reported in registration order.
func (s *Scheduler) Add(id TaskID, name string, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("%w: %s", ErrPeriod, name)
	}
	if s.find(id) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	s.tasks = append(s.tasks, &task{id: id, name: name, period: period})
	return nil
}

// IsDue reports whether the task period has elapsed at now and, if so,
// consumes it by moving the last-run timestamp to now.
func (s *Scheduler) IsDue(id TaskID, now time.Duration) (bool, error) {
	t := s.find(id)
	if t == nil {
		return false, fmt.Errorf("%w: %d", ErrUnknown, id)
	}
	return t.due(now), nil
}

// Due appends the tasks due at now to dst in registration order and returns it.
func (s *Scheduler) Due(now time.Duration, dst []TaskID) []TaskID {
	for _, t := range s.tasks {
		if t.due(now) {
			dst = append(dst, t.id)
		}
	}
	return dst
}

// Reset sets every task's last-run timestamp to now.
func (s *Scheduler) Reset(now time.Duration) {
	for _, t := range s.tasks {
		t.last = now
	}
}

// Runs returns how many times the task was due.
func (s *Scheduler) Runs(id TaskID) uint64 {
	if t := s.find(id); t != nil {
		return t.runs
	}
	return 0
}

// Name returns the task name.
func (s *Scheduler) Name(id TaskID) string {
	if t := s.find(id); t != nil {
		return t.name
	}
	return ""
}

func (s *Scheduler) find(id TaskID) *task {
	for _, t := range s.tasks {
		if t.id == id {
			return t
		}
	}
	return nil
}

func (t *task) due(now time.Duration) bool {
	if now-t.last < t.period {
		return false
	}
	t.last = now
	t.runs++
	return true
}
