package scheduler

import (
	"cadence/internal/task"
)

// Observer is notified synchronously from inside registry operations.
//
// Callbacks run on the caller's goroutine while the operation is in progress,
// so they must be fast and must not call back into the Scheduler.
type Observer interface {
	TaskAdded(t *task.Task)
	TaskRemoved(t *task.Task)
	TaskExecuted(t *task.Task)
	TaskEvicted(t *task.Task)
}

// Observers fans out to every non-nil observer in order.
type Observers []Observer

func (o Observers) TaskAdded(t *task.Task) {
	for _, x := range o {
		if x != nil {
			x.TaskAdded(t)
		}
	}
}

func (o Observers) TaskRemoved(t *task.Task) {
	for _, x := range o {
		if x != nil {
			x.TaskRemoved(t)
		}
	}
}

func (o Observers) TaskExecuted(t *task.Task) {
	for _, x := range o {
		if x != nil {
			x.TaskExecuted(t)
		}
	}
}

func (o Observers) TaskEvicted(t *task.Task) {
	for _, x := range o {
		if x != nil {
			x.TaskEvicted(t)
		}
	}
}

type nopObserver struct{}

func (nopObserver) TaskAdded(*task.Task)    {}
func (nopObserver) TaskRemoved(*task.Task)  {}
func (nopObserver) TaskExecuted(*task.Task) {}
func (nopObserver) TaskEvicted(*task.Task)  {}
