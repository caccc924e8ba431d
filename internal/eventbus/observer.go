package eventbus

import (
	"time"

	"cadence/internal/task"
)

// TaskEvent is the Data of every task.* event. It is a copy; it never aliases the task.
type TaskEvent struct {
	Name     string
	Expire   time.Time
	Interval time.Duration
	LastRun  time.Time // zero when the task never ran
	Runs     uint64
}

// Observer publishes scheduler callbacks onto a Bus.
// It satisfies scheduler.Observer.
type Observer struct {
	Bus Bus
	Now func() time.Time
}

func (o Observer) TaskAdded(t *task.Task)    { o.publish(TypeTaskAdded, t) }
func (o Observer) TaskRemoved(t *task.Task)  { o.publish(TypeTaskRemoved, t) }
func (o Observer) TaskExecuted(t *task.Task) { o.publish(TypeTaskExecuted, t) }
func (o Observer) TaskEvicted(t *task.Task)  { o.publish(TypeTaskEvicted, t) }

func (o Observer) publish(typ string, t *task.Task) {
	if o.Bus == nil || t == nil {
		return
	}
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	lastRun, _ := t.LastRun()
	o.Bus.Publish(Event{
		Type: typ,
		Time: now(),
		Data: TaskEvent{
			Name:     t.Name(),
			Expire:   t.Expire(),
			Interval: t.Interval(),
			LastRun:  lastRun,
			Runs:     t.Runs(),
		},
	})
}
