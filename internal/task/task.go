package task

import (
	"time"
)

// Payload is the action a task performs on every execution.
//
// It takes nothing and returns nothing; failures are the payload's own concern.
type Payload func()

// Option customizes a Task at construction.
type Option func(*Task)

// WithClock replaces the time source (defaults to time.Now).
func WithClock(now func() time.Time) Option {
	return func(t *Task) {
		if now != nil {
			t.now = now
		}
	}
}

// Task is a named, recurring unit of work with an absolute expiration.
type Task struct {
	name     string
	expire   time.Time
	interval time.Duration
	payload  Payload

	// lastRun is only meaningful when hasRun is true.
	lastRun time.Time
	hasRun  bool
	runs    uint64

	now func() time.Time
}

// New validates its arguments and returns a task that has never run.
//
// It fails with *ExpirationInPastError when expire is not strictly after now,
// and with ErrZeroInterval when interval <= 0. A nil payload is a no-op.
func New(name string, expire time.Time, interval time.Duration, payload Payload, opts ...Option) (*Task, error) {
	t := &Task{
		name:     name,
		interval: interval,
		payload:  payload,
		now:      time.Now,
	}
	for _, o := range opts {
		if o != nil {
			o(t)
		}
	}

	if !expire.After(t.now()) {
		return nil, &ExpirationInPastError{Expire: expire}
	}
	if interval <= 0 {
		return nil, ErrZeroInterval
	}
	t.expire = expire
	return t, nil
}

func (t *Task) Name() string            { return t.name }
func (t *Task) Expire() time.Time       { return t.expire }
func (t *Task) Interval() time.Duration { return t.interval }

// LastRun returns the instant of the most recent execution.
// ok is false when the task has never run.
func (t *Task) LastRun() (at time.Time, ok bool) {
	return t.lastRun, t.hasRun
}

// Runs returns how many times Execute has been called.
func (t *Task) Runs() uint64 { return t.runs }

// NextRun returns last run + interval. ok is false for a task that has never run
// (it is due immediately).
func (t *Task) NextRun() (at time.Time, ok bool) {
	if !t.hasRun {
		return time.Time{}, false
	}
	return t.lastRun.Add(t.interval), true
}

// IsDue reports whether the task has never run or its interval has elapsed.
func (t *Task) IsDue() bool {
	next, ok := t.NextRun()
	if !ok {
		return true
	}
	return !t.now().Before(next)
}

// Execute runs the payload and records the execution instant.
// It does not consult IsDue.
func (t *Task) Execute() {
	if t.payload != nil {
		t.payload()
	}
	at := t.now()
	// Keep last run monotonic even if the clock steps backwards.
	if t.hasRun && at.Before(t.lastRun) {
		at = t.lastRun
	}
	t.lastRun = at
	t.hasRun = true
	t.runs++
}

// UpdateExpiration re-arms the task with a new expiration, which must be strictly in the future.
// On failure the current expiration is kept.
func (t *Task) UpdateExpiration(expire time.Time) error {
	if !expire.After(t.now()) {
		return &ExpirationInPastError{Expire: expire}
	}
	t.expire = expire
	return nil
}

// ShouldRemove reports whether now has reached the expiration.
func (t *Task) ShouldRemove() bool {
	return !t.now().Before(t.expire)
}

// State returns the derived run state. Expiration is reported separately by ShouldRemove.
func (t *Task) State() State {
	switch {
	case !t.hasRun:
		return StatePending
	case t.IsDue():
		return StateDue
	default:
		return StateCoolingDown
	}
}
