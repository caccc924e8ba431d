package scheduler

import (
	"sort"

	"cadence/internal/task"
)

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithObserver installs an observer for registry and tick events.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.obs = o
		}
	}
}

// Scheduler is a registry of tasks keyed by name.
type Scheduler struct {
	jobs map[string]*task.Task
	obs  Observer
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs: map[string]*task.Task{},
		obs:  nopObserver{},
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

// AddJob registers t under its name. The registry is unchanged on error.
func (s *Scheduler) AddJob(t *task.Task) error {
	name := t.Name()
	if _, ok := s.jobs[name]; ok {
		return &JobAlreadyExistsError{Name: name}
	}
	s.jobs[name] = t
	s.obs.TaskAdded(t)
	return nil
}

// RemoveJob unregisters the named task and hands it back to the caller.
func (s *Scheduler) RemoveJob(name string) (*task.Task, error) {
	t, ok := s.jobs[name]
	if !ok {
		return nil, &JobDoesntExistError{Name: name}
	}
	delete(s.jobs, name)
	s.obs.TaskRemoved(t)
	return t, nil
}

// GetJob looks up a task by name.
func (s *Scheduler) GetJob(name string) (*task.Task, bool) {
	t, ok := s.jobs[name]
	return t, ok
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int { return len(s.jobs) }

// Names returns registered task names in sorted order.
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run is one polling tick.
//
// Every due task is executed first. Only after all executions are done are expired
// tasks evicted, so a task that is both due and expired runs one last time before
// it leaves the registry. Payload panics are not recovered.
func (s *Scheduler) Run() {
	names := s.Names()

	for _, name := range names {
		t, ok := s.jobs[name]
		if ok && t.IsDue() {
			t.Execute()
			s.obs.TaskExecuted(t)
		}
	}

	for _, name := range names {
		t, ok := s.jobs[name]
		if !ok {
			continue
		}
		if t.ShouldRemove() {
			delete(s.jobs, name)
			s.obs.TaskEvicted(t)
		}
	}
}
