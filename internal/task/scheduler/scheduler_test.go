package scheduler

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"cadence/internal/task"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
}

func mustTask(t *testing.T, clk *fakeClock, name string, expireIn, interval time.Duration, payload task.Payload) *task.Task {
	t.Helper()
	tk, err := task.New(name, clk.Now().Add(expireIn), interval, payload, task.WithClock(clk.Now))
	if err != nil {
		t.Fatalf("task.New(%q) error: %v", name, err)
	}
	return tk
}

type recordingObserver struct {
	events []string
}

func (r *recordingObserver) TaskAdded(t *task.Task)    { r.events = append(r.events, "added:"+t.Name()) }
func (r *recordingObserver) TaskRemoved(t *task.Task)  { r.events = append(r.events, "removed:"+t.Name()) }
func (r *recordingObserver) TaskExecuted(t *task.Task) { r.events = append(r.events, "executed:"+t.Name()) }
func (r *recordingObserver) TaskEvicted(t *task.Task)  { r.events = append(r.events, "evicted:"+t.Name()) }

func TestAddJobRejectsDuplicateName(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	s := New()

	if err := s.AddJob(mustTask(t, clk, "daily-report", time.Hour, 10*time.Second, nil)); err != nil {
		t.Fatalf("first AddJob error: %v", err)
	}
	second := mustTask(t, clk, "daily-report", 2*time.Hour, time.Minute, nil)
	err := s.AddJob(second)
	if !errors.Is(err, ErrJobAlreadyExists) {
		t.Fatalf("second AddJob err = %v, want ErrJobAlreadyExists", err)
	}
	var ae *JobAlreadyExistsError
	if !errors.As(err, &ae) || ae.Name != "daily-report" {
		t.Fatalf("error does not carry name: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	got, _ := s.GetJob("daily-report")
	if got == second {
		t.Fatal("registry entry replaced on failed add")
	}
}

func TestRemoveJob(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	s := New()

	_, err := s.RemoveJob("ghost")
	if !errors.Is(err, ErrJobDoesntExist) {
		t.Fatalf("RemoveJob(ghost) err = %v, want ErrJobDoesntExist", err)
	}
	var de *JobDoesntExistError
	if !errors.As(err, &de) || de.Name != "ghost" {
		t.Fatalf("error does not carry name: %v", err)
	}

	tk := mustTask(t, clk, "a", time.Hour, time.Second, nil)
	_ = s.AddJob(tk)
	got, err := s.RemoveJob("a")
	if err != nil {
		t.Fatalf("RemoveJob error: %v", err)
	}
	if got != tk {
		t.Fatal("RemoveJob returned a different task")
	}
	if _, ok := s.GetJob("a"); ok {
		t.Fatal("task still registered after RemoveJob")
	}
}

func TestGetJob(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	s := New()
	if tk, ok := s.GetJob("missing"); ok || tk != nil {
		t.Fatalf("GetJob(missing) = %v, %v", tk, ok)
	}
	tk := mustTask(t, clk, "a", time.Hour, time.Second, nil)
	_ = s.AddJob(tk)
	if got, ok := s.GetJob("a"); !ok || got != tk {
		t.Fatalf("GetJob(a) = %v, %v", got, ok)
	}
}

func TestRunExecutesExpiredTaskOnceThenEvicts(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	s := New()
	calls := 0
	_ = s.AddJob(mustTask(t, clk, "last-call", time.Second, time.Minute, func() { calls++ }))

	clk.Advance(time.Second)
	s.Run()

	if calls != 1 {
		t.Fatalf("payload calls = %d, want 1", calls)
	}
	if _, ok := s.GetJob("last-call"); ok {
		t.Fatal("expired task still registered")
	}
}

func TestRunDueAndExpiredAreHandledSeparately(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	s := New()

	dueCalls, staleCalls := 0, 0
	due := mustTask(t, clk, "due", time.Hour, time.Minute, func() { dueCalls++ })
	stale := mustTask(t, clk, "stale", 30*time.Second, time.Hour, func() { staleCalls++ })
	// Put stale into cooldown before its expiration.
	stale.Execute()
	staleCalls = 0

	_ = s.AddJob(due)
	_ = s.AddJob(stale)

	clk.Advance(time.Minute)
	s.Run()

	if dueCalls != 1 {
		t.Fatalf("due payload calls = %d, want 1", dueCalls)
	}
	if _, ok := s.GetJob("due"); !ok {
		t.Fatal("due task was evicted")
	}
	if staleCalls != 0 {
		t.Fatalf("stale payload calls = %d, want 0", staleCalls)
	}
	if _, ok := s.GetJob("stale"); ok {
		t.Fatal("expired task still registered")
	}
}

func TestRunRespectsInterval(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	s := New()
	calls := 0
	_ = s.AddJob(mustTask(t, clk, "a", time.Hour, 10*time.Second, func() { calls++ }))

	s.Run() // pending: runs
	clk.Advance(5 * time.Second)
	s.Run() // cooling down
	clk.Advance(5 * time.Second)
	s.Run() // due again

	if calls != 2 {
		t.Fatalf("payload calls = %d, want 2", calls)
	}
}

func TestRunExecutesAllBeforeEvicting(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	obs := &recordingObserver{}
	s := New(WithObserver(obs))

	_ = s.AddJob(mustTask(t, clk, "a", time.Second, time.Minute, nil))
	_ = s.AddJob(mustTask(t, clk, "b", time.Second, time.Minute, nil))
	obs.events = nil

	clk.Advance(time.Second)
	s.Run()

	want := []string{"executed:a", "executed:b", "evicted:a", "evicted:b"}
	if !reflect.DeepEqual(obs.events, want) {
		t.Fatalf("events = %v, want %v", obs.events, want)
	}
}

func TestRunOnRearmedTaskKeepsIt(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	s := New()
	tk := mustTask(t, clk, "a", time.Second, time.Minute, nil)
	_ = s.AddJob(tk)

	clk.Advance(2 * time.Second)
	if err := tk.UpdateExpiration(clk.Now().Add(time.Hour)); err != nil {
		t.Fatalf("UpdateExpiration error: %v", err)
	}
	s.Run()
	if _, ok := s.GetJob("a"); !ok {
		t.Fatal("re-armed task was evicted")
	}
}

func TestObserversFanOut(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	a, b := &recordingObserver{}, &recordingObserver{}
	s := New(WithObserver(Observers{a, nil, b}))

	_ = s.AddJob(mustTask(t, clk, "x", time.Hour, time.Minute, nil))
	_, _ = s.RemoveJob("x")

	want := []string{"added:x", "removed:x"}
	if !reflect.DeepEqual(a.events, want) || !reflect.DeepEqual(b.events, want) {
		t.Fatalf("events a=%v b=%v, want %v", a.events, b.events, want)
	}
}

func TestNamesSorted(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	s := New()
	for _, n := range []string{"c", "a", "b"} {
		_ = s.AddJob(mustTask(t, clk, n, time.Hour, time.Minute, nil))
	}
	if got := s.Names(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Names = %v", got)
	}
}

func TestRunSkipsTaskRemovedByEarlierPayload(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	s := New()

	var bRuns int
	a := mustTask(t, clk, "a", time.Hour, time.Second, func() { _, _ = s.RemoveJob("b") })
	b := mustTask(t, clk, "b", time.Hour, time.Second, func() { bRuns++ })
	for _, tk := range []*task.Task{a, b} {
		if err := s.AddJob(tk); err != nil {
			t.Fatalf("AddJob error: %v", err)
		}
	}

	s.Run()

	if bRuns != 0 {
		t.Fatalf("removed task ran %d times", bRuns)
	}
	if names := s.Names(); !reflect.DeepEqual(names, []string{"a"}) {
		t.Fatalf("Names = %v, want [a]", names)
	}
}
