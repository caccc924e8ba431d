package task

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time               { return c.now }
func (c *fakeClock) Advance(d time.Duration)      { c.now = c.now.Add(d) }
func (c *fakeClock) in(d time.Duration) time.Time { return c.now.Add(d) }
func (c *fakeClock) opt() Option                  { return WithClock(c.Now) }

func TestNewValid(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	expire := clk.in(time.Hour)

	tk, err := New("daily-report", expire, 10*time.Second, func() {}, clk.opt())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	if tk.Name() != "daily-report" {
		t.Fatalf("Name = %q, want %q", tk.Name(), "daily-report")
	}
	if !tk.Expire().Equal(expire) {
		t.Fatalf("Expire = %v, want %v", tk.Expire(), expire)
	}
	if tk.Interval() != 10*time.Second {
		t.Fatalf("Interval = %v, want 10s", tk.Interval())
	}
	if _, ok := tk.LastRun(); ok {
		t.Fatal("fresh task reports a last run")
	}
	if !tk.IsDue() {
		t.Fatal("fresh task should be due")
	}
	if tk.State() != StatePending {
		t.Fatalf("State = %v, want pending", tk.State())
	}
}

func TestNewRejectsExpirationNotInFuture(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	for _, expire := range []time.Time{clk.in(-time.Hour), clk.in(-time.Nanosecond), clk.Now()} {
		_, err := New("t", expire, time.Second, nil, clk.opt())
		if !errors.Is(err, ErrExpirationInPast) {
			t.Fatalf("New(expire=%v) err = %v, want ErrExpirationInPast", expire, err)
		}
		var pe *ExpirationInPastError
		if !errors.As(err, &pe) || !pe.Expire.Equal(expire) {
			t.Fatalf("error does not carry expire %v: %v", expire, err)
		}
	}
}

func TestNewRejectsNonPositiveInterval(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	for _, iv := range []time.Duration{0, -time.Second} {
		_, err := New("t", clk.in(time.Hour), iv, nil, clk.opt())
		if !errors.Is(err, ErrZeroInterval) {
			t.Fatalf("New(interval=%v) err = %v, want ErrZeroInterval", iv, err)
		}
	}
}

func TestNewChecksExpirationFirst(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	_, err := New("t", clk.in(-time.Second), 0, nil, clk.opt())
	if !errors.Is(err, ErrExpirationInPast) {
		t.Fatalf("err = %v, want ErrExpirationInPast", err)
	}
}

func TestExecuteCoolsDownUntilIntervalElapses(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	calls := 0
	tk, err := New("t", clk.in(time.Hour), 10*time.Second, func() { calls++ }, clk.opt())
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	tk.Execute()
	if calls != 1 {
		t.Fatalf("payload calls = %d, want 1", calls)
	}
	at, ok := tk.LastRun()
	if !ok || !at.Equal(clk.Now()) {
		t.Fatalf("LastRun = %v (ok=%v), want %v", at, ok, clk.Now())
	}
	if tk.IsDue() {
		t.Fatal("task due right after execution")
	}
	if tk.State() != StateCoolingDown {
		t.Fatalf("State = %v, want cooling-down", tk.State())
	}

	clk.Advance(10*time.Second - time.Nanosecond)
	if tk.IsDue() {
		t.Fatal("task due before interval elapsed")
	}

	clk.Advance(time.Nanosecond)
	if !tk.IsDue() {
		t.Fatal("task not due once interval elapsed")
	}
	if tk.State() != StateDue {
		t.Fatalf("State = %v, want due", tk.State())
	}
	next, ok := tk.NextRun()
	if !ok || !next.Equal(at.Add(10*time.Second)) {
		t.Fatalf("NextRun = %v (ok=%v)", next, ok)
	}
}

func TestExecuteIgnoresDueness(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	calls := 0
	tk, _ := New("t", clk.in(time.Hour), time.Minute, func() { calls++ }, clk.opt())

	tk.Execute()
	clk.Advance(time.Second)
	tk.Execute()
	if calls != 2 || tk.Runs() != 2 {
		t.Fatalf("calls = %d runs = %d, want 2/2", calls, tk.Runs())
	}
	at, _ := tk.LastRun()
	if !at.Equal(clk.Now()) {
		t.Fatalf("LastRun = %v, want %v", at, clk.Now())
	}
}

func TestExecuteKeepsLastRunMonotonic(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	tk, _ := New("t", clk.in(time.Hour), time.Minute, nil, clk.opt())

	tk.Execute()
	first, _ := tk.LastRun()
	clk.Advance(-time.Minute)
	tk.Execute()
	second, _ := tk.LastRun()
	if second.Before(first) {
		t.Fatalf("last run went backwards: %v -> %v", first, second)
	}
}

func TestUpdateExpiration(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	orig := clk.in(time.Hour)
	tk, _ := New("t", orig, time.Minute, nil, clk.opt())

	err := tk.UpdateExpiration(clk.Now())
	if !errors.Is(err, ErrExpirationInPast) {
		t.Fatalf("err = %v, want ErrExpirationInPast", err)
	}
	if !tk.Expire().Equal(orig) {
		t.Fatalf("Expire changed on failure: %v", tk.Expire())
	}

	next := clk.in(2 * time.Minute)
	if err := tk.UpdateExpiration(next); err != nil {
		t.Fatalf("UpdateExpiration error: %v", err)
	}
	clk.Advance(2*time.Minute - time.Nanosecond)
	if tk.ShouldRemove() {
		t.Fatal("task removable before new expiration")
	}
	clk.Advance(time.Nanosecond)
	if !tk.ShouldRemove() {
		t.Fatal("task not removable at new expiration")
	}
}

func TestUpdateExpirationRearmsExpiredTask(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	tk, _ := New("t", clk.in(time.Minute), time.Second, nil, clk.opt())
	tk.Execute()
	lastRun, _ := tk.LastRun()

	clk.Advance(2 * time.Minute)
	if !tk.ShouldRemove() {
		t.Fatal("expected task to be expired")
	}
	if err := tk.UpdateExpiration(clk.in(time.Minute)); err != nil {
		t.Fatalf("re-arm error: %v", err)
	}
	if tk.ShouldRemove() {
		t.Fatal("re-armed task still expired")
	}
	if got, _ := tk.LastRun(); !got.Equal(lastRun) || tk.Interval() != time.Second {
		t.Fatal("UpdateExpiration touched interval or last run")
	}
}

func TestDueAndExpiredAreIndependent(t *testing.T) {
	t.Parallel()
	clk := newFakeClock()
	tk, _ := New("t", clk.in(time.Second), time.Minute, nil, clk.opt())
	clk.Advance(time.Second)
	if !tk.IsDue() || !tk.ShouldRemove() {
		t.Fatalf("IsDue=%v ShouldRemove=%v, want both true", tk.IsDue(), tk.ShouldRemove())
	}
}
