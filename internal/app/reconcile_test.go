package app

import (
	"sync"
	"testing"
	"time"

	"cadence/internal/config"
	"cadence/internal/task/poller"
	"cadence/internal/task/scheduler"
	logx "cadence/pkg/logx"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestReconciler(t *testing.T) (*reconciler, *poller.Service, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	poll := poller.New(poller.Config{}, scheduler.New(), logx.Nop(), nil, poller.WithClock(clk.Now))
	return newReconciler(poll, logx.Nop(), "", clk.Now), poll, clk
}

func logTask(name, interval, expireIn string) config.TaskConfig {
	return config.TaskConfig{
		Name:     name,
		Interval: interval,
		ExpireIn: expireIn,
		Action:   config.ActionConfig{Kind: "log", Message: name},
	}
}

func TestReconcileLifecycle(t *testing.T) {
	t.Parallel()
	r, poll, clk := newTestReconciler(t)
	start := clk.Now()

	res := r.apply([]config.TaskConfig{logTask("a", "10s", "1h"), logTask("b", "1m", "1h")})
	if res.Added != 2 || res.Failed != 0 || poll.Len() != 2 {
		t.Fatalf("initial apply = %+v, len %d", res, poll.Len())
	}

	res = r.apply([]config.TaskConfig{logTask("a", "10s", "1h"), logTask("b", "1m", "1h")})
	if res.Unchanged != 2 {
		t.Fatalf("identical apply = %+v", res)
	}

	poll.Tick()
	clk.Advance(time.Minute)
	res = r.apply([]config.TaskConfig{logTask("a", "10s", "2h"), logTask("b", "1m", "1h")})
	if res.Rearmed != 1 || res.Unchanged != 1 {
		t.Fatalf("expiry apply = %+v", res)
	}
	a, _ := poll.Get("a")
	if want := start.Add(time.Minute + 2*time.Hour); !a.Expire.Equal(want) {
		t.Fatalf("a.Expire = %v, want %v", a.Expire, want)
	}
	if a.Runs != 1 {
		t.Fatalf("rearm reset run history: runs = %d", a.Runs)
	}

	res = r.apply([]config.TaskConfig{logTask("a", "10s", "2h"), logTask("b", "5m", "1h")})
	if res.Replaced != 1 {
		t.Fatalf("interval apply = %+v", res)
	}
	b, _ := poll.Get("b")
	if b.Interval != 5*time.Minute || b.Runs != 0 {
		t.Fatalf("b after replace = %+v", b)
	}

	res = r.apply([]config.TaskConfig{logTask("b", "5m", "1h")})
	if res.Removed != 1 || poll.Len() != 1 {
		t.Fatalf("remove apply = %+v, len %d", res, poll.Len())
	}
	if _, ok := poll.Get("a"); ok {
		t.Fatal("a still registered")
	}
}

func TestReconcileFailuresAreIsolated(t *testing.T) {
	t.Parallel()
	r, poll, _ := newTestReconciler(t)

	stale := config.TaskConfig{
		Name:     "stale",
		Interval: "1s",
		ExpireAt: "2020-01-01T00:00:00Z",
		Action:   config.ActionConfig{Kind: "log"},
	}
	noToken := config.TaskConfig{
		Name:     "notify",
		Interval: "1s",
		ExpireIn: "1h",
		Action:   config.ActionConfig{Kind: "telegram", ChatID: 1, Message: "x"},
	}
	res := r.apply([]config.TaskConfig{stale, noToken, logTask("ok", "1s", "1h")})
	if res.Failed != 2 || res.Added != 1 || poll.Len() != 1 {
		t.Fatalf("apply = %+v, len %d", res, poll.Len())
	}

	// Failed definitions are retried on the next apply.
	stale.ExpireAt = ""
	stale.ExpireIn = "1h"
	res = r.apply([]config.TaskConfig{stale, logTask("ok", "1s", "1h")})
	if res.Added != 1 || res.Unchanged != 1 || poll.Len() != 2 {
		t.Fatalf("retry apply = %+v, len %d", res, poll.Len())
	}
}

func TestReconcileRearmsEvictedTask(t *testing.T) {
	t.Parallel()
	r, poll, clk := newTestReconciler(t)

	r.apply([]config.TaskConfig{logTask("short", "1s", "10s")})
	clk.Advance(11 * time.Second)
	poll.Tick()
	if poll.Len() != 0 {
		t.Fatal("expired task not evicted")
	}

	res := r.apply([]config.TaskConfig{logTask("short", "1s", "1h")})
	if res.Rearmed != 1 || poll.Len() != 1 {
		t.Fatalf("apply = %+v, len %d", res, poll.Len())
	}
	info, _ := poll.Get("short")
	if want := clk.Now().Add(time.Hour); !info.Expire.Equal(want) {
		t.Fatalf("Expire = %v, want %v", info.Expire, want)
	}
}

func TestReconcileRemoveIgnoresEvicted(t *testing.T) {
	t.Parallel()
	r, poll, clk := newTestReconciler(t)

	r.apply([]config.TaskConfig{logTask("gone", "1s", "5s")})
	clk.Advance(time.Minute)
	poll.Tick()

	res := r.apply(nil)
	if res.Removed != 1 || res.Failed != 0 {
		t.Fatalf("apply = %+v", res)
	}
}

func TestReconcileTokenChangeRebuildsTelegramTasks(t *testing.T) {
	t.Parallel()
	r, poll, _ := newTestReconciler(t)

	notifyTask := config.TaskConfig{
		Name:     "notify",
		Interval: "1m",
		ExpireIn: "1h",
		Action:   config.ActionConfig{Kind: "telegram", ChatID: 1, Message: "x"},
	}
	tasks := []config.TaskConfig{notifyTask, logTask("plain", "1m", "1h")}

	r.setToken(logx.Nop(), "123:abc")
	if res := r.apply(tasks); res.Added != 2 {
		t.Fatalf("apply = %+v", res)
	}

	r.setToken(logx.Nop(), "456:def")
	res := r.apply(tasks)
	if res.Replaced != 1 || res.Unchanged != 1 || poll.Len() != 2 {
		t.Fatalf("apply after token change = %+v", res)
	}
}
