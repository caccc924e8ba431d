package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cadence/internal/action"
	"cadence/internal/config"
	"cadence/internal/task"
	"cadence/internal/task/poller"
	"cadence/internal/task/scheduler"
	logx "cadence/pkg/logx"
)

// registry is the part of poller.Service the reconciler drives.
type registry interface {
	Add(t *task.Task) error
	Remove(name string) (*task.Task, error)
	UpdateExpiration(name string, expire time.Time) error
}

// applied records what was last installed for one task name.
type applied struct {
	schedule uint64
	expiry   uint64
	telegram bool
}

type reconcileResult struct {
	Added, Replaced, Rearmed, Removed, Unchanged, Failed int
}

func (r reconcileResult) fields() []logx.Field {
	return []logx.Field{
		logx.Int("added", r.Added),
		logx.Int("replaced", r.Replaced),
		logx.Int("rearmed", r.Rearmed),
		logx.Int("removed", r.Removed),
		logx.Int("unchanged", r.Unchanged),
		logx.Int("failed", r.Failed),
	}
}

// reconciler turns the configured task list into registry operations.
// It is not safe for concurrent use; the config reload loop owns it.
type reconciler struct {
	reg     registry
	actions *action.Factory
	token   string
	log     logx.Logger
	now     func() time.Time

	defs map[string]applied
}

func newReconciler(reg registry, log logx.Logger, token string, now func() time.Time) *reconciler {
	if now == nil {
		now = time.Now
	}
	return &reconciler{
		reg:     reg,
		actions: action.NewFactory(log, token),
		token:   strings.TrimSpace(token),
		log:     log.With(logx.String("comp", "reconcile")),
		now:     now,
		defs:    map[string]applied{},
	}
}

// setToken swaps the telegram credentials. Tasks using telegram actions
// are rebuilt on the next apply.
func (r *reconciler) setToken(log logx.Logger, token string) {
	token = strings.TrimSpace(token)
	if token == r.token {
		return
	}
	r.token = token
	r.actions = action.NewFactory(log, token)
	for name, d := range r.defs {
		if d.telegram {
			d.schedule = 0
			r.defs[name] = d
		}
	}
}

// apply brings the registry in line with tasks. Per-task failures are
// logged and counted; they never stop the remaining tasks.
func (r *reconciler) apply(tasks []config.TaskConfig) reconcileResult {
	var res reconcileResult
	now := r.now()

	want := make(map[string]config.TaskConfig, len(tasks))
	for _, tc := range tasks {
		want[strings.TrimSpace(tc.Name)] = tc
	}

	gone := make([]string, 0)
	for name := range r.defs {
		if _, ok := want[name]; !ok {
			gone = append(gone, name)
		}
	}
	sort.Strings(gone)
	for _, name := range gone {
		if _, err := r.reg.Remove(name); err != nil && !errors.Is(err, scheduler.ErrJobDoesntExist) {
			r.log.Warn("task remove failed", logx.String("task", name), logx.Err(err))
			res.Failed++
			continue
		}
		delete(r.defs, name)
		res.Removed++
	}

	names := make([]string, 0, len(want))
	for name := range want {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tc := want[name]
		next := applied{
			schedule: config.ScheduleHash(tc),
			expiry:   config.ExpiryHash(tc),
			telegram: strings.EqualFold(strings.TrimSpace(tc.Action.Kind), action.KindTelegram),
		}
		prev, known := r.defs[name]

		var err error
		switch {
		case !known:
			if err = r.install(name, tc, now, false); err == nil {
				res.Added++
			}
		case prev.schedule != next.schedule:
			if err = r.install(name, tc, now, true); err == nil {
				res.Replaced++
			}
		case prev.expiry != next.expiry:
			if err = r.rearm(name, tc, now); err == nil {
				res.Rearmed++
			}
		default:
			res.Unchanged++
			continue
		}

		if err != nil {
			r.log.Warn("task not applied", logx.String("task", name), logx.Err(err))
			res.Failed++
			continue
		}
		r.defs[name] = next
	}
	return res
}

func (r *reconciler) build(name string, tc config.TaskConfig, now time.Time) (*task.Task, error) {
	interval, err := poller.ParseInterval(tc.Interval)
	if err != nil {
		return nil, fmt.Errorf("interval: %w", err)
	}
	expire, err := tc.Expiration(now)
	if err != nil {
		return nil, err
	}
	spec, err := mapActionSpec(tc.Action)
	if err != nil {
		return nil, err
	}
	payload, err := r.actions.Build(name, spec)
	if err != nil {
		return nil, fmt.Errorf("action: %w", err)
	}
	return task.New(name, expire, interval, payload, task.WithClock(r.now))
}

// install builds the task first so a broken definition never takes down
// the running one.
func (r *reconciler) install(name string, tc config.TaskConfig, now time.Time, replace bool) error {
	t, err := r.build(name, tc, now)
	if err != nil {
		return err
	}
	if replace {
		if _, err := r.reg.Remove(name); err != nil && !errors.Is(err, scheduler.ErrJobDoesntExist) {
			return err
		}
	}
	return r.reg.Add(t)
}

// rearm applies an expiry-only edit in place. A task that was already
// evicted is registered again from scratch.
func (r *reconciler) rearm(name string, tc config.TaskConfig, now time.Time) error {
	expire, err := tc.Expiration(now)
	if err != nil {
		return err
	}
	err = r.reg.UpdateExpiration(name, expire)
	if errors.Is(err, scheduler.ErrJobDoesntExist) {
		return r.install(name, tc, now, false)
	}
	return err
}
