// Package app wires configuration, the task registry, its poller and the
// optional journal, metrics and systemd integration into one daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"cadence/internal/config"
	"cadence/internal/eventbus"
	"cadence/internal/metrics"
	"cadence/internal/runtime/supervisor"
	"cadence/internal/storage"
	"cadence/internal/task/poller"
	"cadence/internal/task/scheduler"
	logx "cadence/pkg/logx"
)

// StopReason is logged when the app shuts down.
type StopReason string

const (
	StopSignal     StopReason = "signal"
	StopFatalError StopReason = "fatal_error"
	StopAppStop    StopReason = "app_stop"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	metrics *metrics.Metrics
	msrv    *metrics.Server
	poll    *poller.Service
	rec     *reconciler
}

// New loads cfgPath and builds every component. Nothing runs until Start.
func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, root := logx.New(mapLogConfig(cfg))
	log := root.With(logx.String("comp", "app"))

	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, root.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("journal enabled", logx.String("driver", sc.Driver))
	}

	bus := eventbus.New()
	m := metrics.New()
	sched := scheduler.New(scheduler.WithObserver(scheduler.Observers{
		m,
		eventbus.Observer{Bus: bus},
	}))
	poll := poller.New(mapPollerConfig(cfg), sched, root.With(logx.String("comp", "poller")), m)

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		metrics: m,
		msrv:    metrics.NewServer(m, root),
		poll:    poll,
		rec:     newReconciler(poll, root, cfg.Telegram.Token, time.Now),
	}, nil
}

// Poller exposes the registry for operational use.
func (a *App) Poller() *poller.Service { return a.poll }

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validate(cfg) })

	// Consumers subscribe before the first reconcile so the initial task.added
	// events reach them.
	if a.store != nil {
		events, unsub := a.bus.Subscribe(256)
		jlog := a.log.With(logx.String("comp", "journal"))
		a.sup.Go("journal", func(c context.Context) error {
			defer unsub()
			runJournal(c, events, a.store, jlog)
			return nil
		})
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				if te, ok := e.Data.(eventbus.TaskEvent); ok {
					a.log.Trace("event", logx.String("type", e.Type), logx.String("task", te.Name), logx.Uint64("runs", te.Runs))
				}
			}
		}
	})

	cfg := a.cfgm.Get()
	res := a.rec.apply(cfg.Tasks)
	a.log.Info("tasks loaded", res.fields()...)

	if err := a.poll.Start(a.sup.Context()); err != nil {
		return err
	}
	a.msrv.Apply(a.sup.Context(), mapMetricsConfig(cfg))

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case next, ok := <-sub:
				if !ok {
					return nil
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})

	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		return watchdog(c, a.log, func() bool { return c.Err() == nil })
	})

	notify(a.log, daemon.SdNotifyReady)
	a.log.Info("app started", logx.Int("tasks", a.poll.Len()))
	return nil
}

// applyConfig applies a published config. Storage changes need a restart.
func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs, tasks := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := logx.String("changed", strings.Join(sections, ","))
	a.log.Debug("config change summary", append([]logx.Field{changed}, attrs...)...)
	if len(tasks) > 0 {
		a.log.Debug("task definitions changed", logx.Any("tasks", tasks))
	}

	notify(a.log, daemon.SdNotifyReloading)
	defer notify(a.log, daemon.SdNotifyReady)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(next))
		case "storage":
			a.log.Warn("storage config changed; restart required for changes to take effect")
		case "metrics":
			a.msrv.Apply(ctx, mapMetricsConfig(next))
		case "poller":
			if err := a.poll.Apply(mapPollerConfig(next)); err != nil {
				a.log.Warn("invalid poller config; poller stopped", logx.Err(err))
			}
		}
	}

	a.rec.setToken(a.log, next.Telegram.Token)
	res := a.rec.apply(next.Tasks)
	a.log.Info("config reloaded", append(append([]logx.Field{changed}, attrs...), res.fields()...)...)
}

// Stop shuts components down in dependency order. Each step is bounded so
// one stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	notify(a.log, daemon.SdNotifyStopping)

	var errs []error
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	// The poller goes first so no payload runs against a closed journal.
	step("poller", 3*time.Second, func(c context.Context) error { a.poll.Stop(c); return nil })
	step("metrics", time.Second, func(c context.Context) error { a.msrv.Stop(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error {
		err := a.sup.Stop(c)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped", logx.Uint64("events_dropped", eventbus.Dropped(a.bus)))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errors.Join(errs...)
}
