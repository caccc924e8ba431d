package poller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"cadence/internal/task"
	"cadence/internal/task/scheduler"
	logx "cadence/pkg/logx"
)

const slowTickWarnEvery = 30 * time.Second

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the time source used for tick bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(cfg Config, sched *scheduler.Scheduler, log logx.Logger, rec Recorder, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if sched == nil {
		sched = scheduler.New()
	}
	s := &Service{
		sched: sched,
		cfg:   cfg,
		log:   log,
		rec:   rec,
		now:   time.Now,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser:   cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		slowWarn: rate.NewLimiter(rate.Every(slowTickWarnEvery), 1),
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

// Add registers t. See scheduler.AddJob.
func (s *Service) Add(t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sched.AddJob(t); err != nil {
		return err
	}
	s.log.Debug("task added", logx.String("task", t.Name()), logx.Duration("interval", t.Interval()), logx.Time("expire", t.Expire()))
	return nil
}

// Remove unregisters the named task. See scheduler.RemoveJob.
func (s *Service) Remove(name string) (*task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.sched.RemoveJob(name)
	if err != nil {
		return nil, err
	}
	s.log.Debug("task removed", logx.String("task", name))
	return t, nil
}

// Get returns a copy of the named task's state.
func (s *Service) Get(name string) (TaskInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.sched.GetJob(name)
	if !ok {
		return TaskInfo{}, false
	}
	return infoOf(t), true
}

// UpdateExpiration re-arms the named task under the lock.
func (s *Service) UpdateExpiration(name string, expire time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.sched.GetJob(name)
	if !ok {
		return &scheduler.JobDoesntExistError{Name: name}
	}
	if err := t.UpdateExpiration(expire); err != nil {
		return err
	}
	s.log.Debug("task expiration updated", logx.String("task", name), logx.Time("expire", expire))
	return nil
}

// Len returns the number of registered tasks.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sched.Len()
}

// Tick runs exactly one scheduler pass under the lock.
func (s *Service) Tick() {
	id := uuid.NewString()
	took, registered := s.runLocked(id)

	if s.rec != nil {
		s.rec.TickObserved(took, registered)
	}
	s.log.Trace("tick", logx.String("tick_id", id), logx.Duration("took", took), logx.Int("tasks", registered))

	every := time.Duration(s.every.Load())
	if every > 0 && took > every && s.slowWarn.Allow() {
		s.log.Warn("tick slower than cadence; a payload is blocking",
			logx.String("tick_id", id), logx.Duration("took", took), logx.Duration("cadence", every))
	}
}

func (s *Service) runLocked(id string) (time.Duration, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	s.sched.Run()
	took := s.now().Sub(start)
	s.ticks++
	s.lastTickID = id
	s.lastTickAt = start
	s.lastTickTook = took
	return took, s.sched.Len()
}

// Enabled reports the current config flag.
func (s *Service) Enabled() bool {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	return s.cfg.Enabled
}

// Start begins triggering Tick on the configured cadence until ctx is done or
// Stop is called. It is a no-op when already started.
func (s *Service) Start(ctx context.Context) error {
	s.cmu.Lock()
	defer s.cmu.Unlock()
	if s.started {
		return nil
	}
	if s.cfg.Enabled {
		if err := s.startLocked(); err != nil {
			return err
		}
	} else {
		s.log.Info("poller disabled; ticks only run on demand")
	}
	s.started = true

	halt := make(chan struct{})
	s.halt = halt
	if done := ctx.Done(); done != nil {
		go func() {
			select {
			case <-done:
				s.stop(context.Background(), halt)
			case <-halt:
			}
		}()
	}
	return nil
}

// Stop stops triggering. An in-flight tick is allowed to finish unless ctx ends first.
func (s *Service) Stop(ctx context.Context) { s.stop(ctx, nil) }

// stop ends the run that owns only; nil means whichever run is current.
func (s *Service) stop(ctx context.Context, only chan struct{}) {
	start := time.Now()
	s.cmu.Lock()
	if only != nil && s.halt != only {
		s.cmu.Unlock()
		return
	}
	c := s.c
	s.c = nil
	s.started = false
	if s.halt != nil {
		close(s.halt)
		s.halt = nil
	}
	s.cmu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("poller stopped", logx.Duration("took", time.Since(start)))
}

// Apply swaps the config, restarting the trigger if enabled or cadence changed.
func (s *Service) Apply(cfg Config) error {
	s.cmu.Lock()
	defer s.cmu.Unlock()

	old := s.cfg
	s.cfg = cfg
	if old.Enabled == cfg.Enabled && strings.TrimSpace(old.Cadence) == strings.TrimSpace(cfg.Cadence) {
		return nil
	}
	if !s.started {
		// Start() will pick the new config up.
		return nil
	}

	if s.c != nil {
		<-s.c.Stop().Done()
		s.c = nil
	}
	if !cfg.Enabled {
		s.every.Store(0)
		s.log.Info("poller disabled")
		return nil
	}
	return s.startLocked()
}

func (s *Service) startLocked() error {
	cadence := strings.TrimSpace(s.cfg.Cadence)
	if cadence == "" {
		cadence = DefaultCadence
	}
	ps, err := ParseSchedule(cadence)
	if err != nil {
		return fmt.Errorf("poller cadence: %w", err)
	}

	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLogger(cronLogger{log: s.log}),
		cron.WithChain(cron.Recover(cronLogger{log: s.log}), cron.SkipIfStillRunning(cronLogger{log: s.log})),
	)
	job := cron.FuncJob(s.Tick)

	switch ps.Kind {
	case SpecInterval:
		c.Schedule(cron.Every(ps.Every), job)
		s.every.Store(int64(ps.Every))
	default:
		if _, err := c.AddJob(ps.Cron, job); err != nil {
			return fmt.Errorf("poller cadence %q: %w", ps.Cron, err)
		}
		s.every.Store(0)
	}

	c.Start()
	s.c = c
	s.log.Info("poller started", logx.String("cadence", cadence), logx.String("kind", ps.Kind.String()))
	return nil
}

// Snapshot returns a consistent view of the registry and tick counters.
func (s *Service) Snapshot() Snapshot {
	s.cmu.Lock()
	snap := Snapshot{
		Enabled: s.cfg.Enabled,
		Cadence: s.cfg.Cadence,
		Running: s.c != nil,
	}
	s.cmu.Unlock()
	if strings.TrimSpace(snap.Cadence) == "" {
		snap.Cadence = DefaultCadence
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Ticks = s.ticks
	snap.LastTickID = s.lastTickID
	snap.LastTickAt = s.lastTickAt
	snap.LastTickTook = s.lastTickTook
	names := s.sched.Names()
	snap.Tasks = make([]TaskInfo, 0, len(names))
	for _, name := range names {
		if t, ok := s.sched.GetJob(name); ok {
			snap.Tasks = append(snap.Tasks, infoOf(t))
		}
	}
	return snap
}

func infoOf(t *task.Task) TaskInfo {
	lastRun, _ := t.LastRun()
	nextRun, _ := t.NextRun()
	return TaskInfo{
		Name:     t.Name(),
		Expire:   t.Expire(),
		Interval: t.Interval(),
		LastRun:  lastRun,
		NextRun:  nextRun,
		State:    t.State().String(),
		Expired:  t.ShouldRemove(),
		Runs:     t.Runs(),
	}
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if !l.log.Enabled(logx.LevelTrace) {
		return
	}
	l.log.Trace("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
