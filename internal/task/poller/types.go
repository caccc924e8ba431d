package poller

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"cadence/internal/task/scheduler"
	logx "cadence/pkg/logx"
)

// DefaultCadence is used when Config.Cadence is empty.
const DefaultCadence = "1s"

// Config controls how often the registry is polled.
type Config struct {
	Enabled bool
	Cadence string // see ParseSchedule; cron.Every rounds intervals to whole seconds
}

// Recorder receives per-tick measurements (metrics).
type Recorder interface {
	TickObserved(took time.Duration, registered int)
}

// TaskInfo is a read-only copy of a registered task.
type TaskInfo struct {
	Name     string
	Expire   time.Time
	Interval time.Duration
	LastRun  time.Time // zero when never run
	NextRun  time.Time // zero when never run (due immediately)
	State    string
	Expired  bool
	Runs     uint64
}

type Snapshot struct {
	Enabled      bool
	Cadence      string
	Running      bool
	Ticks        uint64
	LastTickID   string
	LastTickAt   time.Time
	LastTickTook time.Duration
	Tasks        []TaskInfo
}

// Service serializes all access to a Scheduler and drives its ticks.
type Service struct {
	// mu is the single exclusion boundary around the scheduler: every
	// registry operation and every tick hold it for their whole duration.
	mu    sync.Mutex
	sched *scheduler.Scheduler

	ticks        uint64
	lastTickID   string
	lastTickAt   time.Time
	lastTickTook time.Duration

	log logx.Logger
	rec Recorder
	now func() time.Time

	// cmu guards the trigger side (config + cron runner).
	cmu     sync.Mutex
	cfg     Config
	parser  cron.Parser
	c       *cron.Cron
	started bool          // between Start and Stop, even while disabled
	halt    chan struct{} // closed by Stop; ends the Start ctx watcher

	// every is the parsed cadence (nanoseconds) when it is an interval, else 0.
	// Read by Tick without cmu: Stop/Apply wait for in-flight ticks while holding cmu.
	every atomic.Int64

	slowWarn *rate.Limiter
}
