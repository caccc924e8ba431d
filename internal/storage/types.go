package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Retention   time.Duration // sqlite only; 0 keeps everything
}

// Kind is the lifecycle event an Entry records.
type Kind string

const (
	KindAdded    Kind = "added"
	KindRemoved  Kind = "removed"
	KindExecuted Kind = "executed"
	KindEvicted  Kind = "evicted"
)

// Entry is one journal record. Keep it compact and schema-stable.
type Entry struct {
	ID       string        `json:"id"`
	At       time.Time     `json:"at"`
	Kind     Kind          `json:"kind"`
	Task     string        `json:"task"`
	Runs     uint64        `json:"runs"`
	LastRun  time.Time     `json:"last_run,omitempty"`
	Expire   time.Time     `json:"expire"`
	Interval time.Duration `json:"interval"`
}
