package config

type Config struct {
	Logging LoggingConfig  `json:"logging"`
	Poller  PollerConfig   `json:"poller"`
	Metrics MetricsConfig  `json:"metrics,omitempty"`
	Storage *StorageConfig `json:"storage,omitempty"`

	// Telegram holds credentials for telegram actions. Never logged.
	Telegram TelegramConfig `json:"telegram,omitempty"`

	Tasks []TaskConfig `json:"tasks"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// PollerConfig controls how often the registry is polled.
//
// Cadence accepts a Go duration ("1s"), HH:MM, or a cron expression
// ("*/10 * * * * *", "@every 5s"). Default: "1s".
type PollerConfig struct {
	Enabled bool   `json:"enabled"`
	Cadence string `json:"cadence,omitempty"`
}

// MetricsConfig controls the optional Prometheus listener.
//
// Prefer binding to localhost (default "127.0.0.1:9464").
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address,omitempty"`
}

// StorageConfig controls the optional execution journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./cadence.db", "retention": "168h" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Retention   string `json:"retention,omitempty"`    // Go duration string (sqlite)
}

type TelegramConfig struct {
	Token string `json:"token,omitempty"`
}

// TaskConfig declares one recurring task.
//
// Exactly one of ExpireAt (RFC3339) and ExpireIn (Go duration, relative to the
// moment the definition is applied) must be set.
type TaskConfig struct {
	Name     string       `json:"name"`
	Interval string       `json:"interval"`
	ExpireAt string       `json:"expire_at,omitempty"`
	ExpireIn string       `json:"expire_in,omitempty"`
	Action   ActionConfig `json:"action"`
}

type ActionConfig struct {
	Kind     string   `json:"kind"` // log | command | telegram | systemd
	Message  string   `json:"message,omitempty"`
	Command  string   `json:"command,omitempty"`
	Args     []string `json:"args,omitempty"`
	Timeout  string   `json:"timeout,omitempty"`
	ChatID   int64    `json:"chat_id,omitempty"`
	ThreadID int      `json:"thread_id,omitempty"`

	Unit      string `json:"unit,omitempty"`
	Operation string `json:"operation,omitempty"` // start | stop | restart | recover
}
