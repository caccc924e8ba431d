package app

import (
	"fmt"
	"strings"
	"time"

	"cadence/internal/action"
	"cadence/internal/config"
	"cadence/internal/metrics"
	"cadence/internal/storage"
	"cadence/internal/task/poller"
	logx "cadence/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapPollerConfig(cfg *config.Config) poller.Config {
	return poller.Config{Enabled: cfg.Poller.Enabled, Cadence: strings.TrimSpace(cfg.Poller.Cadence)}
}

func mapMetricsConfig(cfg *config.Config) metrics.ServerConfig {
	return metrics.ServerConfig{Enabled: cfg.Metrics.Enabled, Address: strings.TrimSpace(cfg.Metrics.Address)}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "file":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: driver, Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		retention, err := config.ParseDurationField("storage.retention", sc.Retention)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy, Retention: retention}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapActionSpec(ac config.ActionConfig) (action.Spec, error) {
	timeout, err := config.ParseDurationField("action.timeout", ac.Timeout)
	if err != nil {
		return action.Spec{}, err
	}
	return action.Spec{
		Kind:     ac.Kind,
		Message:  ac.Message,
		Command:  ac.Command,
		Args:     append([]string(nil), ac.Args...),
		Timeout:  timeout,
		ChatID:   ac.ChatID,
		ThreadID: ac.ThreadID,

		Unit:      ac.Unit,
		Operation: ac.Operation,
	}, nil
}

// validate runs the checks config.Validate cannot do without importing the
// runtime packages. Used as the config manager's reload validator.
func validate(cfg *config.Config) error {
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	for i, tc := range cfg.Tasks {
		spec, err := mapActionSpec(tc.Action)
		if err != nil {
			return fmt.Errorf("tasks[%d].%w", i, err)
		}
		if err := action.Validate(spec); err != nil {
			return fmt.Errorf("tasks[%d].action: %w", i, err)
		}
		if strings.EqualFold(strings.TrimSpace(spec.Kind), action.KindTelegram) && strings.TrimSpace(cfg.Telegram.Token) == "" {
			return fmt.Errorf("tasks[%d].action: telegram action requires telegram.token", i)
		}
	}
	return nil
}
