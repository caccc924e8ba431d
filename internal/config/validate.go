package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cadence/internal/task/poller"
)

// Validate checks the static shape of cfg. Errors carry the offending field
// path, e.g. "tasks[2].interval: interval must be > 0".
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	if c := strings.TrimSpace(cfg.Poller.Cadence); c != "" {
		if _, err := poller.ParseSchedule(c); err != nil {
			errs = append(errs, fmt.Errorf("poller.cadence: %w", err))
		}
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "file", "sqlite":
		default:
			errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", s.Driver))
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			errs = append(errs, err)
		}
		if _, err := ParseDurationField("storage.retention", s.Retention); err != nil {
			errs = append(errs, err)
		}
	}

	seen := make(map[string]int, len(cfg.Tasks))
	for i, tc := range cfg.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		name := strings.TrimSpace(tc.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("%s.name: required", path))
		} else if j, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("%s.name: %q already declared at tasks[%d]", path, name, j))
		} else {
			seen[name] = i
		}
		if _, err := poller.ParseInterval(tc.Interval); err != nil {
			errs = append(errs, fmt.Errorf("%s.interval: %w", path, err))
		}
		if err := validateExpiry(path, tc); err != nil {
			errs = append(errs, err)
		}
		if _, err := ParseDurationField(path+".action.timeout", tc.Action.Timeout); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validateExpiry(path string, tc TaskConfig) error {
	at := strings.TrimSpace(tc.ExpireAt)
	in := strings.TrimSpace(tc.ExpireIn)
	switch {
	case at == "" && in == "":
		return fmt.Errorf("%s: one of expire_at or expire_in is required", path)
	case at != "" && in != "":
		return fmt.Errorf("%s: expire_at and expire_in are mutually exclusive", path)
	case at != "":
		if _, err := time.Parse(time.RFC3339, at); err != nil {
			return fmt.Errorf("%s.expire_at: invalid RFC3339 time %q", path, tc.ExpireAt)
		}
	default:
		d, err := ParseDurationField(path+".expire_in", in)
		if err != nil {
			return err
		}
		if d == 0 {
			return fmt.Errorf("%s.expire_in: duration must be > 0", path)
		}
	}
	return nil
}

// Expiration resolves the absolute expiry of tc. expire_in is measured from now.
func (tc TaskConfig) Expiration(now time.Time) (time.Time, error) {
	if at := strings.TrimSpace(tc.ExpireAt); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return time.Time{}, fmt.Errorf("expire_at: invalid RFC3339 time %q", tc.ExpireAt)
		}
		return t, nil
	}
	d, err := ParseDurationField("expire_in", tc.ExpireIn)
	if err != nil {
		return time.Time{}, err
	}
	if d == 0 {
		return time.Time{}, errors.New("expire_in: duration must be > 0")
	}
	return now.Add(d), nil
}
