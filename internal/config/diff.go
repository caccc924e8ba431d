package config

import (
	"sort"
	"strings"

	logx "cadence/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes the telegram token),
// and (3) the names of tasks that were added, removed or edited.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Poller.Enabled != newCfg.Poller.Enabled ||
		strings.TrimSpace(oldCfg.Poller.Cadence) != strings.TrimSpace(newCfg.Poller.Cadence) {
		changed = append(changed, "poller")
		attrs = append(attrs,
			logx.Bool("poller.enabled", newCfg.Poller.Enabled),
			logx.String("poller.cadence", strings.TrimSpace(newCfg.Poller.Cadence)),
		)
	}

	if oldCfg.Metrics.Enabled != newCfg.Metrics.Enabled ||
		strings.TrimSpace(oldCfg.Metrics.Address) != strings.TrimSpace(newCfg.Metrics.Address) {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", newCfg.Metrics.Enabled),
			logx.String("metrics.address", strings.TrimSpace(newCfg.Metrics.Address)),
		)
	}

	// Storage: nil means disabled.
	var oS, nS StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if (oldCfg.Storage != nil) != (newCfg.Storage != nil) || oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
			logx.String("storage.retention", strings.TrimSpace(nS.Retention)),
		)
	}

	if strings.TrimSpace(oldCfg.Telegram.Token) != strings.TrimSpace(newCfg.Telegram.Token) {
		changed = append(changed, "telegram")
		attrs = append(attrs, logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""))
	}

	tasksChanged := diffTasks(oldCfg.Tasks, newCfg.Tasks)
	if len(tasksChanged) > 0 {
		changed = append(changed, "tasks")
		attrs = append(attrs,
			logx.Int("tasks.changed_count", len(tasksChanged)),
			logx.Int("tasks.count", len(newCfg.Tasks)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, tasksChanged
}

func indexTasks(list []TaskConfig) map[string]TaskConfig {
	m := make(map[string]TaskConfig, len(list))
	for _, tc := range list {
		m[strings.TrimSpace(tc.Name)] = tc
	}
	return m
}

func diffTasks(oldL, newL []TaskConfig) []string {
	oldM := indexTasks(oldL)
	newM := indexTasks(newL)

	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		o, okO := oldM[name]
		n, okN := newM[name]
		if okO != okN || ScheduleHash(o) != ScheduleHash(n) || ExpiryHash(o) != ExpiryHash(n) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
