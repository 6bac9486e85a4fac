package config

import (
	"reflect"
	"sort"
	"strings"

	logx "healthvault/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and log fields
// describing the new values. The notifier command is summarized by program
// name only since its arguments may carry tokens.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	o, n := oldCfg.Storage, newCfg.Storage
	if strings.TrimSpace(o.Driver) != strings.TrimSpace(n.Driver) ||
		strings.TrimSpace(o.Path) != strings.TrimSpace(n.Path) ||
		strings.TrimSpace(o.BusyTimeout) != strings.TrimSpace(n.BusyTimeout) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(n.Driver)),
			logx.String("storage.path", strings.TrimSpace(n.Path)),
			logx.String("storage.busy_timeout", strings.TrimSpace(n.BusyTimeout)),
		)
	}

	if oldCfg.Reminders != newCfg.Reminders {
		r := newCfg.Reminders
		changed = append(changed, "reminders")
		attrs = append(attrs,
			logx.Bool("reminders.strict_load", r.StrictLoad),
			logx.String("reminders.register_timeout", r.RegisterTimeout),
			logx.String("reminders.cancel_timeout", r.CancelTimeout),
			logx.String("reminders.reconcile_interval", r.ReconcileInterval),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		s := newCfg.Scheduler
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", s.Timezone),
			logx.String("scheduler.sync_interval", s.SyncInterval),
		)
	}

	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		nc := newCfg.Notifier
		prog := ""
		if len(nc.Command) > 0 {
			prog = nc.Command[0]
		}
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Any("notifier.rate_per_sec", nc.RatePerSec),
			logx.Int("notifier.burst", nc.Burst),
			logx.String("notifier.dedup_window", nc.DedupWindow),
			logx.String("notifier.command", prog),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RequiresRestart reports whether the change touches settings a running
// daemon keeps until restart: the storage backend and the two storage keys.
func RequiresRestart(oldCfg, newCfg *Config) bool {
	if oldCfg == nil || newCfg == nil {
		return false
	}
	return oldCfg.Storage != newCfg.Storage ||
		strings.TrimSpace(oldCfg.Reminders.StorageKey) != strings.TrimSpace(newCfg.Reminders.StorageKey) ||
		strings.TrimSpace(oldCfg.Scheduler.StateKey) != strings.TrimSpace(newCfg.Scheduler.StateKey)
}
