package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"healthvault/internal/notify"
	"healthvault/internal/reminder"
	"healthvault/internal/scheduler"
	"healthvault/internal/storage"
	logx "healthvault/pkg/logx"
)

const (
	DefaultSyncInterval = 15 * time.Second
	DefaultStoragePath  = "./healthvault_store"
)

// Resolved is Config turned into the typed configs each service takes.
type Resolved struct {
	Logging           logx.Config
	Storage           storage.Config
	Store             reminder.StoreConfig
	Manager           reminder.Config
	ReconcileInterval time.Duration
	Scheduler         scheduler.Config
	SyncInterval      time.Duration
	Notifier          notify.Config
}

// durations collects parse errors so one bad field doesn't hide the next.
type durations struct{ errs []error }

func (d *durations) field(path, raw string) time.Duration {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		d.errs = append(d.errs, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err))
		return 0
	}
	if v < 0 {
		d.errs = append(d.errs, fmt.Errorf("%s: duration must be >= 0", path))
		return 0
	}
	return v
}

func (d *durations) orDefault(path, raw string, def time.Duration) time.Duration {
	if v := d.field(path, raw); v > 0 {
		return v
	}
	return def
}

// Resolve validates cfg and converts it. It does not touch the filesystem.
func Resolve(cfg *Config) (Resolved, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	var d durations
	var errs []error

	r := Resolved{
		Logging: logx.Config{
			Level:   cfg.Logging.Level,
			Console: cfg.Logging.Console,
			File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
		},
		Storage: storage.Config{
			Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
			Path:        strings.TrimSpace(cfg.Storage.Path),
			BusyTimeout: d.field("storage.busy_timeout", cfg.Storage.BusyTimeout),
		},
		Store: reminder.StoreConfig{
			Key:    strings.TrimSpace(cfg.Reminders.StorageKey),
			Strict: cfg.Reminders.StrictLoad,
		},
		Manager: reminder.Config{
			Title:           cfg.Reminders.Title,
			RegisterTimeout: d.field("reminders.register_timeout", cfg.Reminders.RegisterTimeout),
			CancelTimeout:   d.field("reminders.cancel_timeout", cfg.Reminders.CancelTimeout),
		},
		ReconcileInterval: d.field("reminders.reconcile_interval", cfg.Reminders.ReconcileInterval),
		Scheduler: scheduler.Config{
			Timezone: strings.TrimSpace(cfg.Scheduler.Timezone),
			StateKey: strings.TrimSpace(cfg.Scheduler.StateKey),
		},
		SyncInterval: d.orDefault("scheduler.sync_interval", cfg.Scheduler.SyncInterval, DefaultSyncInterval),
		Notifier: notify.Config{
			RatePerSec:  cfg.Notifier.RatePerSec,
			Burst:       cfg.Notifier.Burst,
			DedupWindow: d.field("notifier.dedup_window", cfg.Notifier.DedupWindow),
			Command:     append([]string(nil), cfg.Notifier.Command...),
			Timeout:     d.field("notifier.timeout", cfg.Notifier.Timeout),
		},
	}
	errs = append(errs, d.errs...)

	if r.Storage.Path == "" && r.Storage.Driver != "memory" && r.Storage.Driver != "mem" {
		r.Storage.Path = DefaultStoragePath
	}
	switch r.Storage.Driver {
	case "", "file", "sqlite", "sqlite3", "memory", "mem":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: %w: %q", storage.ErrUnknownDriver, cfg.Storage.Driver))
	}
	if orDefault(r.Store.Key, reminder.DefaultStorageKey) == orDefault(r.Scheduler.StateKey, scheduler.DefaultStateKey) {
		errs = append(errs, errors.New("reminders.storage_key and scheduler.state_key must differ"))
	}
	if r.Scheduler.Timezone != "" {
		if _, err := time.LoadLocation(r.Scheduler.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}
	if cfg.Notifier.RatePerSec < 0 {
		errs = append(errs, errors.New("notifier.rate_per_sec must be >= 0"))
	}
	if cfg.Notifier.Burst < 0 {
		errs = append(errs, errors.New("notifier.burst must be >= 0"))
	}
	if len(cfg.Notifier.Command) > 0 && strings.TrimSpace(cfg.Notifier.Command[0]) == "" {
		errs = append(errs, errors.New("notifier.command: program must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return Resolved{}, err
	}
	return r, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Validate is a ConfigManager validator that rejects configs Resolve can't use.
func Validate(_ context.Context, cfg *Config) error {
	_, err := Resolve(cfg)
	return err
}
