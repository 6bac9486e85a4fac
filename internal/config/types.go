package config

// Config is the on-disk daemon/CLI configuration. Every section may be
// omitted; Normalize fills defaults.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Reminders RemindersConfig `json:"reminders"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notifier  NotifierConfig  `json:"notifier"`
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

// StorageConfig selects the key/value backend.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./healthvault.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// RemindersConfig controls the reminder manager and its store.
//
// All durations are Go duration strings. "0s" or empty disables the
// corresponding deadline or loop.
type RemindersConfig struct {
	StorageKey string `json:"storage_key,omitempty"`
	Title      string `json:"title,omitempty"`
	// StrictLoad makes an unparseable stored list an error instead of an
	// empty list.
	StrictLoad        bool   `json:"strict_load,omitempty"`
	RegisterTimeout   string `json:"register_timeout,omitempty"`
	CancelTimeout     string `json:"cancel_timeout,omitempty"`
	ReconcileInterval string `json:"reconcile_interval,omitempty"`
}

// SchedulerConfig controls the local notification scheduler.
type SchedulerConfig struct {
	// Trigger timezone (IANA). Empty uses the device zone.
	Timezone string `json:"timezone,omitempty"`
	StateKey string `json:"state_key,omitempty"`
	// SyncInterval is how often the daemon picks up registrations written by
	// other processes (the CLI). Default 15s.
	SyncInterval string `json:"sync_interval,omitempty"`
}

// NotifierConfig controls delivery of fired reminders.
type NotifierConfig struct {
	RatePerSec  float64  `json:"rate_per_sec,omitempty"`
	Burst       int      `json:"burst,omitempty"`
	DedupWindow string   `json:"dedup_window,omitempty"`
	Command     []string `json:"command,omitempty"`
	Timeout     string   `json:"timeout,omitempty"`
}
