package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"healthvault/internal/reminder"
	logx "healthvault/pkg/logx"
)

// DefaultStateKey is where the registration table lives in the KV store.
const DefaultStateKey = "healthvault-scheduler"

var (
	ErrInvalidTrigger = errors.New("invalid trigger")
	ErrStateCorrupt   = errors.New("scheduler state is corrupt")
)

// Config controls the scheduler service.
type Config struct {
	// Timezone is an IANA name; empty means the device zone (time.Local).
	Timezone string
	StateKey string
}

// Notification is what a Deliverer receives when a registration fires.
type Notification struct {
	ID      string
	Title   string
	Body    string
	At      time.Time
	Repeats bool
}

// Deliverer displays (or otherwise surfaces) a fired notification.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// registration is one row of the persisted table.
type registration struct {
	ID        string           `json:"id"`
	Request   reminder.Request `json:"request"`
	CreatedAt time.Time        `json:"created_at"`
}

// armed is the runtime side of a registration.
type armed struct {
	req     reminder.Request
	entryID cron.EntryID // daily
	timer   *time.Timer  // one-shot
	ver     uint64
}

type Service struct {
	mu sync.Mutex

	log     logx.Logger
	cfg     Config
	loc     *time.Location
	kv      reminder.Blobs
	deliver Deliverer

	parser cron.Parser
	c      *cron.Cron
	armed  map[string]*armed
	ver    uint64
	// consumed holds fired one-shots still present in the state key because
	// dropping them failed. They are never re-armed.
	consumed map[string]struct{}

	runCtx    context.Context
	runCancel context.CancelFunc

	newID func() string
	now   func() time.Time
}

// Entry describes one registration for status output.
type Entry struct {
	ID      string
	Trigger reminder.Trigger
	Title   string
	Body    string
	Spec    string
	Next    time.Time
	Armed   bool
}
