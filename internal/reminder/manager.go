package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"healthvault/internal/eventbus"
	logx "healthvault/pkg/logx"
)

// DefaultTitle is the notification title used when none is configured.
const DefaultTitle = "HealthVault Reminder"

// Event types published on the bus.
const (
	EventCreated = "reminder.created"
	EventDeleted = "reminder.deleted"
	EventFired   = "reminder.fired"
	EventPruned  = "reminder.pruned"
)

// Config controls the Manager. Zero durations mean "no deadline".
type Config struct {
	Title           string
	RegisterTimeout time.Duration
	CancelTimeout   time.Duration
}

// Manager is the only component that mutates reminder state. Under normal
// operation every stored id has exactly one live Scheduler registration.
//
// Construct one per process and share it. Operations are serialized
// internally; a hanging Scheduler call blocks every other operation unless a
// timeout is configured.
type Manager struct {
	mu sync.Mutex

	store   *Store
	planner *Planner
	sched   Scheduler
	log     logx.Logger
	bus     eventbus.Bus

	cfgMu sync.RWMutex
	cfg   Config
}

func NewManager(cfg Config, store *Store, planner *Planner, sched Scheduler, log logx.Logger, bus eventbus.Bus) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	if planner == nil {
		planner = NewPlanner(nil, nil)
	}
	m := &Manager{store: store, planner: planner, sched: sched, log: log, bus: bus}
	m.Apply(cfg)
	return m
}

// Apply swaps timeouts and title at runtime.
func (m *Manager) Apply(cfg Config) {
	if strings.TrimSpace(cfg.Title) == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.RegisterTimeout < 0 {
		cfg.RegisterTimeout = 0
	}
	if cfg.CancelTimeout < 0 {
		cfg.CancelTimeout = 0
	}
	m.cfgMu.Lock()
	m.cfg = cfg
	m.cfgMu.Unlock()
}

func (m *Manager) config() Config {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

// Planner exposes the planner so callers can validate a pick early.
func (m *Manager) Planner() *Planner { return m.planner }

// Create registers a reminder with the Scheduler and appends it to the Store.
//
// Errors: ErrEmptyText, ErrInvalidSchedule, ErrAdapterRegistration,
// ErrStorePersist, or a Store load error. On any error the Store is unchanged
// and no registration is left behind.
func (m *Manager) Create(ctx context.Context, text string, candidate time.Time, recurring bool) (Reminder, error) {
	if strings.TrimSpace(text) == "" {
		return Reminder{}, ErrEmptyText
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.store.Load(ctx)
	if err != nil {
		return Reminder{}, err
	}

	// Checked here, right before registering; the user may have picked the
	// time a while ago.
	trigger, err := m.planner.Plan(candidate, recurring)
	if err != nil {
		return Reminder{}, err
	}

	cfg := m.config()
	id, err := m.register(ctx, cfg, Request{Trigger: trigger, Title: cfg.Title, Body: text})
	if err != nil {
		m.log.Warn("reminder registration failed", logx.String("trigger", trigger.String()), logx.Err(err))
		return Reminder{}, err
	}

	r := Reminder{
		ID:          id,
		Text:        text,
		FireTime:    candidate.Round(0).Truncate(time.Millisecond),
		IsRecurring: recurring,
	}
	if err := m.store.Save(ctx, append(list, r)); err != nil {
		if cerr := m.cancel(context.WithoutCancel(ctx), cfg, id); cerr != nil {
			m.log.Error("rollback of registration failed; it may still fire",
				logx.String("id", id), logx.Err(cerr))
		}
		return Reminder{}, fmt.Errorf("%w: %v", ErrStorePersist, err)
	}

	m.log.Info("reminder created",
		logx.String("id", id),
		logx.String("trigger", trigger.String()),
		logx.Bool("recurring", recurring))
	m.publish(EventCreated, r)
	return r, nil
}

// List returns the stored reminders, oldest first.
func (m *Manager) List(ctx context.Context) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Load(ctx)
}

// Get looks up one reminder by id.
func (m *Manager) Get(ctx context.Context, id string) (Reminder, bool, error) {
	list, err := m.List(ctx)
	if err != nil {
		return Reminder{}, false, err
	}
	for _, r := range list {
		if r.ID == id {
			return r, true, nil
		}
	}
	return Reminder{}, false, nil
}

// Delete cancels the registration for id and removes it from the Store.
// Unknown ids are a no-op. A failed cancellation is logged and ignored: the
// Store decides what the user sees.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.store.Load(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i, r := range list {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	removed := list[idx]

	if err := m.cancel(ctx, m.config(), id); err != nil {
		m.log.Warn("reminder cancellation failed; removing anyway", logx.String("id", id), logx.Err(err))
	}

	next := make([]Reminder, 0, len(list)-1)
	next = append(next, list[:idx]...)
	next = append(next, list[idx+1:]...)
	if err := m.store.Save(ctx, next); err != nil {
		return err
	}

	m.log.Info("reminder deleted", logx.String("id", id))
	m.publish(EventDeleted, removed)
	return nil
}

// Reconcile drops stored reminders whose registration is no longer live in the
// Scheduler (typically one-shots that already fired). It never touches the
// Scheduler. Callers opt in explicitly; nothing runs it implicitly.
func (m *Manager) Reconcile(ctx context.Context) ([]Reminder, error) {
	lister, ok := m.sched.(LiveLister)
	if !ok {
		return nil, ErrReconcileUnsupported
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := lister.Live(ctx)
	if err != nil {
		return nil, err
	}
	live := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		live[id] = struct{}{}
	}

	kept := make([]Reminder, 0, len(list))
	var pruned []Reminder
	for _, r := range list {
		if _, ok := live[r.ID]; ok {
			kept = append(kept, r)
		} else {
			pruned = append(pruned, r)
		}
	}
	if len(pruned) == 0 {
		return nil, nil
	}
	if err := m.store.Save(ctx, kept); err != nil {
		return nil, err
	}
	for _, r := range pruned {
		m.log.Info("reminder pruned (no live registration)", logx.String("id", r.ID))
		m.publish(EventPruned, r)
	}
	return pruned, nil
}

func (m *Manager) register(ctx context.Context, cfg Config, req Request) (string, error) {
	if cfg.RegisterTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RegisterTimeout)
		defer cancel()
	}
	id, err := m.sched.Register(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAdapterRegistration, err)
	}
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: scheduler returned an empty id", ErrAdapterRegistration)
	}
	return id, nil
}

func (m *Manager) cancel(ctx context.Context, cfg Config, id string) error {
	if cfg.CancelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.CancelTimeout)
		defer cancel()
	}
	if err := m.sched.Cancel(ctx, id); err != nil {
		return errors.Join(ErrAdapterCancellation, err)
	}
	return nil
}

func (m *Manager) publish(typ string, r Reminder) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventbus.Event{Type: typ, Data: r})
}
