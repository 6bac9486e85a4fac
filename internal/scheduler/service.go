package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"healthvault/internal/reminder"
	logx "healthvault/pkg/logx"
)

func New(cfg Config, kv reminder.Blobs, deliver Deliverer, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.StateKey) == "" {
		cfg.StateKey = DefaultStateKey
	}
	s := &Service{
		cfg:     cfg,
		log:     log,
		kv:      kv,
		deliver: deliver,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		armed:    map[string]*armed{},
		consumed: map[string]struct{}{},
		newID:    uuid.NewString,
		now:      time.Now,
	}
	s.loc = s.loadLocationLocked()
	return s
}

// Location is the zone triggers are interpreted in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc
}

// Running reports whether Start has been called without a matching Stop.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c != nil
}

// Apply swaps config at runtime. A timezone change re-arms everything.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(cfg.StateKey) == "" {
		cfg.StateKey = s.cfg.StateKey
	}
	if cfg.StateKey != s.cfg.StateKey {
		s.log.Warn("scheduler.state_key change requires restart; keeping old key",
			logx.String("old", s.cfg.StateKey), logx.String("new", cfg.StateKey))
		cfg.StateKey = s.cfg.StateKey
	}
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	if oldTZ == strings.TrimSpace(cfg.Timezone) {
		return
	}
	s.loc = s.loadLocationLocked()
	if s.c != nil {
		s.restartLocked(s.runCtx)
	}
}

// Start arms every persisted registration.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.runCtx, s.runCancel = context.WithCancel(context.WithoutCancel(ctx))
	s.loc = s.loadLocationLocked()
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	s.c.Start()

	s.dropConsumedLocked(ctx)
	regs, err := s.loadLocked(ctx)
	if err != nil {
		s.log.Error("scheduler state unreadable; starting empty", logx.Err(err))
		regs = nil
	}
	for _, r := range regs {
		if _, done := s.consumed[r.ID]; !done {
			s.armLocked(r)
		}
	}
	s.log.Info("service started", logx.String("tz", s.loc.String()), logx.Int("registrations", len(regs)))
	return err
}

// Stop disarms everything. Persisted registrations stay for the next Start.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()

	s.mu.Lock()
	c := s.c
	s.c = nil
	for id, a := range s.armed {
		if a.timer != nil {
			a.timer.Stop()
		}
		delete(s.armed, id)
	}
	cancel := s.runCancel
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	if cancel != nil {
		cancel()
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Sync re-reads the persisted table and arms/disarms to match it.
// Returns how many registrations were armed and disarmed. No-op when stopped.
func (s *Service) Sync(ctx context.Context) (added, removed int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return 0, 0, nil
	}
	s.dropConsumedLocked(ctx)
	regs, err := s.loadLocked(ctx)
	if err != nil {
		return 0, 0, err
	}
	want := make(map[string]struct{}, len(regs))
	for _, r := range regs {
		if _, done := s.consumed[r.ID]; done {
			continue
		}
		want[r.ID] = struct{}{}
		if _, ok := s.armed[r.ID]; !ok {
			s.armLocked(r)
			added++
		}
	}
	for id := range s.armed {
		if _, ok := want[id]; !ok {
			s.disarmLocked(id)
			removed++
		}
	}
	if added > 0 || removed > 0 {
		s.log.Debug("scheduler synced", logx.Int("armed", added), logx.Int("disarmed", removed))
	}
	return added, removed, nil
}

func (s *Service) restartLocked(ctx context.Context) {
	// Don't wait for running jobs: they take s.mu.
	if s.c != nil {
		s.c.Stop()
	}
	for id := range s.armed {
		s.disarmLocked(id)
	}
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	s.c.Start()
	regs, err := s.loadLocked(ctx)
	if err != nil {
		s.log.Error("scheduler state unreadable on restart", logx.Err(err))
	}
	for _, r := range regs {
		if _, done := s.consumed[r.ID]; !done {
			s.armLocked(r)
		}
	}
	s.log.Info("service restarted", logx.String("tz", s.loc.String()), logx.Int("registrations", len(regs)))
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
