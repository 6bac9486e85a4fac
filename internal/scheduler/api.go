package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"healthvault/internal/reminder"
	logx "healthvault/pkg/logx"
)

// Register persists a registration and arms it if the service is running.
// The returned id is stable for the registration's lifetime.
func (s *Service) Register(ctx context.Context, req reminder.Request) (string, error) {
	if err := req.Trigger.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
	}
	if req.Trigger.Repeats {
		if _, err := s.parser.Parse(req.Trigger.CronSpec()); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidTrigger, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	regs, err := s.loadLocked(ctx)
	if err != nil {
		return "", err
	}
	r := registration{ID: s.newID(), Request: req, CreatedAt: s.now()}
	// Last point the caller can still abandon the registration.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := s.saveLocked(ctx, append(regs, r)); err != nil {
		return "", err
	}
	if s.c != nil {
		s.armLocked(r)
	}

	args := []logx.Field{logx.String("id", r.ID), logx.String("trigger", req.Trigger.String()), logx.Bool("armed", s.c != nil)}
	if next := s.nextLocked(req.Trigger); !next.IsZero() {
		args = append(args, logx.Time("next", next))
	}
	s.log.Debug("registration added", args...)
	return r.ID, nil
}

// Cancel removes a registration. Unknown ids are not an error.
func (s *Service) Cancel(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disarmLocked(id)
	removed, err := s.removeLocked(ctx, id)
	if err != nil {
		return err
	}
	if removed {
		s.log.Debug("registration cancelled", logx.String("id", id))
	}
	return nil
}

// Live returns the ids of all pending registrations.
func (s *Service) Live(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	regs, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(regs))
	for _, r := range regs {
		if _, done := s.consumed[r.ID]; !done {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (s *Service) loadLocked(ctx context.Context) ([]registration, error) {
	b, ok, err := s.kv.Get(ctx, s.cfg.StateKey)
	if err != nil {
		return nil, err
	}
	if !ok || len(strings.TrimSpace(string(b))) == 0 {
		return nil, nil
	}
	var regs []registration
	if err := json.Unmarshal(b, &regs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}
	return regs, nil
}

func (s *Service) saveLocked(ctx context.Context, regs []registration) error {
	if regs == nil {
		regs = []registration{}
	}
	b, err := json.Marshal(regs)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.cfg.StateKey, b)
}

func (s *Service) removeLocked(ctx context.Context, id string) (bool, error) {
	regs, err := s.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	n := 0
	for _, r := range regs {
		if r.ID == id {
			continue
		}
		regs[n] = r
		n++
	}
	if n == len(regs) {
		return false, nil
	}
	return true, s.saveLocked(ctx, regs[:n])
}

// armLocked starts the runtime side of r. Call with s.mu held and s.c set.
func (s *Service) armLocked(r registration) {
	s.disarmLocked(r.ID)
	s.ver++
	a := &armed{req: r.Request, ver: s.ver}
	id, ver := r.ID, a.ver

	if r.Request.Trigger.Repeats {
		eid, err := s.c.AddJob(r.Request.Trigger.CronSpec(), cron.FuncJob(func() { s.fire(id, ver) }))
		if err != nil {
			s.log.Error("arm daily registration failed", logx.String("id", id), logx.Err(err))
			return
		}
		a.entryID = eid
	} else {
		delay := r.Request.Trigger.At(s.loc).Sub(s.now())
		if delay < 0 {
			delay = 0
		}
		a.timer = time.AfterFunc(delay, func() { s.fire(id, ver) })
	}
	s.armed[id] = a
}

func (s *Service) disarmLocked(id string) {
	a, ok := s.armed[id]
	if !ok {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	if a.entryID != 0 && s.c != nil {
		s.c.Remove(a.entryID)
	}
	delete(s.armed, id)
}
