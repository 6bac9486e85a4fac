package scheduler

import (
	"context"
	"time"

	"healthvault/internal/reminder"
)

// Snapshot lists persisted registrations with their next fire time.
// It works whether or not the service is running.
func (s *Service) Snapshot(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	regs, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(regs))
	for _, r := range regs {
		if _, done := s.consumed[r.ID]; done {
			continue
		}
		e := Entry{
			ID:      r.ID,
			Trigger: r.Request.Trigger,
			Title:   r.Request.Title,
			Body:    r.Request.Body,
			Next:    s.nextLocked(r.Request.Trigger),
		}
		if r.Request.Trigger.Repeats {
			e.Spec = r.Request.Trigger.CronSpec()
		}
		if a, ok := s.armed[r.ID]; ok {
			e.Armed = true
			if a.entryID != 0 && s.c != nil {
				if ce := s.c.Entry(a.entryID); !ce.Next.IsZero() {
					e.Next = ce.Next
				}
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// nextLocked computes the next fire time of t in the scheduler zone.
func (s *Service) nextLocked(t reminder.Trigger) time.Time {
	if !t.Repeats {
		return t.At(s.loc)
	}
	sched, err := s.parser.Parse(t.CronSpec())
	if err != nil {
		return time.Time{}
	}
	return sched.Next(s.now().In(s.loc))
}
