package scheduler

import (
	"context"

	logx "healthvault/pkg/logx"
)

// fire runs when a registration's trigger elapses. ver guards against
// callbacks from registrations that were re-armed or cancelled meanwhile.
func (s *Service) fire(id string, ver uint64) {
	s.mu.Lock()
	a, ok := s.armed[id]
	if !ok || a.ver != ver {
		s.mu.Unlock()
		return
	}
	req := a.req
	at := s.now().In(s.loc)
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if !req.Trigger.Repeats {
		// One-shots are consumed before delivery so a crash mid-delivery
		// cannot fire them twice.
		delete(s.armed, id)
		if _, err := s.removeLocked(ctx, id); err != nil {
			s.consumed[id] = struct{}{}
			s.log.Error("failed to drop fired registration; retrying on next sync", logx.String("id", id), logx.Err(err))
		}
	}
	d := s.deliver
	s.mu.Unlock()

	s.log.Debug("registration fired", logx.String("id", id), logx.String("trigger", req.Trigger.String()))
	if d == nil {
		return
	}
	n := Notification{ID: id, Title: req.Title, Body: req.Body, At: at, Repeats: req.Trigger.Repeats}
	if err := d.Deliver(ctx, n); err != nil {
		s.log.Warn("delivery failed", logx.String("id", id), logx.Err(err))
	}
}

// dropConsumedLocked retries removing fired one-shots from the state key.
func (s *Service) dropConsumedLocked(ctx context.Context) {
	for id := range s.consumed {
		if _, err := s.removeLocked(ctx, id); err != nil {
			s.log.Warn("fired registration still persisted", logx.String("id", id), logx.Err(err))
			continue
		}
		delete(s.consumed, id)
	}
}
