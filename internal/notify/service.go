package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"healthvault/internal/eventbus"
	"healthvault/internal/reminder"
	"healthvault/internal/scheduler"
	logx "healthvault/pkg/logx"
)

const historyMax = 300

// Service delivers fired reminders. It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log  logx.Logger
	bus  eventbus.Bus
	sink Sink

	cfg     Config
	limiter *rate.Limiter

	// id@fire time -> suppress until
	dmu   sync.Mutex
	dedup map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem

	now func() time.Time
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:   log,
		bus:   bus,
		dedup: map[string]time.Time{},
		now:   time.Now,
	}
	s.applyLocked(cfg)
	return s
}

// SetSink overrides the sink derived from config. Nil restores it.
func (s *Service) SetSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sink == nil {
		sink = s.sinkFor(s.cfg)
	}
	s.sink = sink
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.DedupWindow < 0 {
		cfg.DedupWindow = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)
	s.sink = s.sinkFor(cfg)
}

func (s *Service) sinkFor(cfg Config) Sink {
	if len(cfg.Command) > 0 {
		return CommandSink{Argv: cfg.Command}
	}
	return LogSink{Log: s.log}
}

// Deliver shows one fired registration. It waits for the rate limiter and
// gives up with ErrRateLimited when ctx ends first.
func (s *Service) Deliver(ctx context.Context, n scheduler.Notification) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	sink := s.sink
	s.mu.Unlock()

	if sink == nil {
		return ErrNoSink
	}
	if cfg.DedupWindow > 0 && !s.dedupAllow(dedupKey(n), cfg.DedupWindow) {
		s.log.Debug("duplicate delivery suppressed", logx.String("id", n.ID))
		return nil
	}
	if err := lim.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	m := Message{ID: n.ID, Title: n.Title, Body: n.Body, At: n.At}
	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	err := sink.Show(callCtx, m)
	cancel()

	item := HistoryItem{At: s.now(), ID: m.ID, Title: m.Title, Body: m.Body}
	ev := FiredEvent{ID: m.ID, Title: m.Title, Body: m.Body, At: m.At}
	if err != nil {
		item.Error = err.Error()
		ev.Error = err.Error()
	}
	s.appendHistory(item)
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: reminder.EventFired, Time: item.At, Data: ev})
	}
	if err != nil {
		return err
	}
	s.log.Info("reminder delivered", logx.String("id", m.ID), logx.String("text", m.Body), logx.Bool("daily", n.Repeats))
	return nil
}

// History returns recent deliveries, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	out := append([]HistoryItem(nil), s.history...)
	s.hmu.Unlock()
	return out
}

func (s *Service) appendHistory(it HistoryItem) {
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > historyMax {
		s.history = s.history[len(s.history)-historyMax:]
	}
	s.hmu.Unlock()
}

func (s *Service) dedupAllow(key string, window time.Duration) bool {
	now := s.now()
	s.dmu.Lock()
	defer s.dmu.Unlock()
	for k, until := range s.dedup {
		if now.After(until) {
			delete(s.dedup, k)
		}
	}
	if until, ok := s.dedup[key]; ok && now.Before(until) {
		return false
	}
	s.dedup[key] = now.Add(window)
	return true
}

func dedupKey(n scheduler.Notification) string {
	return n.ID + "@" + n.At.Truncate(time.Minute).UTC().Format(time.RFC3339)
}
