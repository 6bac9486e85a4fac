package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"healthvault/internal/config"
	"healthvault/internal/eventbus"
	"healthvault/internal/notify"
	"healthvault/internal/reminder"
	"healthvault/internal/runtime/supervisor"
	"healthvault/internal/scheduler"
	"healthvault/internal/storage"
	logx "healthvault/pkg/logx"
	"healthvault/pkg/systemd"
)

// Options tweak how New builds the app for a given entry point.
type Options struct {
	// LogLevel overrides logging.level when set (the CLI uses it to stay quiet).
	LogLevel string
}

// App wires every service from one config file. The CLI builds it, uses the
// Manager and Closes it; the daemon additionally calls Start and Stop.
type App struct {
	opts Options

	cfgm *config.ConfigManager
	res  config.Resolved

	logs *logx.Service
	log  logx.Logger
	bus  eventbus.Bus
	kv   storage.KV

	sched *scheduler.Service
	notif *notify.Service
	store *reminder.Store
	mgr   *reminder.Manager

	sup *supervisor.Supervisor
}

func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	res, err := config.Resolve(cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	logs, log := logx.NewService(applyLevel(res.Logging, opts))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(config.Validate)

	kv, err := storage.Open(res.Storage, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, err
	}

	bus := eventbus.New()
	notif := notify.New(res.Notifier, log.With(logx.String("comp", "notify")), bus)
	sched := scheduler.New(res.Scheduler, kv, notif, log.With(logx.String("comp", "scheduler")))
	store := reminder.NewStore(kv, res.Store, log.With(logx.String("comp", "store")))
	planner := reminder.NewZonedPlanner(sched.Location, nil)
	mgr := reminder.NewManager(res.Manager, store, planner, sched, log.With(logx.String("comp", "reminders")), bus)

	return &App{
		opts:  opts,
		cfgm:  cfgm,
		res:   res,
		logs:  logs,
		log:   log,
		bus:   bus,
		kv:    kv,
		sched: sched,
		notif: notif,
		store: store,
		mgr:   mgr,
	}, nil
}

func applyLevel(c logx.Config, opts Options) logx.Config {
	if lvl := strings.TrimSpace(opts.LogLevel); lvl != "" {
		c.Level = lvl
	}
	return c
}

func (a *App) Manager() *reminder.Manager { return a.mgr }
func (a *App) Scheduler() *scheduler.Service { return a.sched }
func (a *App) Bus() eventbus.Bus { return a.bus }

// Done is closed when the daemon's supervisor context ends.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Start arms the scheduler and runs the background loops: config watch and
// reload, scheduler sync, optional reconcile, event logging and the systemd
// watchdog.
func (a *App) Start(ctx context.Context) error {
	if a.sup != nil {
		return errors.New("app already started")
	}
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))), supervisor.WithCancelOnError(true))

	if err := a.sched.Start(a.sup.Context()); err != nil {
		a.log.Warn("scheduler started without persisted registrations", logx.Err(err))
	}

	a.sup.Every("scheduler.sync", a.res.SyncInterval, func(c context.Context) error {
		_, _, err := a.sched.Sync(c)
		return err
	})
	if a.res.ReconcileInterval > 0 {
		a.sup.Every("reminders.reconcile", a.res.ReconcileInterval, func(c context.Context) error {
			pruned, err := a.mgr.Reconcile(c)
			if len(pruned) > 0 {
				a.log.Info("reconcile pruned reminders", logx.Int("count", len(pruned)))
			}
			return err
		})
	}
	if d := systemd.WatchdogInterval(); d > 0 {
		a.log.Debug("systemd watchdog enabled", logx.Duration("interval", d))
		a.sup.Every("systemd.watchdog", d, func(context.Context) error {
			_, err := systemd.Ping()
			return err
		})
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.logEvent(e)
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case next, ok := <-sub:
				if !ok {
					return nil
				}
				a.applyConfig(last, next)
				last = next
			}
		}
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	if _, err := systemd.Ready(); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	}
	a.log.Info("daemon started",
		logx.String("config", a.cfgm.Path()),
		logx.String("storage", a.res.Storage.Driver),
		logx.String("tz", a.sched.Location().String()),
		logx.Duration("sync_interval", a.res.SyncInterval),
		logx.Duration("reconcile_interval", a.res.ReconcileInterval))
	return nil
}

func (a *App) logEvent(e eventbus.Event) {
	switch d := e.Data.(type) {
	case reminder.Reminder:
		a.log.Debug("event", logx.String("type", e.Type), logx.String("id", d.ID))
	case notify.FiredEvent:
		a.log.Debug("event", logx.String("type", e.Type), logx.String("id", d.ID), logx.String("err", d.Error))
	default:
		a.log.Debug("event", logx.String("type", e.Type))
	}
}

// applyConfig pushes a validated reload into the running services.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	res, err := config.Resolve(newCfg)
	if err != nil {
		// Watch validates first; this only happens if validation is bypassed.
		a.log.Warn("config reload ignored", logx.Err(err))
		return
	}
	if config.RequiresRestart(oldCfg, newCfg) {
		a.log.Warn("storage settings changed; restart required for them to take effect")
	}
	if res.SyncInterval != a.res.SyncInterval || res.ReconcileInterval != a.res.ReconcileInterval {
		a.log.Warn("loop intervals changed; restart required for them to take effect")
	}

	a.logs.Apply(applyLevel(res.Logging, a.opts))
	a.notif.Apply(res.Notifier)
	a.sched.Apply(res.Scheduler)
	a.mgr.Apply(res.Manager)
	a.store.SetStrict(res.Store.Strict)

	a.res.Logging, a.res.Notifier, a.res.Scheduler = res.Logging, res.Notifier, res.Scheduler
	a.res.Manager, a.res.Store.Strict = res.Manager, res.Store.Strict

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// Stop shuts the daemon down in dependency order, each step bounded so one
// stuck component can't stall the rest.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return a.Close()
	}
	a.log.Info("stopping")
	if _, err := systemd.Stopping(); err != nil {
		a.log.Debug("sd_notify stopping failed", logx.Err(err))
	}
	a.sup.Cancel()

	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)
	err := a.sup.Err()
	if cerr := a.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		max = min(max, time.Until(dl))
	}
	if max <= 0 {
		a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}

// Close releases storage and log files. Safe to call once after New.
func (a *App) Close() error {
	var errs []error
	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	a.log.Debug("closed")
	if a.logs != nil {
		if err := a.logs.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
