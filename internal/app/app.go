// Package app wires configuration, storage, the Telegram transport, the
// conversation engine and the reminder scheduler into one process.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"deadlinebot/internal/config"
	"deadlinebot/internal/conversation"
	"deadlinebot/internal/observability"
	"deadlinebot/internal/reminder"
	rtsup "deadlinebot/internal/runtime/supervisor"
	"deadlinebot/internal/storage"
	kit "deadlinebot/internal/transport"
	telegram "deadlinebot/internal/transport/telegram/adapter"
	"deadlinebot/internal/transport/telegram/router"
	"deadlinebot/pkg/logx"
	"deadlinebot/pkg/systemd"
)

const sweepEvery = time.Minute

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	store     storage.Store
	adapter   kit.Adapter
	reminders *reminder.Service
	engine    *conversation.Engine
	disp      *router.Dispatcher
	metrics   *observability.Metrics
	obs       *observability.Server

	updates chan kit.Update
	started time.Time
}

type options struct {
	adapter  kit.Adapter
	registry *prometheus.Registry
}

type Option func(*options)

// WithAdapter replaces the Telegram adapter, mainly for tests.
func WithAdapter(ad kit.Adapter) Option { return func(o *options) { o.adapter = ad } }

// WithRegistry sets the metrics registry. A fresh one is used by default.
func WithRegistry(reg *prometheus.Registry) Option { return func(o *options) { o.registry = reg } }

func New(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	loc, err := cfg.Reminders.Location()
	if err != nil {
		return nil, err
	}

	// The Telegram log sink needs the adapter, which needs a logger first.
	logs, root := logx.New(logConfig(cfg), nil)
	log := root.With(logx.String("comp", "app"))

	ad := o.adapter
	if ad == nil {
		tg, err := telegram.New(adapterConfig(cfg), root.With(logx.String("comp", "telegram")))
		if err != nil {
			logs.Close()
			return nil, err
		}
		ad = tg
	}
	logs.SetSender(ad)

	st, err := storage.Open(storageConfig(cfg), root.With(logx.String("comp", "storage")))
	if err != nil {
		logs.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", cfg.Storage.Driver))

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logs,
		store:   st,
		adapter: ad,
		updates: make(chan kit.Update, 256),
	}

	reg := o.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	a.metrics, err = observability.NewMetrics(reg, observability.Gauges{
		Sessions:  func() int { return a.engine.Sessions().Len() },
		Scheduled: func() int { return a.reminders.Len() },
	})
	if err != nil {
		_ = st.Close()
		logs.Close()
		return nil, err
	}

	a.reminders = reminder.New(reminderConfig(cfg, loc), st, ad, a.metrics, root.With(logx.String("comp", "reminder")))
	a.engine = conversation.New(conversationConfig(cfg, loc), conversation.Deps{
		Store:     st,
		Scheduler: a.reminders,
		Sender:    ad,
		Observer:  a.metrics,
		Log:       root.With(logx.String("comp", "conversation")),
	})
	a.disp, err = router.New(dispatcherConfig(cfg), a.engine, ad, a.metrics, root.With(logx.String("comp", "router")))
	if err != nil {
		_ = st.Close()
		logs.Close()
		return nil, err
	}
	a.obs = observability.NewServer(serverConfig(cfg), reg, a.health, root.With(logx.String("comp", "observability")))
	return a, nil
}

// Done is closed once the app context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the app supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.started = time.Now()
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	c := a.sup.Context()

	a.reminders.Start(c)
	n, err := a.reminders.ScheduleAll(c)
	if err != nil {
		return fmt.Errorf("schedule reminders: %w", err)
	}
	a.log.Info("reminders scheduled", logx.Int("users", n))

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.disp.Run(c, a.updates)
	})
	if err := a.adapter.Start(c, a.updates); err != nil {
		return err
	}
	if mu, ok := a.adapter.(kit.CommandMenuUpdater); ok {
		a.sup.Go0("telegram.menu", func(c context.Context) {
			mctx, cancel := context.WithTimeout(c, 10*time.Second)
			defer cancel()
			if err := mu.UpdateMenuCommands(mctx, conversation.Commands); err != nil {
				a.log.Warn("command menu update failed", logx.Err(err))
			}
		})
	}
	if err := a.obs.Start(c); err != nil {
		a.log.Warn("observability endpoint not started", logx.Err(err))
	}

	a.sup.Go0("sessions.sweep", a.sweepLoop)

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, next *config.Config) error {
		return serverConfig(next).Check()
	})
	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				a.reload(c, last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		systemd.Watchdog(c, func() bool { return a.sup.Err() == nil })
	})
	if _, err := systemd.Ready(); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	}
	a.log.Info("app started")
	return nil
}

func (a *App) sweepLoop(ctx context.Context) {
	t := time.NewTicker(sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.engine.Sessions().Sweep(); n > 0 {
				a.log.Debug("expired sessions dropped", logx.Int("count", n))
			}
		}
	}
}

// reload applies the settings that can change at runtime.
func (a *App) reload(ctx context.Context, old, next *config.Config) {
	sections, attrs := config.SummarizeChange(old, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if keys := config.RestartRequired(old, next); len(keys) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.String("keys", strings.Join(keys, ",")))
	}

	a.logs.Apply(logConfig(next))
	if err := a.obs.Reconfigure(ctx, serverConfig(next)); err != nil {
		a.log.Warn("observability reconfigure failed", logx.Err(err))
	}
	a.disp.SetHandlerTimeout(next.Dispatcher.HandlerTimeoutDuration())
	a.engine.Sessions().SetTTL(next.Conversation.SessionTTLDuration())
	a.reminders.Apply(reminder.Config{FireTimeout: next.Reminders.FireTimeoutDuration()})

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) health() any {
	status := "ok"
	if err := a.Err(); err != nil {
		status = "degraded"
	}
	body := map[string]any{
		"status":    status,
		"uptime":    time.Since(a.started).Round(time.Second).String(),
		"sessions":  a.engine.Sessions().Len(),
		"reminders": a.reminders.Len(),
	}
	sups := map[string]rtsup.Snapshot{}
	if a.sup != nil {
		sups["app"] = a.sup.Snapshot()
	}
	if sp, ok := a.adapter.(interface{ Supervisor() *rtsup.Supervisor }); ok && sp.Supervisor() != nil {
		sups["telegram"] = sp.Supervisor().Snapshot()
	}
	if s := a.disp.Supervisor(); s != nil {
		sups["router"] = s.Snapshot()
	}
	body["supervisors"] = sups
	return body
}

// Stop shuts components down in dependency order. Each step is bounded so
// a stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()
	a.sup.Cancel()

	a.step(ctx, "adapter", 3*time.Second, a.adapter.Stop)
	a.step(ctx, "reminders", 2*time.Second, func(c context.Context) error { a.reminders.Stop(c); return nil })
	// The dispatcher drains accepted updates before its Run returns.
	a.step(ctx, "supervisor", 5*time.Second, a.sup.Wait)
	a.step(ctx, "observability", time.Second, a.obs.Stop)
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	if dl, ok := ctx.Deadline(); ok {
		limit = min(limit, time.Until(dl))
	}
	if limit <= 0 {
		a.log.Warn("stop step skipped (no time left)", logx.String("name", name))
		return
	}
	sctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(sctx)
	}()
	select {
	case err := <-done:
		if err != nil && sctx.Err() == nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-sctx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
