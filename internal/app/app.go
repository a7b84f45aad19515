package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"pubcast/internal/config"
	"pubcast/internal/eventbus"
	"pubcast/internal/producer"
	"pubcast/internal/promo"
	"pubcast/internal/runtime/supervisor"
	"pubcast/internal/screen"
	"pubcast/internal/storage"
	"pubcast/internal/transport/telegram"
	"pubcast/internal/variants"
	logx "pubcast/pkg/logx"
)

type App struct {
	cfgPath string
	started time.Time

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   *eventbus.MemBus
	store storage.Store

	variants *variants.Store
	composer *producer.Composer
	hub      *screen.Hub
	server   *screen.Server
	bot      *telegram.Bot
	promo    *promo.Service

	stopOnce sync.Once
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	appLog := log.With(logx.String("comp", "app"))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     appLog,
		logs:    logSvc,
		bus:     eventbus.New(),
	}
	if err := a.build(cfg, log); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

// build maps cfg into components. Nothing is started here.
func (a *App) build(cfg *config.Config, log logx.Logger) error {
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return err
	}
	a.store = st
	if st != nil {
		a.log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	cat, err := mapCatalog(cfg)
	if err != nil {
		return a.closeStore(err)
	}
	a.variants = variants.NewStore(cat)

	dc, err := mapDisplayConfig(cfg)
	if err != nil {
		return a.closeStore(err)
	}
	a.composer = producer.New(mapProducerConfig(cfg), a.bus, dc.Topic, a.variants, a.store,
		log.With(logx.String("comp", "producer")))
	a.hub = screen.NewHub(dc, cfg.Screens, a.bus, log.With(logx.String("comp", "display")))

	if cfg.HTTP.Enabled {
		hc, err := mapServerConfig(cfg)
		if err != nil {
			return a.closeStore(err)
		}
		a.server = screen.NewServer(hc, screen.Deps{
			Hub:      a.hub,
			Bus:      a.bus,
			Composer: a.composer,
			Variants: a.variants,
			Store:    a.store,
			Health:   a.health,
		}, log.With(logx.String("comp", "http")))
	}

	if cfg.Telegram.Enabled {
		tc, err := mapTelegramConfig(cfg)
		if err != nil {
			return a.closeStore(err)
		}
		bot, err := telegram.New(tc, a.composer, a.variants, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return a.closeStore(fmt.Errorf("telegram: %w", err))
		}
		a.bot = bot
	}

	pc, err := mapPromoConfig(cfg)
	if err != nil {
		return a.closeStore(err)
	}
	a.promo = promo.New(pc, a.composer, log)
	return nil
}

func (a *App) closeStore(err error) error {
	if a.store != nil {
		_ = a.store.Close()
	}
	return err
}

// Composer is the single entry point for content; the HTTP API, the bot and the
// promo scheduler all publish through it.
func (a *App) Composer() *producer.Composer { return a.composer }

func (a *App) Hub() *screen.Hub { return a.hub }

// Done is closed when the app's run context ends, either through Stop or because a
// supervised component failed.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		return nil
	}
	return a.sup.Context().Done()
}

// Err returns the first error reported by a supervised component.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.started = time.Now()
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)

	// Validate reloads that would fail to map before anything sees them.
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, err := mapCatalog(cfg); err != nil {
			return err
		}
		if _, err := mapPromoConfig(cfg); err != nil {
			return err
		}
		_, err := mapDisplayConfig(cfg)
		return err
	})

	runCtx := a.sup.Context()

	// Screens subscribe before any producer can publish.
	if err := a.hub.Start(runCtx); err != nil {
		a.sup.Cancel()
		return err
	}

	if a.server != nil {
		a.sup.Go("http.serve", a.server.Serve)
	}
	if a.bot != nil {
		if err := a.bot.Start(runCtx); err != nil {
			a.sup.Cancel()
			return fmt.Errorf("telegram: %w", err)
		}
	}
	if err := a.promo.Start(runCtx); err != nil {
		a.log.Warn("promo not scheduled", logx.Err(err))
	}

	events, unsub := a.bus.Subscribe("", 128)
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
				a.log.Trace("event", logx.String("topic", e.Topic), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go("config.reload", func(c context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return nil
			case newCfg, ok := <-sub:
				if !ok {
					return nil
				}
				// Coalesce bursts: keep only the latest config in the channel.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	a.sup.Go("config.watch", a.cfgm.Watch)

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}

	a.log.Info("app started",
		logx.String("config", a.cfgPath),
		logx.Strings("screens", a.hub.Names()),
		logx.Bool("http", a.server != nil),
		logx.Bool("telegram", a.bot != nil),
	)
	return nil
}

// applyConfig pushes the live sections of newCfg into running components. Other
// sections are only reported.
func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections, attrs, restart := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := logx.String("changed", strings.Join(sections, ","))
	a.log.Debug("config change summary", append([]logx.Field{changed}, attrs...)...)
	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect",
			logx.String("sections", strings.Join(restart, ",")))
	}

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(newCfg))
		case "producer":
			a.composer.Apply(mapProducerConfig(newCfg))
		case "variants":
			cat, err := mapCatalog(newCfg)
			if err != nil {
				a.log.Warn("invalid variants config; keeping previous", logx.Err(err))
				continue
			}
			a.variants.Replace(cat)
		case "promo":
			pc, err := mapPromoConfig(newCfg)
			if err == nil {
				err = a.promo.Apply(pc)
			}
			if err != nil {
				a.log.Warn("promo config not applied", logx.Err(err))
			}
		}
	}
	a.log.Info("config reloaded", changed)
}

func (a *App) health() map[string]any {
	out := map[string]any{
		"uptime":      time.Since(a.started).Round(time.Second).String(),
		"promo_fired": a.promo.Fired(),
		"storage":     a.store != nil,
	}
	if a.sup != nil {
		out["goroutines"] = a.sup.Stats()
	}
	if a.bot != nil {
		if sup := a.bot.Supervisor(); sup != nil {
			out["telegram"] = sup.Stats()
		}
	}
	return out
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	var errs []error
	a.stopOnce.Do(func() { errs = a.stop(ctx, reason) })
	return errors.Join(errs...)
}

func (a *App) stop(ctx context.Context, reason StopReason) []error {
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	var (
		mu   sync.Mutex
		errs []error
	)

	// step runs one shutdown step with an upper bound so one component can't stall
	// the whole stop.
	step := func(name string, limit time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", limit))

		stepCtx := ctx
		if limit > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem < limit {
					limit = max(rem, 0)
				}
			}
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, limit)
			defer cancel()
		}

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
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// Producers first so nothing new reaches the screens while they wind down.
	step("http", 3*time.Second, func(c context.Context) error {
		if a.server == nil {
			return nil
		}
		return a.server.Shutdown(c)
	})
	step("telegram", 3*time.Second, func(c context.Context) error {
		if a.bot == nil {
			return nil
		}
		return a.bot.Stop(c)
	})
	step("promo", 1*time.Second, a.promo.Stop)

	a.sup.Cancel()
	step("screens", 2*time.Second, a.hub.Stop)
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	// Finally, wait for supervised goroutines (config watch/reload, http serve, event log).
	step("supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped", logx.String("reason", string(reason)))
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return errs
}
