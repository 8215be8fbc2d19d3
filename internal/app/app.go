// Package app wires the bot together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"relaybot/internal/alert"
	"relaybot/internal/config"
	"relaybot/internal/deliver"
	"relaybot/internal/fetch"
	"relaybot/internal/ledger"
	"relaybot/internal/relay"
	"relaybot/internal/runtime/supervisor"
	"relaybot/internal/schedule"
	"relaybot/internal/storage"
	"relaybot/internal/transport/telegram"
	"relaybot/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store     storage.Store
	adapter   *telegram.Adapter
	fetcher   *fetch.Fetcher
	deliverer *deliver.Deliverer
	alerter   *alert.Alerter
	relayer   *relay.Relayer
	scheduler *schedule.Service

	sup *supervisor.Supervisor
}

// New loads the config and builds every component. Nothing starts running
// until Start.
func New(configPath string) (*App, error) {
	mgr := config.NewManager(configPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log.With(logx.String("svc", "config")))

	store, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: cfg.Storage.Busy(),
	}, log.With(logx.String("svc", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	adapter, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token},
		log.With(logx.String("svc", "telegram")))
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, fmt.Errorf("creating telegram adapter: %w", err)
	}

	fetcher := fetch.New(fetchConfig(cfg), store, log.With(logx.String("svc", "fetch")))

	deliverer := deliver.New(deliver.Config{
		MaxUploadBytes: cfg.Relay.UploadCeiling(),
		UserAgent:      cfg.Fetch.UserAgent,
	}, adapter, log.With(logx.String("svc", "deliver")))

	alerter := alert.New(alert.Config{
		AdminChat: cfg.Telegram.AdminChat,
		PerMinute: cfg.Telegram.AlertsPerMinute,
	}, adapter, log.With(logx.String("svc", "alert")))

	led := ledger.New(store, cfg.Relay.Cap())

	relayer := relay.New(relayConfig(cfg), store, led, fetcher, deliverer, alerter,
		log.With(logx.String("svc", "relay")))

	scheduler := schedule.New(schedule.Config{Tick: cfg.Relay.TickInterval()},
		relayer, log.With(logx.String("svc", "schedule")))

	return &App{
		cfgMgr:    mgr,
		logSvc:    logSvc,
		log:       log.With(logx.String("svc", "app")),
		store:     store,
		adapter:   adapter,
		fetcher:   fetcher,
		deliverer: deliverer,
		alerter:   alerter,
		relayer:   relayer,
		scheduler: scheduler,
	}, nil
}

// Start launches the config watcher and the polling scheduler.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, a.log)

	a.sup.GoRestart("config.watch", time.Second, 30*time.Second, func(ctx context.Context) error {
		return a.cfgMgr.Watch(ctx)
	})
	a.sup.Go("config.apply", func(ctx context.Context) error {
		a.applyLoop(ctx)
		return nil
	})

	if err := a.scheduler.Start(a.sup.Context()); err != nil {
		return err
	}
	a.log.Info("started")
	return nil
}

// applyLoop pushes validated config reloads into the running components.
// Channels and sources are re-read from the store each pass, so only process
// level settings need live application.
func (a *App) applyLoop(ctx context.Context) {
	sub := a.cfgMgr.Subscribe(1)
	defer a.cfgMgr.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.fetcher.Apply(fetchConfig(cfg))
			a.relayer.Apply(relayConfig(cfg))
			a.alerter.Apply(alert.Config{
				AdminChat: cfg.Telegram.AdminChat,
				PerMinute: cfg.Telegram.AlertsPerMinute,
			})
			if err := a.scheduler.Apply(schedule.Config{Tick: cfg.Relay.TickInterval()}); err != nil {
				a.log.Warn("rescheduling failed", logx.Err(err))
			}
			a.log.Info("config applied")
		}
	}
}

// Stop shuts everything down, bounded by ctx. The scheduler stops first so
// no new pass starts while the rest winds down.
func (a *App) Stop(ctx context.Context) {
	a.scheduler.Stop(ctx)
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("supervisor stopped with error", logx.Err(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing storage failed", logx.Err(err))
	}
	a.log.Info("stopped")
	_ = a.logSvc.Close()
}

func fetchConfig(cfg *config.Config) fetch.Config {
	return fetch.Config{
		UserAgent:       cfg.Fetch.UserAgent,
		Timeout:         cfg.Fetch.Timeout(),
		APIBase:         cfg.Fetch.Base(),
		AppID:           cfg.Fetch.AppID,
		SessionCookie:   cfg.Fetch.SessionCookie,
		MirrorInstances: cfg.Fetch.MirrorInstances,
		ResolveTTL:      cfg.Fetch.TTL(),
		PageSize:        cfg.Fetch.Page(),
	}
}

func relayConfig(cfg *config.Config) relay.Config {
	return relay.Config{
		IntervalFloor: cfg.Relay.Floor(),
		Burst:         cfg.Relay.BurstCap(),
		SendDelay:     cfg.Relay.Delay(),
	}
}
