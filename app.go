package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/chamran/config"
	"github.com/cppla/chamran/controllers"
	"github.com/cppla/chamran/events"
	"github.com/cppla/chamran/services"
	"github.com/cppla/chamran/store"
	"github.com/cppla/chamran/utils"
)

// app holds the process-wide connections shared by every command.
type app struct {
	cfg      config.AppConfig
	logger   *zap.Logger
	store    *store.Store
	events   events.Publisher
	nats     *events.NATSPublisher
	services *services.Services
}

// bootstrap loads the configuration and opens the store, Redis and NATS.
func bootstrap(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if err := utils.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger := utils.Logger

	s, err := config.InitStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, store: s, events: events.Nop{}}

	utils.InitRedis(cfg.Redis)

	if cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			// events are best effort, keep serving without them
			logger.Warn("events disabled", zap.Error(err))
		} else {
			a.nats = pub
			a.events = pub
		}
	}

	a.services = services.New(s, a.events, logger, services.Options{
		AdminEmail:     cfg.Admin.Email,
		Maintenance:    cfg.App.Maintenance,
		RetryMax:       cfg.Database.RetryMax,
		CascadeTimeout: time.Duration(cfg.Database.TimeoutSec) * 3 * time.Second,
	})
	return a, nil
}

// checks returns the probes served on /health.
func (a *app) checks() map[string]controllers.Check {
	checks := map[string]controllers.Check{
		"store": func(ctx context.Context) error {
			_, err := a.store.Users.Count(ctx)
			return err
		},
	}
	if rc := utils.GetRedis(); rc != nil {
		checks["redis"] = func(ctx context.Context) error { return rc.Ping(ctx).Err() }
	}
	if a.nats != nil {
		checks["nats"] = a.nats.Healthy
	}
	return checks
}

// close releases every connection.
func (a *app) close(ctx context.Context) error {
	a.events.Close()
	if err := utils.CloseRedis(); err != nil {
		a.logger.Warn("close redis", zap.Error(err))
	}
	err := a.store.Shutdown(ctx)
	_ = a.logger.Sync()
	return err
}
