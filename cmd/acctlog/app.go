package main

import (
	"context"
	"errors"
	"fmt"

	"acctlog/internal/amqp"
	"acctlog/internal/backend"
	"acctlog/internal/cli"
	"acctlog/internal/config"
	"acctlog/internal/ledger"
	"acctlog/internal/lock"
	"acctlog/internal/log"
	"acctlog/internal/metrics"
	"acctlog/internal/notify"
	"acctlog/internal/services"

	"github.com/redis/go-redis/v9"
)

// app holds every component of one acctlog process.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	backend *backend.BackendResult
	metrics *metrics.Metrics
	hub     *notify.Hub
	amqp    *amqp.Client
	redis   *redis.Client

	ledger     *services.LedgerService
	sync       *services.Synchronizer
	reconciler *services.Reconciler
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := cli.Bootstrap()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	a.backend, err = backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, err
	}

	a.hub = notify.NewHub(logger)
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without cross-process events",
				log.FieldError, err)
		} else {
			a.amqp = client
			a.hub.AddRelay(client)
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange)
		}
	}

	var locker lock.Locker
	if cfg.RedisAddr != "" {
		rdb, err := lock.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("Failed to connect to Redis, using in-process lock", log.FieldError, err)
		} else {
			a.redis = rdb
			locker = lock.NewRedis(rdb, "acctlog:lock:")
		}
	}

	mask, err := ledger.ParseMaskMode(cfg.ReconcileMask)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.ledger = services.NewLedgerService(a.backend.Store, a.hub, a.metrics, logger,
		services.LedgerConfig{EnforceEditWindow: cfg.EditWindowEnforced})
	a.sync = services.NewSynchronizer(a.backend.Store, a.hub, a.metrics, logger)
	a.reconciler = services.NewReconciler(a.backend.Store, a.hub, locker, a.metrics, logger,
		services.ReconcilerConfig{Mask: mask, LockTTL: cfg.ReconcileLockTTL})

	return a, nil
}

// Close releases every connection the app opened.
func (a *app) Close() {
	var errs []error
	if a.sync != nil {
		a.sync.Stop()
	}
	if a.amqp != nil {
		errs = append(errs, a.amqp.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.backend != nil && a.backend.Cleanup != nil {
		errs = append(errs, a.backend.Cleanup())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("Failed to close resources", log.FieldError, err)
	}
}

// startProjection subscribes the synchronizer. Backends deliver their
// current snapshot before Start returns.
func (a *app) startProjection(ctx context.Context) error {
	if err := a.sync.Start(ctx); err != nil {
		return fmt.Errorf("start synchronizer: %w", err)
	}
	return nil
}
