package main

import (
	"context"
	"time"

	"acctlog/internal/cli"
	"acctlog/internal/log"
	"acctlog/internal/notify"
	"acctlog/internal/services"

	ucli "github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func cmdRun() *ucli.Command {
	return &ucli.Command{
		Name:    "run",
		Aliases: []string{"start"},
		Usage:   "Keep the projection live, relay change events and serve metrics",
		Flags: []ucli.Flag{
			&ucli.DurationFlag{
				Name:  "shutdown-timeout",
				Value: 30 * time.Second,
				Usage: "how long to wait for cleanup on shutdown",
			},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *ucli.Command) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	logger := a.logger.WithComponent(log.ComponentApp)

	parent, stop := context.WithCancel(ctx)
	ctx, done := cli.GracefulShutdown(parent, logger, cmd.Duration("shutdown-timeout"), a.Close)
	defer cli.WaitForShutdown(ctx, done)
	defer stop()

	if err := a.startProjection(ctx); err != nil {
		return err
	}
	a.sync.OnChange(func(v services.View) {
		logger.Debug("Projection updated",
			log.FieldVersion, v.EntryVersion,
			log.FieldCount, len(v.Entries))
	})

	g, gctx := errgroup.WithContext(ctx)
	if a.backend.Watch != nil {
		g.Go(func() error { return a.backend.Watch(gctx) })
	}
	if a.amqp != nil {
		g.Go(func() error {
			return a.amqp.Consume(gctx, func(ctx context.Context, ev notify.Event) error {
				a.hub.Deliver(ctx, ev)
				return nil
			})
		})
	}
	if a.cfg.MetricsAddr != "" {
		g.Go(func() error {
			logger.Info("Serving metrics", "addr", a.cfg.MetricsAddr)
			return a.metrics.Serve(gctx, a.cfg.MetricsAddr)
		})
	}
	if a.cfg.ReconcileOnStart {
		a.reconciler.TriggerInBackground(gctx)
	}

	logger.Info("acctlog running",
		log.FieldOperation, log.OpStartup,
		log.FieldBackend, a.cfg.DataBackend,
		"amqp_enabled", a.amqp != nil,
		"redis_lock", a.redis != nil)

	<-gctx.Done()
	return g.Wait()
}
