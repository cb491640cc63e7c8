package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentAlerts)
	logger.Info("Starting alert-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	a, res := cli.InitApp(context.Background(), logger, cfg)
	alerts := worker.NewAlertWorker(a.Alerts)

	refresher := worker.NewPeriodic("alerts", cfg.AlertRefreshInterval, alerts.Refresh)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := refresher.Stop(ctx); err != nil {
			logger.Failure(ctx, "Refresher stop failed", log.OpShutdown, err)
		}
		a.Close()
		if err := res.Cleanup(); err != nil {
			logger.Failure(ctx, "Backend cleanup failed", log.OpShutdown, err)
		}
	})

	a.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return refresher.Start(gctx)
	})
	if res.Consumer != nil {
		g.Go(func() error {
			logger.InfoContext(gctx, "Consuming ledger events", "queue", cfg.AMQPQueue)
			return res.Consumer.Consume(gctx, alerts.HandleEvent)
		})
	} else {
		logger.Info("AMQP disabled - alerts refresh on the interval only")
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Failure(ctx, "Alert worker failed", log.OpConsume, err)
	}

	cli.WaitForShutdown(ctx, done)
}
