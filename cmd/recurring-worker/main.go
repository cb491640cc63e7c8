package main

import (
	"context"
	"time"

	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentRecurring)
	logger.Info("Starting recurring-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	a, res := cli.InitApp(context.Background(), logger, cfg)

	processor := worker.NewPeriodic("recurring", cfg.RecurringInterval, func(ctx context.Context, now time.Time) error {
		fired, err := a.Processor.ProcessDue(ctx, now)
		if fired > 0 {
			logger.InfoContext(ctx, "Recurring transactions materialized",
				log.FieldFired, fired,
				"next_check", now.Add(cfg.RecurringInterval).Format("15:04:05"))
		}
		return err
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Failure(ctx, "Processor stop failed", log.OpShutdown, err)
		}
		a.Close()
		if err := res.Cleanup(); err != nil {
			logger.Failure(ctx, "Backend cleanup failed", log.OpShutdown, err)
		}
	})

	a.Start(ctx)
	if err := processor.Start(ctx); err != nil {
		logger.Failure(ctx, "Processor start failed", log.OpStartup, err)
	}

	cli.WaitForShutdown(ctx, done)
}
