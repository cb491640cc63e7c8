package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/report"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentReport)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, res := cli.InitApp(ctx, logger, cfg)

	r, err := report.Build(ctx, a, time.Now())
	if err == nil {
		err = report.Write(os.Stdout, r)
	}
	if err != nil {
		logger.Failure(ctx, "Report failed", log.OpLoad, err)
	}

	a.Close()
	if cerr := res.Cleanup(); cerr != nil {
		logger.Failure(ctx, "Backend cleanup failed", log.OpShutdown, cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}
