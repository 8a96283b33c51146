package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/nowplaying/internal/services"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	runner := NewRunner(RunnerOpts{})
	err := runner.command().Run(ctx, os.Args)

	stop()
	if cerr := runner.Close(); cerr != nil {
		runner.logger.Warn("failed to close database", "error", cerr)
	}

	if err != nil {
		if services.IsAuthError(err) {
			runner.logger.Error("not logged in or session expired, run 'nowplaying auth login'", "error", err)
			os.Exit(1)
		}
		runner.logger.Fatalf("application error: %v", err)
	}
}
