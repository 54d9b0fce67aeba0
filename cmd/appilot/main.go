package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/kleverhq/appilot/cmd"
	"github.com/kleverhq/appilot/internal/observability"
)

func main() {
	// Interrupts cancel the context; the task loop honors it at round
	// boundaries so an in-flight device action is never cut in half.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()

	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
