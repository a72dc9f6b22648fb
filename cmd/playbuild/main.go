// Command playbuild builds the playground's client and server bundles.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/stianhazel/play.tailwindcss.com/internal/config"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "environment: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(env).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
