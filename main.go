package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"panellogin/internal/login"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		login.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}
