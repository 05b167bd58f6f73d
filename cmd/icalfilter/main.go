package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	appLog "icalfilter/internal/log"
)

const version = "0.1.0"

func main() {
	// A missing .env file is the normal case.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		appLog.Error("failed to load .env", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		appLog.Error("icalfilter failed", err)
		cancel()
		os.Exit(1)
	}
}
