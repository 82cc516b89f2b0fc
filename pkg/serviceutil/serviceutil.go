// Package serviceutil holds the process plumbing of the binaries.
package serviceutil

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

const exitInterrupted = 130

// SignalContext returns a context cancelled by the first SIGINT or SIGTERM. A second signal exits at
// once, crawls can otherwise sit in their page delays for minutes.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		slog.Info("shutting down, signal again to exit immediately", "signal", sig.String())
		cancel()
		<-sigs
		os.Exit(exitInterrupted)
	}()

	return ctx
}

// ExitCode is the process status for a run that ended with err.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return 1
	}
}

func Fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	os.Exit(ExitCode(err))
}
