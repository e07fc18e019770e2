// Package appshell runs a command with a context that is canceled on
// SIGINT or SIGTERM.
package appshell

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// ExitCanceled is the exit code of a command stopped by a signal.
const ExitCanceled = 130

// A RunFunc is a command body.  It returns the process exit code.
type RunFunc func(ctx context.Context, argv []string, stdout, stderr io.Writer) int

// Main runs run with the process arguments and exits with its code.
func Main(run RunFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, run, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// Run invokes run.  A command that succeeds after its context was canceled
// exits with ExitCanceled; failure codes pass through.
func Run(ctx context.Context, run RunFunc, argv []string, stdout, stderr io.Writer) int {
	code := run(ctx, argv, stdout, stderr)
	if ctx.Err() != nil && code == 0 {
		code = ExitCanceled
	}
	return code
}
