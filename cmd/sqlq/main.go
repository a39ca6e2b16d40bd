// Package main is the sqlq command line tool.
//
// It serializes statements against one SQLite database through a single
// worker goroutine. See "sqlq --help" for the available subcommands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/sqlq/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqlq: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
