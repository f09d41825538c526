package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keboola/devgate/internal/pkg/cli"
	"github.com/keboola/devgate/internal/pkg/env"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// Run command
	cmd := cli.NewRootCommand(os.Stdin, os.Stdout, os.Stderr, env.FromOs())
	exitCode := cmd.Execute(ctx)
	cancel()
	os.Exit(exitCode)
}
