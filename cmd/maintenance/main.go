// Package main provides a CLI for auditing a session store.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	maintenancecmd "github.com/burrowworks/critterledger/internal/cmd/maintenance"
	"github.com/burrowworks/critterledger/internal/platform/config"
)

func main() {
	cfg, err := maintenancecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := maintenancecmd.Run(ctx, cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
