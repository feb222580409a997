// Package mcp parses MCP command flags and serves the activity ledger
// over the Model Context Protocol.
package mcp

import (
	"context"
	"flag"

	"github.com/burrowworks/critterledger/internal/mcp/service"
	platformcmd "github.com/burrowworks/critterledger/internal/platform/cmd"
)

// Config holds MCP server configuration.
type Config struct {
	StorePath string `env:"CRITTER_STORE_PATH"    envDefault:"critterledger.db"`
	Transport string `env:"CRITTER_MCP_TRANSPORT" envDefault:"stdio"`
	Locale    string `env:"CRITTER_LOCALE"        envDefault:"en-US"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.StorePath, "store", cfg.StorePath, "path to the sqlite session store")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "MCP transport: stdio")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for rejection messages")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the MCP server command.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceMCP, func(ctx context.Context) error {
		return service.Run(ctx, service.Config{
			StorePath: cfg.StorePath,
			Transport: service.TransportKind(cfg.Transport),
			Locale:    cfg.Locale,
		})
	})
}
