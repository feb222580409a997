// Package scenario parses scenario command flags and runs Lua scripts
// against an in-process activity engine.
package scenario

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	platformcmd "github.com/burrowworks/critterledger/internal/platform/cmd"
	"github.com/burrowworks/critterledger/internal/tools/scenario"
)

// Config holds scenario command configuration.
type Config struct {
	Scenario string        `env:"CRITTER_SCENARIO_FILE"`
	Assert   string        `env:"CRITTER_SCENARIO_ASSERT"  envDefault:"strict"`
	Genesis  string        `env:"CRITTER_SCENARIO_GENESIS" envDefault:"scenario"`
	Replays  int           `env:"CRITTER_SCENARIO_REPLAYS"`
	Verbose  bool          `env:"CRITTER_SCENARIO_VERBOSE"`
	Timeout  time.Duration `env:"CRITTER_SCENARIO_TIMEOUT" envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to scenario lua file")
	fs.StringVar(&cfg.Assert, "assert", cfg.Assert, "assertion mode: strict or log")
	fs.StringVar(&cfg.Genesis, "genesis", cfg.Genesis, "beacon entropy seed for the simulated chain")
	fs.IntVar(&cfg.Replays, "replays", cfg.Replays, "extra runs verifying the state digest reproduces")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "enable verbose step logging")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout per step")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the scenario command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}

	mode, err := scenario.ParseAssertionMode(cfg.Assert)
	if err != nil {
		return err
	}

	logger := log.New(errOut, "", 0)
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceScenario, func(ctx context.Context) error {
		result, err := scenario.RunFile(ctx, scenario.Config{
			Genesis:    cfg.Genesis,
			Timeout:    cfg.Timeout,
			Assertions: mode,
			Replays:    cfg.Replays,
			Verbose:    cfg.Verbose,
			Logger:     logger,
		}, cfg.Scenario)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "digest %s\n", result.Digest)
		fmt.Fprintf(out, "transitions %d\n", result.Transitions)
		for i, checkpoint := range result.Checkpoints {
			fmt.Fprintf(out, "checkpoint %d %s\n", i+1, checkpoint)
		}
		return nil
	})
}
