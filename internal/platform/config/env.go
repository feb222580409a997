// Package config loads process configuration from CRITTER_-prefixed
// environment variables and provides exit helpers for CLI entry points.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from the environment variables declared in its
// `env` struct tags. Ledger commands keep every variable under the
// CRITTER_ prefix so a deployment can be audited with a single grep.
func ParseEnv(target any) error {
	if target == nil {
		return errors.New("config target is required")
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
