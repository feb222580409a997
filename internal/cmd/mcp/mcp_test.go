package mcp

import (
	"context"
	"flag"
	"strings"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if cfg.StorePath != "critterledger.db" {
		t.Errorf("StorePath = %q, want %q", cfg.StorePath, "critterledger.db")
	}
	if cfg.Transport != "stdio" {
		t.Errorf("Transport = %q, want %q", cfg.Transport, "stdio")
	}
	if cfg.Locale != "en-US" {
		t.Errorf("Locale = %q, want %q", cfg.Locale, "en-US")
	}
}

func TestParseConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("CRITTER_STORE_PATH", "env.db")
	t.Setenv("CRITTER_LOCALE", "pt-BR")

	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-store", "flag.db", "-transport", "stdio"})
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}

	if cfg.StorePath != "flag.db" {
		t.Errorf("StorePath = %q, want %q", cfg.StorePath, "flag.db")
	}
	if cfg.Transport != "stdio" {
		t.Errorf("Transport = %q, want %q", cfg.Transport, "stdio")
	}
	if cfg.Locale != "pt-BR" {
		t.Errorf("Locale = %q, want %q", cfg.Locale, "pt-BR")
	}
}

func TestRunRejectsUnknownTransport(t *testing.T) {
	cfg := Config{StorePath: t.TempDir() + "/state.db", Transport: "telegraph"}
	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("Run() error = %v, want unsupported transport error", err)
	}
}

func TestRunRequiresStorePath(t *testing.T) {
	err := Run(context.Background(), Config{Transport: "stdio"})
	if err == nil || !strings.Contains(err.Error(), "store path is required") {
		t.Fatalf("Run() error = %v, want store path error", err)
	}
}
