package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadScenarioBuildsSteps(t *testing.T) {
	path := writeScenarioFixture(t, `-- Setup
local s = Scenario.new("smoke")
s:critter(7, "alice")
s:fund("alice", 40)
s:advance(10)

-- Run a mining trip
s:start_job({owner = "alice", asset = 7, kind = "mining", duration = 200, as = "trip"})
s:complete({owner = "alice", session = "trip", expect = "SESSION_NOT_YET_COMPLETE"})
s:checkpoint()

return s
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if scenario.Name != "smoke" {
		t.Fatalf("name = %q, want %q", scenario.Name, "smoke")
	}
	if len(scenario.Steps) != 6 {
		t.Fatalf("steps = %d, want %d", len(scenario.Steps), 6)
	}

	critter := scenario.Steps[0]
	if critter.Kind != "critter" {
		t.Fatalf("step kind = %q, want %q", critter.Kind, "critter")
	}
	if critter.Args["asset"] != 7 {
		t.Fatalf("critter asset = %v, want 7", critter.Args["asset"])
	}
	if critter.Args["owner"] != "alice" {
		t.Fatalf("critter owner = %v, want alice", critter.Args["owner"])
	}

	start := scenario.Steps[3]
	if start.Kind != "start_job" {
		t.Fatalf("step kind = %q, want %q", start.Kind, "start_job")
	}
	if start.Args["duration"] != 200 {
		t.Fatalf("start_job duration = %v, want 200", start.Args["duration"])
	}
	if start.Args["as"] != "trip" {
		t.Fatalf("start_job alias = %v, want trip", start.Args["as"])
	}

	complete := scenario.Steps[4]
	if complete.Kind != "complete" {
		t.Fatalf("step kind = %q, want %q", complete.Kind, "complete")
	}
	if complete.Args["expect"] != "SESSION_NOT_YET_COMPLETE" {
		t.Fatalf("complete expect = %v, want SESSION_NOT_YET_COMPLETE", complete.Args["expect"])
	}

	if scenario.Steps[5].Kind != "checkpoint" {
		t.Fatalf("step kind = %q, want %q", scenario.Steps[5].Kind, "checkpoint")
	}
}

func TestLoadScenarioDefaultsNameFromFile(t *testing.T) {
	path := writeScenarioFixture(t, `local s = Scenario.new()
s:critter(1, "alice")
return s
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	want := strings.TrimSuffix(filepath.Base(path), ".lua")
	if scenario.Name != want {
		t.Fatalf("name = %q, want %q", scenario.Name, want)
	}
}

func TestLoadScenarioStartJobRequiresOwner(t *testing.T) {
	path := writeScenarioFixture(t, `local s = Scenario.new("missing_owner")
s:start_job({asset = 7, kind = "mining", duration = 200})
return s
`)

	_, err := LoadScenarioFromFile(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "start_job owner is required") {
		t.Fatalf("error = %q, want start_job owner is required", err.Error())
	}
}

func TestLoadScenarioStartGameRequiresDifficulty(t *testing.T) {
	path := writeScenarioFixture(t, `local s = Scenario.new("missing_difficulty")
s:start_game({owner = "alice", asset = 7, kind = "dash"})
return s
`)

	_, err := LoadScenarioFromFile(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "start_game difficulty is required") {
		t.Fatalf("error = %q, want start_game difficulty is required", err.Error())
	}
}

func TestLoadScenarioCritterRejectsZeroAsset(t *testing.T) {
	path := writeScenarioFixture(t, `local s = Scenario.new("zero_asset")
s:critter(0, "alice")
return s
`)

	_, err := LoadScenarioFromFile(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "critter asset id must be positive") {
		t.Fatalf("error = %q, want critter asset id must be positive", err.Error())
	}
}

func TestLoadScenarioRequiresScenarioReturn(t *testing.T) {
	path := writeScenarioFixture(t, `return 42
`)

	_, err := LoadScenarioFromFile(path)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "must return Scenario") {
		t.Fatalf("error = %q, want must return Scenario", err.Error())
	}
}

func writeScenarioFixture(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.lua")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}
