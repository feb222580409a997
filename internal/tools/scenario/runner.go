package scenario

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/burrowworks/critterledger/internal/activity/digest"
	"github.com/burrowworks/critterledger/internal/activity/engine"
	"github.com/burrowworks/critterledger/internal/activity/notify"
	"github.com/burrowworks/critterledger/internal/activity/reward"
	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/chain/simchain"
	"github.com/burrowworks/critterledger/internal/storage/memory"
	"github.com/burrowworks/critterledger/internal/telemetry"
)

// Config controls scenario execution.
type Config struct {
	// Genesis seeds the simulated chain's beacon entropy. The same genesis
	// and script always produce the same digests.
	Genesis    string
	Params     session.Params
	Timeout    time.Duration
	Assertions AssertionMode
	// Replays is how many extra times RunFile re-executes the script to
	// verify the state digest reproduces.
	Replays int
	Verbose bool
	Logger  *log.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		Genesis:    "scenario",
		Timeout:    10 * time.Second,
		Assertions: AssertionStrict,
	}
}

// Runner executes Lua scenarios against an in-process activity engine backed
// by a memory store and a simulated host chain.
type Runner struct {
	host        *simchain.Chain
	store       *memory.Store
	engine      *engine.Engine
	assertions  Assertions
	logger      *log.Logger
	verbose     bool
	timeout     time.Duration
	transitions uint64
}

// Result captures the deterministic outputs of one scenario run.
type Result struct {
	// Checkpoints holds the state digest at each checkpoint step, in order.
	Checkpoints []string
	// Digest is the state digest after the final step.
	Digest string
	// Transitions counts the successful session transitions observed.
	Transitions uint64
}

// NewRunner wires a fresh engine, store, and simulated chain for one run.
func NewRunner(cfg Config) (*Runner, error) {
	genesis := cfg.Genesis
	if genesis == "" {
		genesis = "scenario"
	}
	host := simchain.New(genesis)
	store := memory.New()
	hooks := notify.NewRegistry()

	eng, err := engine.New(engine.Config{
		Store:   store,
		Assets:  host,
		Coins:   host,
		Beacon:  host,
		Heights: host,
		Rewards: reward.DefaultTable(),
		Hooks:   hooks,
		Audit:   telemetry.NewEmitter(store),
		Params:  cfg.Params,
	})
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}

	return newRunnerWithDeps(cfg, runnerDeps{host: host, store: store, engine: eng, hooks: hooks})
}

// newRunnerWithDeps builds a Runner from pre-built dependencies.
// Config defaults (logger, timeout) are applied here so they are testable.
func newRunnerWithDeps(cfg Config, deps runnerDeps) (*Runner, error) {
	if deps.engine == nil {
		return nil, errors.New("engine is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	r := &Runner{
		host:       deps.host,
		store:      deps.store,
		engine:     deps.engine,
		assertions: Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		verbose:    cfg.Verbose,
		timeout:    timeout,
	}
	if deps.hooks != nil {
		if err := deps.hooks.Register("scenario.transitions", 0, r.countTransition); err != nil {
			return nil, fmt.Errorf("register transition hook: %w", err)
		}
	}
	return r, nil
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

func (r *Runner) countTransition(_ context.Context, _ notify.Event) error {
	r.transitions++
	return nil
}

// RunFile loads a scenario file, executes it, and re-runs it cfg.Replays
// times to verify the state digests reproduce.
func RunFile(ctx context.Context, cfg Config, path string) (*Result, error) {
	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return nil, err
	}
	result, err := runOnce(ctx, cfg, scenario)
	if err != nil {
		return nil, err
	}
	for attempt := 1; attempt <= cfg.Replays; attempt++ {
		replay, err := runOnce(ctx, cfg, scenario)
		if err != nil {
			return nil, fmt.Errorf("replay %d: %w", attempt, err)
		}
		if err := compareResults(result, replay, attempt); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func runOnce(ctx context.Context, cfg Config, scenario *Scenario) (*Result, error) {
	runner, err := NewRunner(cfg)
	if err != nil {
		return nil, err
	}
	defer runner.Close()
	return runner.RunScenario(ctx, scenario)
}

func compareResults(first, replay *Result, attempt int) error {
	if replay.Digest != first.Digest {
		return fmt.Errorf("replay %d diverged: digest %s, want %s", attempt, replay.Digest, first.Digest)
	}
	if len(replay.Checkpoints) != len(first.Checkpoints) {
		return fmt.Errorf("replay %d diverged: %d checkpoints, want %d",
			attempt, len(replay.Checkpoints), len(first.Checkpoints))
	}
	for i := range first.Checkpoints {
		if replay.Checkpoints[i] != first.Checkpoints[i] {
			return fmt.Errorf("replay %d diverged at checkpoint %d: %s, want %s",
				attempt, i+1, replay.Checkpoints[i], first.Checkpoints[i])
		}
	}
	return nil
}

// RunScenario executes the scenario steps in order and returns the final
// state digest along with any checkpoint digests the script captured.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) (*Result, error) {
	if scenario == nil {
		return nil, errors.New("scenario is required")
	}
	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	state := &scenarioState{sessions: map[string]uint64{}}

	for index, step := range scenario.Steps {
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.runStep(stepCtx, state, step)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}

	final, err := digest.State(ctx, r.store)
	if err != nil {
		return nil, fmt.Errorf("state digest: %w", err)
	}
	r.logf("scenario done: %s (digest %s)", scenario.Name, final)
	return &Result{Checkpoints: state.checkpoints, Digest: final, Transitions: r.transitions}, nil
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
