package scenario

import (
	"context"
	"fmt"

	"github.com/burrowworks/critterledger/internal/activity/digest"
	"github.com/burrowworks/critterledger/internal/activity/engine"
	"github.com/burrowworks/critterledger/internal/activity/session"
)

func (r *Runner) runStep(ctx context.Context, state *scenarioState, step Step) error {
	switch step.Kind {
	case "critter":
		return r.runCritterStep(step)
	case "fund":
		return r.runFundStep(step)
	case "advance":
		return r.runAdvanceStep(step)
	case "start_job":
		return r.runStartJobStep(ctx, state, step)
	case "start_game":
		return r.runStartGameStep(ctx, state, step)
	case "complete":
		return r.runCompleteStep(ctx, state, step)
	case "abandon":
		return r.runAbandonStep(ctx, state, step)
	case "expect_active":
		return r.runExpectActiveStep(ctx, step)
	case "expect_balance":
		return r.runExpectBalanceStep(step)
	case "expect_experience":
		return r.runExpectExperienceStep(step)
	case "checkpoint":
		return r.runCheckpointStep(ctx, state)
	default:
		return r.failf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) runCritterStep(step Step) error {
	assetID, ok := readUint(step.Args, "asset")
	if !ok || assetID == 0 {
		return r.failf("critter requires a positive asset id")
	}
	owner := requiredString(step.Args, "owner")
	if owner == "" {
		return r.failf("critter owner is required")
	}
	if err := r.host.MintCritter(assetID, owner); err != nil {
		return r.failf("mint critter: %v", err)
	}
	return nil
}

func (r *Runner) runFundStep(step Step) error {
	owner := requiredString(step.Args, "owner")
	if owner == "" {
		return r.failf("fund owner is required")
	}
	amount, ok := readUint(step.Args, "amount")
	if !ok {
		return r.failf("fund amount is required")
	}
	r.host.Fund(owner, amount)
	return nil
}

func (r *Runner) runAdvanceStep(step Step) error {
	blocks, ok := readUint(step.Args, "blocks")
	if !ok || blocks == 0 {
		return r.failf("advance requires a positive block count")
	}
	r.host.Advance(blocks)
	return nil
}

func (r *Runner) runStartJobStep(ctx context.Context, state *scenarioState, step Step) error {
	owner := requiredString(step.Args, "owner")
	if owner == "" {
		return r.failf("start_job owner is required")
	}
	assetID, ok := readUint(step.Args, "asset")
	if !ok || assetID == 0 {
		return r.failf("start_job requires a positive asset id")
	}
	kindLabel := requiredString(step.Args, "kind")
	if kindLabel == "" {
		return r.failf("start_job kind is required")
	}
	kind, err := session.KindFromLabel(kindLabel)
	if err != nil {
		return r.failf("start_job: %v", err)
	}
	duration, ok := readUint(step.Args, "duration")
	if !ok {
		return r.failf("start_job duration is required")
	}

	created, startErr := r.engine.Start(ctx, session.CreateSessionInput{
		Owner:    owner,
		AssetID:  assetID,
		Kind:     kind,
		Duration: duration,
	})
	if startErr == nil {
		recordSession(state, step, created.ID)
	}
	return r.expectOutcome(step, "start_job", startErr)
}

func (r *Runner) runStartGameStep(ctx context.Context, state *scenarioState, step Step) error {
	owner := requiredString(step.Args, "owner")
	if owner == "" {
		return r.failf("start_game owner is required")
	}
	assetID, ok := readUint(step.Args, "asset")
	if !ok || assetID == 0 {
		return r.failf("start_game requires a positive asset id")
	}
	kindLabel := requiredString(step.Args, "kind")
	if kindLabel == "" {
		return r.failf("start_game kind is required")
	}
	kind, err := session.KindFromLabel(kindLabel)
	if err != nil {
		return r.failf("start_game: %v", err)
	}
	difficultyLabel := requiredString(step.Args, "difficulty")
	if difficultyLabel == "" {
		return r.failf("start_game difficulty is required")
	}
	difficulty, err := session.DifficultyFromLabel(difficultyLabel)
	if err != nil {
		return r.failf("start_game: %v", err)
	}

	created, startErr := r.engine.Start(ctx, session.CreateSessionInput{
		Owner:      owner,
		AssetID:    assetID,
		Kind:       kind,
		Difficulty: difficulty,
	})
	if startErr == nil {
		recordSession(state, step, created.ID)
	}
	return r.expectOutcome(step, "start_game", startErr)
}

func (r *Runner) runCompleteStep(ctx context.Context, state *scenarioState, step Step) error {
	owner := requiredString(step.Args, "owner")
	if owner == "" {
		return r.failf("complete owner is required")
	}
	sessionID, err := r.resolveSession(state, step)
	if err != nil {
		return err
	}

	input := engine.CompleteInput{Caller: owner, SessionID: sessionID}
	if value, ok := readInt(step.Args, "score"); ok {
		if value < 0 {
			return r.failf("complete score must not be negative")
		}
		score := uint32(value)
		input.Score = &score
	}

	_, completeErr := r.engine.Complete(ctx, input)
	return r.expectOutcome(step, "complete", completeErr)
}

func (r *Runner) runAbandonStep(ctx context.Context, state *scenarioState, step Step) error {
	owner := requiredString(step.Args, "owner")
	if owner == "" {
		return r.failf("abandon owner is required")
	}
	sessionID, err := r.resolveSession(state, step)
	if err != nil {
		return err
	}

	_, abandonErr := r.engine.Abandon(ctx, engine.AbandonInput{Caller: owner, SessionID: sessionID})
	return r.expectOutcome(step, "abandon", abandonErr)
}

func (r *Runner) runExpectActiveStep(ctx context.Context, step Step) error {
	owner := requiredString(step.Args, "owner")
	if owner == "" {
		return r.failf("expect_active owner is required")
	}
	want, ok := readInt(step.Args, "count")
	if !ok || want < 0 {
		return r.failf("expect_active count is required")
	}
	got, err := r.store.CountActiveForOwner(ctx, owner)
	if err != nil {
		return fmt.Errorf("count active sessions: %w", err)
	}
	if got != want {
		return r.assertf("active sessions for %s = %d, want %d", owner, got, want)
	}
	return nil
}

func (r *Runner) runExpectBalanceStep(step Step) error {
	owner := requiredString(step.Args, "owner")
	if owner == "" {
		return r.failf("expect_balance owner is required")
	}
	want, ok := readUint(step.Args, "coins")
	if !ok {
		return r.failf("expect_balance coins is required")
	}
	if got := r.host.Balance(owner); got != want {
		return r.assertf("balance for %s = %d, want %d", owner, got, want)
	}
	return nil
}

func (r *Runner) runExpectExperienceStep(step Step) error {
	assetID, ok := readUint(step.Args, "asset")
	if !ok || assetID == 0 {
		return r.failf("expect_experience requires a positive asset id")
	}
	want, ok := readUint(step.Args, "amount")
	if !ok {
		return r.failf("expect_experience amount is required")
	}
	if got := r.host.Experience(assetID); got != want {
		return r.assertf("experience for critter %d = %d, want %d", assetID, got, want)
	}
	return nil
}

func (r *Runner) runCheckpointStep(ctx context.Context, state *scenarioState) error {
	snapshot, err := digest.State(ctx, r.store)
	if err != nil {
		return fmt.Errorf("state digest: %w", err)
	}
	state.checkpoints = append(state.checkpoints, snapshot)
	return nil
}
