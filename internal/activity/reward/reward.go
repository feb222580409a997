// Package reward computes session payouts.
//
// Payouts are a pure function of committed inputs: the session's kind,
// difficulty, duration or score, and a seed drawn from the verifiable
// randomness beacon. Replaying the same transition on any replica yields
// the same amounts. All arithmetic saturates instead of wrapping.
package reward

import (
	"fmt"
	"strconv"

	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/chain"
	"github.com/burrowworks/critterledger/internal/core/satmath"
	apperrors "github.com/burrowworks/critterledger/internal/errors"
)

// Plan is the payout of a completed session.
type Plan struct {
	// Coins is credited to the owner's balance.
	Coins uint64
	// Experience is credited to the enrolled asset.
	Experience uint64
}

// Request carries the committed inputs a payout is computed from.
type Request struct {
	Kind       session.Kind
	Difficulty session.Difficulty
	// Duration is the job length in blocks. Ignored for mini-games.
	Duration uint64
	// Score is the submitted mini-game score. Ignored for jobs.
	Score uint32
	// Seed is the verifiable randomness drawn for this completion.
	Seed chain.Seed
}

// Calculator is the payout strategy the engine consults on completion.
type Calculator interface {
	Payout(req Request, params session.Params) (Plan, error)
}

// JobPlan configures payouts for a deadline-lifecycle kind.
type JobPlan struct {
	BaseCoins      uint64
	BaseExperience uint64
	// TierBlocks is the duration span covered by one payout tier. Longer
	// jobs earn proportionally more through whole-tier multiples.
	TierBlocks uint64
	// VarianceSpan bounds the seeded bonus coins; zero disables the bonus.
	VarianceSpan uint64
}

// GamePlan configures payouts for a score-lifecycle kind.
type GamePlan struct {
	BaseCoins      uint64
	BaseExperience uint64
	// VarianceSpan bounds the seeded bonus coins; zero disables the bonus.
	VarianceSpan uint64
}

// Multiplier is an integer ratio applied to game payouts per difficulty.
type Multiplier struct {
	Num uint64
	Den uint64
}

// Table is a payout configuration keyed by kind and difficulty. It
// implements Calculator.
type Table struct {
	Jobs        map[session.Kind]JobPlan
	Games       map[session.Kind]GamePlan
	Multipliers map[session.Difficulty]Multiplier
}

// DefaultTable returns the placeholder payout balance.
func DefaultTable() Table {
	return Table{
		Jobs: map[session.Kind]JobPlan{
			session.KindForaging: {BaseCoins: 12, BaseExperience: 8, TierBlocks: 600, VarianceSpan: 5},
			session.KindMining:   {BaseCoins: 20, BaseExperience: 10, TierBlocks: 600, VarianceSpan: 8},
			session.KindCourier:  {BaseCoins: 16, BaseExperience: 12, TierBlocks: 600, VarianceSpan: 6},
		},
		Games: map[session.Kind]GamePlan{
			session.KindDash:   {BaseCoins: 30, BaseExperience: 15, VarianceSpan: 10},
			session.KindRiddle: {BaseCoins: 40, BaseExperience: 25, VarianceSpan: 12},
		},
		Multipliers: map[session.Difficulty]Multiplier{
			session.DifficultyEasy:   {Num: 1, Den: 1},
			session.DifficultyNormal: {Num: 3, Den: 2},
			session.DifficultyHard:   {Num: 2, Den: 1},
		},
	}
}

// Validate reports configuration errors that would make payouts undefined.
func (t Table) Validate() error {
	for kind, plan := range t.Jobs {
		if kind.Lifecycle() != session.LifecycleDeadline {
			return fmt.Errorf("job plan for non-job kind %s", session.KindLabel(kind))
		}
		if plan.TierBlocks == 0 {
			return fmt.Errorf("job plan for %s has zero tier blocks", session.KindLabel(kind))
		}
	}
	for kind := range t.Games {
		if kind.Lifecycle() != session.LifecycleScore {
			return fmt.Errorf("game plan for non-game kind %s", session.KindLabel(kind))
		}
	}
	for difficulty, mult := range t.Multipliers {
		if !difficulty.Valid() {
			return fmt.Errorf("multiplier for unknown difficulty %d", difficulty)
		}
		if mult.Den == 0 {
			return fmt.Errorf("multiplier for %s has zero denominator", session.DifficultyLabel(difficulty))
		}
	}
	return nil
}

// Payout computes the reward for a completing session. Mini-game scores are
// validated against the inclusive maximum before any amount is computed; an
// out-of-range score is rejected, never clamped.
func (t Table) Payout(req Request, params session.Params) (Plan, error) {
	switch req.Kind.Lifecycle() {
	case session.LifecycleDeadline:
		plan, ok := t.Jobs[req.Kind]
		if !ok {
			return Plan{}, noPlanError(req.Kind)
		}
		return jobPayout(plan, req), nil
	case session.LifecycleScore:
		plan, ok := t.Games[req.Kind]
		if !ok {
			return Plan{}, noPlanError(req.Kind)
		}
		if req.Score > params.MaxScore {
			return Plan{}, scoreError(req.Score, params.MaxScore)
		}
		mult, ok := t.Multipliers[req.Difficulty]
		if !ok {
			return Plan{}, apperrors.Newf(apperrors.CodeDifficultyInvalid,
				"no multiplier for difficulty %s", session.DifficultyLabel(req.Difficulty))
		}
		return gamePayout(plan, mult, req, params), nil
	default:
		return Plan{}, noPlanError(req.Kind)
	}
}

// jobPayout scales the base amounts by the whole duration tier and adds
// the seeded bonus.
func jobPayout(plan JobPlan, req Request) Plan {
	tier := uint64(1)
	if req.Duration > 0 {
		tier = 1 + (req.Duration-1)/plan.TierBlocks
	}
	out := Plan{
		Coins:      satmath.Mul(plan.BaseCoins, tier),
		Experience: satmath.Mul(plan.BaseExperience, tier),
	}
	out.Coins = addVariance(out.Coins, plan.VarianceSpan, req.Seed)
	return out
}

// gamePayout scales the base amounts by the difficulty multiplier, then by
// score over the maximum, and adds the seeded bonus.
func gamePayout(plan GamePlan, mult Multiplier, req Request, params session.Params) Plan {
	coins := satmath.Scale(plan.BaseCoins, mult.Num, mult.Den)
	experience := satmath.Scale(plan.BaseExperience, mult.Num, mult.Den)
	coins = satmath.Scale(coins, uint64(req.Score), uint64(params.MaxScore))
	experience = satmath.Scale(experience, uint64(req.Score), uint64(params.MaxScore))
	out := Plan{Coins: coins, Experience: experience}
	out.Coins = addVariance(out.Coins, plan.VarianceSpan, req.Seed)
	return out
}

// addVariance adds a bonus in [0, span) derived from the beacon seed.
func addVariance(coins, span uint64, seed chain.Seed) uint64 {
	if span == 0 {
		return coins
	}
	return satmath.Add(coins, seed.Uint64()%span)
}

func noPlanError(kind session.Kind) error {
	return apperrors.Newf(apperrors.CodeKindInvalid,
		"no payout plan for activity kind %s", session.KindLabel(kind))
}

func scoreError(score uint32, maxScore uint32) error {
	return apperrors.WithMetadata(
		apperrors.CodeScoreOutOfRange,
		fmt.Sprintf("score %d exceeds maximum %d", score, maxScore),
		map[string]string{
			"Score":    strconv.FormatUint(uint64(score), 10),
			"MaxScore": strconv.FormatUint(uint64(maxScore), 10),
		},
	)
}
