// Package session defines the activity session model shared by the worker
// job and mini-game lifecycles.
package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/burrowworks/critterledger/internal/core/satmath"
	apperrors "github.com/burrowworks/critterledger/internal/errors"
)

// Kind discriminates the activity a session enrolls a critter in.
type Kind int

// Lifecycle describes how a kind of session reaches completion.
type Lifecycle int

// Difficulty is the tier of a mini-game session.
type Difficulty int

// Status describes the lifecycle state of a session.
type Status int

const (
	// KindUnspecified represents an invalid activity kind value.
	KindUnspecified Kind = iota
	// KindForaging is a worker job gathering food.
	KindForaging
	// KindMining is a worker job digging for minerals.
	KindMining
	// KindCourier is a worker job delivering parcels.
	KindCourier
	// KindDash is a reflex mini-game.
	KindDash
	// KindRiddle is a puzzle mini-game.
	KindRiddle
)

const (
	// LifecycleUnspecified represents an invalid lifecycle value.
	LifecycleUnspecified Lifecycle = iota
	// LifecycleDeadline sessions run until a deadline height and are
	// completed afterwards.
	LifecycleDeadline
	// LifecycleScore sessions are completed synchronously with a score.
	LifecycleScore
)

const (
	// DifficultyUnspecified represents an invalid difficulty value.
	DifficultyUnspecified Difficulty = iota
	// DifficultyEasy is the entry tier.
	DifficultyEasy
	// DifficultyNormal is the standard tier.
	DifficultyNormal
	// DifficultyHard is the top tier.
	DifficultyHard
)

const (
	// StatusUnspecified represents an invalid session status value.
	StatusUnspecified Status = iota
	// StatusActive indicates the session is running.
	StatusActive
	// StatusCompleted indicates the session finished and paid out.
	StatusCompleted
	// StatusAbandoned indicates the session was cancelled by its owner.
	StatusAbandoned
)

var (
	// ErrOwnerEmpty indicates a missing owner account.
	ErrOwnerEmpty = apperrors.New(apperrors.CodeOwnerEmpty, "owner account is required")
	// ErrAssetInvalid indicates a missing asset id.
	ErrAssetInvalid = apperrors.New(apperrors.CodeAssetInvalid, "asset id is required")
	// ErrKindInvalid indicates a missing or unknown activity kind.
	ErrKindInvalid = apperrors.New(apperrors.CodeKindInvalid, "activity kind is invalid")
	// ErrDifficultyInvalid indicates a difficulty that does not fit the kind.
	ErrDifficultyInvalid = apperrors.New(apperrors.CodeDifficultyInvalid, "difficulty is invalid for this activity kind")
)

// Params bounds session admission and scoring. The values are chain
// configuration, not module logic.
type Params struct {
	// MaxActivePerOwner caps concurrently active sessions per owner.
	MaxActivePerOwner int
	// MinDuration and MaxDuration bound job durations in blocks.
	MinDuration uint64
	MaxDuration uint64
	// MaxScore is the highest valid mini-game score, inclusive.
	MaxScore uint32
}

// DefaultParams returns the placeholder balance configuration.
func DefaultParams() Params {
	return Params{
		MaxActivePerOwner: 3,
		MinDuration:       10,
		MaxDuration:       28800,
		MaxScore:          1000,
	}
}

// Validate reports configuration errors that would make admission
// unenforceable.
func (p Params) Validate() error {
	if p.MaxActivePerOwner <= 0 {
		return fmt.Errorf("max active per owner must be positive, got %d", p.MaxActivePerOwner)
	}
	if p.MinDuration == 0 {
		return fmt.Errorf("min duration must be positive")
	}
	if p.MaxDuration < p.MinDuration {
		return fmt.Errorf("max duration %d is below min duration %d", p.MaxDuration, p.MinDuration)
	}
	if p.MaxScore == 0 {
		return fmt.Errorf("max score must be positive")
	}
	return nil
}

// Session represents one timed activity a critter is enrolled in.
type Session struct {
	// ID is unique and monotonically assigned; ids are never reused.
	ID uint64
	// Owner is the account that started the session. Never changes.
	Owner string
	// AssetID is the enrolled critter. Never changes.
	AssetID uint64
	Kind    Kind
	// Difficulty is set for mini-game kinds only.
	Difficulty Difficulty
	Status     Status
	// StartHeight is the block at which the session started.
	StartHeight uint64
	// EndHeight is the deadline for job kinds; zero for mini-games, which
	// complete synchronously.
	EndHeight uint64
	// FinishedHeight is the block at which a terminal status was applied;
	// zero while the session is active.
	FinishedHeight uint64
	// Score is recorded when a mini-game session completes.
	Score *uint32
}

// CreateSessionInput describes a start request after normalization.
type CreateSessionInput struct {
	Owner      string
	AssetID    uint64
	Kind       Kind
	Difficulty Difficulty
	// Duration is the requested length in blocks. Required for job kinds,
	// disallowed for mini-game kinds.
	Duration uint64
}

// NormalizeCreateSessionInput trims free-form fields.
func NormalizeCreateSessionInput(input CreateSessionInput) CreateSessionInput {
	input.Owner = strings.TrimSpace(input.Owner)
	return input
}

// ValidateCreateSessionInput checks the stateless parts of a start request:
// field presence, kind/difficulty fit, and the duration window. Stateful
// checks (ownership, capacity) belong to the engine.
func ValidateCreateSessionInput(input CreateSessionInput, params Params) error {
	if input.Owner == "" {
		return ErrOwnerEmpty
	}
	if input.AssetID == 0 {
		return ErrAssetInvalid
	}
	if !input.Kind.Valid() {
		return ErrKindInvalid
	}

	switch input.Kind.Lifecycle() {
	case LifecycleDeadline:
		if input.Difficulty != DifficultyUnspecified {
			return ErrDifficultyInvalid
		}
		if input.Duration < params.MinDuration || input.Duration > params.MaxDuration {
			return durationError(input.Duration, params)
		}
	case LifecycleScore:
		if !input.Difficulty.Valid() {
			return ErrDifficultyInvalid
		}
		if input.Duration != 0 {
			return durationError(input.Duration, params)
		}
	}
	return nil
}

// CreateSession validates input and builds an active session record at the
// given height. The caller supplies the allocated id.
func CreateSession(input CreateSessionInput, sessionID uint64, height uint64, params Params) (Session, error) {
	input = NormalizeCreateSessionInput(input)
	if err := ValidateCreateSessionInput(input, params); err != nil {
		return Session{}, err
	}

	s := Session{
		ID:          sessionID,
		Owner:       input.Owner,
		AssetID:     input.AssetID,
		Kind:        input.Kind,
		Difficulty:  input.Difficulty,
		Status:      StatusActive,
		StartHeight: height,
	}
	if input.Kind.Lifecycle() == LifecycleDeadline {
		s.EndHeight = satmath.Add(height, input.Duration)
	}
	return s, nil
}

// TransitionStatus applies a terminal status at the given height. Only
// Active sessions may transition; terminal statuses are immutable.
func TransitionStatus(s Session, target Status, height uint64) (Session, error) {
	if !isStatusTransitionAllowed(s.Status, target) {
		from := StatusLabel(s.Status)
		to := StatusLabel(target)
		return Session{}, apperrors.WithMetadata(
			apperrors.CodeSessionFinished,
			fmt.Sprintf("session status transition not allowed: %s -> %s", from, to),
			map[string]string{"FromStatus": from, "ToStatus": to},
		)
	}
	updated := s
	updated.Status = target
	updated.FinishedHeight = height
	return updated, nil
}

// isStatusTransitionAllowed reports whether a status transition is permitted.
func isStatusTransitionAllowed(from, to Status) bool {
	switch from {
	case StatusActive:
		return to == StatusCompleted || to == StatusAbandoned
	default:
		return false
	}
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Lifecycle returns the completion lifecycle for the kind.
func (k Kind) Lifecycle() Lifecycle {
	switch k {
	case KindForaging, KindMining, KindCourier:
		return LifecycleDeadline
	case KindDash, KindRiddle:
		return LifecycleScore
	default:
		return LifecycleUnspecified
	}
}

// Valid reports whether the kind is a known activity.
func (k Kind) Valid() bool {
	return k.Lifecycle() != LifecycleUnspecified
}

// Valid reports whether the difficulty is a known tier.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return true
	default:
		return false
	}
}

// RemainingBlocks returns how many blocks remain until the deadline, zero
// when the deadline has passed or the session has none.
func (s Session) RemainingBlocks(height uint64) uint64 {
	if s.EndHeight == 0 || height >= s.EndHeight {
		return 0
	}
	return s.EndHeight - height
}

// KindLabel returns a stable label for an activity kind.
func KindLabel(k Kind) string {
	switch k {
	case KindForaging:
		return "FORAGING"
	case KindMining:
		return "MINING"
	case KindCourier:
		return "COURIER"
	case KindDash:
		return "DASH"
	case KindRiddle:
		return "RIDDLE"
	default:
		return "UNSPECIFIED"
	}
}

// KindFromLabel parses a string label into a Kind.
// It trims whitespace and matches case-insensitively. Both short ("MINING")
// and prefixed ("ACTIVITY_KIND_MINING") forms are accepted.
func KindFromLabel(value string) (Kind, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return KindUnspecified, fmt.Errorf("activity kind is required")
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case "FORAGING", "ACTIVITY_KIND_FORAGING":
		return KindForaging, nil
	case "MINING", "ACTIVITY_KIND_MINING":
		return KindMining, nil
	case "COURIER", "ACTIVITY_KIND_COURIER":
		return KindCourier, nil
	case "DASH", "ACTIVITY_KIND_DASH":
		return KindDash, nil
	case "RIDDLE", "ACTIVITY_KIND_RIDDLE":
		return KindRiddle, nil
	default:
		return KindUnspecified, fmt.Errorf("unknown activity kind: %s", trimmed)
	}
}

// StatusLabel returns a stable label for a session status.
func StatusLabel(status Status) string {
	switch status {
	case StatusActive:
		return "ACTIVE"
	case StatusCompleted:
		return "COMPLETED"
	case StatusAbandoned:
		return "ABANDONED"
	default:
		return "UNSPECIFIED"
	}
}

// StatusFromLabel parses a string label into a Status.
// It trims whitespace and matches case-insensitively. Short ("ACTIVE"),
// prefixed ("SESSION_STATUS_ACTIVE"), and the legacy mini-game form
// ("IN_PROGRESS") are accepted.
func StatusFromLabel(value string) (Status, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return StatusUnspecified, fmt.Errorf("session status is required")
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case "ACTIVE", "SESSION_STATUS_ACTIVE", "IN_PROGRESS":
		return StatusActive, nil
	case "COMPLETED", "SESSION_STATUS_COMPLETED":
		return StatusCompleted, nil
	case "ABANDONED", "SESSION_STATUS_ABANDONED":
		return StatusAbandoned, nil
	default:
		return StatusUnspecified, fmt.Errorf("unknown session status: %s", trimmed)
	}
}

// DifficultyLabel returns a stable label for a difficulty tier.
func DifficultyLabel(d Difficulty) string {
	switch d {
	case DifficultyEasy:
		return "EASY"
	case DifficultyNormal:
		return "NORMAL"
	case DifficultyHard:
		return "HARD"
	default:
		return "UNSPECIFIED"
	}
}

// DifficultyFromLabel parses a string label into a Difficulty.
// It trims whitespace and matches case-insensitively. Both short ("HARD")
// and prefixed ("DIFFICULTY_HARD") forms are accepted.
func DifficultyFromLabel(value string) (Difficulty, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return DifficultyUnspecified, fmt.Errorf("difficulty is required")
	}
	upper := strings.ToUpper(trimmed)
	switch upper {
	case "EASY", "DIFFICULTY_EASY":
		return DifficultyEasy, nil
	case "NORMAL", "DIFFICULTY_NORMAL":
		return DifficultyNormal, nil
	case "HARD", "DIFFICULTY_HARD":
		return DifficultyHard, nil
	default:
		return DifficultyUnspecified, fmt.Errorf("unknown difficulty: %s", trimmed)
	}
}

func durationError(duration uint64, params Params) error {
	return apperrors.WithMetadata(
		apperrors.CodeDurationOutOfRange,
		fmt.Sprintf("duration %d is outside [%d, %d]", duration, params.MinDuration, params.MaxDuration),
		map[string]string{
			"Duration":    strconv.FormatUint(duration, 10),
			"MinDuration": strconv.FormatUint(params.MinDuration, 10),
			"MaxDuration": strconv.FormatUint(params.MaxDuration, 10),
		},
	)
}
