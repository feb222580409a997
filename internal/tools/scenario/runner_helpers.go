package scenario

import (
	"strings"

	apperrors "github.com/burrowworks/critterledger/internal/errors"
)

func (r *Runner) failf(format string, args ...any) error {
	return r.assertions.Failf(format, args...)
}

func (r *Runner) assertf(format string, args ...any) error {
	return r.assertions.Assertf(format, args...)
}

// expectOutcome reconciles a mutation result with the step's optional
// `expect` code. Without an expectation any error is a hard failure; with
// one, the transition must be rejected with exactly that code.
func (r *Runner) expectOutcome(step Step, action string, err error) error {
	expect := strings.ToUpper(strings.TrimSpace(optionalString(step.Args, "expect", "")))
	if expect == "" {
		if err != nil {
			return r.failf("%s: %v", action, err)
		}
		return nil
	}
	if err == nil {
		return r.assertf("%s: expected rejection %s, got success", action, expect)
	}
	if code := string(apperrors.GetCode(err)); code != expect {
		return r.assertf("%s: expected rejection %s, got %s", action, expect, code)
	}
	return nil
}

// resolveSession maps a step's session reference to a session id. The
// reference may be an alias recorded with `as`, a numeric id, or absent,
// which falls back to the most recently started session.
func (r *Runner) resolveSession(state *scenarioState, step Step) (uint64, error) {
	value, ok := step.Args["session"]
	if !ok || value == nil {
		if state.lastSessionID == 0 {
			return 0, r.failf("no session started yet")
		}
		return state.lastSessionID, nil
	}
	switch typed := value.(type) {
	case int:
		if typed <= 0 {
			return 0, r.failf("session id must be positive")
		}
		return uint64(typed), nil
	case string:
		id, found := state.sessions[typed]
		if !found {
			return 0, r.failf("unknown session alias %q", typed)
		}
		return id, nil
	default:
		return 0, r.failf("session must be an id or alias")
	}
}

func recordSession(state *scenarioState, step Step, sessionID uint64) {
	state.lastSessionID = sessionID
	if alias := optionalString(step.Args, "as", ""); alias != "" {
		state.sessions[alias] = sessionID
	}
}

func requiredString(args map[string]any, key string) string {
	value, ok := args[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if ok && text != "" {
		return text
	}
	return ""
}

func optionalString(args map[string]any, key, fallback string) string {
	value, ok := args[key]
	if !ok {
		return fallback
	}
	text, ok := value.(string)
	if ok && text != "" {
		return text
	}
	return fallback
}

func readInt(args map[string]any, key string) (int, bool) {
	value, ok := args[key]
	if !ok {
		return 0, false
	}
	switch typed := value.(type) {
	case int:
		return typed, true
	case float64:
		return int(typed), true
	default:
		return 0, false
	}
}

// readUint reads a non-negative integer argument. Negative values read as
// absent so callers report them as missing rather than wrapping.
func readUint(args map[string]any, key string) (uint64, bool) {
	value, ok := readInt(args, key)
	if !ok || value < 0 {
		return 0, false
	}
	return uint64(value), true
}
