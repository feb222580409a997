package scenario

import (
	"fmt"
	"log"
	"strings"
)

// AssertionMode selects how failed scenario assertions are handled.
type AssertionMode int

const (
	// AssertionStrict stops the run at the first failed assertion.
	AssertionStrict AssertionMode = iota
	// AssertionLog reports failed assertions and keeps running.
	AssertionLog
)

// ParseAssertionMode maps a flag value to an assertion mode.
func ParseAssertionMode(value string) (AssertionMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "strict":
		return AssertionStrict, nil
	case "log":
		return AssertionLog, nil
	default:
		return AssertionStrict, fmt.Errorf("unknown assertion mode %q", value)
	}
}

// Assertions reports scenario failures according to the configured mode.
type Assertions struct {
	Mode   AssertionMode
	Logger *log.Logger
}

// Failf reports an unrecoverable scenario failure. It returns an error in
// every mode; a step that cannot run leaves nothing meaningful to continue
// with.
func (a Assertions) Failf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// Assertf reports a failed expectation. Strict mode surfaces it as an error;
// log mode writes it to the logger and lets the run continue.
func (a Assertions) Assertf(format string, args ...any) error {
	if a.Mode == AssertionLog {
		if a.Logger != nil {
			a.Logger.Printf("assertion failed: "+format, args...)
		}
		return nil
	}
	return fmt.Errorf(format, args...)
}
