package scenario

import (
	"bytes"
	"log"
	"strings"
	"testing"

	apperrors "github.com/burrowworks/critterledger/internal/errors"
)

func strictRunner() *Runner {
	return &Runner{assertions: Assertions{Mode: AssertionStrict}}
}

func logRunner(buf *bytes.Buffer) *Runner {
	return &Runner{assertions: Assertions{
		Mode:   AssertionLog,
		Logger: log.New(buf, "", 0),
	}}
}

func TestParseAssertionMode(t *testing.T) {
	tests := []struct {
		input   string
		want    AssertionMode
		wantErr bool
	}{
		{"", AssertionStrict, false},
		{"strict", AssertionStrict, false},
		{" STRICT ", AssertionStrict, false},
		{"log", AssertionLog, false},
		{"LOG", AssertionLog, false},
		{"panic", AssertionStrict, true},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseAssertionMode(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("mode = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAssertfStrictReturnsError(t *testing.T) {
	a := Assertions{Mode: AssertionStrict}
	if err := a.Assertf("balance = %d, want %d", 1, 2); err == nil {
		t.Fatal("expected error")
	}
}

func TestAssertfLogModeContinues(t *testing.T) {
	var buf bytes.Buffer
	a := Assertions{Mode: AssertionLog, Logger: log.New(&buf, "", 0)}

	if err := a.Assertf("balance = %d, want %d", 1, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "assertion failed: balance = 1, want 2") {
		t.Fatalf("log output = %q", buf.String())
	}
}

func TestFailfErrorsInEveryMode(t *testing.T) {
	for _, mode := range []AssertionMode{AssertionStrict, AssertionLog} {
		a := Assertions{Mode: mode}
		if err := a.Failf("mint critter: boom"); err == nil {
			t.Fatalf("mode %v: expected error", mode)
		}
	}
}

func TestExpectOutcome(t *testing.T) {
	busy := apperrors.New(apperrors.CodeAssetBusy, "critter is busy")

	t.Run("success_without_expectation", func(t *testing.T) {
		err := strictRunner().expectOutcome(Step{Args: map[string]any{}}, "start_job", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("failure_without_expectation", func(t *testing.T) {
		err := strictRunner().expectOutcome(Step{Args: map[string]any{}}, "start_job", busy)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "start_job") {
			t.Fatalf("error = %q", err.Error())
		}
	})

	t.Run("matching_code", func(t *testing.T) {
		step := Step{Args: map[string]any{"expect": "ASSET_BUSY"}}
		if err := strictRunner().expectOutcome(step, "start_job", busy); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("lowercase_code_normalized", func(t *testing.T) {
		step := Step{Args: map[string]any{"expect": "asset_busy"}}
		if err := strictRunner().expectOutcome(step, "start_job", busy); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("unexpected_success", func(t *testing.T) {
		step := Step{Args: map[string]any{"expect": "ASSET_BUSY"}}
		err := strictRunner().expectOutcome(step, "start_job", nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "expected rejection ASSET_BUSY, got success") {
			t.Fatalf("error = %q", err.Error())
		}
	})

	t.Run("mismatched_code", func(t *testing.T) {
		step := Step{Args: map[string]any{"expect": "SESSION_LIMIT_REACHED"}}
		err := strictRunner().expectOutcome(step, "start_job", busy)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "got ASSET_BUSY") {
			t.Fatalf("error = %q", err.Error())
		}
	})

	t.Run("log_mode_records_and_continues", func(t *testing.T) {
		var buf bytes.Buffer
		step := Step{Args: map[string]any{"expect": "ASSET_BUSY"}}
		err := logRunner(&buf).expectOutcome(step, "start_job", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "expected rejection ASSET_BUSY") {
			t.Fatalf("log output = %q", buf.String())
		}
	})
}

func TestResolveSession(t *testing.T) {
	r := strictRunner()

	t.Run("implicit_without_start", func(t *testing.T) {
		state := &scenarioState{sessions: map[string]uint64{}}
		_, err := r.resolveSession(state, Step{Args: map[string]any{}})
		if err == nil || !strings.Contains(err.Error(), "no session started yet") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("implicit_last_session", func(t *testing.T) {
		state := &scenarioState{sessions: map[string]uint64{}, lastSessionID: 5}
		id, err := r.resolveSession(state, Step{Args: map[string]any{}})
		if err != nil || id != 5 {
			t.Fatalf("id = %d, err = %v", id, err)
		}
	})

	t.Run("numeric_id", func(t *testing.T) {
		state := &scenarioState{sessions: map[string]uint64{}}
		id, err := r.resolveSession(state, Step{Args: map[string]any{"session": 7}})
		if err != nil || id != 7 {
			t.Fatalf("id = %d, err = %v", id, err)
		}
	})

	t.Run("numeric_zero", func(t *testing.T) {
		state := &scenarioState{sessions: map[string]uint64{}}
		_, err := r.resolveSession(state, Step{Args: map[string]any{"session": 0}})
		if err == nil || !strings.Contains(err.Error(), "must be positive") {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("alias", func(t *testing.T) {
		state := &scenarioState{sessions: map[string]uint64{"trip": 3}}
		id, err := r.resolveSession(state, Step{Args: map[string]any{"session": "trip"}})
		if err != nil || id != 3 {
			t.Fatalf("id = %d, err = %v", id, err)
		}
	})

	t.Run("unknown_alias", func(t *testing.T) {
		state := &scenarioState{sessions: map[string]uint64{}}
		_, err := r.resolveSession(state, Step{Args: map[string]any{"session": "ghost"}})
		if err == nil || !strings.Contains(err.Error(), `unknown session alias "ghost"`) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("wrong_type", func(t *testing.T) {
		state := &scenarioState{sessions: map[string]uint64{}}
		_, err := r.resolveSession(state, Step{Args: map[string]any{"session": true}})
		if err == nil || !strings.Contains(err.Error(), "id or alias") {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestRecordSession(t *testing.T) {
	t.Run("without_alias", func(t *testing.T) {
		state := &scenarioState{sessions: map[string]uint64{}}
		recordSession(state, Step{Args: map[string]any{}}, 9)
		if state.lastSessionID != 9 {
			t.Fatalf("lastSessionID = %d, want 9", state.lastSessionID)
		}
		if len(state.sessions) != 0 {
			t.Fatalf("sessions = %v, want empty", state.sessions)
		}
	})

	t.Run("with_alias", func(t *testing.T) {
		state := &scenarioState{sessions: map[string]uint64{}}
		recordSession(state, Step{Args: map[string]any{"as": "trip"}}, 9)
		if state.sessions["trip"] != 9 {
			t.Fatalf("sessions = %v, want trip=9", state.sessions)
		}
	})
}

func TestRequiredString(t *testing.T) {
	if requiredString(map[string]any{"k": "v"}, "k") != "v" {
		t.Fatal("expected v")
	}
	if requiredString(map[string]any{}, "k") != "" {
		t.Fatal("expected empty for missing key")
	}
	if requiredString(map[string]any{"k": 7}, "k") != "" {
		t.Fatal("expected empty for non-string value")
	}
}

func TestOptionalString(t *testing.T) {
	if optionalString(map[string]any{"k": "v"}, "k", "fb") != "v" {
		t.Fatal("expected v")
	}
	if optionalString(map[string]any{}, "k", "fb") != "fb" {
		t.Fatal("expected fallback")
	}
}

func TestReadInt(t *testing.T) {
	if v, ok := readInt(map[string]any{"k": 5}, "k"); !ok || v != 5 {
		t.Fatalf("want 5, got %d ok=%v", v, ok)
	}
	if v, ok := readInt(map[string]any{"k": float64(5)}, "k"); !ok || v != 5 {
		t.Fatalf("want 5 from float64, got %d ok=%v", v, ok)
	}
	if _, ok := readInt(map[string]any{}, "k"); ok {
		t.Fatal("expected not ok for missing key")
	}
	if _, ok := readInt(map[string]any{"k": "5"}, "k"); ok {
		t.Fatal("expected not ok for string value")
	}
}

func TestReadUint(t *testing.T) {
	if v, ok := readUint(map[string]any{"k": 200}, "k"); !ok || v != 200 {
		t.Fatalf("want 200, got %d ok=%v", v, ok)
	}
	if _, ok := readUint(map[string]any{"k": -1}, "k"); ok {
		t.Fatal("expected not ok for negative value")
	}
	if _, ok := readUint(map[string]any{}, "k"); ok {
		t.Fatal("expected not ok for missing key")
	}
}
