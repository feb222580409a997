// Package maintenance audits a session store for consistency defects the
// engine's invariants forbid, such as doubly-booked assets or completed
// mini-games with no recorded result.
package maintenance

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/burrowworks/critterledger/internal/activity/session"
	platformcmd "github.com/burrowworks/critterledger/internal/platform/cmd"
	"github.com/burrowworks/critterledger/internal/storage"
	"github.com/burrowworks/critterledger/internal/storage/sqlite"
	"github.com/burrowworks/critterledger/internal/telemetry"
)

// Config holds maintenance command configuration.
type Config struct {
	StorePath string `env:"CRITTER_STORE_PATH" envDefault:"critterledger.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.StorePath, "store", cfg.StorePath, "path to the sqlite session store")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AuditStore is the read surface the audit walks.
type AuditStore interface {
	SnapshotSessions(ctx context.Context) ([]session.Session, error)
	GetResult(ctx context.Context, sessionID uint64) (storage.ResultRecord, error)
	ListTransitions(ctx context.Context, sessionID uint64) ([]storage.TransitionRecord, error)
}

// Run executes the maintenance command. It returns an error when the audit
// reports findings so operators can wire it into release checks.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if strings.TrimSpace(cfg.StorePath) == "" {
		return errors.New("store path is required")
	}

	store, err := sqlite.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open session store at %s: %w", cfg.StorePath, err)
	}
	defer store.Close()

	findings, err := Audit(ctx, store, session.DefaultParams())
	if err != nil {
		return err
	}
	for _, finding := range findings {
		fmt.Fprintln(out, finding)
	}
	if len(findings) > 0 {
		return fmt.Errorf("audit found %d issues", len(findings))
	}
	fmt.Fprintln(out, "ok")
	return nil
}

// Audit walks every session and reports invariant violations in id order.
func Audit(ctx context.Context, store AuditStore, params session.Params) ([]string, error) {
	sessions, err := store.SnapshotSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot sessions: %w", err)
	}

	var findings []string
	activeByAsset := make(map[uint64]int)
	activeByOwner := make(map[string]int)

	for _, sess := range sessions {
		if sess.Status == session.StatusActive {
			activeByAsset[sess.AssetID]++
			activeByOwner[sess.Owner]++
		}

		findings = append(findings, auditSession(ctx, store, params, sess)...)
	}

	findings = append(findings, auditActiveCounts(activeByAsset, activeByOwner, params)...)
	return findings, nil
}

func auditSession(ctx context.Context, store AuditStore, params session.Params, sess session.Session) []string {
	var findings []string

	switch sess.Kind.Lifecycle() {
	case session.LifecycleDeadline:
		if sess.EndHeight <= sess.StartHeight {
			findings = append(findings, fmt.Sprintf("session %d: job deadline %d does not follow start %d", sess.ID, sess.EndHeight, sess.StartHeight))
		}
		if sess.Status == session.StatusCompleted && sess.FinishedHeight < sess.EndHeight {
			findings = append(findings, fmt.Sprintf("session %d: job completed at %d before its deadline %d", sess.ID, sess.FinishedHeight, sess.EndHeight))
		}
	case session.LifecycleScore:
		if sess.Status == session.StatusCompleted {
			result, err := store.GetResult(ctx, sess.ID)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				findings = append(findings, fmt.Sprintf("session %d: completed mini-game has no result record", sess.ID))
			case err != nil:
				findings = append(findings, fmt.Sprintf("session %d: read result: %v", sess.ID, err))
			case result.Score > params.MaxScore:
				findings = append(findings, fmt.Sprintf("session %d: result score %d exceeds maximum %d", sess.ID, result.Score, params.MaxScore))
			}
		}
	default:
		findings = append(findings, fmt.Sprintf("session %d: unknown activity kind %d", sess.ID, sess.Kind))
	}

	findings = append(findings, auditTransitions(ctx, store, sess)...)
	return findings
}

// auditTransitions checks the recorded transition trail when one exists.
// Stores restored from backups may predate transition records, so an empty
// trail is not a finding.
func auditTransitions(ctx context.Context, store AuditStore, sess session.Session) []string {
	transitions, err := store.ListTransitions(ctx, sess.ID)
	if err != nil {
		return []string{fmt.Sprintf("session %d: list transitions: %v", sess.ID, err)}
	}
	if len(transitions) == 0 {
		return nil
	}

	var findings []string
	if transitions[0].Action != telemetry.ActionStart {
		findings = append(findings, fmt.Sprintf("session %d: transition trail opens with %s", sess.ID, transitions[0].Action))
	}
	for i := 1; i < len(transitions); i++ {
		if transitions[i].Height < transitions[i-1].Height {
			findings = append(findings, fmt.Sprintf("session %d: transition heights regress at step %d", sess.ID, i+1))
		}
	}
	if sess.Status != session.StatusActive {
		last := transitions[len(transitions)-1]
		if last.ToStatus != sess.Status {
			findings = append(findings, fmt.Sprintf("session %d: trail ends in %s but session is %s",
				sess.ID, session.StatusLabel(last.ToStatus), session.StatusLabel(sess.Status)))
		}
	}
	return findings
}

func auditActiveCounts(activeByAsset map[uint64]int, activeByOwner map[string]int, params session.Params) []string {
	var findings []string

	assets := make([]uint64, 0, len(activeByAsset))
	for assetID := range activeByAsset {
		assets = append(assets, assetID)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i] < assets[j] })
	for _, assetID := range assets {
		if count := activeByAsset[assetID]; count > 1 {
			findings = append(findings, fmt.Sprintf("asset %d: %d concurrent active sessions", assetID, count))
		}
	}

	owners := make([]string, 0, len(activeByOwner))
	for owner := range activeByOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		if count := activeByOwner[owner]; count > params.MaxActivePerOwner {
			findings = append(findings, fmt.Sprintf("owner %s: %d active sessions exceed the cap of %d", owner, count, params.MaxActivePerOwner))
		}
	}
	return findings
}
