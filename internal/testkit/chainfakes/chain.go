// Package chainfakes provides in-memory chain collaborator fakes for tests.
package chainfakes

import (
	"context"

	"github.com/burrowworks/critterledger/internal/chain"
)

// Registry is a lightweight in-memory AssetRegistry fake for tests.
type Registry struct {
	Owners     map[uint64]string
	Experience map[uint64]uint64

	OwnerOfErr          error
	CreditExperienceErr error
}

// NewRegistry constructs a Registry fake with initialized state maps.
func NewRegistry() *Registry {
	return &Registry{
		Owners:     make(map[uint64]string),
		Experience: make(map[uint64]uint64),
	}
}

func (r *Registry) OwnerOf(_ context.Context, assetID uint64) (string, bool, error) {
	if r.OwnerOfErr != nil {
		return "", false, r.OwnerOfErr
	}
	owner, ok := r.Owners[assetID]
	return owner, ok, nil
}

func (r *Registry) CreditExperience(_ context.Context, assetID uint64, amount uint64) error {
	if r.CreditExperienceErr != nil {
		return r.CreditExperienceErr
	}
	r.Experience[assetID] += amount
	return nil
}

// Ledger is a lightweight in-memory CoinLedger fake for tests.
type Ledger struct {
	Balances map[string]uint64

	CreditErr error
}

// NewLedger constructs a Ledger fake with an initialized balance map.
func NewLedger() *Ledger {
	return &Ledger{Balances: make(map[string]uint64)}
}

func (l *Ledger) Credit(_ context.Context, owner string, amount uint64) error {
	if l.CreditErr != nil {
		return l.CreditErr
	}
	l.Balances[owner] += amount
	return nil
}

// Beacon is a fixed-seed RandomnessBeacon fake for tests. It records every
// subject drawn so tests can assert beacon usage.
type Beacon struct {
	Seed       chain.Seed
	SeedHeight uint64
	Subjects   [][]byte

	RandomErr error
}

// NewBeacon constructs a Beacon fake returning the given seed.
func NewBeacon(seed chain.Seed, seedHeight uint64) *Beacon {
	return &Beacon{Seed: seed, SeedHeight: seedHeight}
}

func (b *Beacon) Random(_ context.Context, subject []byte) (chain.Seed, uint64, error) {
	if b.RandomErr != nil {
		return chain.Seed{}, 0, b.RandomErr
	}
	recorded := make([]byte, len(subject))
	copy(recorded, subject)
	b.Subjects = append(b.Subjects, recorded)
	return b.Seed, b.SeedHeight, nil
}

// Heights is a settable HeightSource fake for tests.
type Heights struct {
	Current uint64

	HeightErr error
}

// NewHeights constructs a Heights fake at the given height.
func NewHeights(current uint64) *Heights {
	return &Heights{Current: current}
}

func (h *Heights) Height(_ context.Context) (uint64, error) {
	if h.HeightErr != nil {
		return 0, h.HeightErr
	}
	return h.Current, nil
}

// Advance moves the fake height forward.
func (h *Heights) Advance(blocks uint64) {
	h.Current += blocks
}
