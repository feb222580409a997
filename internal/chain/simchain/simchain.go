// Package simchain provides a deterministic in-process host runtime for
// scenario runs and tests.
//
// Every value it produces is a pure function of its genesis entropy and the
// sequence of operations applied to it, so two runs of the same script
// observe identical heights, seeds, balances, and experience totals.
package simchain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/burrowworks/critterledger/internal/chain"
	"github.com/burrowworks/critterledger/internal/core/satmath"
)

// Chain is an in-memory stand-in for the host ledger runtime. It implements
// chain.AssetRegistry, chain.CoinLedger, chain.RandomnessBeacon, and
// chain.HeightSource.
type Chain struct {
	mu         sync.Mutex
	height     uint64
	epoch      [32]byte
	owners     map[uint64]string
	experience map[uint64]uint64
	balances   map[string]uint64
}

// New creates a chain at height 1 with entropy derived from the genesis
// string. The same genesis string always produces the same beacon output.
func New(genesis string) *Chain {
	return &Chain{
		height:     1,
		epoch:      sha256.Sum256([]byte("critterledger/genesis/" + genesis)),
		owners:     map[uint64]string{},
		experience: map[uint64]uint64{},
		balances:   map[string]uint64{},
	}
}

// MintCritter assigns an asset to an owner. Minting an already-minted asset
// is an error so scripts cannot silently reassign ownership.
func (c *Chain) MintCritter(assetID uint64, owner string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.owners[assetID]; ok {
		return fmt.Errorf("critter %d already minted to %s", assetID, existing)
	}
	c.owners[assetID] = owner
	return nil
}

// Fund adds coins to an owner balance outside of any reward path.
func (c *Chain) Fund(owner string, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances[owner] = satmath.Add(c.balances[owner], amount)
}

// Advance moves the chain forward by the given number of blocks.
func (c *Chain) Advance(blocks uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height = satmath.Add(c.height, blocks)
}

// Balance returns an owner's coin balance.
func (c *Chain) Balance(owner string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balances[owner]
}

// Experience returns an asset's accumulated experience.
func (c *Chain) Experience(assetID uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.experience[assetID]
}

// Owners returns the minted assets in ascending asset order.
func (c *Chain) Owners() map[uint64]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint64]string, len(c.owners))
	for asset, owner := range c.owners {
		out[asset] = owner
	}
	return out
}

// Accounts returns the funded account names in sorted order.
func (c *Chain) Accounts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.balances))
	for owner := range c.balances {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}

// OwnerOf implements chain.AssetRegistry.
func (c *Chain) OwnerOf(_ context.Context, assetID uint64) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.owners[assetID]
	return owner, ok, nil
}

// CreditExperience implements chain.AssetRegistry. Experience saturates
// rather than wrapping.
func (c *Chain) CreditExperience(_ context.Context, assetID uint64, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.owners[assetID]; !ok {
		return fmt.Errorf("critter %d does not exist", assetID)
	}
	c.experience[assetID] = satmath.Add(c.experience[assetID], amount)
	return nil
}

// Credit implements chain.CoinLedger. Credits mint to any address, matching
// reserve-payout host policy.
func (c *Chain) Credit(_ context.Context, owner string, amount uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if owner == "" {
		return fmt.Errorf("owner address is required")
	}
	c.balances[owner] = satmath.Add(c.balances[owner], amount)
	return nil
}

// Random implements chain.RandomnessBeacon. The seed is a hash over the
// genesis epoch, the current height, and the subject, so it is fixed once
// the height it draws from is committed.
func (c *Chain) Random(_ context.Context, subject []byte) (chain.Seed, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	material := make([]byte, 0, len(c.epoch)+8+len(subject))
	material = append(material, c.epoch[:]...)
	material = binary.BigEndian.AppendUint64(material, c.height)
	material = append(material, subject...)
	return chain.Seed(sha256.Sum256(material)), c.height, nil
}

// Height implements chain.HeightSource.
func (c *Chain) Height(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height, nil
}
