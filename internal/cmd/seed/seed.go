// Package seed populates a session store with a deterministic sample
// ledger so inspection surfaces have data to show.
package seed

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/burrowworks/critterledger/internal/activity/engine"
	"github.com/burrowworks/critterledger/internal/activity/notify"
	"github.com/burrowworks/critterledger/internal/activity/reward"
	"github.com/burrowworks/critterledger/internal/activity/session"
	"github.com/burrowworks/critterledger/internal/chain/simchain"
	platformcmd "github.com/burrowworks/critterledger/internal/platform/cmd"
	"github.com/burrowworks/critterledger/internal/random"
	"github.com/burrowworks/critterledger/internal/storage/sqlite"
	"github.com/burrowworks/critterledger/internal/telemetry"
)

// cast is the fixed set of demo owners. Each owns one job critter and one
// mini-game critter, numbered in cast order.
var cast = []string{"aspen", "birch", "cedar"}

var jobKinds = []session.Kind{session.KindForaging, session.KindMining, session.KindCourier}

var gameTiers = []session.Difficulty{session.DifficultyEasy, session.DifficultyNormal, session.DifficultyHard}

// Config holds seed command configuration.
type Config struct {
	StorePath string `env:"CRITTER_STORE_PATH"   envDefault:"critterledger.db"`
	Genesis   string `env:"CRITTER_SEED_GENESIS"`
	Rounds    int    `env:"CRITTER_SEED_ROUNDS"  envDefault:"3"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.StorePath, "store", cfg.StorePath, "path to the sqlite session store")
	fs.StringVar(&cfg.Genesis, "genesis", cfg.Genesis, "entropy tag for the simulated chain; random when empty")
	fs.IntVar(&cfg.Rounds, "rounds", cfg.Rounds, "number of activity rounds to play")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if strings.TrimSpace(cfg.StorePath) == "" {
		return errors.New("store path is required")
	}
	if cfg.Rounds <= 0 {
		return errors.New("rounds must be positive")
	}

	genesis := cfg.Genesis
	if genesis == "" {
		var err error
		genesis, err = random.NewGenesis()
		if err != nil {
			return err
		}
	}

	store, err := sqlite.Open(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("open session store at %s: %w", cfg.StorePath, err)
	}

	plantErr := plant(ctx, store, genesis, cfg.Rounds)
	if plantErr != nil {
		_ = store.Close()
		return plantErr
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("read statistics: %w", err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("close session store: %w", err)
	}

	fmt.Fprintf(out, "genesis %s\n", genesis)
	fmt.Fprintf(out, "sessions %d (active %d, completed %d, abandoned %d)\n",
		stats.TotalCount, stats.ActiveCount, stats.CompletedCount, stats.AbandonedCount)
	fmt.Fprintf(out, "results %d\n", stats.ResultCount)
	return nil
}

// plant replays a fixed activity script against the store. Every owner
// works a job and plays a mini-game each round; earlier rounds resolve
// while the final round stays active.
func plant(ctx context.Context, store *sqlite.Store, genesis string, rounds int) error {
	host := simchain.New(genesis)
	for i, owner := range cast {
		jobAsset := uint64(i*2 + 1)
		gameAsset := uint64(i*2 + 2)
		if err := host.MintCritter(jobAsset, owner); err != nil {
			return fmt.Errorf("mint critter %d: %w", jobAsset, err)
		}
		if err := host.MintCritter(gameAsset, owner); err != nil {
			return fmt.Errorf("mint critter %d: %w", gameAsset, err)
		}
	}

	eng, err := engine.New(engine.Config{
		Store:   store,
		Assets:  host,
		Coins:   host,
		Beacon:  host,
		Heights: host,
		Rewards: reward.DefaultTable(),
		Hooks:   notify.NewRegistry(),
		Audit:   telemetry.NewEmitter(store),
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	for r := 0; r < rounds; r++ {
		host.Advance(3)

		jobs := make([]uint64, len(cast))
		for i, owner := range cast {
			started, err := eng.Start(ctx, session.CreateSessionInput{
				Owner:    owner,
				AssetID:  uint64(i*2 + 1),
				Kind:     jobKinds[(r+i)%len(jobKinds)],
				Duration: 20 + 10*uint64((r+i)%3),
			})
			if err != nil {
				return fmt.Errorf("round %d: start job for %s: %w", r+1, owner, err)
			}
			jobs[i] = started.ID

			if err := playGame(ctx, eng, r, i, owner, uint64(i*2+2)); err != nil {
				return fmt.Errorf("round %d: %w", r+1, err)
			}
		}

		// Past every deadline this round can produce.
		host.Advance(45)

		if r == rounds-1 {
			continue
		}
		for i, owner := range cast {
			if r == 0 && i == 0 {
				if _, err := eng.Abandon(ctx, engine.AbandonInput{Caller: owner, SessionID: jobs[i]}); err != nil {
					return fmt.Errorf("round %d: abandon job for %s: %w", r+1, owner, err)
				}
				continue
			}
			if _, err := eng.Complete(ctx, engine.CompleteInput{Caller: owner, SessionID: jobs[i]}); err != nil {
				return fmt.Errorf("round %d: complete job for %s: %w", r+1, owner, err)
			}
		}
	}
	return nil
}

// playGame starts a mini-game and completes it in the same block.
func playGame(ctx context.Context, eng *engine.Engine, r, i int, owner string, assetID uint64) error {
	kind := session.KindDash
	if (r+i)%2 == 1 {
		kind = session.KindRiddle
	}
	difficulty := gameTiers[(r+i)%len(gameTiers)]

	started, err := eng.Start(ctx, session.CreateSessionInput{
		Owner:      owner,
		AssetID:    assetID,
		Kind:       kind,
		Difficulty: difficulty,
	})
	if err != nil {
		return fmt.Errorf("start game for %s: %w", owner, err)
	}

	score := uint32((r*137 + i*211) % 1001)
	if _, err := eng.Complete(ctx, engine.CompleteInput{Caller: owner, SessionID: started.ID, Score: &score}); err != nil {
		return fmt.Errorf("complete game for %s: %w", owner, err)
	}
	return nil
}
