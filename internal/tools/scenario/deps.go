package scenario

import (
	"github.com/burrowworks/critterledger/internal/activity/engine"
	"github.com/burrowworks/critterledger/internal/activity/notify"
	"github.com/burrowworks/critterledger/internal/chain/simchain"
	"github.com/burrowworks/critterledger/internal/storage/memory"
)

// runnerDeps bundles injectable dependencies for runner construction.
type runnerDeps struct {
	host   *simchain.Chain
	store  *memory.Store
	engine *engine.Engine
	hooks  *notify.Registry
}
