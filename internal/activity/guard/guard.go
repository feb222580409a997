// Package guard enforces the capacity rules that gate session admission.
//
// The guard is a pure policy over counts the caller has already read from
// storage. It holds no state of its own, which keeps admission decisions
// reproducible across replicas.
package guard

import (
	"fmt"
	"strconv"

	"github.com/burrowworks/critterledger/internal/activity/session"
	apperrors "github.com/burrowworks/critterledger/internal/errors"
)

// Occupancy summarizes the active-session state relevant to admission.
type Occupancy struct {
	// ActiveForOwner is how many sessions the owner currently has active.
	ActiveForOwner int
	// AssetBusy reports whether the asset already has an active session.
	AssetBusy bool
}

// Admit decides whether a new session may start given current occupancy.
// The owner limit is checked before asset exclusivity.
func Admit(occupancy Occupancy, assetID uint64, params session.Params) error {
	if occupancy.ActiveForOwner >= params.MaxActivePerOwner {
		return apperrors.WithMetadata(
			apperrors.CodeSessionLimitReached,
			fmt.Sprintf("owner has %d active sessions, limit is %d", occupancy.ActiveForOwner, params.MaxActivePerOwner),
			map[string]string{
				"ActiveSessions": strconv.Itoa(occupancy.ActiveForOwner),
				"MaxActive":      strconv.Itoa(params.MaxActivePerOwner),
			},
		)
	}
	if occupancy.AssetBusy {
		return apperrors.WithMetadata(
			apperrors.CodeAssetBusy,
			fmt.Sprintf("asset %d already has an active session", assetID),
			map[string]string{"AssetID": strconv.FormatUint(assetID, 10)},
		)
	}
	return nil
}
