package i18n

// Error codes must match the codes defined in internal/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeDurationOutOfRange    = "DURATION_OUT_OF_RANGE"
	CodeSessionLimitReached   = "SESSION_LIMIT_REACHED"
	CodeAssetBusy             = "ASSET_BUSY"
	CodeKindInvalid           = "KIND_INVALID"
	CodeDifficultyInvalid     = "DIFFICULTY_INVALID"
	CodeScoreOutOfRange       = "SCORE_OUT_OF_RANGE"
	CodeOwnerEmpty            = "OWNER_EMPTY"
	CodeAssetInvalid          = "ASSET_INVALID"
	CodeNotAssetOwner         = "NOT_ASSET_OWNER"
	CodeNotSessionOwner       = "NOT_SESSION_OWNER"
	CodeSessionNotFound       = "SESSION_NOT_FOUND"
	CodeSessionFinished       = "SESSION_FINISHED"
	CodeSessionNotYetComplete = "SESSION_NOT_YET_COMPLETE"
	CodeSessionStatusInvalid  = "SESSION_STATUS_INVALID"
	CodeNotFound              = "NOT_FOUND"
	CodeBeaconUnavailable     = "BEACON_UNAVAILABLE"
	CodeCreditFailed          = "CREDIT_FAILED"
)

var enUSCatalog = &Catalog{
	locale: "en-US",
	messages: map[Code]string{
		// Admission errors
		CodeDurationOutOfRange:  "Duration must be between {{.MinDuration}} and {{.MaxDuration}} blocks",
		CodeSessionLimitReached: "You already have {{.MaxActive}} activities in progress",
		CodeAssetBusy:           "This critter is already busy with another activity",

		// Input errors
		CodeKindInvalid:       "Unknown activity kind",
		CodeDifficultyInvalid: "Unknown difficulty tier",
		CodeScoreOutOfRange:   "Score must be between 0 and {{.MaxScore}}",
		CodeOwnerEmpty:        "Owner account is required",
		CodeAssetInvalid:      "A critter must be selected",

		// Authorization errors
		CodeNotAssetOwner:   "You do not own this critter",
		CodeNotSessionOwner: "Only the session owner can do that",

		// State errors
		CodeSessionNotFound:       "Activity session not found",
		CodeSessionFinished:       "This activity has already finished",
		CodeSessionNotYetComplete: "This activity is not finished yet ({{.Remaining}} blocks remaining)",
		CodeSessionStatusInvalid:  "The session is not in a valid state for this operation",

		// Storage errors
		CodeNotFound: "Record not found",

		// Collaborator errors
		CodeBeaconUnavailable: "Randomness is temporarily unavailable",
		CodeCreditFailed:      "Reward payout failed",
	},
}
