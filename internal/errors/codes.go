// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Session admission errors
	CodeDurationOutOfRange  Code = "DURATION_OUT_OF_RANGE"
	CodeSessionLimitReached Code = "SESSION_LIMIT_REACHED"
	CodeAssetBusy           Code = "ASSET_BUSY"

	// Session input errors
	CodeKindInvalid       Code = "KIND_INVALID"
	CodeDifficultyInvalid Code = "DIFFICULTY_INVALID"
	CodeScoreOutOfRange   Code = "SCORE_OUT_OF_RANGE"
	CodeOwnerEmpty        Code = "OWNER_EMPTY"
	CodeAssetInvalid      Code = "ASSET_INVALID"

	// Session authorization errors
	CodeNotAssetOwner   Code = "NOT_ASSET_OWNER"
	CodeNotSessionOwner Code = "NOT_SESSION_OWNER"

	// Session state errors
	CodeSessionNotFound       Code = "SESSION_NOT_FOUND"
	CodeSessionFinished       Code = "SESSION_FINISHED"
	CodeSessionNotYetComplete Code = "SESSION_NOT_YET_COMPLETE"
	CodeSessionStatusInvalid  Code = "SESSION_STATUS_INVALID"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"

	// Collaborator/internal errors
	CodeBeaconUnavailable Code = "BEACON_UNAVAILABLE"
	CodeCreditFailed      Code = "CREDIT_FAILED"
	CodeInternal          Code = "INTERNAL"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeDurationOutOfRange,
		CodeKindInvalid,
		CodeDifficultyInvalid,
		CodeScoreOutOfRange,
		CodeOwnerEmpty,
		CodeAssetInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeSessionLimitReached,
		CodeAssetBusy,
		CodeSessionFinished,
		CodeSessionNotYetComplete,
		CodeSessionStatusInvalid:
		return codes.FailedPrecondition

	// PermissionDenied - caller is not the owning account
	case CodeNotAssetOwner,
		CodeNotSessionOwner:
		return codes.PermissionDenied

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeSessionNotFound:
		return codes.NotFound

	default:
		return codes.Internal
	}
}
