// Package apperr provides the error taxonomy shared by every layer of the engine.
//
// Each failure carries a machine-readable Code. Codes belong to a Class so callers can tell
// "retry with different input" apart from "not authorized" and "client must upgrade".
package apperr

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Validation
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeTierOutOfRange     Code = "TIER_OUT_OF_RANGE"
	CodeInvalidRarityRange Code = "INVALID_RARITY_RANGE"
	CodeRateOutOfRange     Code = "RATE_OUT_OF_RANGE"
	CodeInvalidTimeRange   Code = "INVALID_TIME_RANGE"
	CodeItemNotInPool      Code = "ITEM_NOT_IN_POOL"
	CodeInvalidBoost       Code = "INVALID_BOOST"
	CodeInvalidPityConfig  Code = "INVALID_PITY_CONFIG"
	CodeInvalidDrawCount   Code = "INVALID_DRAW_COUNT"

	// Authorization
	CodeCapabilityWrongScope   Code = "CAPABILITY_WRONG_SCOPE"
	CodeCapabilityIneligible   Code = "CAPABILITY_INELIGIBLE"
	CodeCapabilityUnknown      Code = "CAPABILITY_UNKNOWN"
	CodeCapabilityInvalidToken Code = "CAPABILITY_INVALID_TOKEN"
	CodeCapabilityMissing      Code = "CAPABILITY_MISSING"

	// Resource
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeEmptyTierPool       Code = "EMPTY_TIER_POOL"
	CodeBannerInactive      Code = "BANNER_INACTIVE"
	CodeNoTrackedTiers      Code = "NO_TRACKED_TIERS"

	// Compatibility
	CodeVersionMismatch  Code = "VERSION_MISMATCH"
	CodeInvalidMigration Code = "INVALID_MIGRATION"

	// Storage
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	CodeInternal Code = "INTERNAL"
)

// Class groups codes by how a caller should react.
type Class string

const (
	ClassValidation    Class = "validation"
	ClassAuthorization Class = "authorization"
	ClassResource      Class = "resource"
	ClassCompatibility Class = "compatibility"
	ClassNotFound      Class = "not_found"
	ClassConflict      Class = "conflict"
	ClassInternal      Class = "internal"
)

// Class returns the class the code belongs to.
func (c Code) Class() Class {
	switch c {
	case CodeInvalidInput,
		CodeTierOutOfRange,
		CodeInvalidRarityRange,
		CodeRateOutOfRange,
		CodeInvalidTimeRange,
		CodeItemNotInPool,
		CodeInvalidBoost,
		CodeInvalidPityConfig,
		CodeInvalidDrawCount:
		return ClassValidation

	case CodeCapabilityWrongScope,
		CodeCapabilityIneligible,
		CodeCapabilityUnknown,
		CodeCapabilityInvalidToken,
		CodeCapabilityMissing:
		return ClassAuthorization

	case CodeInsufficientBalance,
		CodeEmptyTierPool,
		CodeBannerInactive,
		CodeNoTrackedTiers:
		return ClassResource

	case CodeVersionMismatch,
		CodeInvalidMigration:
		return ClassCompatibility

	case CodeNotFound:
		return ClassNotFound

	case CodeAlreadyExists:
		return ClassConflict

	default:
		return ClassInternal
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c.Class() {
	case ClassValidation:
		return codes.InvalidArgument
	case ClassAuthorization:
		if c == CodeCapabilityMissing || c == CodeCapabilityInvalidToken {
			return codes.Unauthenticated
		}
		return codes.PermissionDenied
	case ClassResource:
		if c == CodeInsufficientBalance {
			return codes.ResourceExhausted
		}
		return codes.FailedPrecondition
	case ClassCompatibility:
		return codes.FailedPrecondition
	case ClassNotFound:
		return codes.NotFound
	case ClassConflict:
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}
