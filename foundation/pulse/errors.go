package pulse

import "fmt"

// ConstructionReason discriminates the ways building a new pulse payload can
// fail. Every construction failure is terminal for that attempt; a caller
// must never publish the entry and must restart from a clean builder state.
type ConstructionReason int

// The set of construction failure reasons.
const (
	ReasonBuilderSpent     ConstructionReason = iota + 1 // The builder handle was consumed by Advance.
	ReasonSigningAlgorithm                               // The chain's signing scheme is not provably deterministic.
	ReasonSubspec                                        // The chain declares no subspec or a foreign namespace.
	ReasonFutureVersion                                  // The chain's subspec version is newer than this implementation.
	ReasonChainConfig                                    // The chain-wide configuration is missing or unparseable.
	ReasonPrevPayload                                    // The previous entry's payload could not be extracted.
	ReasonCommitMismatch                                 // The supplied reveal does not hash to the prior commitment.
	ReasonDigestSize                                     // Digest sizes disagree between the new pre and the chain.
	ReasonBadPayload                                     // The constructed payload violates its own invariants.
)

// String implements the fmt.Stringer interface.
func (r ConstructionReason) String() string {
	switch r {
	case ReasonBuilderSpent:
		return "builder spent"
	case ReasonSigningAlgorithm:
		return "signing algorithm"
	case ReasonSubspec:
		return "subspec"
	case ReasonFutureVersion:
		return "future version"
	case ReasonChainConfig:
		return "chain config"
	case ReasonPrevPayload:
		return "previous payload"
	case ReasonCommitMismatch:
		return "commit mismatch"
	case ReasonDigestSize:
		return "digest size"
	case ReasonBadPayload:
		return "bad payload"
	}
	return "unknown"
}

// ConstructionError is returned when building a new pulse payload fails.
type ConstructionError struct {
	Reason ConstructionReason
	Msg    string
	Err    error
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("construction [%s]: %s: %s", e.Reason, e.Msg, e.Err)
	}
	return fmt.Sprintf("construction [%s]: %s", e.Reason, e.Msg)
}

// Unwrap exposes the underlying cause when one exists.
func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// constructionErrf builds a ConstructionError with a formatted message.
func constructionErrf(reason ConstructionReason, format string, args ...any) *ConstructionError {
	return &ConstructionError{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

// =============================================================================

// VerificationReason discriminates the ways checking an existing pulse can
// fail. Verification failures are never auto-corrected or retried; a failing
// entry must be treated as untrusted.
type VerificationReason int

// The set of verification failure reasons.
const (
	ReasonMalformed         VerificationReason = iota + 1 // The payload violates its structural invariants.
	ReasonDecode                                          // The entry's payload blob is not a randomness payload.
	ReasonLinkage                                         // The entries are not correctly linked on one chain.
	ReasonDigestMismatch                                  // Digest sizes disagree between the pre and the chain.
	ReasonTimestampOrder                                  // The timestamp precedes the previous pulse's timestamp.
	ReasonCadence                                         // The timestamps are not exactly one period apart.
	ReasonHashAlgorithm                                   // The prior commitment uses an unsupported hash algorithm.
	ReasonCommitment                                      // The revealed value does not match the prior commitment.
	ReasonVerifyChainConfig                               // The chain-wide configuration could not be decoded.
)

// String implements the fmt.Stringer interface.
func (r VerificationReason) String() string {
	switch r {
	case ReasonMalformed:
		return "malformed"
	case ReasonDecode:
		return "decode"
	case ReasonLinkage:
		return "linkage"
	case ReasonDigestMismatch:
		return "digest mismatch"
	case ReasonTimestampOrder:
		return "timestamp order"
	case ReasonCadence:
		return "cadence"
	case ReasonHashAlgorithm:
		return "hash algorithm"
	case ReasonCommitment:
		return "commitment"
	case ReasonVerifyChainConfig:
		return "chain config"
	}
	return "unknown"
}

// VerificationError is returned when an existing pulse fails a check.
type VerificationError struct {
	Reason VerificationReason
	Msg    string
	Err    error
}

// Error implements the error interface.
func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verification [%s]: %s: %s", e.Reason, e.Msg, e.Err)
	}
	return fmt.Sprintf("verification [%s]: %s", e.Reason, e.Msg)
}

// Unwrap exposes the underlying cause when one exists.
func (e *VerificationError) Unwrap() error {
	return e.Err
}

// verificationErrf builds a VerificationError with a formatted message.
func verificationErrf(reason VerificationReason, format string, args ...any) *VerificationError {
	return &VerificationError{Reason: reason, Msg: fmt.Sprintf(format, args...)}
}
