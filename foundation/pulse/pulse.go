// Package pulse implements the payload logic of a verifiable, periodic
// randomness beacon built as entries on a braid chain. Each entry publishes
// one pulse of randomness; consecutive pulses are bound together by a
// commit-reveal scheme so that no producer can choose its output after
// seeing others', and an independent verifier can replay the chain to
// confirm every pulse was honestly derived from its predecessor.
package pulse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/multiformats/go-multihash"

	"github.com/braidchain/pulse/foundation/braid"
)

// SpecPrefix is the namespace of the pulse randomness specification.
const SpecPrefix = "pulse-rng"

// SpecVersion is the current version of the pulse randomness specification.
const SpecVersion = "1.0.0"

// SubspecString returns the subspec declaration to use when building a chain
// header for this specification.
func SubspecString() string {
	return fmt.Sprintf("%s/%s", SpecPrefix, SpecVersion)
}

// =============================================================================

// validate holds the settings and caches for validating chain details.
var validate = validator.New()

// Duration is a time.Duration that serializes as a duration string such as
// "60s" inside a chain header's details blob.
type Duration time.Duration

// MarshalJSON implements the json.Marshaler interface.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(dur)
	return nil
}

// ChainDetails is the chain-wide configuration every entry of one chain
// shares, declared in the chain header.
type ChainDetails struct {
	Period Duration `json:"period" validate:"required,gt=0"`
}

// DecodeDetails extracts and validates the chain-wide configuration from a
// chain header's details blob.
func DecodeDetails(header braid.Header) (ChainDetails, error) {
	var details ChainDetails
	if err := json.Unmarshal(header.Details(), &details); err != nil {
		return ChainDetails{}, fmt.Errorf("unmarshal chain details: %w", err)
	}

	if err := validate.Struct(details); err != nil {
		return ChainDetails{}, fmt.Errorf("invalid chain details: %w", err)
	}

	return details, nil
}

// =============================================================================

// ExtractRandomness confirms that two adjacent, already-authenticated chain
// entries form a valid pulse pair and returns the finalized randomness: the
// current entry's content-hash digest. Binding the output to the full
// authenticated entry, which incorporates the payload, the signature, and
// the chain linkage, keeps the exported value unpredictable until the entry
// is finalized and bound to one specific, non-repudiable chain position.
func ExtractRandomness(current braid.Entry, prev braid.Entry) ([]byte, error) {
	if !bytes.Equal(current.Header().Hash(), prev.Header().Hash()) {
		return nil, verificationErrf(ReasonLinkage, "current entry and previous entry are on different chains")
	}

	prevLink, ok := current.Previous()
	if !ok {
		return nil, verificationErrf(ReasonLinkage, "current entry has no previous link")
	}
	if !bytes.Equal(prevLink, prev.Hash()) {
		return nil, verificationErrf(ReasonLinkage, "previous entry does not match current entry's previous link")
	}

	payload, err := ExtractPayload(current)
	if err != nil {
		return nil, err
	}

	if err := payload.ValidateRandomness(prev); err != nil {
		return nil, err
	}

	dec, err := multihash.Decode(current.Hash())
	if err != nil {
		return nil, &VerificationError{Reason: ReasonMalformed, Msg: "current entry content hash", Err: err}
	}

	return bytes.Clone(dec.Digest), nil
}
