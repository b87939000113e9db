package pulse

import (
	"github.com/Masterminds/semver/v3"

	"github.com/braidchain/pulse/foundation/braid"
)

// version10 is the range of subspec versions this implementation can build
// payloads for. Anything newer must fail rather than produce an entry the
// newer specification might consider malformed.
var version10 = mustConstraint("~1.0")

// ValidateSigningAlgorithm accepts only signature schemes that are provably
// deterministic: a fixed output for a given key and message, with no
// per-signature randomness. If signature bytes fed into an entry's content
// hash were non-deterministic, a producer could grind signatures over the
// same payload to bias the content hash, and with it the exported
// randomness, after seeing the committed value.
func ValidateSigningAlgorithm(alg braid.SignatureAlgorithm) error {
	switch alg {
	case braid.AlgSHA256RSA, braid.AlgSHA384RSA, braid.AlgSHA512RSA:
		return nil
	}
	return constructionErrf(ReasonSigningAlgorithm, "signature algorithm %s is not provably deterministic", alg)
}

// ValidateSubspec checks that a chain's declared payload specification lives
// in this module's namespace. Version compatibility is checked separately at
// payload-construction time.
func ValidateSubspec(subspec braid.Subspec) error {
	if subspec.Prefix != SpecPrefix {
		return constructionErrf(ReasonSubspec, "subspec prefix must be %s, got %s", SpecPrefix, subspec.Prefix)
	}
	return nil
}

// mustConstraint parses a semver constraint known to be valid at compile time.
func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}
