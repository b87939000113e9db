package pulse

import (
	"bytes"
	"time"

	"github.com/multiformats/go-multihash"

	"github.com/braidchain/pulse/foundation/braid"
)

// Builder threads the raw random values of the commit-reveal scheme across
// successive pulse constructions. It holds the value the previous entry
// committed to (current, about to be revealed) and a freshly drawn value
// whose hash becomes the next entry's commitment (next).
//
// A Builder is a linear value owned by the beacon operator: Advance consumes
// the receiver and returns its successor, and there is no way to rewind.
// Reusing a consumed builder fails at construction; a double-advanced one
// fails the commitment check instead.
type Builder struct {
	current []byte
	next    []byte
	spent   bool
}

// NewBuilder constructs a Builder. When starting from the beginning of a
// chain the current value is ignored, since the first entry reveals nothing.
func NewBuilder(current []byte, next []byte) *Builder {
	return &Builder{
		current: bytes.Clone(current),
		next:    bytes.Clone(next),
	}
}

// Current returns the raw random value about to be revealed.
func (b *Builder) Current() []byte {
	return bytes.Clone(b.current)
}

// Pre computes the commitment to the builder's next value with the specified
// multihash code.
func (b *Builder) Pre(code uint64) (multihash.Multihash, error) {
	return multihash.Sum(b.next, code, -1)
}

// Advance consumes the builder and returns its successor: next becomes
// current, and the supplied fresh random value becomes next. The receiver is
// invalidated and must not be used again.
func (b *Builder) Advance(next []byte) *Builder {
	nb := NewBuilder(b.next, next)
	b.spent = true
	return nb
}

// Build constructs the payload for the entry under construction. It
// validates the chain's signing algorithm and subspec, decodes the chain's
// period, computes the commitment, and dispatches to the start or successor
// constructor depending on whether a previous entry exists.
func (b *Builder) Build(header braid.Header, prev braid.Entry) (Payload, error) {
	if b.spent {
		return Payload{}, constructionErrf(ReasonBuilderSpent, "builder was consumed by Advance and cannot construct another payload")
	}

	if err := ValidateSigningAlgorithm(header.KeyAlgorithm()); err != nil {
		return Payload{}, err
	}

	subspec, ok := header.Subspec()
	if !ok {
		return Payload{}, constructionErrf(ReasonSubspec, "subspec is required for validation")
	}
	if err := ValidateSubspec(subspec); err != nil {
		return Payload{}, err
	}
	if !subspec.Satisfies(version10) {
		return Payload{}, constructionErrf(ReasonFutureVersion, "unable to build payload for version %s", subspec.Version)
	}

	details, err := DecodeDetails(header)
	if err != nil {
		return Payload{}, &ConstructionError{Reason: ReasonChainConfig, Msg: "decode chain details", Err: err}
	}
	period := time.Duration(details.Period)

	pre, err := b.Pre(header.HashCode())
	if err != nil {
		return Payload{}, &ConstructionError{Reason: ReasonChainConfig, Msg: "hash next random value", Err: err}
	}

	if prev == nil {
		return NewStart(pre, period)
	}
	return NewNext(b.current, pre, prev, period)
}

// PayloadFunc adapts Build to the contract the external chain-entry builder
// consumes. It is invoked exactly once per entry construction and is
// deterministic given the builder's captured state.
func (b *Builder) PayloadFunc() braid.PayloadFunc {
	return func(header braid.Header, prev braid.Entry) (any, error) {
		return b.Build(header, prev)
	}
}
