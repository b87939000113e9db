package pulse

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/multiformats/go-multihash"

	"github.com/braidchain/pulse/foundation/braid"
)

// Payload is the randomness record embedded in one chain entry. It carries
// the XOR-masked reveal of the value committed to one period earlier (salt),
// a pre-commitment to the value that will be revealed one period later (pre),
// and the pulse's scheduled timestamp.
//
// Two invariants hold for every Payload in existence, on construction and on
// deserialization alike: the salt length equals the digest size of pre, and
// the timestamp carries no sub-second precision. A violation is a permanent
// malformation, not a transient failure.
type Payload struct {
	salt      []byte
	pre       multihash.Multihash
	timestamp time.Time
}

// NewPayload constructs a Payload, enforcing the structural invariants.
func NewPayload(salt []byte, pre multihash.Multihash, timestamp time.Time) (Payload, error) {
	dec, err := multihash.Decode(pre)
	if err != nil {
		return Payload{}, &VerificationError{Reason: ReasonMalformed, Msg: "pre is not a valid multihash", Err: err}
	}

	if len(salt) != dec.Length {
		return Payload{}, verificationErrf(ReasonMalformed, "salt length %d does not match pre hash size %d", len(salt), dec.Length)
	}

	if timestamp.Nanosecond() != 0 {
		return Payload{}, verificationErrf(ReasonMalformed, "timestamp %s has sub-second precision", timestamp.Format(time.RFC3339Nano))
	}

	p := Payload{
		salt:      bytes.Clone(salt),
		pre:       pre,
		timestamp: timestamp.UTC(),
	}

	return p, nil
}

// NewStart constructs the payload for the first entry of a chain. There is
// no prior reveal to mask, so the salt is a zero-filled buffer sized to the
// commitment's digest. The first pulse always aligns to the absolute grid.
func NewStart(pre multihash.Multihash, period time.Duration) (Payload, error) {
	dec, err := multihash.Decode(pre)
	if err != nil {
		return Payload{}, &ConstructionError{Reason: ReasonBadPayload, Msg: "pre is not a valid multihash", Err: err}
	}

	salt := make([]byte, dec.Length)
	timestamp := NextTruncatedTime(period)

	p, err := NewPayload(salt, pre, timestamp)
	if err != nil {
		return Payload{}, &ConstructionError{Reason: ReasonBadPayload, Msg: "start payload", Err: err}
	}

	return p, nil
}

// NewNext constructs the payload for a successor entry. The reveal must be
// the exact value the previous payload committed to, and the salt binds it
// to the specific identity of the previous entry by XOR against that entry's
// content-hash digest. The same reveal published against a different
// predecessor yields a different salt, which prevents replaying a reveal
// across forks.
func NewNext(reveal []byte, pre multihash.Multihash, prev braid.Entry, period time.Duration) (Payload, error) {
	prevPayload, err := ExtractPayload(prev)
	if err != nil {
		return Payload{}, &ConstructionError{Reason: ReasonPrevPayload, Msg: "extract previous payload", Err: err}
	}

	// Recompute the commitment with the chain's declared hash algorithm and
	// require it to match what was promised last round. A mismatch here is a
	// session error: the builder was reused without Advance, or advanced
	// twice.
	commit, err := multihash.Sum(reveal, prev.Header().HashCode(), -1)
	if err != nil {
		return Payload{}, &ConstructionError{Reason: ReasonChainConfig, Msg: "hash reveal with chain hash algorithm", Err: err}
	}
	if !bytes.Equal(commit, prevPayload.pre) {
		return Payload{}, constructionErrf(ReasonCommitMismatch, "precommitment does not match revealed random bytes")
	}

	prevDec, err := multihash.Decode(prev.Hash())
	if err != nil {
		return Payload{}, &ConstructionError{Reason: ReasonDigestSize, Msg: "previous entry content hash", Err: err}
	}
	preDec, err := multihash.Decode(pre)
	if err != nil {
		return Payload{}, &ConstructionError{Reason: ReasonDigestSize, Msg: "pre is not a valid multihash", Err: err}
	}
	if prevDec.Length != preDec.Length {
		return Payload{}, constructionErrf(ReasonDigestSize, "pre hash size %d does not match previous entry hash size %d", preDec.Length, prevDec.Length)
	}

	salt := xorBytes(reveal, prevDec.Digest)
	timestamp := NextPulseTimestamp(prevPayload.timestamp, period)

	p, err := NewPayload(salt, pre, timestamp)
	if err != nil {
		return Payload{}, &ConstructionError{Reason: ReasonBadPayload, Msg: "next payload", Err: err}
	}

	return p, nil
}

// ExtractPayload decodes this module's typed payload from an entry's opaque
// payload blob. The structural invariants are enforced during decode, so a
// payload that deserializes successfully is well formed.
func ExtractPayload(entry braid.Entry) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(entry.Payload(), &p); err != nil {
		var verr *VerificationError
		if errors.As(err, &verr) {
			return Payload{}, verr
		}
		return Payload{}, &VerificationError{Reason: ReasonDecode, Msg: "decode randomness payload", Err: err}
	}

	return p, nil
}

// ValidateRandomness checks this payload against its predecessor entry. The
// checks run in a fixed order and every failure is terminal: digest-size
// compatibility, timestamp monotonicity, exact single-period cadence, and
// finally the commit-reveal closure proving the value revealed here is
// exactly what the previous payload promised.
func (p Payload) ValidateRandomness(prev braid.Entry) error {
	prevDec, err := multihash.Decode(prev.Hash())
	if err != nil {
		return &VerificationError{Reason: ReasonDigestMismatch, Msg: "previous entry content hash", Err: err}
	}
	preDec, err := multihash.Decode(p.pre)
	if err != nil {
		return &VerificationError{Reason: ReasonDigestMismatch, Msg: "pre is not a valid multihash", Err: err}
	}
	if prevDec.Length != preDec.Length {
		return verificationErrf(ReasonDigestMismatch, "pre hash size %d does not match previous entry hash size %d", preDec.Length, prevDec.Length)
	}

	prevPayload, err := ExtractPayload(prev)
	if err != nil {
		return err
	}

	if p.timestamp.Before(prevPayload.timestamp) {
		return verificationErrf(ReasonTimestampOrder, "timestamp %s precedes previous pulse timestamp %s",
			p.timestamp.Format(time.RFC3339), prevPayload.timestamp.Format(time.RFC3339))
	}

	details, err := DecodeDetails(prev.Header())
	if err != nil {
		return &VerificationError{Reason: ReasonVerifyChainConfig, Msg: "decode chain details", Err: err}
	}

	// The cadence must be exact. Both early and late pulses are rejected
	// here, including a silently resynchronized one that lands close to,
	// but not exactly on, one period after its predecessor.
	if p.timestamp.Sub(prevPayload.timestamp) != time.Duration(details.Period) {
		return verificationErrf(ReasonCadence, "timestamps are not exactly one period apart, got %s, exp %s",
			p.timestamp.Sub(prevPayload.timestamp), time.Duration(details.Period))
	}

	// Recover the locally implied reveal and close the commit-reveal loop
	// against the previous payload's commitment.
	reveal := p.LocalRandomValue(prev)

	prevPreDec, err := multihash.Decode(prevPayload.pre)
	if err != nil {
		return &VerificationError{Reason: ReasonMalformed, Msg: "previous pre is not a valid multihash", Err: err}
	}
	commit, err := multihash.Sum(reveal, prevPreDec.Code, -1)
	if err != nil {
		return &VerificationError{Reason: ReasonHashAlgorithm, Msg: "hash local random value", Err: err}
	}

	if !bytes.Equal(commit, prevPayload.pre) {
		return verificationErrf(ReasonCommitment, "previous pulse pre hash does not match hash of revealed random value")
	}

	return nil
}

// LocalRandomValue recovers the raw random value this payload reveals by
// unmasking the salt against the previous entry's content-hash digest. The
// XOR mask is a deliberate protocol choice for cheap reversibility.
func (p Payload) LocalRandomValue(prev braid.Entry) []byte {
	dec, err := multihash.Decode(prev.Hash())
	if err != nil {
		return nil
	}
	return xorBytes(p.salt, dec.Digest)
}

// Salt returns a copy of the payload's masked reveal.
func (p Payload) Salt() []byte {
	return bytes.Clone(p.salt)
}

// Pre returns the payload's pre-commitment.
func (p Payload) Pre() multihash.Multihash {
	return p.pre
}

// Timestamp returns the pulse's scheduled time.
func (p Payload) Timestamp() time.Time {
	return p.timestamp
}

// =============================================================================

// payloadJSON is the persisted representation of a Payload.
type payloadJSON struct {
	Salt      hexutil.Bytes `json:"salt"`
	Pre       hexutil.Bytes `json:"pre"`
	Timestamp time.Time     `json:"timestamp"`
}

// MarshalJSON implements the json.Marshaler interface.
func (p Payload) MarshalJSON() ([]byte, error) {
	raw := payloadJSON{
		Salt:      p.salt,
		Pre:       []byte(p.pre),
		Timestamp: p.timestamp,
	}

	return json.Marshal(raw)
}

// UnmarshalJSON implements the json.Unmarshaler interface. The structural
// invariants are enforced here so malformed payloads fail at decode time,
// not later at verification time.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw payloadJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return &VerificationError{Reason: ReasonDecode, Msg: "decode randomness payload", Err: err}
	}

	payload, err := NewPayload(raw.Salt, multihash.Multihash(raw.Pre), raw.Timestamp)
	if err != nil {
		return err
	}

	*p = payload
	return nil
}

// xorBytes masks a against b byte-wise, stopping at the shorter of the two.
// A length disagreement surfaces as a salt-size invariant violation in the
// resulting payload rather than being padded over here.
func xorBytes(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}

	return out
}
