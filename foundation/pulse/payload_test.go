package pulse_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/multiformats/go-multihash"

	"github.com/braidchain/pulse/foundation/pulse"
)

// fixturePre returns a valid sha3-256 commitment for payload codec tests.
func fixturePre(t *testing.T) multihash.Multihash {
	t.Helper()

	pre, err := multihash.Sum([]byte{1, 2, 3}, multihash.SHA3_256, -1)
	if err != nil {
		t.Fatalf("Should be able to compute a fixture commitment: %s", err)
	}

	return pre
}

func payloadJSON(salt []byte, pre multihash.Multihash, timestamp string) []byte {
	return fmt.Appendf(nil, `{"salt":%q,"pre":%q,"timestamp":%q}`,
		hexutil.Encode(salt), hexutil.Encode(pre), timestamp)
}

func Test_PayloadDecode(t *testing.T) {
	pre := fixturePre(t)
	salt := make([]byte, 32)
	for i := range salt {
		salt[i] = byte(i)
	}

	var p pulse.Payload
	if err := json.Unmarshal(payloadJSON(salt, pre, "2025-02-12T21:11:00Z"), &p); err != nil {
		t.Fatalf("Should be able to decode a valid payload: %s", err)
	}

	if got := p.Timestamp(); !got.Equal(time.Date(2025, 2, 12, 21, 11, 0, 0, time.UTC)) {
		t.Fatalf("Should get back the right timestamp: got %s", got)
	}

	if got := p.Salt(); len(got) != 32 || got[31] != 31 {
		t.Fatalf("Should get back the right salt: got %s", hexutil.Encode(got))
	}
}

func Test_PayloadDecodeSubSecond(t *testing.T) {
	pre := fixturePre(t)
	salt := make([]byte, 32)

	var p pulse.Payload
	err := json.Unmarshal(payloadJSON(salt, pre, "2025-02-12T21:11:00.01Z"), &p)
	if err == nil {
		t.Fatalf("Should reject a timestamp with sub-second precision.")
	}

	var verr *pulse.VerificationError
	if !errors.As(err, &verr) || verr.Reason != pulse.ReasonMalformed {
		t.Fatalf("Should fail as a malformed payload: got %s", err)
	}
}

func Test_PayloadDecodeSaltSize(t *testing.T) {
	pre := fixturePre(t)
	salt := make([]byte, 16)

	var p pulse.Payload
	err := json.Unmarshal(payloadJSON(salt, pre, "2025-02-12T21:11:00Z"), &p)
	if err == nil {
		t.Fatalf("Should reject a salt shorter than the pre digest.")
	}

	var verr *pulse.VerificationError
	if !errors.As(err, &verr) || verr.Reason != pulse.ReasonMalformed {
		t.Fatalf("Should fail as a malformed payload: got %s", err)
	}
}

func Test_PayloadDecodeBadPre(t *testing.T) {
	pre := fixturePre(t)
	salt := make([]byte, 32)

	// Truncating the digest makes the multihash inconsistent with its own
	// declared length.
	var p pulse.Payload
	if err := json.Unmarshal(payloadJSON(salt, pre[:len(pre)-1], "2025-02-12T21:11:00Z"), &p); err == nil {
		t.Fatalf("Should reject a pre that is not a valid multihash.")
	}
}

func Test_PayloadRoundTrip(t *testing.T) {
	pre := fixturePre(t)
	salt := make([]byte, 32)
	salt[0] = 0xAB

	p, err := pulse.NewPayload(salt, pre, time.Date(2025, 2, 12, 21, 11, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Should be able to construct a valid payload: %s", err)
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Should be able to marshal the payload: %s", err)
	}

	var back pulse.Payload
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Should be able to decode the marshaled payload: %s", err)
	}

	if !back.Timestamp().Equal(p.Timestamp()) || hexutil.Encode(back.Salt()) != hexutil.Encode(p.Salt()) {
		t.Logf("got: %s %s", back.Timestamp(), hexutil.Encode(back.Salt()))
		t.Logf("exp: %s %s", p.Timestamp(), hexutil.Encode(p.Salt()))
		t.Fatalf("Should survive a serialization round trip.")
	}
}

func Test_NewPayloadSubSecond(t *testing.T) {
	pre := fixturePre(t)
	salt := make([]byte, 32)

	if _, err := pulse.NewPayload(salt, pre, time.Date(2025, 2, 12, 21, 11, 0, 5000, time.UTC)); err == nil {
		t.Fatalf("Should reject construction with a sub-second timestamp.")
	}
}
