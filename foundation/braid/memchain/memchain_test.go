package memchain_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/multiformats/go-multihash"

	"github.com/braidchain/pulse/foundation/braid"
	"github.com/braidchain/pulse/foundation/braid/memchain"
	"github.com/braidchain/pulse/foundation/pulse"
)

func newTestChain(t *testing.T) (*memchain.Builder, *memchain.Header) {
	t.Helper()

	signer, err := memchain.NewSigner(braid.AlgSHA256RSA, 2048)
	if err != nil {
		t.Fatalf("Should be able to generate a signing key: %s", err)
	}

	builder := memchain.NewBuilder(signer)

	details := pulse.ChainDetails{Period: pulse.Duration(60 * time.Second)}
	header, err := builder.BuildHeader(multihash.SHA3_256, pulse.SubspecString(), details)
	if err != nil {
		t.Fatalf("Should be able to build a chain header: %s", err)
	}

	return builder, header
}

func Test_HeaderRoundTrip(t *testing.T) {
	_, header := newTestChain(t)

	if header.KeyAlgorithm() != braid.AlgSHA256RSA {
		t.Fatalf("Should declare the signer's algorithm: got %s", header.KeyAlgorithm())
	}
	if header.HashCode() != multihash.SHA3_256 {
		t.Fatalf("Should declare the configured hash code: got %d", header.HashCode())
	}

	subspec, ok := header.Subspec()
	if !ok || subspec.String() != pulse.SubspecString() {
		t.Fatalf("Should declare the configured subspec: got %s", subspec)
	}

	record, err := header.Encode()
	if err != nil {
		t.Fatalf("Should be able to encode the header: %s", err)
	}

	back, err := memchain.DecodeHeader(record)
	if err != nil {
		t.Fatalf("Should be able to decode the header record: %s", err)
	}

	if !bytes.Equal(back.Hash(), header.Hash()) {
		t.Fatalf("Should re-derive the same content hash after a round trip.")
	}
}

func Test_EntryRoundTrip(t *testing.T) {
	builder, header := newTestChain(t)

	pb := pulse.NewBuilder(make([]byte, 32), make([]byte, 32))
	entry, err := builder.BuildFirst(header, pb.PayloadFunc())
	if err != nil {
		t.Fatalf("Should be able to build the first entry: %s", err)
	}

	if _, ok := entry.Previous(); ok {
		t.Fatalf("Should have no previous link on the first entry.")
	}

	record, err := entry.Encode()
	if err != nil {
		t.Fatalf("Should be able to encode the entry: %s", err)
	}

	back, err := memchain.DecodeEntry(record, header)
	if err != nil {
		t.Fatalf("Should be able to decode the entry record: %s", err)
	}

	if !bytes.Equal(back.Hash(), entry.Hash()) {
		t.Fatalf("Should re-derive the same content hash after a round trip.")
	}
}

func Test_EntryTamperDetection(t *testing.T) {
	builder, header := newTestChain(t)

	pb := pulse.NewBuilder(make([]byte, 32), make([]byte, 32))
	entry, err := builder.BuildFirst(header, pb.PayloadFunc())
	if err != nil {
		t.Fatalf("Should be able to build the first entry: %s", err)
	}

	record, err := entry.Encode()
	if err != nil {
		t.Fatalf("Should be able to encode the entry: %s", err)
	}

	// Corrupt one byte inside the embedded payload.
	tampered := bytes.Replace(record, []byte(`"timestamp"`), []byte(`"timestamps"`), 1)
	if bytes.Equal(tampered, record) {
		t.Fatalf("Should have produced a tampered record.")
	}

	if _, err := memchain.DecodeEntry(tampered, header); err == nil {
		t.Fatalf("Should reject a tampered entry record.")
	}
}

func Test_DeterministicSigning(t *testing.T) {
	signer, err := memchain.NewSigner(braid.AlgSHA256RSA, 2048)
	if err != nil {
		t.Fatalf("Should be able to generate a signing key: %s", err)
	}

	record := []byte(`{"payload":"fixed"}`)

	sig1, err := signer.Sign(record)
	if err != nil {
		t.Fatalf("Should be able to sign a record: %s", err)
	}
	sig2, err := signer.Sign(record)
	if err != nil {
		t.Fatalf("Should be able to sign a record twice: %s", err)
	}

	if !bytes.Equal(sig1, sig2) {
		t.Fatalf("Should produce the same signature for the same record.")
	}
}
