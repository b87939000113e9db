// Package memchain provides a reference implementation of the braid
// capability surface: immutable, content-addressed, signed headers and
// entries held in memory. It backs the beacon daemon, the verifier CLI, and
// the test suites. The records it produces serialize to JSON, so a chain can
// round-trip through any byte store.
package memchain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/multiformats/go-multihash"

	"github.com/braidchain/pulse/foundation/braid"
)

// headerRecord is the serialized form of a chain header. The signature
// covers the record with the signature field empty; the content hash covers
// the full signed record.
type headerRecord struct {
	KeyAlg    string          `json:"key_alg"`
	PublicKey hexutil.Bytes   `json:"public_key"`
	HashCode  uint64          `json:"hash_code"`
	Subspec   string          `json:"subspec,omitempty"`
	Details   json.RawMessage `json:"details"`
	Signature hexutil.Bytes   `json:"signature,omitempty"`
}

// Header is an immutable, content-addressed chain header. It implements the
// braid.Header interface.
type Header struct {
	record headerRecord
	hash   multihash.Multihash
}

// Hash returns the content hash identifying the chain.
func (h *Header) Hash() multihash.Multihash {
	return h.hash
}

// KeyAlgorithm returns the chain's declared signing scheme.
func (h *Header) KeyAlgorithm() braid.SignatureAlgorithm {
	return algFromString(h.record.KeyAlg)
}

// HashCode returns the multihash code entries of this chain are addressed with.
func (h *Header) HashCode() uint64 {
	return h.record.HashCode
}

// Subspec returns the chain's payload specification declaration.
func (h *Header) Subspec() (braid.Subspec, bool) {
	if h.record.Subspec == "" {
		return braid.Subspec{}, false
	}

	subspec, err := braid.ParseSubspec(h.record.Subspec)
	if err != nil {
		return braid.Subspec{}, false
	}

	return subspec, true
}

// Details returns the chain-wide configuration blob.
func (h *Header) Details() []byte {
	return h.record.Details
}

// Encode serializes the header record for storage.
func (h *Header) Encode() ([]byte, error) {
	return json.Marshal(h.record)
}

// DecodeHeader reconstructs a header from its stored record, re-verifying
// the signature and re-deriving the content hash.
func DecodeHeader(data []byte) (*Header, error) {
	var record headerRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal header record: %w", err)
	}

	unsigned := record
	unsigned.Signature = nil
	signed, err := json.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("marshal header record: %w", err)
	}
	if err := verifySignature(algFromString(record.KeyAlg), record.PublicKey, signed, record.Signature); err != nil {
		return nil, fmt.Errorf("verify header signature: %w", err)
	}

	hash, err := contentHash(record, record.HashCode)
	if err != nil {
		return nil, err
	}

	return &Header{record: record, hash: hash}, nil
}

// =============================================================================

// entryRecord is the serialized form of a chain entry. The signature covers
// the record with the signature field empty; the content hash covers the
// full signed record.
type entryRecord struct {
	Header    hexutil.Bytes   `json:"header"`
	Previous  hexutil.Bytes   `json:"previous,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Signature hexutil.Bytes   `json:"signature,omitempty"`
}

// Entry is an immutable, content-addressed, signed chain entry. It
// implements the braid.Entry interface.
type Entry struct {
	record entryRecord
	hash   multihash.Multihash
	header *Header
}

// Hash returns the content hash identifying this entry.
func (e *Entry) Hash() multihash.Multihash {
	return e.hash
}

// Previous returns the predecessor entry's content hash, or false for the
// first entry of a chain.
func (e *Entry) Previous() (multihash.Multihash, bool) {
	if len(e.record.Previous) == 0 {
		return nil, false
	}
	return multihash.Multihash(e.record.Previous), true
}

// Header returns the chain header this entry belongs to.
func (e *Entry) Header() braid.Header {
	return e.header
}

// Payload returns the embedded payload blob.
func (e *Entry) Payload() []byte {
	return e.record.Payload
}

// Encode serializes the entry record for storage.
func (e *Entry) Encode() ([]byte, error) {
	return json.Marshal(e.record)
}

// DecodeEntry reconstructs an entry from its stored record and owning
// header, re-verifying the signature and re-deriving the content hash.
func DecodeEntry(data []byte, header *Header) (*Entry, error) {
	var record entryRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal entry record: %w", err)
	}

	if !bytes.Equal(record.Header, header.Hash()) {
		return nil, errors.New("entry record does not belong to the specified header")
	}

	unsigned := record
	unsigned.Signature = nil
	signed, err := json.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("marshal entry record: %w", err)
	}
	if err := verifySignature(header.KeyAlgorithm(), header.record.PublicKey, signed, record.Signature); err != nil {
		return nil, fmt.Errorf("verify entry signature: %w", err)
	}

	hash, err := contentHash(record, header.HashCode())
	if err != nil {
		return nil, err
	}

	return &Entry{record: record, hash: hash, header: header}, nil
}

// =============================================================================

// Builder constructs signed, content-addressed headers and entries.
type Builder struct {
	signer *Signer
}

// NewBuilder constructs a Builder around the specified signer.
func NewBuilder(signer *Signer) *Builder {
	return &Builder{signer: signer}
}

// BuildHeader constructs and signs a new chain header.
func (b *Builder) BuildHeader(hashCode uint64, subspec string, details any) (*Header, error) {
	detailsData, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal details: %w", err)
	}

	publicKey, err := b.signer.PublicKey()
	if err != nil {
		return nil, err
	}

	record := headerRecord{
		KeyAlg:    b.signer.Algorithm().String(),
		PublicKey: publicKey,
		HashCode:  hashCode,
		Subspec:   subspec,
		Details:   detailsData,
	}

	signed, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal header record: %w", err)
	}
	record.Signature, err = b.signer.Sign(signed)
	if err != nil {
		return nil, fmt.Errorf("sign header record: %w", err)
	}

	hash, err := contentHash(record, hashCode)
	if err != nil {
		return nil, err
	}

	return &Header{record: record, hash: hash}, nil
}

// BuildFirst constructs the first entry of a chain, obtaining its payload
// from the specified payload function.
func (b *Builder) BuildFirst(header *Header, fn braid.PayloadFunc) (*Entry, error) {
	return b.build(header, nil, fn)
}

// BuildNext constructs the successor of the specified entry, obtaining its
// payload from the specified payload function.
func (b *Builder) BuildNext(prev *Entry, fn braid.PayloadFunc) (*Entry, error) {
	return b.build(prev.header, prev, fn)
}

// build assembles, signs, and content-addresses one entry. The payload
// function is invoked exactly once.
func (b *Builder) build(header *Header, prev *Entry, fn braid.PayloadFunc) (*Entry, error) {
	var prevEntry braid.Entry
	if prev != nil {
		prevEntry = prev
	}

	payload, err := fn(header, prevEntry)
	if err != nil {
		return nil, err
	}

	payloadData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	record := entryRecord{
		Header:  hexutil.Bytes(header.Hash()),
		Payload: payloadData,
	}
	if prev != nil {
		record.Previous = hexutil.Bytes(prev.hash)
	}

	signed, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal entry record: %w", err)
	}
	record.Signature, err = b.signer.Sign(signed)
	if err != nil {
		return nil, fmt.Errorf("sign entry record: %w", err)
	}

	hash, err := contentHash(record, header.HashCode())
	if err != nil {
		return nil, err
	}

	return &Entry{record: record, hash: hash, header: header}, nil
}

// contentHash derives a record's content hash from its full signed
// serialized form.
func contentHash(record any, hashCode uint64) (multihash.Multihash, error) {
	content, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record for hashing: %w", err)
	}

	hash, err := multihash.Sum(content, hashCode, -1)
	if err != nil {
		return nil, fmt.Errorf("hash record: %w", err)
	}

	return hash, nil
}

// algFromString maps a header's serialized algorithm name back to its id.
func algFromString(s string) braid.SignatureAlgorithm {
	switch s {
	case "sha256-rsa":
		return braid.AlgSHA256RSA
	case "sha384-rsa":
		return braid.AlgSHA384RSA
	case "sha512-rsa":
		return braid.AlgSHA512RSA
	case "ecdsa-secp256k1":
		return braid.AlgECDSASecp256k1
	case "ed25519":
		return braid.AlgEd25519
	}
	return braid.AlgUnknown
}
