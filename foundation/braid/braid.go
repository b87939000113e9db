// Package braid defines the capability surface this project needs from a
// braid chain: an append-only sequence of immutable, content-addressed,
// signed entries grouped under a shared header record. Any concrete chain
// implementation that satisfies these interfaces can be substituted,
// including test doubles.
package braid

import (
	"github.com/multiformats/go-multihash"
)

// SignatureAlgorithm identifies the signing scheme declared by a chain
// header. The set is closed on purpose: policy code needs to reason about
// whether a scheme is deterministic, and an unrecognized scheme must never
// pass such a check.
type SignatureAlgorithm int

// The signature algorithms a braid header can declare.
const (
	AlgUnknown SignatureAlgorithm = iota
	AlgSHA256RSA
	AlgSHA384RSA
	AlgSHA512RSA
	AlgECDSASecp256k1
	AlgEd25519
)

// String implements the fmt.Stringer interface.
func (alg SignatureAlgorithm) String() string {
	switch alg {
	case AlgSHA256RSA:
		return "sha256-rsa"
	case AlgSHA384RSA:
		return "sha384-rsa"
	case AlgSHA512RSA:
		return "sha512-rsa"
	case AlgECDSASecp256k1:
		return "ecdsa-secp256k1"
	case AlgEd25519:
		return "ed25519"
	}
	return "unknown"
}

// =============================================================================

// Header is the read-only surface of a chain's shared configuration record.
// The header is immutable once created and is identified by its content hash.
type Header interface {

	// Hash returns the content hash identifying the chain.
	Hash() multihash.Multihash

	// KeyAlgorithm returns the signing scheme used for every entry signature
	// on this chain.
	KeyAlgorithm() SignatureAlgorithm

	// HashCode returns the multihash code every entry of this chain is
	// content-addressed with.
	HashCode() uint64

	// Subspec returns the payload specification this chain's entries conform
	// to. The second return is false when the header declares none.
	Subspec() (Subspec, bool)

	// Details returns the chain-wide configuration blob as raw JSON.
	Details() []byte
}

// Entry is the read-only surface of one chain entry. Entries are immutable
// once created; signature and content-hash validity are the chain library's
// responsibility and are assumed to hold for any Entry handed to this module.
type Entry interface {

	// Hash returns the content hash identifying this entry.
	Hash() multihash.Multihash

	// Previous returns the content hash of the predecessor entry. The second
	// return is false for the first entry of a chain.
	Previous() (multihash.Multihash, bool)

	// Header returns the chain header this entry belongs to.
	Header() Header

	// Payload returns the embedded payload blob as raw JSON.
	Payload() []byte
}

// PayloadFunc is the contract a chain-entry builder consumes to obtain the
// payload for the entry under construction. The previous entry is nil when
// building the first entry of a chain. The builder invokes the function
// exactly once per entry.
type PayloadFunc func(header Header, prev Entry) (any, error)
