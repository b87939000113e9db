package memchain

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/braidchain/pulse/foundation/braid"
)

// stamp is prefixed to every record before hashing for signature so the
// signatures this chain produces are always unique to braid entries.
var stamp = []byte("\x19Braid Signed Record:\n")

// Signer produces entry and header signatures for one chain. RSA PKCS#1v1.5
// signatures are produced without blinding so the same key and record always
// yield the same bytes.
type Signer struct {
	alg    braid.SignatureAlgorithm
	rsaKey *rsa.PrivateKey
	edKey  ed25519.PrivateKey
}

// NewSigner generates a fresh key for the specified signature algorithm.
// The bits parameter applies to the RSA algorithms only.
func NewSigner(alg braid.SignatureAlgorithm, bits int) (*Signer, error) {
	switch alg {
	case braid.AlgSHA256RSA, braid.AlgSHA384RSA, braid.AlgSHA512RSA:
		key, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, fmt.Errorf("generate rsa key: %w", err)
		}
		return &Signer{alg: alg, rsaKey: key}, nil

	case braid.AlgEd25519:
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		return &Signer{alg: alg, edKey: key}, nil
	}

	return nil, fmt.Errorf("unsupported signature algorithm %s", alg)
}

// NewSignerFromRSA constructs a signer around an existing RSA key so a
// beacon can keep its chain identity across restarts.
func NewSignerFromRSA(alg braid.SignatureAlgorithm, key *rsa.PrivateKey) (*Signer, error) {
	switch alg {
	case braid.AlgSHA256RSA, braid.AlgSHA384RSA, braid.AlgSHA512RSA:
		return &Signer{alg: alg, rsaKey: key}, nil
	}
	return nil, fmt.Errorf("signature algorithm %s does not use an rsa key", alg)
}

// Algorithm returns the signer's signature algorithm.
func (s *Signer) Algorithm() braid.SignatureAlgorithm {
	return s.alg
}

// PublicKey returns the signer's public key in PKIX DER form for embedding
// in a chain header.
func (s *Signer) PublicKey() ([]byte, error) {
	switch s.alg {
	case braid.AlgSHA256RSA, braid.AlgSHA384RSA, braid.AlgSHA512RSA:
		return x509.MarshalPKIXPublicKey(&s.rsaKey.PublicKey)
	case braid.AlgEd25519:
		return x509.MarshalPKIXPublicKey(s.edKey.Public().(ed25519.PublicKey))
	}
	return nil, fmt.Errorf("unsupported signature algorithm %s", s.alg)
}

// Sign signs the specified record bytes.
func (s *Signer) Sign(record []byte) ([]byte, error) {
	switch s.alg {
	case braid.AlgSHA256RSA:
		digest := sha256.Sum256(append(stamp, record...))
		return rsa.SignPKCS1v15(nil, s.rsaKey, crypto.SHA256, digest[:])

	case braid.AlgSHA384RSA:
		digest := sha512.Sum384(append(stamp, record...))
		return rsa.SignPKCS1v15(nil, s.rsaKey, crypto.SHA384, digest[:])

	case braid.AlgSHA512RSA:
		digest := sha512.Sum512(append(stamp, record...))
		return rsa.SignPKCS1v15(nil, s.rsaKey, crypto.SHA512, digest[:])

	case braid.AlgEd25519:
		return ed25519.Sign(s.edKey, append(stamp, record...)), nil
	}

	return nil, fmt.Errorf("unsupported signature algorithm %s", s.alg)
}

// verifySignature checks a record signature against a PKIX-encoded public
// key for the specified algorithm.
func verifySignature(alg braid.SignatureAlgorithm, publicKey []byte, record []byte, sig []byte) error {
	pub, err := x509.ParsePKIXPublicKey(publicKey)
	if err != nil {
		return fmt.Errorf("parse public key: %w", err)
	}

	switch alg {
	case braid.AlgSHA256RSA:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return errors.New("public key is not an rsa key")
		}
		digest := sha256.Sum256(append(stamp, record...))
		return rsa.VerifyPKCS1v15(rsaPub, crypto.SHA256, digest[:], sig)

	case braid.AlgSHA384RSA:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return errors.New("public key is not an rsa key")
		}
		digest := sha512.Sum384(append(stamp, record...))
		return rsa.VerifyPKCS1v15(rsaPub, crypto.SHA384, digest[:], sig)

	case braid.AlgSHA512RSA:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return errors.New("public key is not an rsa key")
		}
		digest := sha512.Sum512(append(stamp, record...))
		return rsa.VerifyPKCS1v15(rsaPub, crypto.SHA512, digest[:], sig)

	case braid.AlgEd25519:
		edPub, ok := pub.(ed25519.PublicKey)
		if !ok {
			return errors.New("public key is not an ed25519 key")
		}
		if !ed25519.Verify(edPub, append(stamp, record...), sig) {
			return errors.New("invalid ed25519 signature")
		}
		return nil
	}

	return fmt.Errorf("unsupported signature algorithm %s", alg)
}
