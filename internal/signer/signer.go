// Package signer provides the biometric record signing capability: a
// Signer signs a payload and exposes the public key that verifies it, so a
// verifier can tell the bytes came from this device and were not altered.
// cmd/orb-core signs the self-custody candidate image; it signs no capture
// log, and the signature is logged, not sent with the upload.
//
// Production orbs sign with a secure element that never exposes its
// private key to the host; this package only ships the software stand-in
// used in tests and on development hardware, behind the same Signer
// interface a secure-element implementation would satisfy.
package signer

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/ed25519"
)

// Signer signs arbitrary payloads and exposes the public key verifiers
// need to check those signatures.
type Signer interface {
	Sign(payload []byte) ([]byte, error)
	PublicKey() ed25519.PublicKey
}

// Software is an in-memory ed25519 Signer. It is not hardware-backed: the
// private key lives in process memory for the lifetime of the orb.
type Software struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// NewSoftware generates a fresh ed25519 keypair.
func NewSoftware() (*Software, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("signer: generate key: %w", err)
	}
	return &Software{public: pub, private: priv}, nil
}

// NewSoftwareFromSeed rebuilds a Software signer from a persisted 32-byte
// seed, so the orb's signing identity survives a restart.
func NewSoftwareFromSeed(seed []byte) (*Software, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signer: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Software{public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}

// Sign implements Signer.
func (s *Software) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(s.private, payload), nil
}

// PublicKey implements Signer.
func (s *Software) PublicKey() ed25519.PublicKey {
	return s.public
}

// Seed returns the private seed backing this signer, for callers that
// need to persist the signing identity across restarts.
func (s *Software) Seed() []byte {
	return s.private.Seed()
}

// Verify checks a signature produced by Sign against the given public key.
func Verify(public ed25519.PublicKey, payload, signature []byte) bool {
	return ed25519.Verify(public, payload, signature)
}
