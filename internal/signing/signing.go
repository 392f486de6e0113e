// Copyright 2025 Certen Protocol
//
// Kernel Signer - holds the process-lifetime Ed25519 keypair and signs
// proof_hash / record_hash digests. Adapted from the validator attestation
// signer: same "sign the hash bytes, not a re-serialized message" shape,
// generalized from anchor proofs to any kernel digest.
package signing

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Signer wraps a long-lived Ed25519 keypair. A nil Signer, or one with a
// nil Private key, never signs: SignHashHex returns an error. cmd/ubl-server
// passes a nil *Signer when UBL_ED25519_SIGNING_KEY_B64 is unset.
type Signer struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// NewFromSeedB64 builds a Signer from a base64 (no padding) 32-byte seed,
// matching UBL_ED25519_SIGNING_KEY_B64's documented format.
func NewFromSeedB64(seedB64 string) (*Signer, error) {
	seed, err := decodeB64(seedB64)
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signing key must be %d raw bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{Private: priv, Public: priv.Public().(ed25519.PublicKey)}, nil
}

// VerifyingKeyFromB64 parses a standalone base64 verifying key. No code
// outside this package's tests calls it.
func VerifyingKeyFromB64(pubB64 string) (ed25519.PublicKey, error) {
	b, err := decodeB64(pubB64)
	if err != nil {
		return nil, fmt.Errorf("decode verifying key: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("verifying key must be %d raw bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	return ed25519.PublicKey(b), nil
}

// SignHashHex signs the raw bytes of a lowercase-hex SHA-256 digest,
// returning a base64 (no padding) signature — the format every signed
// artifact (Proof, EffectRecord) uses.
func (s *Signer) SignHashHex(hashHex string) (string, error) {
	if s == nil || s.Private == nil {
		return "", fmt.Errorf("signer has no private key configured")
	}
	raw, err := hex.DecodeString(hashHex)
	if err != nil {
		return "", fmt.Errorf("decode hash hex: %w", err)
	}
	sig := ed25519.Sign(s.Private, raw)
	return base64.RawStdEncoding.EncodeToString(sig), nil
}

// VerifyHashHex checks a base64 signature against a hex digest and a
// specific public key, independent of any process-wide Signer instance.
// Neither verify_ed25519() in the expression engine nor /verify calls it.
func VerifyHashHex(pub ed25519.PublicKey, hashHex, sigB64 string) bool {
	raw, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}
	sig, err := decodeB64(sigB64)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, raw, sig)
}

func decodeB64(s string) ([]byte, error) {
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
