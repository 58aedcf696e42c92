// Package sig implements the signed-challenge envelope protocol's
// cryptographic primitives: random challenge generation and DER-ECDSA
// secp256k1 signature verification over SHA-256, exactly as
// grinbox's utils/crypto.rs (sign_challenge / verify_signature) does.
//
// Grounded on the teacher's crypto/p256k/btcec signer (orly.dev) for the
// "wrap a secp256k1 library behind a handful of package functions" shape;
// the algorithm itself is ECDSA/DER, not schnorr, per spec.md §6, so the
// sibling btcsuite ecdsa package is used instead of the teacher's own
// schnorr-only crypto.
package sig

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/minio/sha256-simd"
)

// ChallengeBytes is the number of random bytes read per connection, giving
// at least 128 bits of entropy (spec.md §8 invariant 1). Hex-encoded this
// yields a 64-character printable token.
const ChallengeBytes = 32

// NewChallenge returns a fresh, hex-encoded random printable token, unique
// with overwhelming probability across the process lifetime.
func NewChallenge() (string, error) {
	b := make([]byte, ChallengeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("sig: generating challenge: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Verify checks that sig is a valid DER-encoded ECDSA-secp256k1 signature by
// pub over SHA-256(msg). Used both for Subscribe (msg == challenge) and for
// PostSlate (msg == str||challenge).
func Verify(pub *btcec.PublicKey, msg []byte, sigDER []byte) (bool, error) {
	parsed, err := ecdsa.ParseDERSignature(sigDER)
	if err != nil {
		return false, fmt.Errorf("sig: parsing DER signature: %w", err)
	}
	digest := sha256.Sum256(msg)
	return parsed.Verify(digest[:], pub), nil
}

// Sign produces a DER-encoded ECDSA-secp256k1 signature over SHA-256(msg).
// Exported for tests and for wallet-side tooling such as cmd/walletcli; the
// relay itself never signs anything.
func Sign(priv *btcec.PrivateKey, msg []byte) []byte {
	digest := sha256.Sum256(msg)
	return ecdsa.Sign(priv, digest[:]).Serialize()
}
