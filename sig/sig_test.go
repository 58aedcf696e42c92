package sig

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

// TestAuthenticationSufficiency covers spec.md §8 invariant 3: a correctly
// signed message verifies under the signer's own key.
func TestAuthenticationSufficiency(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	msg := []byte("challenge-token")
	s := Sign(priv, msg)
	ok, err := Verify(priv.PubKey(), msg, s)
	require.NoError(t, err)
	require.True(t, ok)
}

// TestAuthenticationNecessity covers invariant 2: a signature from a
// different key must not verify.
func TestAuthenticationNecessity(t *testing.T) {
	priv1, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	priv2, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	require.NotEqual(t, priv1.PubKey().SerializeCompressed(), priv2.PubKey().SerializeCompressed())

	msg := []byte("str||challenge")
	s := Sign(priv2, msg)
	ok, err := Verify(priv1.PubKey(), msg, s)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	s := Sign(priv, []byte("original"))
	ok, err := Verify(priv.PubKey(), []byte("tampered"), s)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyRejectsGarbageSignature(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	_, err = Verify(priv.PubKey(), []byte("msg"), []byte("not-der"))
	require.Error(t, err)
}

// TestChallengeUniqueness covers invariant 1: two generated challenges
// differ with overwhelming probability.
func TestChallengeUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		c, err := NewChallenge()
		require.NoError(t, err)
		require.False(t, seen[c], "challenge collision at iteration %d", i)
		seen[c] = true
		require.Len(t, c, ChallengeBytes*2)
	}
}
