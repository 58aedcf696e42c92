package address

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func randKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv
}

// TestRoundTrip checks invariant 6 from spec.md §8: parse(format(addr)) == addr.
func TestRoundTrip(t *testing.T) {
	for i := 0; i < 50; i++ {
		priv := randKey(t)
		a := New(priv.PubKey(), HRPMainnet, "", 0)
		s := a.String()
		parsed, err := Parse(s, HRPMainnet)
		require.NoError(t, err)
		require.True(t, a.Equal(parsed))
		require.Equal(t, s, parsed.String())
	}
}

func TestParseRejectsWrongHRP(t *testing.T) {
	priv := randKey(t)
	a := New(priv.PubKey(), HRPTestnet, "", 0)
	_, err := Parse(a.String(), HRPMainnet)
	require.Error(t, err)
}

func TestParseAcceptsSchemeOptional(t *testing.T) {
	priv := randKey(t)
	a := New(priv.PubKey(), HRPMainnet, "", 0)
	withScheme := a.String()
	withoutScheme := withScheme[len(Prefix):]
	p1, err := Parse(withScheme, "")
	require.NoError(t, err)
	p2, err := Parse(withoutScheme, "")
	require.NoError(t, err)
	require.True(t, p1.Equal(p2))
}

func TestParseWithDomainAndPort(t *testing.T) {
	priv := randKey(t)
	a := New(priv.PubKey(), HRPMainnet, "relay.example.com", 9443)
	s := a.String()
	require.Contains(t, s, "@relay.example.com:9443")
	parsed, err := Parse(s, "")
	require.NoError(t, err)
	require.Equal(t, "relay.example.com", parsed.Domain)
	require.Equal(t, 9443, parsed.Port)
}

func TestSuffixIsLastSixChars(t *testing.T) {
	priv := randKey(t)
	a := New(priv.PubKey(), HRPMainnet, "", 0)
	key := a.Key()
	require.Equal(t, key[len(key)-SuffixLen:], a.Suffix())
	require.True(t, ValidSuffix(a.Suffix()))
}

func TestValidSuffixRejectsWrongLength(t *testing.T) {
	require.False(t, ValidSuffix("xxx"))
	require.False(t, ValidSuffix("toolongsuffix"))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-an-address", "")
	require.Error(t, err)
}
