package mailstate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRememberRecallForget(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, found := s.Recall("abcdef")
	require.False(t, found)

	require.NoError(t, s.Remember("abcdef", "grinrelay://gn1...abcdef"))
	addr, found := s.Recall("abcdef")
	require.True(t, found)
	require.Equal(t, "grinrelay://gn1...abcdef", addr)

	require.NoError(t, s.Forget("abcdef"))
	_, found = s.Recall("abcdef")
	require.False(t, found)
}
