package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken(42, "alice", true, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.True(t, claims.IsAdmin)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(42, "alice", false, "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "other-secret")
	require.Error(t, err)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token, err := GenerateToken(42, "alice", false, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret")
	require.Error(t, err)
}
