package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	InitJWT("test-secret")

	token, err := GenerateToken(12, "alice", 3600)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(12), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	InitJWT("test-secret")

	token, err := GenerateToken(1, "bob", -10)
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestParseRejectsTamperedToken(t *testing.T) {
	InitJWT("test-secret")
	token, err := GenerateToken(1, "bob", 3600)
	require.NoError(t, err)

	InitJWT("different-secret")
	_, err = ParseToken(token)
	assert.Error(t, err)
}
