package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAccessToken(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	token, err := SignAccessToken([]byte("secret"), AccessClaims{
		UserID:   "u1",
		Role:     "WAITER",
		BranchID: "b1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	require.NoError(t, err)

	claims, err := DecodeAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "b1", claims.BranchID)

	got, ok := TokenExpiry(token)
	assert.True(t, ok)
	assert.True(t, exp.Equal(got))
}

func TestTokenExpiry_Opaque(t *testing.T) {
	_, ok := TokenExpiry("opaque-token")
	assert.False(t, ok)
}

func TestSignAccessToken_MissingSecret(t *testing.T) {
	_, err := SignAccessToken(nil, AccessClaims{UserID: "u1"})
	assert.Error(t, err)
}
