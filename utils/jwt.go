package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are the claims the backend puts into access tokens.
type AccessClaims struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	BranchID string `json:"branch_id,omitempty"`
	jwt.RegisteredClaims
}

// DecodeAccessToken reads the claims of an access token without verifying
// its signature. The console never holds the signing key; the backend is
// the only party that validates tokens.
func DecodeAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// TokenExpiry returns the exp claim of an access token, if it has one.
func TokenExpiry(tokenString string) (time.Time, bool) {
	claims, err := DecodeAccessToken(tokenString)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// SignAccessToken mints an HS256 token. Only the fake backend used in tests
// signs tokens.
func SignAccessToken(secret []byte, claims AccessClaims) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("missing signing secret")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
