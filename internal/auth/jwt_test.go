package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, method jwt.SigningMethod, expiresAt time.Time) string {
	t.Helper()
	claims := &Claims{
		UserID: "user-1",
		Email:  "sam@example.com",
		Role:   "customer",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestValidate_ValidToken(t *testing.T) {
	v := NewVerifier("test-secret")
	token := signToken(t, "test-secret", jwt.SigningMethodHS256, time.Now().Add(time.Hour))

	claims, err := v.Validate(token)

	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "customer", claims.Role)
}

func TestValidate_ExpiredToken(t *testing.T) {
	v := NewVerifier("test-secret")
	token := signToken(t, "test-secret", jwt.SigningMethodHS256, time.Now().Add(-time.Hour))

	_, err := v.Validate(token)

	assert.Error(t, err)
}

func TestValidate_WrongSecret(t *testing.T) {
	v := NewVerifier("test-secret")
	token := signToken(t, "other-secret", jwt.SigningMethodHS256, time.Now().Add(time.Hour))

	_, err := v.Validate(token)

	assert.Error(t, err)
}

func TestValidate_Garbage(t *testing.T) {
	v := NewVerifier("test-secret")

	_, err := v.Validate("not-a-token")

	assert.Error(t, err)
}
