// Package auth validates the access tokens issued by the identity service.
// The shop does not issue tokens itself; it only verifies them and hands the
// claims to the HTTP middleware.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spokeworks/bikeshop/pkg/middleware"
)

// Claims are the JWT claims carried by an access token.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates HMAC-signed access tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a token verifier with the shared signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Validate parses and validates an access token, returning the claims in the
// shape the HTTP auth middleware consumes.
func (v *Verifier) Validate(tokenString string) (*middleware.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}

	return &middleware.Claims{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}
