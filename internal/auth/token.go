// ABOUTME: HS256 bearer tokens minted at bootstrap for the operator API
// ABOUTME: Claims pin issuer and audience so gateway tokens cannot be replayed elsewhere

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claim values baked into every operator token. A token minted for another
// service (different issuer or audience) fails verification even when it was
// signed with the same secret.
const (
	tokenIssuer   = "investor-gateway"
	tokenAudience = "operator-api"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// TokenVerifier defines the interface for operator token verification
type TokenVerifier interface {
	Verify(tokenString string) (operatorID string, err error)
}

// operatorClaims is the typed claim set carried by operator tokens. Subject
// holds the operator name chosen at bootstrap.
type operatorClaims struct {
	jwt.RegisteredClaims
}

// JWTVerifier mints and verifies HS256 operator tokens
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier bound to the gateway's shared secret
func NewJWTVerifier(secret []byte) *JWTVerifier {
	return &JWTVerifier{secret: secret}
}

// Verify checks the signature, issuer, audience, and expiry, and returns the
// operator name from the subject claim.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	var claims operatorClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrExpiredToken
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return claims.Subject, nil
}

// Generate mints a token naming the operator in the subject claim
func (v *JWTVerifier) Generate(operatorID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := operatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
