package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type AuthTokenType string

const AccessToken AuthTokenType = "access"

type Claims struct {
	Type AuthTokenType `json:"type"`
	jwt.RegisteredClaims
}

// ParseClaims verifies an HS256 token and returns its claims. A non-empty
// issuer must match the token's iss claim.
func ParseClaims(tokenString, jwtSecret, issuer string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(jwtSecret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
