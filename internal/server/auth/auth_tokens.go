package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// NewAccessToken signs an access token for subject. A zero expiry produces a
// token without exp.
func NewAccessToken(subject, issuer, jwtSecret string, expiry time.Duration) (string, error) {
	now := time.Now()
	var expiryTime *jwt.NumericDate
	if expiry > 0 {
		expiryTime = jwt.NewNumericDate(now.Add(expiry))
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			Issuer:    issuer,
			ExpiresAt: expiryTime,
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Type: AccessToken,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}
