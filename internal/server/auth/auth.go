package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	tokenCacheSize = 1024
	tokenCacheTTL  = time.Minute
)

type AuthService struct {
	config *Config
	// validated tokens, so a burst of requests parses each token once
	tokens *expirable.LRU[string, *Claims]
}

func NewAuthService(config *Config) *AuthService {
	return &AuthService{
		config: config,
		tokens: expirable.NewLRU[string, *Claims](tokenCacheSize, nil, tokenCacheTTL),
	}
}

func (s *AuthService) IsEnabled() bool {
	return s.config.Enabled
}

// IssueAccessToken mints a token for user. Used by the token subcommand.
func (s *AuthService) IssueAccessToken(user string) (string, error) {
	if !s.IsEnabled() {
		return "", ErrAuthDisabled
	}
	user = strings.TrimSpace(user)
	if user == "" {
		return "", ErrInvalidSubject
	}
	expiry := s.config.AccessTokenExpiry
	if expiry == 0 {
		expiry = DefaultAccessTokenExpiry
	}
	token, err := NewAccessToken(user, s.config.TokenIssuer, s.config.AccessTokenSecret, expiry)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	slog.Debug("access token issued", "user", user, "expiry", expiry)
	return token, nil
}

func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*Claims, error) {
	if accessToken == "" {
		return nil, ErrInvalidAccessToken
	}

	if claims, ok := s.tokens.Get(accessToken); ok {
		if claims.ExpiresAt == nil || time.Now().Before(claims.ExpiresAt.Time) {
			return claims, nil
		}
		s.tokens.Remove(accessToken)
	}

	claims, err := ParseClaims(accessToken, s.config.AccessTokenSecret, s.config.TokenIssuer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}
	if claims.Type != AccessToken {
		return nil, fmt.Errorf("%w: wrong token type got %q", ErrInvalidAccessToken, claims.Type)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, ErrInvalidSubject)
	}

	s.tokens.Add(accessToken, claims)
	return claims, nil
}
