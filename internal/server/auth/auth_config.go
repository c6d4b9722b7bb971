package auth

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/wisnuc/appifi/internal/utils"
)

const DefaultAccessTokenExpiry = 24 * time.Hour

type Config struct {
	Enabled           bool          `mapstructure:"enabled"`
	TokenIssuer       string        `mapstructure:"token_issuer"`
	AccessTokenSecret string        `mapstructure:"access_token_secret"`
	AccessTokenExpiry time.Duration `mapstructure:"access_token_expiry" validate:"gte=0"`
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.TokenIssuer == "" {
		return fmt.Errorf("auth `token_issuer` is required when auth is enabled")
	}
	if u, err := url.Parse(c.TokenIssuer); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid token_issuer %q", c.TokenIssuer)
	}
	if c.AccessTokenSecret == "" {
		return fmt.Errorf("auth `access_token_secret` is required when auth is enabled")
	}
	return nil
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", c.Enabled),
		slog.String("token_issuer", c.TokenIssuer),
		slog.String("access_token_secret", utils.MaskSecret(c.AccessTokenSecret)),
		slog.Duration("access_token_expiry", c.AccessTokenExpiry),
	)
}
