package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/go-playground/validator/v10"
	"github.com/ulule/limiter/v3"
	"github.com/wisnuc/appifi/internal/drive"
	"github.com/wisnuc/appifi/internal/nfs"
	"github.com/wisnuc/appifi/internal/server/auth"
)

const (
	DefaultAddr      = "127.0.0.1:3000"
	DefaultRateLimit = "50-S"
	DefaultLogLevel  = "info"
)

var validate = validator.New()

type Config struct {
	HTTP     HTTPConfig   `mapstructure:"http"`
	Auth     auth.Config  `mapstructure:"auth"`
	Drives   drive.Config `mapstructure:"drives"`
	NFS      nfs.Config   `mapstructure:"nfs"`
	LogDir   string       `mapstructure:"log_dir" validate:"required"`
	LogLevel string       `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

type HTTPConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	CertFile string `mapstructure:"cert_file" validate:"required_with=KeyFile"`
	KeyFile  string `mapstructure:"key_file" validate:"required_with=CertFile"`
	// RateLimit uses the limiter notation ("50-S", "1000-M"). Empty disables
	// rate limiting.
	RateLimit string `mapstructure:"rate_limit"`
}

func (c *HTTPConfig) TLS() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if _, _, err := net.SplitHostPort(c.HTTP.Addr); err != nil {
		return fmt.Errorf("http.addr: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if c.HTTP.RateLimit != "" {
		if _, err := limiter.NewRateFromFormatted(c.HTTP.RateLimit); err != nil {
			return fmt.Errorf("http.rate_limit: %w", err)
		}
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", c.HTTP.Addr),
		slog.Bool("tls", c.HTTP.TLS()),
		slog.String("rate_limit", c.HTTP.RateLimit),
		slog.Any("auth", c.Auth),
		slog.String("drives_db", c.Drives.DBPath),
		slog.Bool("drives_probe", c.Drives.Probe),
		slog.Int("drives_static", len(c.Drives.Static)),
		slog.String("locale", c.NFS.Locale),
		slog.String("log_dir", c.LogDir),
		slog.String("log_level", c.LogLevel),
	)
}
