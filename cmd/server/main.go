package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/wisnuc/appifi/internal/nfs"
	"github.com/wisnuc/appifi/internal/server"
	"github.com/wisnuc/appifi/internal/server/auth"
	"github.com/wisnuc/appifi/internal/utils"
	"github.com/wisnuc/appifi/internal/version"
	"gopkg.in/yaml.v3"
)

var (
	home, _          = os.UserHomeDir()
	defaultStateDir  = filepath.Join(home, ".appifi")
	defaultDBPath    = filepath.Join(defaultStateDir, "appifi.db")
	defaultLogDir    = filepath.Join(defaultStateDir, "logs")
	defaultConfigDir = "/etc/appifi"
	configFileName   = "config"
)

var rootCmd = &cobra.Command{
	Use:     "appifi",
	Short:   "Appifi NAS file gateway",
	Version: version.Detailed(),
	RunE:    runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the file gateway server",
	RunE:  runServe,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		user, _ := cmd.Flags().GetString("user")
		token, err := auth.NewAuthService(&cfg.Auth).IssueAccessToken(user)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.DetailedWithApp())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := newViper(cmd)
		if err != nil {
			return err
		}
		settings := v.AllSettings()
		if a, ok := settings["auth"].(map[string]any); ok {
			if secret, ok := a["access_token_secret"].(string); ok {
				a["access_token_secret"] = utils.MaskSecret(secret)
			}
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(settings)
	},
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := server.New(cfg)
	if err != nil {
		return err
	}
	defer slog.Info("Bye!")
	return s.Start(cmd.Context())
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().SortFlags = false
	cmd.Flags().StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	cmd.Flags().String("cert", "", "Path to the TLS certificate file")
	cmd.Flags().String("key", "", "Path to the TLS key file")
	cmd.Flags().String("db", defaultDBPath, "Path to the drive database")
	cmd.Flags().String("log-dir", defaultLogDir, "Directory for server and access logs")
	cmd.Flags().String("log-level", server.DefaultLogLevel, "Log level (debug, info, warn, error)")
}

func init() {
	addServeFlags(rootCmd)
	addServeFlags(serveCmd)
	tokenCmd.Flags().StringP("user", "u", "", "User the token is issued to")
	tokenCmd.MarkFlagRequired("user")

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file")
	rootCmd.AddCommand(serveCmd, tokenCmd, configCmd, versionCmd)
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	slog.SetDefault(slog.New(newConsoleHandler(os.Stdout, slog.LevelInfo)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}

	var cfg server.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}

	if cfg.Drives.DBPath, err = utils.ResolvePath(cfg.Drives.DBPath); err != nil {
		return nil, fmt.Errorf("drives.db_path: %w", err)
	}
	if cfg.LogDir, err = utils.ResolvePath(cfg.LogDir); err != nil {
		return nil, fmt.Errorf("log_dir: %w", err)
	}
	return &cfg, nil
}

// newViper layers flags over environment over config file over defaults.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()

	if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
	} else {
		v.AddConfigPath(defaultStateDir)
		v.AddConfigPath(defaultConfigDir)
		v.SetConfigName(configFileName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("http.cert_file", "")
	v.SetDefault("http.key_file", "")
	v.SetDefault("http.rate_limit", server.DefaultRateLimit)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token_issuer", "")
	v.SetDefault("auth.access_token_secret", "")
	v.SetDefault("auth.access_token_expiry", auth.DefaultAccessTokenExpiry)
	v.SetDefault("drives.db_path", defaultDBPath)
	v.SetDefault("drives.probe", false)
	v.SetDefault("drives.probe_interval", 0)
	v.SetDefault("nfs.locale", nfs.DefaultLocale)
	v.SetDefault("nfs.max_find_count", nfs.DefaultMaxFindCount)
	v.SetDefault("nfs.hidden", []string{})
	v.SetDefault("log_dir", defaultLogDir)
	v.SetDefault("log_level", server.DefaultLogLevel)

	bindFlag(v, "http.addr", cmd.Flags().Lookup("bind"))
	bindFlag(v, "http.cert_file", cmd.Flags().Lookup("cert"))
	bindFlag(v, "http.key_file", cmd.Flags().Lookup("key"))
	bindFlag(v, "drives.db_path", cmd.Flags().Lookup("db"))
	bindFlag(v, "log_dir", cmd.Flags().Lookup("log-dir"))
	bindFlag(v, "log_level", cmd.Flags().Lookup("log-level"))

	v.SetEnvPrefix("APPIFI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// bindFlag skips flags the command does not define. token and config share
// the loader with serve.
func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if flag != nil {
		v.BindPFlag(key, flag)
	}
}

func newConsoleHandler(w io.Writer, level slog.Level) slog.Handler {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    noColor,
	})
}

// setupLogger logs to stdout and to server.log under the log dir.
func setupLogger(cfg *server.Config) (func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}

	if err := utils.EnsureDir(cfg.LogDir); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(cfg.LogDir, "server.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(newConsoleHandler(os.Stdout, level), fileHandler)))

	return func() { file.Close() }, nil
}
