// Package config loads application configuration with viper.
//
// Sources, in increasing precedence: built-in defaults, an optional YAML
// file, and MIICOIN_* environment variables (dots become underscores, so
// server.port is overridden by MIICOIN_SERVER_PORT).
package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Exchanges  ExchangeConfig   `mapstructure:"exchanges"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Signals    SignalConfig     `mapstructure:"signals"`
	Risk       RiskConfig       `mapstructure:"risk"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"` // SQLite database file, or ":memory:"
}

type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

type AuthConfig struct {
	JWTSecret          string `mapstructure:"jwt_secret"`
	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`
	GoogleCallbackURL  string `mapstructure:"google_callback_url"`
}

// EncryptionConfig holds the credential-encryption key as 64 hex characters
// (32 bytes). The key is REQUIRED: earlier versions of this system generated
// a fresh key when none was configured, which silently orphaned every
// previously encrypted credential on restart. Now the process fails fast
// instead. There is no rotation support.
type EncryptionConfig struct {
	Key string `mapstructure:"key"`
}

// ExchangeConfig declares which exchanges credentials may be stored for,
// and which trading pairs the dashboard knows about. Supported pairs are
// declared for the frontend; no server-side logic consumes them yet.
type ExchangeConfig struct {
	Supported      []string `mapstructure:"supported"`
	SupportedPairs []string `mapstructure:"supported_pairs"`
}

// RateLimitConfig is declared configuration without an enforcing middleware
// yet; the values are reserved for the planned limiter.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// SignalConfig and RiskConfig are constants for the signal engine and risk
// management, which live outside this backend. Declared so deployments
// configure everything in one place; unused by any implemented logic.
type SignalConfig struct {
	ValidityDuration time.Duration `mapstructure:"validity_duration"`
	MinInterval      time.Duration `mapstructure:"min_interval"`
}

type RiskConfig struct {
	MaxPositionSize   float64 `mapstructure:"max_position_size"`
	StopLossDefault   float64 `mapstructure:"stop_loss_default"`
	TakeProfitDefault float64 `mapstructure:"take_profit_default"`
	MaxOpenPositions  int     `mapstructure:"max_open_positions"`
}

// setDefaults registers every config key. Keys without a meaningful default
// still get an empty one: viper's Unmarshal only consults the environment
// for keys it already knows about, so an unregistered key's MIICOIN_*
// variable would be silently ignored.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "")
	v.SetDefault("database.path", "data/miicoin.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.google_client_id", "")
	v.SetDefault("auth.google_client_secret", "")
	v.SetDefault("auth.google_callback_url", "")
	v.SetDefault("encryption.key", "")
	v.SetDefault("exchanges.supported", []string{"binance", "kucoin", "ftx"})
	v.SetDefault("exchanges.supported_pairs", []string{
		"BTC/USDT", "ETH/USDT", "BNB/USDT", "SOL/USDT", "ADA/USDT",
	})
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("signals.validity_duration", 5*time.Minute)
	v.SetDefault("signals.min_interval", time.Minute)
	v.SetDefault("risk.max_position_size", 0.1)
	v.SetDefault("risk.stop_loss_default", 0.02)
	v.SetDefault("risk.take_profit_default", 0.06)
	v.SetDefault("risk.max_open_positions", 5)
}

// Load reads configuration from the given YAML file (optional — pass "" to
// use only defaults and environment) and the environment, then validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MIICOIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the invariants the rest of the process relies on.
// Called by Load; exported so tests can probe individual failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret is required (set MIICOIN_AUTH_JWT_SECRET)")
	}
	if c.Encryption.Key == "" {
		return fmt.Errorf("config: encryption.key is required (set MIICOIN_ENCRYPTION_KEY to 64 hex chars)")
	}
	if _, err := c.EncryptionKey(); err != nil {
		return err
	}
	if len(c.Exchanges.Supported) == 0 {
		return fmt.Errorf("config: exchanges.supported must not be empty")
	}
	return nil
}

// EncryptionKey decodes the configured hex key into the 32 raw bytes the
// cipher needs.
func (c *Config) EncryptionKey() ([]byte, error) {
	key, err := hex.DecodeString(c.Encryption.Key)
	if err != nil {
		return nil, fmt.Errorf("config: encryption.key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("config: encryption.key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// GoogleOAuthConfigured reports whether the Google login routes can be
// registered. The server runs fine without them; OAuth endpoints are simply
// absent.
func (c *Config) GoogleOAuthConfigured() bool {
	return c.Auth.GoogleClientID != "" && c.Auth.GoogleClientSecret != ""
}
