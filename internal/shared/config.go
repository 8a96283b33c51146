package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override the TOML configuration.
const (
	EnvClientID    = "SPOTIFY_CLIENT_ID"
	EnvRedirectURI = "SPOTIFY_REDIRECT_URI"
	EnvLogLevel    = "NOWPLAYING_LOG_LEVEL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Session  SessionConfig  `toml:"session"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Poller   PollerConfig   `toml:"poller"`
	HTTP     HTTPConfig     `toml:"http"`
	Log      LogConfig      `toml:"log"`
}

// SpotifyConfig contains the public PKCE client settings and upstream endpoints.
type SpotifyConfig struct {
	ClientID    string   `toml:"client_id"`
	RedirectURI string   `toml:"redirect_uri"`
	AuthURL     string   `toml:"auth_url"`
	TokenURL    string   `toml:"token_url"`
	APIURL      string   `toml:"api_url"`
	Scopes      []string `toml:"scopes"`
}

// SessionConfig controls where the auth session is persisted and when it is refreshed.
type SessionConfig struct {
	Backend              string `toml:"backend"` // sqlite or keyring
	Namespace            string `toml:"namespace"`
	RefreshMarginSeconds int    `toml:"refresh_margin_seconds"`
	VerifierLength       int    `toml:"verifier_length"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// PollerConfig contains polling cadences.
type PollerConfig struct {
	PlaybackIntervalSeconds int `toml:"playback_interval_seconds"`
	DeviceIntervalSeconds   int `toml:"device_interval_seconds"`
}

// HTTPConfig contains outbound HTTP client settings.
type HTTPConfig struct {
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// RefreshMargin is the safety window before expiry in which a token is already treated as stale.
func (c SessionConfig) RefreshMargin() time.Duration {
	return time.Duration(c.RefreshMarginSeconds) * time.Second
}

// PlaybackInterval returns the currently-playing poll cadence.
func (c PollerConfig) PlaybackInterval() time.Duration {
	return seconds(c.PlaybackIntervalSeconds, 10)
}

// DeviceInterval returns the device list poll cadence.
func (c PollerConfig) DeviceInterval() time.Duration {
	return seconds(c.DeviceIntervalSeconds, 30)
}

// Timeout returns the bounded request timeout for all outbound calls.
func (c HTTPConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds, 10)
}

// Addr returns the host:port the callback server listens on.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

// Validate reports missing values required for the login flow.
func (c *Config) Validate() error {
	if c.Spotify.ClientID == "" || c.Spotify.ClientID == "your_spotify_client_id" {
		return fmt.Errorf("%w: spotify client_id must be set in config.toml or %s", ErrMissingCredentials, EnvClientID)
	}
	if c.Spotify.RedirectURI == "" {
		return fmt.Errorf("%w: spotify redirect_uri is empty", ErrInvalidConfig)
	}
	switch c.Session.Backend {
	case "sqlite", "keyring":
	default:
		return fmt.Errorf("%w: unknown session backend %q", ErrInvalidConfig, c.Session.Backend)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// ApplyEnv loads a .env file (when present) and overrides the client identifier and redirect URI.
//
// The values are consumed read-only; nothing is written back to the config file. A missing
// .env file is not an error. A malformed one is reported, but process environment overrides
// are still applied.
func ApplyEnv(config *Config, files ...string) error {
	var loadErr error
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		loadErr = fmt.Errorf("%w: failed to load .env: %w", ErrInvalidConfig, err)
	}

	if v := os.Getenv(EnvClientID); v != "" {
		config.Spotify.ClientID = v
	}
	if v := os.Getenv(EnvRedirectURI); v != "" {
		config.Spotify.RedirectURI = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.Log.Level = v
	}
	return loadErr
}

// SaveConfig writes the configuration to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
