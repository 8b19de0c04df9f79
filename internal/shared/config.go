package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
	Display     DisplayConfig     `toml:"display"`
	Upstream    UpstreamConfig    `toml:"upstream"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and endpoints.
//
// The endpoint URLs are overridable so tests and staging setups can point at fakes.
type SpotifyConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
	AuthURL      string   `toml:"auth_url"`
	TokenURL     string   `toml:"token_url"`
	APIURL       string   `toml:"api_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string  `toml:"host"`
	Port            int     `toml:"port"`
	AppURL          string  `toml:"app_url"`
	AllowedOrigin   string  `toml:"allowed_origin"`
	DeviceRateLimit float64 `toml:"device_rate_limit"`
	DeviceBurst     int     `toml:"device_burst"`
}

// SessionConfig controls the browser session cookie.
type SessionConfig struct {
	Secret       string        `toml:"secret"`
	CookieName   string        `toml:"cookie_name"`
	CookieDomain string        `toml:"cookie_domain"`
	Secure       bool          `toml:"secure"`
	TTL          time.Duration `toml:"ttl"`
}

// DisplayConfig describes the target panel the cover art is transcoded for.
type DisplayConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	// ArtWidth is the upstream image variant width preferred when picking cover art.
	ArtWidth int `toml:"art_width"`
}

// UpstreamConfig bounds every call made to the Spotify APIs and image CDN.
type UpstreamConfig struct {
	Timeout       time.Duration `toml:"timeout"`
	MaxImageBytes int64         `toml:"max_image_bytes"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Addr returns the host:port pair the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig]; environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.ApplyEnv()
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

// ApplyEnv overrides secrets from the environment when the variables are set.
func (c *Config) ApplyEnv() {
	overrides := map[string]*string{
		"SPOTIFY_CLIENT_ID":     &c.Credentials.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": &c.Credentials.Spotify.ClientSecret,
		"SPOTIFY_REDIRECT_URI":  &c.Credentials.Spotify.RedirectURI,
		"SESSION_SECRET":        &c.Session.Secret,
	}
	for key, field := range overrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*field = v
		}
	}
}

// Validate reports the first setting that prevents the server from starting.
func (c *Config) Validate() error {
	spotify := c.Credentials.Spotify
	switch {
	case spotify.ClientID == "" || spotify.ClientSecret == "":
		return fmt.Errorf("%w: spotify client_id and client_secret are required", ErrInvalidConfig)
	case spotify.RedirectURI == "":
		return fmt.Errorf("%w: spotify redirect_uri is required", ErrInvalidConfig)
	case len(c.Session.Secret) < 16:
		return fmt.Errorf("%w: session secret must be at least 16 characters", ErrInvalidConfig)
	case c.Display.Width <= 0 || c.Display.Height <= 0:
		return fmt.Errorf("%w: display width and height must be positive", ErrInvalidConfig)
	case c.Upstream.Timeout <= 0:
		return fmt.Errorf("%w: upstream timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
