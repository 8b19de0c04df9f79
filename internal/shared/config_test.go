package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./spotibridge.db" {
			t.Errorf("expected database path ./spotibridge.db, got %s", config.Database.Path)
		}
		if config.Server.Port != 3500 {
			t.Errorf("expected server port 3500, got %d", config.Server.Port)
		}
		if config.Display.Width != 240 || config.Display.Height != 240 {
			t.Errorf("expected 240x240 display, got %dx%d", config.Display.Width, config.Display.Height)
		}
		if config.Upstream.Timeout != 10*time.Second {
			t.Errorf("expected upstream timeout 10s, got %v", config.Upstream.Timeout)
		}
		if config.Session.CookieName != "spotify.sid" {
			t.Errorf("expected cookie name spotify.sid, got %s", config.Session.CookieName)
		}
		if len(config.Credentials.Spotify.Scopes) != 2 {
			t.Errorf("expected 2 default scopes, got %v", config.Credentials.Spotify.Scopes)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig keeps defaults for missing keys", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[server]
port = 8080

[display]
width = 128
height = 160

[upstream]
timeout = "3s"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}
		if config.Display.Width != 128 || config.Display.Height != 160 {
			t.Errorf("expected 128x160 display, got %dx%d", config.Display.Width, config.Display.Height)
		}
		if config.Upstream.Timeout != 3*time.Second {
			t.Errorf("expected 3s timeout, got %v", config.Upstream.Timeout)
		}
		if config.Server.Host != "0.0.0.0" {
			t.Errorf("expected default host to survive, got %s", config.Server.Host)
		}
		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv("SPOTIFY_CLIENT_ID", "env_id")
		t.Setenv("SESSION_SECRET", "0123456789abcdef")

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Credentials.Spotify.ClientID != "env_id" {
			t.Errorf("expected env client id, got %s", config.Credentials.Spotify.ClientID)
		}
		if config.Session.Secret != "0123456789abcdef" {
			t.Errorf("expected env session secret, got %s", config.Session.Secret)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		config.Session.Secret = "0123456789abcdef"
		if err := config.Validate(); err != nil {
			t.Fatalf("expected default config with secret to be valid, got %v", err)
		}

		config.Session.Secret = "short"
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig for short secret, got %v", err)
		}

		config = DefaultConfig()
		config.Session.Secret = "0123456789abcdef"
		config.Display.Height = 0
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig for zero height, got %v", err)
		}
	})

	t.Run("Addr", func(t *testing.T) {
		s := ServerConfig{Host: "127.0.0.1", Port: 3500}
		if s.Addr() != "127.0.0.1:3500" {
			t.Errorf("unexpected addr %s", s.Addr())
		}
	})
}
