// Package config provides configuration helpers and TOML parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file. Pointer fields stay nil
// when a key is absent so defaults and flags can take precedence.
type FileConfig struct {
	Practice PracticeConfig `toml:"practice"`
	Client   ClientConfig   `toml:"client"`
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// PracticeConfig maps practice-related settings.
type PracticeConfig struct {
	Duration     *int     `toml:"duration"`
	StartOnInput *bool    `toml:"start-on-input"`
	Source       *string  `toml:"source"`
	Words        *int     `toml:"words"`
	CapsPct      *float64 `toml:"caps"`
	PunctPct     *float64 `toml:"punct"`
	PunctSet     *string  `toml:"punct-set"`
	WordList     *string  `toml:"word-list"`
}

// ClientConfig points the CLI at a server.
type ClientConfig struct {
	Server *string `toml:"server"`
}

// ServerConfig maps `swifttype serve` settings.
type ServerConfig struct {
	Addr           *string   `toml:"addr"`
	AllowedOrigins *[]string `toml:"allowed-origins"`
	RateLimit      *float64  `toml:"rate-limit"`
	RateBurst      *int      `toml:"rate-burst"`
	JWTSecret      *string   `toml:"jwt-secret"`
	TokenTTL       *string   `toml:"token-ttl"`
	Metrics        *bool     `toml:"metrics"`
}

// DatabaseConfig selects the score store.
type DatabaseConfig struct {
	Driver *string `toml:"driver"`
	Path   *string `toml:"path"`
	URI    *string `toml:"uri"`
	Name   *string `toml:"name"`
}

// LogConfig maps log output settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// Credentials is the saved login of the CLI.
type Credentials struct {
	Server   string `toml:"server"`
	Username string `toml:"username"`
	Token    string `toml:"token"`
}

// LoadCredentials reads saved credentials. A missing file yields zero credentials.
func LoadCredentials(path string) (Credentials, error) {
	var creds Credentials
	if _, err := toml.DecodeFile(path, &creds); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return creds, nil
}

// SaveCredentials writes credentials readable only by the current user.
func SaveCredentials(path string, creds Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open credentials: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(creds); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	return f.Close()
}
