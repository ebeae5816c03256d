package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables that override the file for the server.
const (
	EnvJWTSecret   = "SWIFTTYPE_JWT_SECRET"
	EnvDatabaseURI = "SWIFTTYPE_DATABASE_URI"
	EnvPort        = "PORT"
)

// LoadDotEnv loads variables from path without overriding ones already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment overrides on the server and database sections.
func ApplyEnv(cfg *FileConfig) {
	if v := os.Getenv(EnvJWTSecret); v != "" {
		cfg.Server.JWTSecret = &v
	}
	if v := os.Getenv(EnvDatabaseURI); v != "" {
		cfg.Database.URI = &v
	}
	if v := os.Getenv(EnvPort); v != "" {
		addr := ":" + v
		cfg.Server.Addr = &addr
	}
}
