package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Practice.Duration != nil || cfg.Server.Addr != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[practice]
duration = 30
start-on-input = false
source = "words"

[client]
server = "http://localhost:5000"

[server]
addr = ":8080"
allowed-origins = ["http://localhost:3000"]
rate-limit = 5.0

[database]
driver = "mongo"
uri = "mongodb://localhost:27017"
name = "swifttype"

[log]
level = "debug"
format = "json"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Practice.Duration == nil || *cfg.Practice.Duration != 30 {
		t.Fatalf("unexpected duration: %v", cfg.Practice.Duration)
	}
	if cfg.Practice.StartOnInput == nil || *cfg.Practice.StartOnInput {
		t.Fatalf("expected start-on-input=false")
	}
	if cfg.Practice.Words != nil {
		t.Fatalf("expected absent key to stay nil")
	}
	if *cfg.Client.Server != "http://localhost:5000" || *cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected client/server: %+v %+v", cfg.Client, cfg.Server)
	}
	if got := *cfg.Server.AllowedOrigins; len(got) != 1 || got[0] != "http://localhost:3000" {
		t.Fatalf("unexpected origins: %v", got)
	}
	if *cfg.Database.Driver != "mongo" || *cfg.Log.Format != "json" {
		t.Fatalf("unexpected database/log: %+v %+v", cfg.Database, cfg.Log)
	}
}

func TestLoadConfigRejectsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[practice]\nlang = \"en\"\n")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "practice.lang") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.toml")
	empty, err := LoadCredentials(path)
	if err != nil || empty.Token != "" {
		t.Fatalf("expected empty credentials, got %+v %v", empty, err)
	}
	want := Credentials{Server: "http://localhost:5000", Username: "alice", Token: "abc"}
	if err := SaveCredentials(path, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}
	got, err := LoadCredentials(path)
	if err != nil || got != want {
		t.Fatalf("expected %+v, got %+v (%v)", want, got, err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvJWTSecret, "from-env")
	t.Setenv(EnvDatabaseURI, "mongodb://db:27017")
	t.Setenv(EnvPort, "9000")
	file := "file-secret"
	cfg := FileConfig{Server: ServerConfig{JWTSecret: &file}}
	ApplyEnv(&cfg)
	if *cfg.Server.JWTSecret != "from-env" || *cfg.Database.URI != "mongodb://db:27017" || *cfg.Server.Addr != ":9000" {
		t.Fatalf("unexpected overrides: %+v %+v", cfg.Server, cfg.Database)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("missing .env should be ignored: %v", err)
	}
	path := filepath.Join(t.TempDir(), ".env")
	writeFile(t, path, "SWIFTTYPE_TEST_DOTENV=loaded\n")
	t.Setenv("SWIFTTYPE_TEST_DOTENV", "")
	if err := os.Unsetenv("SWIFTTYPE_TEST_DOTENV"); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load .env: %v", err)
	}
	if got := os.Getenv("SWIFTTYPE_TEST_DOTENV"); got != "loaded" {
		t.Fatalf("expected value from .env, got %q", got)
	}
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "swifttype", "config.toml") {
		t.Fatalf("unexpected config path %s", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/data", "swifttype", "swifttype.db") {
		t.Fatalf("unexpected db path %s", got)
	}
	if got := DefaultCredentialsPath(); got != filepath.Join("/data", "swifttype", "credentials.toml") {
		t.Fatalf("unexpected credentials path %s", got)
	}
}
