package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

type Config struct {
	Storage StorageConfig
	Schema  SchemaConfig
	Server  ServerConfig
	Log     LogConfig
}

type StorageConfig struct {
	Dir       string
	Namespace string
	Backend   string
	Format    string
	Strict    bool
}

type SchemaConfig struct {
	Path string
}

type ServerConfig struct {
	Addr              string
	Token             string
	ReadHeaderTimeout int
}

type LogConfig struct {
	Level string
}

// Backends lists the values accepted for storage.backend.
var Backends = []string{"file", "sqlite", "badger", "memory"}

// Formats lists the values accepted for storage.format.
var Formats = []string{"toml", "yaml"}

func defaults() Config {
	return Config{
		Storage: StorageConfig{
			Dir:       defaultDataDir(),
			Namespace: "prefsctl",
			Backend:   "file",
			Format:    "toml",
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:4700",
			ReadHeaderTimeout: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the settings file, environment variables,
// and the platform secret store.
//
// The settings file lives at <config dir>/prefsctl/config.toml, where the
// config dir is $XDG_CONFIG_HOME (default ~/.config) on Linux and
// ~/Library/Application Support on macOS.
//
// Environment variables (PREFSCTL_*) override file values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts secret store access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// The API token is optional; serve generates one when none is configured.
	if cfg.Server.Token == "" {
		if tok, err := kc.Get("prefsctl", "api_token"); err == nil && tok != "" {
			cfg.Server.Token = tok
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that has an unsupported value.
func (c Config) Validate() error {
	if !slices.Contains(Backends, c.Storage.Backend) {
		return fmt.Errorf("invalid storage.backend %q: must be one of %s",
			c.Storage.Backend, strings.Join(Backends, ", "))
	}
	if !slices.Contains(Formats, c.Storage.Format) {
		return fmt.Errorf("invalid storage.format %q: must be one of %s",
			c.Storage.Format, strings.Join(Formats, ", "))
	}
	if c.Storage.Backend != "memory" && c.Storage.Dir == "" {
		return fmt.Errorf("missing required config: storage.dir (set PREFSCTL_DIR)")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses the configured level name ("debug", "info", "warn",
// "error").
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q: %w", c.Level, err)
	}
	return l, nil
}

// keychainReader reads secrets from the platform store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
