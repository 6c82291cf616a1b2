// Package config handles parsing and writing of the speleosync
// configuration file (config.toml in the data directory).
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/speleokit/speleosync/internal/appdir"
)

const (
	// DefaultInstance is the production remote service instance.
	DefaultInstance = "https://www.speleodb.org"

	// DefaultRemoteInterval is the slow tick: remote metadata refresh.
	DefaultRemoteInterval = 120 * time.Second
	// DefaultLocalInterval is the fast tick: filesystem and editor
	// liveness refresh.
	DefaultLocalInterval = time.Second
	// DefaultRequestTimeout bounds every remote call.
	DefaultRequestTimeout = 30 * time.Second
)

// Config represents the speleosync application configuration.
type Config struct {
	// Instance is the base URL of the remote service.
	Instance string `toml:"instance" json:"instance" jsonschema:"required,description=Base URL of the remote SpeleoDB instance"`
	// DataDir overrides the default ~/.speleosync data directory.
	DataDir string `toml:"data_dir,omitempty" json:"data_dir,omitempty" jsonschema:"description=Data directory holding projects and logs"`
	// EditorCommand is the survey editor executable. When empty the
	// working copy folder is revealed in the system shell instead.
	EditorCommand string `toml:"editor_command,omitempty" json:"editor_command,omitempty" jsonschema:"description=Survey editor executable to launch against a working copy"`
	// RemoteInterval is the remote metadata refresh interval.
	RemoteInterval Duration `toml:"remote_interval,omitempty" json:"remote_interval,omitempty" jsonschema:"description=Remote refresh interval (e.g. 120s)"`
	// LocalInterval is the local refresh interval.
	LocalInterval Duration `toml:"local_interval,omitempty" json:"local_interval,omitempty" jsonschema:"description=Local refresh interval (e.g. 1s)"`
	// RequestTimeout bounds individual remote calls.
	RequestTimeout Duration `toml:"request_timeout,omitempty" json:"request_timeout,omitempty" jsonschema:"description=Per-request timeout (e.g. 30s)"`
}

// Duration is a time.Duration that round-trips through TOML as a
// string like "120s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Instance:       DefaultInstance,
		DataDir:        appdir.Default(),
		RemoteInterval: Duration(DefaultRemoteInterval),
		LocalInterval:  Duration(DefaultLocalInterval),
		RequestTimeout: Duration(DefaultRequestTimeout),
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.Instance)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid instance URL %q", c.Instance)
	}
	if c.RemoteInterval.Std() <= 0 {
		return fmt.Errorf("remote_interval must be positive, got %s", c.RemoteInterval.Std())
	}
	if c.LocalInterval.Std() <= 0 {
		return fmt.Errorf("local_interval must be positive, got %s", c.LocalInterval.Std())
	}
	if c.RequestTimeout.Std() <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout.Std())
	}
	return nil
}

// Load reads the configuration file from the given data directory.
// Missing file returns the defaults; SPELEOSYNC_INSTANCE overrides
// the instance URL either way.
func Load(fs afero.Fs, dataDir string) (Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	data, err := afero.ReadFile(fs, appdir.ConfigFile(dataDir))
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if instance := os.Getenv("SPELEOSYNC_INSTANCE"); instance != "" {
		cfg.Instance = instance
	}
	if cfg.DataDir == "" {
		cfg.DataDir = dataDir
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration file into its data directory.
func Save(fs afero.Fs, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := fs.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := afero.WriteFile(fs, appdir.ConfigFile(cfg.DataDir), data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
