// Package config loads the supervisor/session configuration file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/Zereker/localsocket/graphql"
)

// Environment overrides.
const (
	EnvAPIKey   = "APOLLO_KEY"
	EnvLogLevel = "LOCALSOCKET_LOG_LEVEL"
)

// Config is the on-disk configuration.
type Config struct {
	Socket  SocketConfig  `toml:"socket"`
	GraphQL GraphQLConfig `toml:"graphql"`
	Log     LogConfig     `toml:"log"`
}

// SocketConfig configures the local socket and the channels on it.
type SocketConfig struct {
	Path            string   `toml:"path"`
	MaxMessageSize  int      `toml:"max_message_size"`
	ReadTimeout     Duration `toml:"read_timeout"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	MaxSessions     int      `toml:"max_sessions"`
}

// GraphQLConfig configures the API client.
type GraphQLConfig struct {
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a string such as "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Socket: SocketConfig{
			Path: filepath.Join(os.TempDir(), "localsocket.sock"),
		},
		GraphQL: GraphQLConfig{
			Endpoint: graphql.DefaultURI,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path, fills unset fields from Default, applies environment
// overrides and validates the result. An empty path loads only defaults
// and environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "config load failed (%s)", path)
		}
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "config parse failed (%s)", path)
		}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Socket.Path == "" {
		cfg.Socket.Path = def.Socket.Path
	}
	if cfg.GraphQL.Endpoint == "" {
		cfg.GraphQL.Endpoint = def.GraphQL.Endpoint
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		cfg.GraphQL.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
}

// Validate checks cfg for values that cannot work.
func Validate(cfg Config) error {
	if cfg.Socket.MaxMessageSize < 0 {
		return errors.New("socket.max_message_size must not be negative")
	}
	if cfg.Socket.ReadTimeout.Duration < 0 || cfg.Socket.WriteTimeout.Duration < 0 {
		return errors.New("socket timeouts must not be negative")
	}
	if cfg.Socket.ShutdownTimeout.Duration < 0 {
		return errors.New("socket.shutdown_timeout must not be negative")
	}
	if cfg.Socket.MaxSessions < 0 {
		return errors.New("socket.max_sessions must not be negative")
	}
	switch cfg.Log.Level {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		return errors.Errorf("log.level %q is not one of trace, debug, info, warn, error, disabled", cfg.Log.Level)
	}
	return nil
}
