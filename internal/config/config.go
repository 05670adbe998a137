// Package config loads ClipHub configuration from defaults, an optional
// YAML file, and CLIPHUB_* environment variables. The result is a typed
// Config built once at startup and handed to each component.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CLIPHUB"

// Config is the complete ClipHub configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Clips   ClipsConfig   `mapstructure:"clips"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig controls the HTTP listener and request middleware.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	RequireAJAX  bool          `mapstructure:"require_ajax"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst    int           `mapstructure:"rate_burst"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ClipsConfig holds the content rules.
type ClipsConfig struct {
	MaxLength int `mapstructure:"max_length"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// NewViper returns a viper instance carrying the defaults and environment
// bindings. Flags may be bound into it before calling FromViper.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.require_ajax", false)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("storage.path", "instance/clips.db")
	v.SetDefault("clips.max_length", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Legacy variable names still honored.
	_ = v.BindEnv("storage.path", EnvPrefix+"_STORAGE_PATH", "CLIPS_DB_PATH")
	_ = v.BindEnv("clips.max_length", EnvPrefix+"_CLIPS_MAX_LENGTH", "CLIPS_MAX_LENGTH")

	return v
}

// Load reads configuration from the optional YAML file at path, layered over
// defaults and under environment variables.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration values that would leave the service
// unable to run.
func (c *Config) Validate() error {
	var errs []error
	if c.Clips.MaxLength <= 0 {
		errs = append(errs, fmt.Errorf("clips.max_length must be positive, got %d", c.Clips.MaxLength))
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		errs = append(errs, errors.New("storage.path must not be empty"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit must not be negative, got %v", c.Server.RateLimit))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
