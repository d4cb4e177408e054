// Package config loads the server configuration.
//
// Values come from, in increasing priority: built-in defaults, an optional
// YAML file named by ECGVIEW_CONFIG_FILE, and ECGVIEW_* environment variables
// (a `.env` file is loaded into the environment first). Nested keys use a
// double underscore: ECGVIEW_SERVER__READ_TIMEOUT -> server.read_timeout.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"ecgview/internal/protocol"
)

const (
	EnvPrefix  = "ECGVIEW_"
	EnvFileVar = EnvPrefix + "CONFIG_FILE"
)

type Config struct {
	Primary   Primary         `koanf:"primary" validate:"required"`
	Server    ServerConfig    `koanf:"server" validate:"required"`
	Render    RenderConfig    `koanf:"render" validate:"required"`
	Cache     CacheConfig     `koanf:"cache" validate:"required"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Log       LogConfig       `koanf:"log" validate:"required"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port           string        `koanf:"port" validate:"required,numeric"`
	ReadTimeout    time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout   time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout    time.Duration `koanf:"idle_timeout" validate:"required"`
	MaxUploadBytes int64         `koanf:"max_upload_bytes" validate:"min=1024"`
	TLS            TLSConfig     `koanf:"tls"`
}

// TLSConfig enables HTTPS. With SelfSigned set, a throwaway certificate is
// generated at startup and CertFile/KeyFile are ignored.
type TLSConfig struct {
	Enabled    bool   `koanf:"enabled"`
	SelfSigned bool   `koanf:"self_signed"`
	CertFile   string `koanf:"cert_file" validate:"required_if=Enabled true SelfSigned false"`
	KeyFile    string `koanf:"key_file" validate:"required_if=Enabled true SelfSigned false"`
}

type RenderConfig struct {
	Layout string `koanf:"layout" validate:"oneof=standard strip"`
	Width  int    `koanf:"width" validate:"min=320,max=8000"`
	Height int    `koanf:"height" validate:"min=240,max=8000"`
}

type CacheConfig struct {
	Driver     string        `koanf:"driver" validate:"oneof=none memory redis"`
	RedisURL   string        `koanf:"redis_url" validate:"required_if=Driver redis"`
	TTL        time.Duration `koanf:"ttl" validate:"min=0"`
	MaxEntries int           `koanf:"max_entries" validate:"min=0"`
}

type DiscoveryConfig struct {
	Enabled bool `koanf:"enabled"`
	Port    int  `koanf:"port" validate:"min=0,max=65535"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Output string `koanf:"output" validate:"oneof=stdout stderr"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Primary: Primary{Env: "development"},
		Server: ServerConfig{
			Port:           protocol.DefaultHTTPPort,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			IdleTimeout:    120 * time.Second,
			MaxUploadBytes: 32 << 20,
		},
		Render: RenderConfig{
			Layout: "standard",
			Width:  1800,
			Height: 1200,
		},
		Cache: CacheConfig{
			Driver:     "memory",
			TTL:        30 * time.Minute,
			MaxEntries: 64,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
			Port:    protocol.DiscoveryPort,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load builds the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvFileVar))
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(yamlFile(path), yamlParser{}); err != nil {
			return nil, fmt.Errorf("could not load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
