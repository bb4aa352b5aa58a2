package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultBaseURL = "http://localhost:5001/api"
	// DefaultTimeout applies to every request and every health check; it is not configurable.
	DefaultTimeout = 60 * time.Second
	EnvPrefix      = "SCHEDULER_"
)

// envKeys maps the supported environment variables onto config keys.
var envKeys = map[string]string{
	EnvPrefix + "API_BASE_URL":       "base_url",
	EnvPrefix + "USE_CREDENTIALS":    "with_credentials",
	EnvPrefix + "STORAGE_PATH":       "storage_path",
	EnvPrefix + "CONFLICT_DETECTION": "conflict_detection",
	EnvPrefix + "LOG_LEVEL":          "log.level",
	EnvPrefix + "LOG_PRETTY":         "log.pretty",
}

type Config struct {
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	WithCredentials   bool          `koanf:"with_credentials"`
	StoragePath       string        `koanf:"storage_path" validate:"required"`
	ConflictDetection bool          `koanf:"conflict_detection"`
	Retry             RetryConfig   `koanf:"retry"`
	Breaker           BreakerConfig `koanf:"breaker"`
	Log               LogConfig     `koanf:"log"`
}

type RetryConfig struct {
	MaxRetries uint8         `koanf:"max_retries" validate:"lte=10"`
	BaseDelay  time.Duration `koanf:"base_delay" validate:"gte=0"`
}

type BreakerConfig struct {
	Enabled             bool          `koanf:"enabled"`
	MaxRequests         uint32        `koanf:"max_requests" validate:"required_if=Enabled true"`
	ConsecutiveFailures uint32        `koanf:"consecutive_failures" validate:"required_if=Enabled true"`
	Interval            time.Duration `koanf:"interval"`
	Timeout             time.Duration `koanf:"timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `koanf:"pretty"`
}

// ParsedBaseURL returns BaseURL as a URL; Load has already validated it.
func (c *Config) ParsedBaseURL() (*url.URL, error) {
	return url.Parse(c.BaseURL)
}

// Load resolves the configuration once, with priority:
// 1. Environment variables (including those from dotEnvFile, which never override the real environment)
// 2. configFile (YAML)
// 3. Default values
// Empty file names are skipped; a missing file is not an error.
func Load(configFile, dotEnvFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", configFile, err)
		}
	}

	if dotEnvFile != "" {
		if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", dotEnvFile, err)
		}
	}

	if err := k.Load(envprovider.Provider(EnvPrefix, ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		StoragePath:       defaultStoragePath(),
		ConflictDetection: true,
		Retry:             RetryConfig{MaxRetries: 2, BaseDelay: time.Second},
		Breaker: BreakerConfig{
			MaxRequests:         1,
			ConsecutiveFailures: 5,
			Interval:            time.Minute,
			Timeout:             30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"base_url":                     d.BaseURL,
		"with_credentials":             d.WithCredentials,
		"storage_path":                 d.StoragePath,
		"conflict_detection":           d.ConflictDetection,
		"retry.max_retries":            d.Retry.MaxRetries,
		"retry.base_delay":             d.Retry.BaseDelay.String(),
		"breaker.enabled":              d.Breaker.Enabled,
		"breaker.max_requests":         d.Breaker.MaxRequests,
		"breaker.consecutive_failures": d.Breaker.ConsecutiveFailures,
		"breaker.interval":             d.Breaker.Interval.String(),
		"breaker.timeout":              d.Breaker.Timeout.String(),
		"log.level":                    d.Log.Level,
		"log.pretty":                   d.Log.Pretty,
	}
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "schedctl", "storage.json")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Validate(cfg *Config) error {
	return validate.Struct(cfg)
}
