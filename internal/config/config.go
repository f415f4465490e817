// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port    string `yaml:"port" validate:"required,numeric"`
	LogMode string `yaml:"log_mode" validate:"omitempty,oneof=development production prod"`

	// RequestTimeoutMs bounds the portal work done for one inbound request.
	RequestTimeoutMs int `yaml:"request_timeout_ms" validate:"gte=100"`

	// PrivilegedToken, when set, is the X-Privileged-Token value that grants
	// lock toggling. Empty disables privileged mutations.
	PrivilegedToken string `yaml:"privileged_token"`

	Portal   PortalConfig   `yaml:"portal"`
	Progress ProgressConfig `yaml:"progress"`
	Cache    CacheConfig    `yaml:"cache"`
}

type PortalConfig struct {
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
	TimeoutMs int    `yaml:"timeout_ms" validate:"gte=100"`
}

type ProgressConfig struct {
	BatchSize    int `yaml:"batch_size" validate:"gte=1,lte=50"`
	BatchPauseMs int `yaml:"batch_pause_ms" validate:"gte=0"`
}

type CacheConfig struct {
	RedisAddr  string `yaml:"redis_addr"`
	TTLSeconds int    `yaml:"ttl_seconds" validate:"gte=0"`
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (p PortalConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

func (p ProgressConfig) BatchPause() time.Duration {
	return time.Duration(p.BatchPauseMs) * time.Millisecond
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func Default() Config {
	return Config{
		Port:    "8080",
		LogMode: "development",

		RequestTimeoutMs: 30000,
		Portal: PortalConfig{
			TimeoutMs: 2000,
		},
		Progress: ProgressConfig{
			BatchSize:    5,
			BatchPauseMs: 100,
		},
		Cache: CacheConfig{
			TTLSeconds: 600,
		},
	}
}

var validate = validator.New()

// Load builds the configuration: defaults, then path (if not empty), then
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: invalid: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML over cfg, leaving unset keys untouched.
func Parse(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("PORT", &cfg.Port)
	str("LOG_MODE", &cfg.LogMode)
	str("PORTAL_BASE_URL", &cfg.Portal.BaseURL)
	str("REDIS_ADDR", &cfg.Cache.RedisAddr)
	str("PRIVILEGED_TOKEN", &cfg.PrivilegedToken)
	for key, dst := range map[string]*int{
		"REQUEST_TIMEOUT_MS":      &cfg.RequestTimeoutMs,
		"PORTAL_TIMEOUT_MS":       &cfg.Portal.TimeoutMs,
		"PROGRESS_BATCH_SIZE":     &cfg.Progress.BatchSize,
		"PROGRESS_BATCH_PAUSE_MS": &cfg.Progress.BatchPauseMs,
		"CIRCUIT_CACHE_TTL_S":     &cfg.Cache.TTLSeconds,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	return nil
}
