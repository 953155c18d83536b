package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pario-ai/quelldemo/pkg/models"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "quelldemo.yaml"

// Config holds all quelldemo configuration.
type Config struct {
	Listen             string             `yaml:"listen"`
	DBPath             string             `yaml:"db_path"`
	OriginURL          string             `yaml:"origin_url"`
	GraphQLEndpoint    string             `yaml:"graphql_endpoint"`
	ClearCacheEndpoint string             `yaml:"clear_cache_endpoint"`
	HTTPTimeout        time.Duration      `yaml:"http_timeout"`
	Mode               string             `yaml:"mode"`
	Limits             models.LimitConfig `yaml:"limits"`
	Cache              CacheConfig        `yaml:"cache"`
	Log                LogConfig          `yaml:"log"`
	Samples            []SampleConfig     `yaml:"samples"`
}

// CacheConfig controls both cache layers.
type CacheConfig struct {
	Enabled           bool          `yaml:"enabled"`
	TTL               time.Duration `yaml:"ttl"`
	LocalMaxEntries   int           `yaml:"local_max_entries"`
	LimiterMaxClients int           `yaml:"limiter_max_clients"`
}

// LogConfig controls slog output and file rotation.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// SampleConfig adds or overrides a sample query by label.
type SampleConfig struct {
	Label string `yaml:"label"`
	Query string `yaml:"query"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen:             ":3000",
		DBPath:             "quelldemo.db",
		OriginURL:          "http://localhost:4000/graphql",
		GraphQLEndpoint:    "http://localhost:3000/api/graphql",
		ClearCacheEndpoint: "http://localhost:3000/api/clearCache",
		HTTPTimeout:        10 * time.Second,
		Mode:               "client",
		Limits:             models.DefaultLimits(),
		Cache: CacheConfig{
			Enabled:           true,
			TTL:               time.Hour,
			LocalMaxEntries:   256,
			LimiterMaxClients: 1024,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load, except that a missing file at the
// default path yields Default().
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil && path == DefaultPath && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := models.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Limits.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.GraphQLEndpoint == "" {
		return errors.New("config: graphql_endpoint is required")
	}
	for i, s := range c.Samples {
		if s.Label == "" || s.Query == "" {
			return fmt.Errorf("config: sample %d needs both label and query", i)
		}
	}
	return nil
}

// InitialMode returns the parsed starting mode.
func (c *Config) InitialMode() models.Mode {
	m, err := models.ParseMode(c.Mode)
	if err != nil {
		return models.ModeClient
	}
	return m
}
