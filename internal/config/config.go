// Package config reads runtime settings from RESTORATOR_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of a restoration run. Command-line flags
// override the values parsed here.
type Config struct {
	Seed        uint64 `env:"SEED"`
	DBPath      string `env:"DB_PATH" envDefault:"data/population.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	MetricsFile string `env:"METRICS_FILE"`

	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3Prefix    string `env:"S3_PREFIX"`
	S3PathStyle bool   `env:"S3_PATH_STYLE"`

	MinLivingArea float64 `env:"MIN_LIVING_AREA" envDefault:"5"`
	AgeSexTries   int     `env:"AGE_SEX_TRIES" envDefault:"5"`
	PersonTries   int     `env:"PERSON_TRIES" envDefault:"20"`
}

const prefix = "RESTORATOR_"

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: prefix})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.MinLivingArea < 0 {
		return fmt.Errorf("min living area must be non-negative, got %v", c.MinLivingArea)
	}
	if c.AgeSexTries < 1 || c.PersonTries < 1 {
		return fmt.Errorf("retry counts must be positive (age/sex %d, person %d)", c.AgeSexTries, c.PersonTries)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the configured slog level.
func (c Config) Level() slog.Level {
	lvl, _ := ParseLevel(c.LogLevel)
	return lvl
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
