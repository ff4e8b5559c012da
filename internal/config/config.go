package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory"
)

type Config struct {
	HTTPAddr          string     `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath            string     `env:"DB_PATH" envDefault:"data/photohunt.db"`
	LogLevel          slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	StoreBackend      Backend    `env:"STORE_BACKEND" envDefault:"sqlite"`
	RedisURL          string     `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPrefix       string     `env:"REDIS_PREFIX" envDefault:"photohunt"`
	MaxDistanceMeters float64    `env:"MAX_DISTANCE_METERS" envDefault:"1000"`
	MaxUpdateAttempts int        `env:"MAX_UPDATE_ATTEMPTS" envDefault:"3"`
	SeedDemo          bool       `env:"SEED_DEMO" envDefault:"true"`

	// AdminToken enables scenario authoring when set.
	AdminToken string `env:"ADMIN_TOKEN"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.MaxDistanceMeters <= 0 {
		return fmt.Errorf("MAX_DISTANCE_METERS must be positive, got %v", c.MaxDistanceMeters)
	}
	if c.MaxUpdateAttempts < 1 {
		return fmt.Errorf("MAX_UPDATE_ATTEMPTS must be at least 1, got %d", c.MaxUpdateAttempts)
	}
	return nil
}
