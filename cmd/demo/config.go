package main

import (
	"flag"
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds demo configuration.
type Config struct {
	LogLevel     string `env:"SAGA_LOG_LEVEL" envDefault:"debug"`
	Store        string `env:"SAGA_STORE" envDefault:"sqlite"`
	StorePath    string `env:"SAGA_STORE_PATH" envDefault:"sagax-demo"`
	Orders       int    `env:"SAGA_DEMO_ORDERS" envDefault:"3"`
	Workers      int    `env:"SAGA_WORKERS" envDefault:"2"`
	OTelEnabled  bool   `env:"SAGA_OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint string `env:"SAGA_OTEL_ENDPOINT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	fs.StringVar(&cfg.Store, "store", cfg.Store, "Saga store: sqlite, json or yaml")
	fs.StringVar(&cfg.StorePath, "store-path", cfg.StorePath, "Directory holding the saga store")
	fs.IntVar(&cfg.Orders, "orders", cfg.Orders, "Number of orders to simulate")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Parallel delivery workers")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store {
	case "sqlite", "json", "yaml":
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Orders < 0 {
		return fmt.Errorf("orders must not be negative")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}
