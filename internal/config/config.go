// Package config содержит логику чтения конфигурации сервиса оптимального кэшбэка.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса оптимального кэшбэка.
type Config struct {
	RunAddress       string        `env:"RUN_ADDRESS"`
	DatabaseURI      string        `env:"DATABASE_URI"`
	BackendAddress   string        `env:"BACKEND_ADDRESS"`
	StoragePath      string        `env:"STORAGE_PATH"`
	AnalysisDuration time.Duration `env:"ANALYSIS_DURATION"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envBackendAddress := cfg.BackendAddress
	envStoragePath := cfg.StoragePath
	envAnalysisDuration := cfg.AnalysisDuration

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.BackendAddress, "r", "", "analysis backend address")
	flag.StringVar(&cfg.StoragePath, "s", "", "path to local sqlite state file")
	flag.DurationVar(&cfg.AnalysisDuration, "t", 5*time.Second, "analysis wait duration")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envBackendAddress != "" {
		cfg.BackendAddress = envBackendAddress
	}
	if envStoragePath != "" {
		cfg.StoragePath = envStoragePath
	}
	if envAnalysisDuration != 0 {
		cfg.AnalysisDuration = envAnalysisDuration
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.AnalysisDuration <= 0 {
		cfg.AnalysisDuration = 5 * time.Second
	}

	return cfg, nil
}
