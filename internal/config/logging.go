package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level  string `env:"LOG_LEVEL, default=info"`
	Format string `env:"LOG_FORMAT, default=text"`
	// File enables rotating file output when set.
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB, default=20"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS, default=5"`
}

func NewLoggingConfigFromEnv() (*LoggingConfig, error) {
	var cfg LoggingConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
