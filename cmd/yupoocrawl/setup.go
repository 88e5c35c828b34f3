package main

import (
	"context"

	"yupoocrawl/pkg/config"
	"yupoocrawl/pkg/logger"
)

// loadConfig loads configuration and applies global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if noColor {
		cfg.Logging.NoColor = true
	}
	return cfg, nil
}

// initLogger initializes the global logger from the effective config
func initLogger(cfg *config.Config) logger.Logger {
	logger.Initialize(&cfg.Logging)
	return logger.GetLogger()
}

func cmdContext() context.Context {
	return context.Background()
}
