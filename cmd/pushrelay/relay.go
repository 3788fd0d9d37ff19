package main

import (
	"fmt"

	"github.com/newthinker/pushrelay/internal/app"
	"github.com/newthinker/pushrelay/internal/config"
	"github.com/newthinker/pushrelay/internal/logger"
	"go.uber.org/zap"
)

// loadConfig reads the config file if one was given, else the defaults.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	if cfgFile != "" {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// withRelay handles common config and relay setup for one-shot commands.
func withRelay(fn func(relay *app.App, log *zap.Logger) error) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	relay, err := app.FromConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("building relay: %w", err)
	}

	return fn(relay, log)
}
