package config

import (
	"context"
	"fmt"
	"log/slog"
)

// Initialize loads, merges-with-defaults, and validates the engine
// configuration found at configPath. This is the primary entry point used
// by cmd/latticed.
func Initialize(ctx context.Context, configPath string) (*Config, error) {
	log := slog.With("config_path", configPath)
	log.Info("loading configuration")

	cfg, err := load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	mergeDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration loaded", "agent_types", len(cfg.Agents))
	return cfg, nil
}
