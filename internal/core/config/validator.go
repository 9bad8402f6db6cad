package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateRemote(cfg *Config) error {
	if cfg.Remote.Rate < 0 {
		return fmt.Errorf("remote.rate must be >= 0, got %v", cfg.Remote.Rate)
	}
	if cfg.Remote.Burst < 1 {
		return fmt.Errorf("remote.burst must be >= 1, got %d", cfg.Remote.Burst)
	}
	if cfg.Remote.CacheSize < 1 {
		return fmt.Errorf("remote.cache_size must be >= 1, got %d", cfg.Remote.CacheSize)
	}
	return nil
}

func validateExclude(cfg *Config) error {
	for _, pattern := range cfg.Exclude.Dirs {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid exclude dir pattern %q: %w", pattern, err)
		}
	}
	for _, pattern := range cfg.Exclude.Files {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("invalid exclude file pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validateDatabase(cfg *Config) error {
	if cfg.DB.Enabled && strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty when db.enabled=true")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	if cfg.Observability.SampleRate < 0 || cfg.Observability.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be between 0 and 1, got %v", cfg.Observability.SampleRate)
	}
	return nil
}
