package config

import (
	"github.com/percona/percona-collection-migrator/errors"
)

// Validate validates the Config for value ranges. Zero port means the default.
func Validate(cfg *Config) error {
	port := cfg.Port
	if port == 0 {
		port = DefaultServerPort
	}

	if port <= 1024 || port > 65535 {
		return errors.New("port value is outside the supported range [1024 - 65535]")
	}

	if cfg.Copy.BatchSize < 1 || cfg.Copy.BatchSize > MaxBatchSize {
		return errors.Errorf("batch size %d is outside the supported range [1 - %d]",
			cfg.Copy.BatchSize, MaxBatchSize)
	}

	if cfg.Copy.NumParallelCollections < 1 ||
		cfg.Copy.NumParallelCollections > MaxNumParallelCollections {
		return errors.Errorf("parallel collections %d is outside the supported range [1 - %d]",
			cfg.Copy.NumParallelCollections, MaxNumParallelCollections)
	}

	if cfg.MongoDB.OperationTimeout < 0 || cfg.MongoDB.ConnectTimeout < 0 {
		return errors.New("mongodb timeouts must not be negative")
	}

	switch cfg.Secrets.Provider {
	case SecretsProviderAWS, SecretsProviderEnv:
	default:
		return errors.Errorf("unknown secrets provider %q", cfg.Secrets.Provider)
	}

	return nil
}
