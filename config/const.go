package config

import "time"

// DefaultServerPort is the default port for the PCMM HTTP server.
const DefaultServerPort = 2243

// DefaultEnvironmentsFile is read when neither --config nor PCMM_CONFIG is set.
const DefaultEnvironmentsFile = "pcmm.yaml"

const (
	// DefaultBatchSize is the number of documents sent in one insert.
	DefaultBatchSize = 200
	MaxBatchSize     = 100_000

	// DefaultNumParallelCollections bounds the collections copied at once in whole-database mode.
	DefaultNumParallelCollections = 2
	MaxNumParallelCollections     = 64
)

const (
	DefaultMongoDBOperationTimeout = 5 * time.Minute
	DefaultMongoDBConnectTimeout   = 30 * time.Second

	// DisconnectTimeout bounds closing a client after the operation context is gone.
	DisconnectTimeout = 5 * time.Second
)

// Secret providers.
const (
	SecretsProviderAWS = "aws"
	SecretsProviderEnv = "env"
)
