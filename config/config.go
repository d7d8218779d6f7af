// Package config provides configuration management for PCMM using Viper.
package config

import (
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/percona/percona-collection-migrator/errors"
)

// Config holds all PCMM configuration.
type Config struct {
	Port int `mapstructure:"port"`

	// EnvironmentsFile is the YAML file describing the dev/qa/prod endpoints.
	EnvironmentsFile string `mapstructure:"config"`

	Log LogConfig `mapstructure:",squash"`

	MongoDB MongoDBConfig `mapstructure:",squash"`

	Copy CopyConfig `mapstructure:",squash"`

	Secrets SecretsConfig `mapstructure:",squash"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level   string `mapstructure:"log-level"`
	JSON    bool   `mapstructure:"log-json"`
	NoColor bool   `mapstructure:"log-no-color"`
}

// MongoDBConfig holds MongoDB client configuration.
type MongoDBConfig struct {
	OperationTimeout time.Duration `mapstructure:"mongodb-operation-timeout"`
	ConnectTimeout   time.Duration `mapstructure:"mongodb-connect-timeout"`
}

// CopyConfig holds document copy configuration.
type CopyConfig struct {
	// BatchSize is the number of documents per insert batch.
	BatchSize int `mapstructure:"batch-size"`
	// NumParallelCollections bounds how many collections of one database are copied at once.
	NumParallelCollections int `mapstructure:"num-parallel-collections"`
	// IncludeCollections and ExcludeCollections narrow the whole-database mode.
	IncludeCollections []string `mapstructure:"include-collections"`
	ExcludeCollections []string `mapstructure:"exclude-collections"`
}

// SecretsConfig selects where credential references are resolved.
type SecretsConfig struct {
	Provider    string `mapstructure:"secrets-provider"`
	AWSRegion   string `mapstructure:"aws-region"`
	AWSEndpoint string `mapstructure:"aws-endpoint"`
}

// Load initializes Viper and returns a validated Config.
func Load(cmd *cobra.Command) (*Config, error) {
	viper.SetEnvPrefix("PCMM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cmd.PersistentFlags() != nil {
		_ = viper.BindPFlags(cmd.PersistentFlags())
	}

	if cmd.Flags() != nil {
		_ = viper.BindPFlags(cmd.Flags())
	}

	bindEnvVars()

	var cfg Config

	err := viper.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	applyDefaults(&cfg)

	err = Validate(&cfg)
	if err != nil {
		return nil, errors.Wrap(err, "validate config")
	}

	return &cfg, nil
}

func bindEnvVars() {
	_ = viper.BindEnv("port", "PCMM_PORT")
	_ = viper.BindEnv("config", "PCMM_CONFIG")

	_ = viper.BindEnv("log-level", "PCMM_LOG_LEVEL")
	_ = viper.BindEnv("log-json", "PCMM_LOG_JSON")
	_ = viper.BindEnv("log-no-color", "PCMM_LOG_NO_COLOR", "PCMM_NO_COLOR")

	_ = viper.BindEnv("mongodb-operation-timeout", "PCMM_MONGODB_OPERATION_TIMEOUT")
	_ = viper.BindEnv("mongodb-connect-timeout", "PCMM_MONGODB_CONNECT_TIMEOUT")

	_ = viper.BindEnv("batch-size", "PCMM_BATCH_SIZE")
	_ = viper.BindEnv("num-parallel-collections", "PCMM_NUM_PARALLEL_COLLECTIONS")
	_ = viper.BindEnv("include-collections", "PCMM_INCLUDE_COLLECTIONS")
	_ = viper.BindEnv("exclude-collections", "PCMM_EXCLUDE_COLLECTIONS")

	_ = viper.BindEnv("secrets-provider", "PCMM_SECRETS_PROVIDER")
	_ = viper.BindEnv("aws-region", "PCMM_AWS_REGION", "AWS_REGION")
	_ = viper.BindEnv("aws-endpoint", "PCMM_AWS_ENDPOINT")
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = DefaultServerPort
	}

	if cfg.EnvironmentsFile == "" {
		cfg.EnvironmentsFile = DefaultEnvironmentsFile
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.MongoDB.OperationTimeout == 0 {
		cfg.MongoDB.OperationTimeout = DefaultMongoDBOperationTimeout
	}

	if cfg.MongoDB.ConnectTimeout == 0 {
		cfg.MongoDB.ConnectTimeout = DefaultMongoDBConnectTimeout
	}

	if cfg.Copy.BatchSize == 0 {
		cfg.Copy.BatchSize = DefaultBatchSize
	}

	if cfg.Copy.NumParallelCollections == 0 {
		cfg.Copy.NumParallelCollections = DefaultNumParallelCollections
	}

	if cfg.Secrets.Provider == "" {
		cfg.Secrets.Provider = SecretsProviderAWS
	}
}
