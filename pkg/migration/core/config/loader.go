package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/exception"
	"github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

const moduleName = "config"

// LoadConfig loads configuration in three layers: defaults from NewConfig,
// then the YAML document (a file path or embedded bytes), then environment
// variable overrides. A missing .env file is not an error.
func LoadConfig(envFilePath string, yamlBytes []byte) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	if len(yamlBytes) > 0 {
		var yamlConfig Config
		if err := yaml.Unmarshal(yamlBytes, &yamlConfig); err != nil {
			return nil, exception.NewInfrastructureError(moduleName, "failed to unmarshal configuration YAML", err)
		}
		mergeConfig(cfg, &yamlConfig)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadConfigFile reads the YAML document from disk and delegates to
// LoadConfig.
func LoadConfigFile(envFilePath, configPath string) (*Config, error) {
	var data []byte
	if configPath != "" {
		var err error
		data, err = os.ReadFile(configPath)
		if err != nil {
			return nil, exception.NewInfrastructureError(moduleName, "failed to read configuration file "+configPath, err)
		}
	}
	return LoadConfig(envFilePath, data)
}

// mergeConfig overlays non-zero values of src onto dst.
func mergeConfig(dst, src *Config) {
	p := &dst.Migration.Processor
	sp := src.Migration.Processor
	if sp.BatchSize != 0 {
		p.BatchSize = sp.BatchSize
	}
	if sp.MaxParallelBatches != 0 {
		p.MaxParallelBatches = sp.MaxParallelBatches
	}
	if sp.Strategy != "" {
		p.Strategy = sp.Strategy
	}
	if sp.AutoGCFrequency != 0 {
		p.AutoGCFrequency = sp.AutoGCFrequency
	}
	if sp.MemoryLimitThresholdPercent != 0 {
		p.MemoryLimitThresholdPercent = sp.MemoryLimitThresholdPercent
	}
	if sp.AdaptiveWarmupBatches != 0 {
		p.AdaptiveWarmupBatches = sp.AdaptiveWarmupBatches
	}

	r := &dst.Migration.Resource
	sr := src.Migration.Resource
	if sr.SampleIntervalSeconds != 0 {
		r.SampleIntervalSeconds = sr.SampleIntervalSeconds
	}
	if sr.SampleBufferSize != 0 {
		r.SampleBufferSize = sr.SampleBufferSize
	}
	if sr.SampleDisk {
		r.SampleDisk = true
	}
	if sr.DiskPath != "" {
		r.DiskPath = sr.DiskPath
	}

	b := &dst.Migration.Backup
	sb := src.Migration.Backup
	if sb.BaseDir != "" {
		b.BaseDir = sb.BaseDir
	}
	if sb.ExportParquet {
		b.ExportParquet = true
	}

	if src.Migration.Logging.Level != "" {
		dst.Migration.Logging.Level = src.Migration.Logging.Level
	}
	if src.Migration.DatabaseRef != "" {
		dst.Migration.DatabaseRef = src.Migration.DatabaseRef
	}
	if len(src.Database) > 0 {
		dst.Database = src.Database
	}
}

// applyEnvOverrides applies the supported environment variable overrides.
// Unparseable values are logged and ignored so a bad override cannot take
// the engine down.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MIGRATION_LOG_LEVEL"); v != "" {
		cfg.Migration.Logging.Level = v
	}
	if v := os.Getenv("MIGRATION_STRATEGY"); v != "" {
		cfg.Migration.Processor.Strategy = ProcessingStrategy(v)
	}
	if v := os.Getenv("MIGRATION_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Migration.Processor.BatchSize = n
		} else {
			logger.Warnf("Ignoring invalid MIGRATION_BATCH_SIZE '%s'.", v)
		}
	}
	if v := os.Getenv("MIGRATION_MAX_PARALLEL_BATCHES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Migration.Processor.MaxParallelBatches = n
		} else {
			logger.Warnf("Ignoring invalid MIGRATION_MAX_PARALLEL_BATCHES '%s'.", v)
		}
	}
	if v := os.Getenv("MIGRATION_BACKUP_DIR"); v != "" {
		cfg.Migration.Backup.BaseDir = v
	}
	if v := os.Getenv("MIGRATION_DATABASE_REF"); v != "" {
		cfg.Migration.DatabaseRef = v
	}
}
