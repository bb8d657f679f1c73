package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsWithoutYAML(t *testing.T) {
	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Migration.Processor.BatchSize)
	assert.Equal(t, 4, cfg.Migration.Processor.MaxParallelBatches)
	assert.Equal(t, StrategyAdaptive, cfg.Migration.Processor.Strategy)
	assert.Equal(t, 10, cfg.Migration.Processor.AutoGCFrequency)
	assert.Equal(t, 70.0, cfg.Migration.Processor.MemoryLimitThresholdPercent)
	assert.Equal(t, "default", cfg.Migration.DatabaseRef)
}

func TestYAMLOverlaysDefaults(t *testing.T) {
	yamlDoc := []byte(`
migration:
  processor:
    batch_size: 500
    strategy: memory_optimized
  backup:
    base_dir: /var/backups/acwr
    export_parquet: true
  logging:
    level: DEBUG
  database_ref: analytics
database:
  analytics:
    type: postgres
    host: db.internal
`)
	cfg, err := LoadConfig("", yamlDoc)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Migration.Processor.BatchSize)
	assert.Equal(t, StrategyMemoryOptimized, cfg.Migration.Processor.Strategy)
	// Untouched keys keep their defaults.
	assert.Equal(t, 4, cfg.Migration.Processor.MaxParallelBatches)
	assert.Equal(t, "/var/backups/acwr", cfg.Migration.Backup.BaseDir)
	assert.True(t, cfg.Migration.Backup.ExportParquet)
	assert.Equal(t, "DEBUG", cfg.Migration.Logging.Level)
	assert.Equal(t, "analytics", cfg.Migration.DatabaseRef)
	assert.Contains(t, cfg.Database, "analytics")
}

func TestEnvOverridesWinOverYAML(t *testing.T) {
	t.Setenv("MIGRATION_BATCH_SIZE", "250")
	t.Setenv("MIGRATION_STRATEGY", "sequential")
	t.Setenv("MIGRATION_DATABASE_REF", "replica")

	yamlDoc := []byte(`
migration:
  processor:
    batch_size: 500
`)
	cfg, err := LoadConfig("", yamlDoc)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.Migration.Processor.BatchSize)
	assert.Equal(t, StrategySequential, cfg.Migration.Processor.Strategy)
	assert.Equal(t, "replica", cfg.Migration.DatabaseRef)
}

func TestInvalidEnvOverrideIsIgnored(t *testing.T) {
	t.Setenv("MIGRATION_BATCH_SIZE", "not-a-number")
	t.Setenv("MIGRATION_MAX_PARALLEL_BATCHES", "-3")

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Migration.Processor.BatchSize)
	assert.Equal(t, 4, cfg.Migration.Processor.MaxParallelBatches)
}

func TestMalformedYAMLIsAnError(t *testing.T) {
	_, err := LoadConfig("", []byte("migration: [not a mapping"))
	assert.Error(t, err)
}
