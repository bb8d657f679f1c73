package config

// Package config provides structures and utilities for managing the
// migration engine's configuration.

// ProcessingStrategy names one of the batch processing strategies.
type ProcessingStrategy string

const (
	StrategySequential           ProcessingStrategy = "sequential"
	StrategyParallel             ProcessingStrategy = "parallel"
	StrategyAdaptive             ProcessingStrategy = "adaptive"
	StrategyMemoryOptimized      ProcessingStrategy = "memory_optimized"
	StrategyPerformanceOptimized ProcessingStrategy = "performance_optimized"
)

// ProcessorConfig holds batch processor tuning.
type ProcessorConfig struct {
	// BatchSize is the configured number of records per batch.
	BatchSize int `yaml:"batch_size"`
	// MaxParallelBatches bounds in-flight batches under parallel strategies.
	// The performance-optimized strategy doubles this.
	MaxParallelBatches int `yaml:"max_parallel_batches"`
	// Strategy selects the processing strategy.
	Strategy ProcessingStrategy `yaml:"strategy"`
	// AutoGCFrequency triggers a garbage collection every N completed batches.
	AutoGCFrequency int `yaml:"auto_gc_frequency"`
	// MemoryLimitThresholdPercent is the memory pressure above which
	// concurrent batch submission is limited.
	MemoryLimitThresholdPercent float64 `yaml:"memory_limit_threshold_percent"`
	// AdaptiveWarmupBatches is the number of completed batches required
	// before the adaptive strategy may go parallel.
	AdaptiveWarmupBatches int `yaml:"adaptive_warmup_batches"`
}

// ResourceConfig holds resource monitor tuning.
type ResourceConfig struct {
	// SampleIntervalSeconds is the sampling period of the monitor.
	SampleIntervalSeconds int `yaml:"sample_interval_seconds"`
	// SampleBufferSize caps the rolling sample buffer; oldest samples are
	// evicted first.
	SampleBufferSize int `yaml:"sample_buffer_size"`
	// SampleDisk enables disk usage sampling in addition to CPU and memory.
	SampleDisk bool `yaml:"sample_disk"`
	// DiskPath is the mount point sampled when SampleDisk is enabled.
	DiskPath string `yaml:"disk_path"`
}

// BackupConfig holds rollback backup store settings.
type BackupConfig struct {
	// BaseDir is the directory of the local backup blob store.
	BaseDir string `yaml:"base_dir"`
	// ExportParquet additionally writes each backup snapshot as a parquet
	// file for offline audit.
	ExportParquet bool `yaml:"export_parquet"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g. "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// MigrationConfig groups all engine settings under the "migration" key.
type MigrationConfig struct {
	Processor ProcessorConfig `yaml:"processor"`
	Resource  ResourceConfig  `yaml:"resource"`
	Backup    BackupConfig    `yaml:"backup"`
	Logging   LoggingConfig   `yaml:"logging"`
	// DatabaseRef names the database connection used by the gorm-backed
	// stores (key into the Database map). The special value "memory" selects
	// the in-memory stores instead.
	DatabaseRef string `yaml:"database_ref"`
}

// Config is the root structure for the whole application configuration.
type Config struct {
	Migration MigrationConfig `yaml:"migration"`
	// Database holds named database connection configurations, decoded per
	// adapter via mapstructure.
	Database map[string]interface{} `yaml:"database"`
}

// NewConfig returns a Config populated with defaults. Defaults mirror the
// engine's documented behavior: 1000-record batches, 4 parallel batches,
// GC every 10 batches, 1s resource sampling with a 1000-sample buffer.
func NewConfig() *Config {
	return &Config{
		Migration: MigrationConfig{
			Processor: ProcessorConfig{
				BatchSize:                   1000,
				MaxParallelBatches:          4,
				Strategy:                    StrategyAdaptive,
				AutoGCFrequency:             10,
				MemoryLimitThresholdPercent: 70.0,
				AdaptiveWarmupBatches:       10,
			},
			Resource: ResourceConfig{
				SampleIntervalSeconds: 1,
				SampleBufferSize:      1000,
				SampleDisk:            false,
				DiskPath:              "/",
			},
			Backup: BackupConfig{
				BaseDir:       "./rollback-backups",
				ExportParquet: false,
			},
			Logging: LoggingConfig{
				Level: "INFO",
			},
			DatabaseRef: "default",
		},
		Database: make(map[string]interface{}),
	}
}
