package metrics

import (
	"context"
	"time"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
)

// MetricRecorder is an abstract interface for recording migration, batch and
// rollback metrics. It decouples the engine from the metrics backend
// (Prometheus in this repository, but any backend can implement it).
type MetricRecorder interface {
	// RecordMigrationStart records the start of a migration job.
	RecordMigrationStart(ctx context.Context, job *model.MigrationJob)

	// RecordMigrationEnd records the terminal state of a migration job.
	RecordMigrationEnd(ctx context.Context, job *model.MigrationJob)

	// RecordBatch records one completed batch result.
	RecordBatch(ctx context.Context, migrationID string, result model.BatchResult)

	// RecordBatchFailure records one failed batch.
	RecordBatchFailure(ctx context.Context, migrationID string, batchNumber int)

	// RecordRollbackEnd records the terminal state of a rollback execution.
	RecordRollbackEnd(ctx context.Context, execution *model.RollbackExecution)

	// RecordRollbackStep records one executed rollback step.
	RecordRollbackStep(ctx context.Context, rollbackID string, step model.RollbackStepResult)

	// RecordDuration records the elapsed time of a named operation with
	// optional tags.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
