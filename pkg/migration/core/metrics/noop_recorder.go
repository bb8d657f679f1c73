package metrics

import (
	"context"
	"time"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
)

// NoopRecorder is a MetricRecorder implementation that does nothing. It is
// the default when no metrics backend is configured.
type NoopRecorder struct{}

// NewNoopRecorder creates a new NoopRecorder.
func NewNoopRecorder() MetricRecorder {
	return &NoopRecorder{}
}

func (r *NoopRecorder) RecordMigrationStart(ctx context.Context, job *model.MigrationJob) {}
func (r *NoopRecorder) RecordMigrationEnd(ctx context.Context, job *model.MigrationJob)   {}
func (r *NoopRecorder) RecordBatch(ctx context.Context, migrationID string, result model.BatchResult) {
}
func (r *NoopRecorder) RecordBatchFailure(ctx context.Context, migrationID string, batchNumber int) {}
func (r *NoopRecorder) RecordRollbackEnd(ctx context.Context, execution *model.RollbackExecution)   {}
func (r *NoopRecorder) RecordRollbackStep(ctx context.Context, rollbackID string, step model.RollbackStepResult) {
}
func (r *NoopRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoopRecorder)(nil)
