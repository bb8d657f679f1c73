package metrics

import (
	"context"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
)

// Tracer is an abstract interface for distributed tracing of migration and
// rollback execution. Span start methods return the derived context and a
// finish function to be deferred by the caller.
type Tracer interface {
	// StartMigrationSpan starts a span covering one migration execution.
	StartMigrationSpan(ctx context.Context, job *model.MigrationJob) (context.Context, func())
	// StartBatchSpan starts a span covering one batch execution.
	StartBatchSpan(ctx context.Context, migrationID string, batchNumber int) (context.Context, func())
	// StartRollbackSpan starts a span covering one rollback execution.
	StartRollbackSpan(ctx context.Context, execution *model.RollbackExecution) (context.Context, func())
	// RecordError records an error in the current span.
	RecordError(ctx context.Context, module string, err error)
}

// NoopTracer is a Tracer that does nothing.
type NoopTracer struct{}

// NewNoopTracer creates a new NoopTracer.
func NewNoopTracer() Tracer {
	return &NoopTracer{}
}

func (t *NoopTracer) StartMigrationSpan(ctx context.Context, job *model.MigrationJob) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoopTracer) StartBatchSpan(ctx context.Context, migrationID string, batchNumber int) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoopTracer) StartRollbackSpan(ctx context.Context, execution *model.RollbackExecution) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoopTracer) RecordError(ctx context.Context, module string, err error) {}

var _ Tracer = (*NoopTracer)(nil)
