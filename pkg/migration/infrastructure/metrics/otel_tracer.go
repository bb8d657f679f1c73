package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	metrics "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/metrics"
	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
)

const tracerName = "acwr.migration"

// OTelTracer is an OpenTelemetry implementation of the metrics.Tracer
// interface. It uses the globally registered tracer provider; without one
// the spans are no-ops, so it is safe to wire unconditionally.
type OTelTracer struct{}

// NewOTelTracer creates a new OTelTracer.
func NewOTelTracer() *OTelTracer {
	return &OTelTracer{}
}

var _ metrics.Tracer = (*OTelTracer)(nil)

func (t *OTelTracer) StartMigrationSpan(ctx context.Context, job *model.MigrationJob) (context.Context, func()) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "migration.execute",
		trace.WithAttributes(
			attribute.String("migration.id", job.MigrationID),
			attribute.String("migration.subject_id", job.SubjectID),
			attribute.String("migration.configuration_id", job.ConfigurationID),
			attribute.Int("migration.total_records", job.TotalRecords),
			attribute.Int("migration.batch_size", job.BatchSize),
		))
	return ctx, func() {
		span.SetAttributes(
			attribute.String("migration.status", job.Status.String()),
			attribute.Int("migration.processed_records", job.ProcessedRecords),
			attribute.Int("migration.failed_records", job.FailedRecords),
		)
		span.End()
	}
}

func (t *OTelTracer) StartBatchSpan(ctx context.Context, migrationID string, batchNumber int) (context.Context, func()) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "migration.batch",
		trace.WithAttributes(
			attribute.String("migration.id", migrationID),
			attribute.Int("batch.number", batchNumber),
		))
	return ctx, func() { span.End() }
}

func (t *OTelTracer) StartRollbackSpan(ctx context.Context, execution *model.RollbackExecution) (context.Context, func()) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "rollback.execute",
		trace.WithAttributes(
			attribute.String("rollback.id", execution.RollbackID),
			attribute.String("rollback.migration_id", execution.MigrationID),
			attribute.String("rollback.scope", execution.Scope.String()),
		))
	return ctx, func() {
		span.SetAttributes(
			attribute.String("rollback.status", string(execution.Status)),
			attribute.Int("rollback.affected_records", execution.TotalAffectedRecords),
			attribute.Bool("rollback.verification_passed", execution.VerificationPassed),
		)
		span.End()
	}
}

func (t *OTelTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}
