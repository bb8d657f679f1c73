package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
)

// setupSpanRecorder installs a recording tracer provider globally for the
// duration of the test.
func setupSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func attributeValue(t *testing.T, span sdktrace.ReadOnlySpan, key string) string {
	t.Helper()
	for _, attr := range span.Attributes() {
		if string(attr.Key) == key {
			return attr.Value.Emit()
		}
	}
	t.Fatalf("span %s has no attribute %s", span.Name(), key)
	return ""
}

func TestBatchSpanEndsOnFinish(t *testing.T) {
	recorder := setupSpanRecorder(t)
	tracer := NewOTelTracer()

	_, finish := tracer.StartBatchSpan(context.Background(), "mig-1", 3)
	assert.Empty(t, recorder.Ended(), "span must stay open until finish is called")

	finish()
	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "migration.batch", ended[0].Name())
	assert.Equal(t, "3", attributeValue(t, ended[0], "batch.number"))
}

func TestMigrationSpanCarriesTerminalStatus(t *testing.T) {
	recorder := setupSpanRecorder(t)
	tracer := NewOTelTracer()

	job := model.NewMigrationJob("subj-a", "cfg-1", 100, 10)
	require.NoError(t, job.MarkAsRunning())

	_, finish := tracer.StartMigrationSpan(context.Background(), job)
	job.SuccessfulRecords = 100
	job.ProcessedRecords = 100
	require.NoError(t, job.MarkAsCompleted())
	finish()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "migration.execute", ended[0].Name())
	// The finish closure snapshots the job after execution, not at start.
	assert.Equal(t, "COMPLETED", attributeValue(t, ended[0], "migration.status"))
	assert.Equal(t, "100", attributeValue(t, ended[0], "migration.processed_records"))
}

func TestRollbackSpanEndsOnFinish(t *testing.T) {
	recorder := setupSpanRecorder(t)
	tracer := NewOTelTracer()

	exec := &model.RollbackExecution{
		RollbackID:  "rb-1",
		MigrationID: "mig-1",
		Scope:       model.RollbackScopeUserMigration,
		Status:      model.RollbackStatusPending,
	}
	_, finish := tracer.StartRollbackSpan(context.Background(), exec)
	exec.Status = model.RollbackStatusCompleted
	exec.VerificationPassed = true
	finish()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "rollback.execute", ended[0].Name())
	assert.Equal(t, "COMPLETED", attributeValue(t, ended[0], "rollback.status"))
}

func TestRecordErrorMarksActiveSpan(t *testing.T) {
	recorder := setupSpanRecorder(t)
	tracer := NewOTelTracer()

	ctx, finish := tracer.StartBatchSpan(context.Background(), "mig-1", 1)
	tracer.RecordError(ctx, "processor", errors.New("bulk write failed"))
	finish()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	require.NotEmpty(t, ended[0].Events())
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}

func TestRecordErrorWithoutSpanIsNoop(t *testing.T) {
	setupSpanRecorder(t)
	tracer := NewOTelTracer()

	// No span in the context; nothing to record, nothing to panic on.
	tracer.RecordError(context.Background(), "processor", errors.New("ignored"))
}
