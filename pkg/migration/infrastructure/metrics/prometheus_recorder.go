// Package metrics provides the Prometheus and OpenTelemetry implementations
// of the engine's metrics and tracing ports.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	metrics "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/metrics"
	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the
// metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Migration metrics
	migrationDurationSeconds *prometheus.HistogramVec
	migrationStatusCounter   *prometheus.CounterVec
	migrationRecordsCounter  *prometheus.CounterVec

	// Batch metrics
	batchDurationSeconds *prometheus.HistogramVec
	batchRecordsCounter  *prometheus.CounterVec
	batchFailureCounter  *prometheus.CounterVec

	// Rollback metrics
	rollbackDurationSeconds *prometheus.HistogramVec
	rollbackStatusCounter   *prometheus.CounterVec
	rollbackStepCounter     *prometheus.CounterVec
	rollbackRecordsCounter  *prometheus.CounterVec

	// Generic operation durations
	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		migrationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acwr_migration_duration_seconds",
			Help:    "Duration of migration job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		migrationStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acwr_migration_status_total",
			Help: "Total number of migration jobs by status.",
		}, []string{"status"}),
		migrationRecordsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acwr_migration_records_total",
			Help: "Total records processed by finished migrations, by outcome.",
		}, []string{"outcome"}), // outcome: success, failure
		batchDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acwr_batch_duration_seconds",
			Help:    "Duration of batch executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{}),
		batchRecordsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acwr_batch_records_total",
			Help: "Total records processed by batches, by outcome.",
		}, []string{"outcome"}), // outcome: success, failure
		batchFailureCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acwr_batch_failure_total",
			Help: "Total number of failed batches.",
		}, []string{}),
		rollbackDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acwr_rollback_duration_seconds",
			Help:    "Duration of rollback executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"scope", "status"}),
		rollbackStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acwr_rollback_status_total",
			Help: "Total number of rollback executions by scope and status.",
		}, []string{"scope", "status"}),
		rollbackStepCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acwr_rollback_step_total",
			Help: "Total number of executed rollback steps by kind and outcome.",
		}, []string{"kind", "outcome"}), // outcome: success, failure
		rollbackRecordsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acwr_rollback_records_total",
			Help: "Total records affected by completed rollbacks.",
		}, []string{"scope"}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acwr_operation_duration_seconds",
			Help:    "Duration of named engine operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	registry.MustRegister(r.migrationDurationSeconds)
	registry.MustRegister(r.migrationStatusCounter)
	registry.MustRegister(r.migrationRecordsCounter)
	registry.MustRegister(r.batchDurationSeconds)
	registry.MustRegister(r.batchRecordsCounter)
	registry.MustRegister(r.batchFailureCounter)
	registry.MustRegister(r.rollbackDurationSeconds)
	registry.MustRegister(r.rollbackStatusCounter)
	registry.MustRegister(r.rollbackStepCounter)
	registry.MustRegister(r.rollbackRecordsCounter)
	registry.MustRegister(r.operationDurationSeconds)

	return r
}

// GetRegistry returns the Prometheus registry for exposition.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordMigrationStart records the start of a migration job.
func (r *PrometheusRecorder) RecordMigrationStart(ctx context.Context, job *model.MigrationJob) {
	r.migrationStatusCounter.WithLabelValues(job.Status.String()).Inc()
	logger.Debugf("Metrics: Migration '%s' started.", job.MigrationID)
}

// RecordMigrationEnd records the terminal state of a migration job.
func (r *PrometheusRecorder) RecordMigrationEnd(ctx context.Context, job *model.MigrationJob) {
	r.migrationStatusCounter.WithLabelValues(job.Status.String()).Inc()
	r.migrationRecordsCounter.WithLabelValues("success").Add(float64(job.SuccessfulRecords))
	r.migrationRecordsCounter.WithLabelValues("failure").Add(float64(job.FailedRecords))

	if job.CompletedAt == nil {
		return
	}
	duration := job.CompletedAt.Sub(job.StartedAt).Seconds()
	r.migrationDurationSeconds.WithLabelValues(job.Status.String()).Observe(duration)
	logger.Debugf("Metrics: Migration '%s' ended with %s. Duration: %.3fs", job.MigrationID, job.Status, duration)
}

// RecordBatch records one completed batch result.
func (r *PrometheusRecorder) RecordBatch(ctx context.Context, migrationID string, result model.BatchResult) {
	r.batchDurationSeconds.WithLabelValues().Observe(result.ProcessingTime.Seconds())
	r.batchRecordsCounter.WithLabelValues("success").Add(float64(result.Successful))
	r.batchRecordsCounter.WithLabelValues("failure").Add(float64(result.Failed))
}

// RecordBatchFailure records one failed batch.
func (r *PrometheusRecorder) RecordBatchFailure(ctx context.Context, migrationID string, batchNumber int) {
	r.batchFailureCounter.WithLabelValues().Inc()
}

// RecordRollbackEnd records the terminal state of a rollback execution.
func (r *PrometheusRecorder) RecordRollbackEnd(ctx context.Context, execution *model.RollbackExecution) {
	scope := execution.Scope.String()
	r.rollbackStatusCounter.WithLabelValues(scope, string(execution.Status)).Inc()
	if execution.Success {
		r.rollbackRecordsCounter.WithLabelValues(scope).Add(float64(execution.TotalAffectedRecords))
	}
	if execution.EndedAt == nil {
		return
	}
	duration := execution.EndedAt.Sub(execution.StartedAt).Seconds()
	r.rollbackDurationSeconds.WithLabelValues(scope, string(execution.Status)).Observe(duration)
	logger.Debugf("Metrics: Rollback '%s' ended with %s. Duration: %.3fs", execution.RollbackID, execution.Status, duration)
}

// RecordRollbackStep records one executed rollback step.
func (r *PrometheusRecorder) RecordRollbackStep(ctx context.Context, rollbackID string, step model.RollbackStepResult) {
	outcome := "failure"
	if step.Success {
		outcome = "success"
	}
	r.rollbackStepCounter.WithLabelValues(string(step.Kind), outcome).Inc()
}

// RecordDuration records the elapsed time of a named operation. Tags beyond
// the operation name are not mapped to labels; a fixed label set keeps the
// cardinality bounded.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationSeconds.WithLabelValues(name).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
