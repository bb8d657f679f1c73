// Package orchestrator owns the migration lifecycle: creating jobs,
// executing them through the batch processor, the pause/resume/cancel
// control protocol, and writing terminal states to the ledger. It is the
// only component that transitions job status; the processor reports
// outcomes and the orchestrator applies them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	metrics "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/metrics"
	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	"github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/engine/processor"
	"github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/engine/validator"
	exception "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/exception"
	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

const moduleName = "orchestrator"

// Orchestrator coordinates migration jobs end to end.
type Orchestrator struct {
	registry *Registry
	store    port.ActivityStore
	configs  port.ConfigurationService
	proc     *processor.Processor
	ledger   port.LedgerRepository
	notifier port.ProgressNotifier
	validate *validator.Validator
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
}

// NewOrchestrator creates an Orchestrator with the given collaborators.
func NewOrchestrator(
	registry *Registry,
	store port.ActivityStore,
	configs port.ConfigurationService,
	proc *processor.Processor,
	ledger port.LedgerRepository,
	notifier port.ProgressNotifier,
	validate *validator.Validator,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		store:    store,
		configs:  configs,
		proc:     proc,
		ledger:   ledger,
		notifier: notifier,
		validate: validate,
		recorder: recorder,
		tracer:   tracer,
	}
}

// CreateMigration validates the inputs, counts the subject's source records
// and registers a new PENDING job. A subject with no records still yields a
// valid job with zero totals; an unknown configuration is a validation
// error.
func (o *Orchestrator) CreateMigration(ctx context.Context, subjectID, configurationID string, batchSize int) (*model.MigrationJob, error) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, exception.NewValidationError(moduleName, "subject id must not be empty", nil)
	}
	if strings.TrimSpace(configurationID) == "" {
		return nil, exception.NewValidationError(moduleName, "configuration id must not be empty", nil)
	}

	if _, err := o.configs.GetConfiguration(ctx, configurationID); err != nil {
		if errors.Is(err, port.ErrConfigurationNotFound) {
			return nil, exception.NewValidationError(moduleName,
				fmt.Sprintf("configuration %s does not exist", configurationID), err)
		}
		return nil, exception.NewInfrastructureError(moduleName,
			fmt.Sprintf("failed to resolve configuration %s", configurationID), err)
	}

	count, err := o.store.GetRecordCount(ctx, subjectID)
	if err != nil {
		return nil, exception.NewInfrastructureError(moduleName,
			fmt.Sprintf("failed to count records for subject %s", subjectID), err)
	}

	job := model.NewMigrationJob(subjectID, configurationID, count, batchSize)
	if count == 0 {
		logger.Infof("Migration %s: subject %s has no records; job will complete as an empty no-op.",
			job.MigrationID, subjectID)
	}

	o.registry.Register(job)
	logger.Infof("Created migration %s for subject %s: %d records in %d batches of %d.",
		job.MigrationID, subjectID, count, job.TotalBatches, batchSize)
	return job, nil
}

// ExecuteMigration runs (or resumes) a registered migration to a stopping
// point: completion, failure, cancellation or a pause boundary. Partial
// per-record failures do not prevent completion; infrastructure failures
// mark the job FAILED. Whatever happens, the job is never left RUNNING when
// this method returns.
func (o *Orchestrator) ExecuteMigration(ctx context.Context, migrationID string) (*model.MigrationJob, error) {
	job, ok := o.registry.Get(migrationID)
	if !ok {
		return nil, exception.NewValidationError(moduleName,
			fmt.Sprintf("migration %s is not registered", migrationID), port.ErrMigrationNotFound)
	}

	cfg, err := o.configs.GetConfiguration(ctx, job.ConfigurationID)
	if err != nil {
		return job, exception.NewInfrastructureError(moduleName,
			fmt.Sprintf("failed to resolve configuration %s", job.ConfigurationID), err)
	}

	if o.tracer != nil {
		var finish func()
		ctx, finish = o.tracer.StartMigrationSpan(ctx, job)
		defer finish()
	}

	resuming := job.Status == model.MigrationStatusPaused
	if err := job.MarkAsRunning(); err != nil {
		return job, exception.NewValidationError(moduleName,
			fmt.Sprintf("migration %s cannot start from state %s", migrationID, job.Status), err)
	}
	if o.recorder != nil && !resuming {
		o.recorder.RecordMigrationStart(ctx, job)
	}

	// Safety net: no exit path may leave the job RUNNING.
	defer func() {
		if job.Status == model.MigrationStatusRunning {
			logger.Errorf("Migration %s left RUNNING on exit; forcing FAILED.", migrationID)
			_ = job.MarkAsFailed(fmt.Errorf("execution ended without a terminal transition"))
			o.persistTerminal(ctx, job)
		}
	}()

	startMsg := fmt.Sprintf("migration started: %d records in up to %d batches", job.TotalRecords, job.TotalBatches)
	if resuming {
		startMsg = fmt.Sprintf("migration resumed from batch %d", job.CurrentBatch)
	}
	o.notify(ctx, model.NewProgressEvent(job, model.EventMigrationStarted, job.CurrentBatch, startMsg))

	outcome, procErr := o.proc.Process(ctx, job, *cfg, o.registry.Signal)
	if procErr != nil {
		if exception.IsConcurrency(procErr) {
			// The run never started; park the job so it can be retried.
			_ = job.TransitionTo(model.MigrationStatusPaused)
			return job, procErr
		}
		if markErr := job.MarkAsFailed(procErr); markErr != nil {
			logger.Errorf("Migration %s: failed to mark FAILED: %v", migrationID, markErr)
		}
		o.persistTerminal(ctx, job)
		o.notify(ctx, model.NewProgressEvent(job, model.EventMigrationFailed, job.CurrentBatch,
			exception.ExtractErrorMessage(procErr)))
		return job, procErr
	}

	switch outcome {
	case processor.OutcomePaused:
		if err := job.TransitionTo(model.MigrationStatusPaused); err != nil {
			return job, err
		}
		logger.Infof("Migration %s paused after %d/%d records.", migrationID, job.ProcessedRecords, job.TotalRecords)
		return job, nil

	case processor.OutcomeCancelled:
		if err := job.MarkAsCancelled(); err != nil {
			return job, err
		}
		o.persistTerminal(ctx, job)
		logger.Infof("Migration %s cancelled after %d/%d records.", migrationID, job.ProcessedRecords, job.TotalRecords)
		return job, nil

	default:
		if gateErr := o.integrityGate(ctx, job); gateErr != nil {
			if markErr := job.MarkAsFailed(gateErr); markErr != nil {
				logger.Errorf("Migration %s: failed to mark FAILED: %v", migrationID, markErr)
			}
			o.persistTerminal(ctx, job)
			o.notify(ctx, model.NewProgressEvent(job, model.EventMigrationFailed, job.CurrentBatch,
				exception.ExtractErrorMessage(gateErr)))
			return job, gateErr
		}
		if err := job.MarkAsCompleted(); err != nil {
			return job, err
		}
		o.persistTerminal(ctx, job)
		o.notify(ctx, model.NewProgressEvent(job, model.EventMigrationCompleted, job.CurrentBatch,
			fmt.Sprintf("migration completed: %d succeeded, %d failed", job.SuccessfulRecords, job.FailedRecords)))
		logger.Infof("Migration %s completed: %d/%d records, %d failures.",
			migrationID, job.ProcessedRecords, job.TotalRecords, job.FailedRecords)
		return job, nil
	}
}

// PauseMigration requests a pause at the next batch boundary. It reports
// whether the request was accepted (the job exists and is running).
func (o *Orchestrator) PauseMigration(migrationID string) bool {
	accepted := o.registry.RequestPause(migrationID)
	if accepted {
		logger.Infof("Pause requested for migration %s.", migrationID)
	}
	return accepted
}

// ResumeMigration clears a pause and re-executes the job from its saved
// position. Only PAUSED jobs can resume.
func (o *Orchestrator) ResumeMigration(ctx context.Context, migrationID string) (*model.MigrationJob, error) {
	job, ok := o.registry.Get(migrationID)
	if !ok {
		return nil, exception.NewValidationError(moduleName,
			fmt.Sprintf("migration %s is not registered", migrationID), port.ErrMigrationNotFound)
	}
	if job.Status != model.MigrationStatusPaused {
		return job, exception.NewValidationError(moduleName,
			fmt.Sprintf("migration %s is %s, not PAUSED", migrationID, job.Status), nil)
	}
	o.registry.ClearPause(migrationID)
	return o.ExecuteMigration(ctx, migrationID)
}

// CancelMigration requests cancellation. A running job stops at the next
// batch boundary; a PENDING or PAUSED job is cancelled immediately. It
// reports whether the request was accepted.
func (o *Orchestrator) CancelMigration(ctx context.Context, migrationID string) bool {
	job, ok := o.registry.Get(migrationID)
	if !ok {
		return false
	}
	if !o.registry.RequestCancel(migrationID) {
		return false
	}
	// Jobs not currently draining have no boundary to observe the flag at.
	if job.Status == model.MigrationStatusPending || job.Status == model.MigrationStatusPaused {
		if err := job.MarkAsCancelled(); err != nil {
			logger.Errorf("Migration %s: cancel transition failed: %v", migrationID, err)
			return false
		}
		o.persistTerminal(ctx, job)
	}
	logger.Infof("Cancel requested for migration %s.", migrationID)
	return true
}

// GetMigrationStatus returns the job for a migration id, consulting the
// registry first and falling back to the ledger for historical jobs.
func (o *Orchestrator) GetMigrationStatus(ctx context.Context, migrationID string) (*model.MigrationJob, error) {
	if job, ok := o.registry.Get(migrationID); ok {
		return job, nil
	}
	job, err := o.ledger.FindMigrationByID(ctx, migrationID)
	if err != nil {
		if errors.Is(err, port.ErrMigrationNotFound) {
			return nil, exception.NewValidationError(moduleName,
				fmt.Sprintf("migration %s not found", migrationID), err)
		}
		return nil, exception.NewInfrastructureError(moduleName,
			fmt.Sprintf("failed to load migration %s from ledger", migrationID), err)
	}
	return job, nil
}

// ListActiveMigrations returns the registered jobs.
func (o *Orchestrator) ListActiveMigrations() []*model.MigrationJob {
	return o.registry.List()
}

// integrityGate runs standard-level validation over the subject's derived
// records before a migration may complete. A failed validation, whether an
// infrastructure failure or invalid records, returns an integrity error;
// integrity errors are never downgraded and block completion.
func (o *Orchestrator) integrityGate(ctx context.Context, job *model.MigrationJob) error {
	if o.validate == nil {
		return nil
	}
	result, err := o.validate.Validate(ctx,
		port.DerivedFilter{SubjectID: job.SubjectID}, validator.LevelStandard, nil)
	if err != nil {
		return exception.NewIntegrityError(moduleName,
			fmt.Sprintf("integrity validation could not run for migration %s", job.MigrationID), err)
	}
	if !result.IsValid {
		detail := fmt.Sprintf("%d of %d derived records failed validation", result.FailedCount, result.ValidatedCount)
		if len(result.Errors) > 0 {
			detail = fmt.Sprintf("%s; first: %s", detail, result.Errors[0])
		}
		logger.Errorf("Migration %s blocked by integrity validation: %s", job.MigrationID, detail)
		return exception.NewIntegrityError(moduleName, detail, nil)
	}
	logger.Infof("Migration %s passed integrity validation over %d derived records.",
		job.MigrationID, result.ValidatedCount)
	return nil
}

// persistTerminal writes the job's terminal state to the ledger and records
// the end-of-migration metric. Ledger failures are logged but do not alter
// the job's outcome.
func (o *Orchestrator) persistTerminal(ctx context.Context, job *model.MigrationJob) {
	if o.ledger != nil {
		if err := o.ledger.SaveMigration(ctx, job); err != nil {
			logger.Errorf("Migration %s: ledger write failed: %v", job.MigrationID, err)
		}
	}
	if o.recorder != nil {
		o.recorder.RecordMigrationEnd(ctx, job)
	}
}

func (o *Orchestrator) notify(ctx context.Context, event model.ProgressEvent) {
	if o.notifier == nil {
		return
	}
	o.notifier.Notify(ctx, event)
}
