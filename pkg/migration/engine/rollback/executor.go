package rollback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	metrics "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/metrics"
	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	"github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/engine/validator"
	exception "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/exception"
	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

// stepHandler executes one plan step and returns the number of records it
// affected.
type stepHandler func(ctx context.Context, sc *stepContext, step model.RollbackStep) (int, error)

// stepContext carries the per-execution state shared by step handlers.
type stepContext struct {
	plan   *model.RollbackPlan
	exec   *model.RollbackExecution
	filter port.DerivedFilter
}

// Executor applies rollback plans. A single Executor guards all executions
// with one lock, so at most one rollback runs at a time system-wide; a
// second ExecuteRollback call fails fast with a concurrency error. Cancel
// requests are honored cooperatively between steps, never mid-step.
type Executor struct {
	store    port.ActivityStore
	validate *validator.Validator
	backup   port.BackupStore
	ledger   port.LedgerRepository
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
	handlers map[model.RollbackStepKind]stepHandler

	mu       sync.Mutex
	active   bool
	activeID string
	cancel   bool
}

// NewExecutor creates an Executor with the given collaborators.
func NewExecutor(
	store port.ActivityStore,
	validate *validator.Validator,
	backup port.BackupStore,
	ledger port.LedgerRepository,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *Executor {
	e := &Executor{
		store:    store,
		validate: validate,
		backup:   backup,
		ledger:   ledger,
		recorder: recorder,
		tracer:   tracer,
	}
	e.handlers = map[model.RollbackStepKind]stepHandler{
		model.StepCreateBackup:           e.handleCreateBackup,
		model.StepValidateCurrentState:   e.handleValidateCurrentState,
		model.StepRollbackSingleBatch:    e.handleScopeDelete,
		model.StepRollbackUserMigration:  e.handleScopeDelete,
		model.StepRollbackConfiguration:  e.handleScopeDelete,
		model.StepRollbackFullSystem:     e.handleScopeDelete,
		model.StepValidateRollbackResult: e.handleValidateRollbackResult,
		model.StepUpdateMigrationStatus:  e.handleUpdateMigrationStatus,
	}
	return e
}

// stepPhase maps a step kind to the execution status active while it runs.
func stepPhase(kind model.RollbackStepKind) model.RollbackStatus {
	switch kind {
	case model.StepCreateBackup:
		return model.RollbackStatusBackingUp
	case model.StepValidateCurrentState:
		return model.RollbackStatusValidating
	case model.StepRollbackSingleBatch, model.StepRollbackUserMigration,
		model.StepRollbackConfiguration, model.StepRollbackFullSystem:
		return model.RollbackStatusExecuting
	default:
		return model.RollbackStatusVerifying
	}
}

// ExecuteRollback runs a plan's steps strictly in order. A critical step
// failure halts execution immediately in FAILED; non-critical failures are
// logged into the error log and skipped past without demoting the outcome.
// The result is written to the rollback ledger either way.
func (e *Executor) ExecuteRollback(ctx context.Context, plan *model.RollbackPlan) (*model.RollbackExecution, error) {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return nil, exception.NewConcurrencyError(moduleName,
			fmt.Sprintf("a rollback is already executing; rejecting plan %s", plan.PlanID))
	}
	exec := model.NewRollbackExecution(plan)
	e.active = true
	e.activeID = exec.RollbackID
	e.cancel = false
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.active = false
		e.activeID = ""
		e.cancel = false
		e.mu.Unlock()
	}()

	if e.tracer != nil {
		var finish func()
		ctx, finish = e.tracer.StartRollbackSpan(ctx, exec)
		defer finish()
	}

	configurationID := ""
	if plan.SnapshotJob != nil {
		configurationID = plan.SnapshotJob.ConfigurationID
	}
	sc := &stepContext{
		plan:   plan,
		exec:   exec,
		filter: scopeFilter(plan.Scope, plan.TargetSubjectID, configurationID),
	}

	logger.Infof("Rollback %s starting for migration %s (scope %s, %d steps).",
		exec.RollbackID, plan.TargetMigrationID, plan.Scope, len(plan.Steps))
	_ = exec.TransitionTo(model.RollbackStatusPreparing)

	var errLog *multierror.Error
	nonCriticalFailures := 0

	for _, step := range plan.Steps {
		if e.cancelRequested() {
			logger.Infof("Rollback %s cancelled before step %s.", exec.RollbackID, step.Kind)
			e.finish(ctx, exec, model.RollbackStatusCancelled, false)
			return exec, nil
		}

		phase := stepPhase(step.Kind)
		if phase != exec.Status {
			if err := exec.TransitionTo(phase); err != nil {
				logger.Warnf("Rollback %s: %v", exec.RollbackID, err)
			}
		}

		result := e.runStep(ctx, sc, step)
		exec.Steps = append(exec.Steps, result)
		exec.TotalAffectedRecords += result.AffectedRecords
		if e.recorder != nil {
			e.recorder.RecordRollbackStep(ctx, exec.RollbackID, result)
		}

		if result.Success {
			continue
		}

		stepErr := fmt.Errorf("step %s failed: %s", step.Kind, result.ErrorMessage)
		errLog = multierror.Append(errLog, stepErr)
		exec.ErrorLog = append(exec.ErrorLog, stepErr.Error())

		if step.Critical {
			logger.Errorf("Rollback %s: critical %v; halting.", exec.RollbackID, stepErr)
			e.finish(ctx, exec, model.RollbackStatusFailed, false)
			return exec, exception.New(exception.KindBatchExecution, moduleName,
				fmt.Sprintf("rollback %s halted at critical step %s", exec.RollbackID, step.Kind), errLog.ErrorOrNil())
		}
		nonCriticalFailures++
		logger.Warnf("Rollback %s: non-critical %v; continuing.", exec.RollbackID, stepErr)
	}

	// Non-critical failures do not demote the outcome: the data work is
	// done, and the failed step is recorded in the error log for operator
	// follow-up.
	e.finish(ctx, exec, model.RollbackStatusCompleted, true)
	if nonCriticalFailures > 0 {
		logger.Warnf("Rollback %s completed with %d non-critical step failures: %v",
			exec.RollbackID, nonCriticalFailures, errLog.ErrorOrNil())
	} else {
		logger.Infof("Rollback %s completed: %d records affected.", exec.RollbackID, exec.TotalAffectedRecords)
	}
	return exec, nil
}

// CancelRollback requests cooperative cancellation of the active rollback.
// It reports whether the request matched an active, cancellable execution.
func (e *Executor) CancelRollback(rollbackID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active || e.activeID != rollbackID {
		return false
	}
	e.cancel = true
	logger.Infof("Cancel requested for rollback %s.", rollbackID)
	return true
}

func (e *Executor) cancelRequested() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel
}

// runStep times one step through its handler and records the outcome.
func (e *Executor) runStep(ctx context.Context, sc *stepContext, step model.RollbackStep) model.RollbackStepResult {
	result := model.RollbackStepResult{
		StepID:    step.StepID,
		Kind:      step.Kind,
		StartedAt: time.Now(),
	}

	handler, ok := e.handlers[step.Kind]
	if !ok {
		end := time.Now()
		result.EndedAt = &end
		result.ErrorMessage = fmt.Sprintf("no handler for step kind %q", step.Kind)
		return result
	}

	affected, err := handler(ctx, sc, step)
	end := time.Now()
	result.EndedAt = &end
	result.AffectedRecords = affected
	if err != nil {
		result.ErrorMessage = exception.ExtractErrorMessage(err)
		if e.tracer != nil {
			e.tracer.RecordError(ctx, moduleName, err)
		}
		return result
	}
	result.Success = true
	logger.Debugf("Rollback step %s done in %s (%d records).", step.Kind, result.Duration(), affected)
	return result
}

// finish stamps the terminal status, end time and success flag, then hands
// the execution to the ledger. Ledger failures are logged; they cannot
// change an already-determined outcome.
func (e *Executor) finish(ctx context.Context, exec *model.RollbackExecution, status model.RollbackStatus, success bool) {
	if err := exec.TransitionTo(status); err != nil {
		logger.Warnf("Rollback %s: %v", exec.RollbackID, err)
	}
	now := time.Now()
	exec.EndedAt = &now
	exec.Success = success

	if e.ledger != nil {
		if err := e.ledger.SaveRollback(ctx, exec); err != nil {
			logger.Errorf("Rollback %s: ledger write failed: %v", exec.RollbackID, err)
		}
	}
	if e.recorder != nil {
		e.recorder.RecordRollbackEnd(ctx, exec)
	}
}

// handleCreateBackup snapshots the to-be-deleted rows into the backup store
// before any deletion occurs. The backup must be durable before the delete
// step runs; it is the disaster-recovery source if the delete fails partway
// in a non-transactional store.
func (e *Executor) handleCreateBackup(ctx context.Context, sc *stepContext, step model.RollbackStep) (int, error) {
	records, err := e.store.ListDerivedResults(ctx, sc.filter)
	if err != nil {
		return 0, exception.NewInfrastructureError(moduleName, "failed to read records for backup", err)
	}

	backupID := model.NewID()
	if err := e.backup.SaveBackup(ctx, backupID, records); err != nil {
		return 0, exception.NewInfrastructureError(moduleName,
			fmt.Sprintf("failed to persist backup %s", backupID), err)
	}
	sc.exec.BackupID = backupID
	logger.Infof("Rollback %s: backed up %d records as %s.", sc.exec.RollbackID, len(records), backupID)
	return len(records), nil
}

// handleValidateCurrentState checks the pre-rollback state. USER_MIGRATION
// uses STRICT validation against the plan snapshot; other scopes use
// STANDARD. Data-quality findings are logged into the error log as context
// but do not fail the step, since the records are about to be deleted
// anyway; only infrastructure failure fails it.
func (e *Executor) handleValidateCurrentState(ctx context.Context, sc *stepContext, step model.RollbackStep) (int, error) {
	level := validator.LevelStandard
	var snapshot []model.DerivedRecord
	if sc.plan.Scope == model.RollbackScopeUserMigration {
		level = validator.LevelStrict
		snapshot = sc.plan.SnapshotRecords
	}

	res, err := e.validate.Validate(ctx, sc.filter, level, snapshot)
	if err != nil {
		return 0, err
	}
	for _, msg := range res.Errors {
		sc.exec.ErrorLog = append(sc.exec.ErrorLog, "pre-check: "+msg)
	}
	return res.ValidatedCount, nil
}

// handleScopeDelete deletes the derived records in scope. CONFIGURATION
// scope takes its configuration id from the plan's migration snapshot and
// fails if that id is missing rather than deleting an unbounded set.
func (e *Executor) handleScopeDelete(ctx context.Context, sc *stepContext, step model.RollbackStep) (int, error) {
	if step.Kind == model.StepRollbackConfiguration && sc.filter.ConfigurationID == "" {
		return 0, exception.NewValidationError(moduleName,
			"plan snapshot carries no configuration id; refusing unbounded delete", nil)
	}

	affected, err := e.store.DeleteDerivedResults(ctx, sc.filter)
	if err != nil {
		return 0, exception.NewInfrastructureError(moduleName,
			fmt.Sprintf("delete failed for scope %s", sc.plan.Scope), err)
	}
	logger.Infof("Rollback %s: deleted %d derived records (scope %s).", sc.exec.RollbackID, affected, sc.plan.Scope)
	return affected, nil
}

// handleValidateRollbackResult verifies the delete left nothing behind.
// Subject, configuration and full-system scopes expect zero remaining
// records; a non-zero count fails the step as the safety net against partial
// deletes. SINGLE_BATCH deletes a bounded subset, so remaining records are
// expected and only counted.
func (e *Executor) handleValidateRollbackResult(ctx context.Context, sc *stepContext, step model.RollbackStep) (int, error) {
	// Verify against the unbounded scope filter; the Limit only bounds the
	// delete, not the remaining-count check.
	verifyFilter := sc.filter
	verifyFilter.Limit = 0

	res, err := e.validate.Validate(ctx, verifyFilter, validator.LevelBasic, nil)
	if err != nil {
		return 0, err
	}

	if sc.plan.Scope == model.RollbackScopeSingleBatch {
		sc.exec.VerificationPassed = true
		return res.ValidatedCount, nil
	}
	if res.ValidatedCount != 0 {
		return res.ValidatedCount, exception.NewIntegrityError(moduleName,
			fmt.Sprintf("%d derived records remain after rollback; delete was partial", res.ValidatedCount), nil)
	}
	sc.exec.VerificationPassed = true
	return 0, nil
}

// handleUpdateMigrationStatus marks the original migration ledger row as
// rolled back and attaches the rollback reference. This is the plan's only
// non-critical step: a failure here leaves the data correctly rolled back
// with a stale status label, which the operator can fix.
func (e *Executor) handleUpdateMigrationStatus(ctx context.Context, sc *stepContext, step model.RollbackStep) (int, error) {
	job, err := e.ledger.FindMigrationByID(ctx, sc.plan.TargetMigrationID)
	if err != nil {
		return 0, exception.NewInfrastructureError(moduleName,
			fmt.Sprintf("failed to load migration %s", sc.plan.TargetMigrationID), err)
	}

	if err := job.MarkAsRolledBack(sc.exec.RollbackID); err != nil {
		return 0, exception.NewValidationError(moduleName,
			fmt.Sprintf("migration %s cannot transition to ROLLED_BACK", job.MigrationID), err)
	}
	if err := e.ledger.SaveMigration(ctx, job); err != nil {
		return 0, exception.NewInfrastructureError(moduleName,
			fmt.Sprintf("failed to persist rolled-back status for migration %s", job.MigrationID), err)
	}
	if err := e.ledger.AttachRollback(ctx, job.MigrationID, sc.exec.RollbackID); err != nil {
		return 0, exception.NewInfrastructureError(moduleName,
			fmt.Sprintf("failed to attach rollback %s to migration %s", sc.exec.RollbackID, job.MigrationID), err)
	}
	return 0, nil
}
