package model

import (
	"fmt"
	"time"
)

// RollbackScope determines the blast radius of impact analysis, planning and
// execution.
type RollbackScope string

const (
	// RollbackScopeSingleBatch undoes approximately one batch for a subject.
	// Batch membership is not tracked per record, so this scope works on a
	// bounded subset and its impact figures are documented estimates.
	RollbackScopeSingleBatch RollbackScope = "SINGLE_BATCH"
	// RollbackScopeUserMigration undoes all derived records for one subject.
	RollbackScopeUserMigration RollbackScope = "USER_MIGRATION"
	// RollbackScopeConfiguration undoes all derived records computed under
	// one configuration, across subjects.
	RollbackScopeConfiguration RollbackScope = "CONFIGURATION"
	// RollbackScopeFullSystem unconditionally undoes every derived record.
	RollbackScopeFullSystem RollbackScope = "FULL_SYSTEM"
)

// String returns the string representation of the scope.
func (s RollbackScope) String() string {
	return string(s)
}

// DataLossRisk grades the severity of a rollback's potential data loss.
type DataLossRisk string

const (
	DataLossRiskLow      DataLossRisk = "low"
	DataLossRiskMedium   DataLossRisk = "medium"
	DataLossRiskHigh     DataLossRisk = "high"
	DataLossRiskCritical DataLossRisk = "critical"
)

// RollbackComplexity grades how involved executing a rollback will be.
type RollbackComplexity string

const (
	RollbackComplexitySimple   RollbackComplexity = "simple"
	RollbackComplexityModerate RollbackComplexity = "moderate"
	RollbackComplexityComplex  RollbackComplexity = "complex"
	RollbackComplexityExtreme  RollbackComplexity = "extreme"
)

// RollbackImpact is the computed blast-radius summary for a proposed
// rollback. It is derived purely from current counts and scope and is not
// persisted.
type RollbackImpact struct {
	AffectedSubjects       int
	AffectedRecords        int
	AffectedConfigurations int
	DataLossRisk           DataLossRisk
	EstimatedDowntime      time.Duration
	BackupAvailable        bool
	Complexity             RollbackComplexity
}

// RollbackStepKind identifies the handler for a planned rollback step. The
// ordered, critical/non-critical step list is the single source of truth for
// both planning and execution; executors dispatch on the kind through a
// handler table.
type RollbackStepKind string

const (
	StepCreateBackup           RollbackStepKind = "create_backup"
	StepValidateCurrentState   RollbackStepKind = "validate_current_state"
	StepRollbackSingleBatch    RollbackStepKind = "rollback_single_batch"
	StepRollbackUserMigration  RollbackStepKind = "rollback_user_migration"
	StepRollbackConfiguration  RollbackStepKind = "rollback_configuration"
	StepRollbackFullSystem     RollbackStepKind = "rollback_full_system"
	StepValidateRollbackResult RollbackStepKind = "validate_rollback_result"
	StepUpdateMigrationStatus  RollbackStepKind = "update_migration_status"
)

// RollbackStep is one planned step. Critical steps halt the whole execution
// on failure; non-critical steps are logged and skipped past.
type RollbackStep struct {
	StepID            string
	Kind              RollbackStepKind
	Description       string
	Critical          bool
	EstimatedDuration time.Duration
}

// RollbackPlan is the immutable output of the planner, consumed once by the
// executor. SnapshotRecords and SnapshotJob are the point-in-time restore
// source captured before any destructive step runs.
type RollbackPlan struct {
	PlanID            string
	Scope             RollbackScope
	TargetMigrationID string
	TargetSubjectID   string
	Steps             []RollbackStep
	EstimatedDuration time.Duration
	RiskLevel         DataLossRisk
	Prerequisites     []string
	SnapshotRecords   []DerivedRecord
	SnapshotJob       *MigrationJob
	CreatedAt         time.Time
}

// RollbackStatus is the finer-grained execution state machine of a rollback:
// PENDING → PREPARING → BACKING_UP → VALIDATING → EXECUTING → VERIFYING →
// {COMPLETED | FAILED | CANCELLED}.
type RollbackStatus string

const (
	RollbackStatusPending    RollbackStatus = "PENDING"
	RollbackStatusPreparing  RollbackStatus = "PREPARING"
	RollbackStatusBackingUp  RollbackStatus = "BACKING_UP"
	RollbackStatusValidating RollbackStatus = "VALIDATING"
	RollbackStatusExecuting  RollbackStatus = "EXECUTING"
	RollbackStatusVerifying  RollbackStatus = "VERIFYING"
	RollbackStatusCompleted  RollbackStatus = "COMPLETED"
	RollbackStatusFailed     RollbackStatus = "FAILED"
	RollbackStatusCancelled  RollbackStatus = "CANCELLED"
)

// IsTerminal checks whether the rollback status is final.
func (s RollbackStatus) IsTerminal() bool {
	switch s {
	case RollbackStatusCompleted, RollbackStatusFailed, RollbackStatusCancelled:
		return true
	default:
		return false
	}
}

// rollbackStatusRank orders the non-terminal phases so that progression can
// be validated as strictly forward.
var rollbackStatusRank = map[RollbackStatus]int{
	RollbackStatusPending:    0,
	RollbackStatusPreparing:  1,
	RollbackStatusBackingUp:  2,
	RollbackStatusValidating: 3,
	RollbackStatusExecuting:  4,
	RollbackStatusVerifying:  5,
}

// isValidRollbackTransition checks whether a rollback status transition is
// legal. Non-terminal phases proceed strictly forward; any non-terminal
// phase may jump to a terminal status.
func isValidRollbackTransition(current, next RollbackStatus) bool {
	if current.IsTerminal() {
		return false
	}
	if next.IsTerminal() {
		return true
	}
	curRank, ok1 := rollbackStatusRank[current]
	nextRank, ok2 := rollbackStatusRank[next]
	return ok1 && ok2 && nextRank == curRank+1
}

// RollbackStepResult is the executed record of one plan step.
type RollbackStepResult struct {
	StepID          string
	Kind            RollbackStepKind
	StartedAt       time.Time
	EndedAt         *time.Time
	Success         bool
	AffectedRecords int
	ErrorMessage    string
}

// Duration returns the elapsed execution time of the step, or zero if it has
// not ended.
func (r RollbackStepResult) Duration() time.Duration {
	if r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// RollbackExecution is the executor's record of one rollback run. It is
// exclusively owned by the executor while in progress and handed to the
// ledger, immutable, on completion or failure.
type RollbackExecution struct {
	RollbackID           string
	MigrationID          string
	SubjectID            string
	Scope                RollbackScope
	Status               RollbackStatus
	Steps                []RollbackStepResult
	TotalAffectedRecords int
	BackupID             string
	VerificationPassed   bool
	ErrorLog             FailureList
	Success              bool
	StartedAt            time.Time
	EndedAt              *time.Time
}

// NewRollbackExecution creates a PENDING execution for the given plan.
func NewRollbackExecution(plan *RollbackPlan) *RollbackExecution {
	return &RollbackExecution{
		RollbackID:  NewID(),
		MigrationID: plan.TargetMigrationID,
		SubjectID:   plan.TargetSubjectID,
		Scope:       plan.Scope,
		Status:      RollbackStatusPending,
		Steps:       make([]RollbackStepResult, 0, len(plan.Steps)),
		ErrorLog:    make(FailureList, 0),
		StartedAt:   time.Now(),
	}
}

// TransitionTo advances the rollback state machine. Illegal transitions are
// rejected with an error and leave the execution unchanged.
func (e *RollbackExecution) TransitionTo(newStatus RollbackStatus) error {
	if !isValidRollbackTransition(e.Status, newStatus) {
		return fmt.Errorf("RollbackExecution (ID: %s): invalid state transition: %s -> %s", e.RollbackID, e.Status, newStatus)
	}
	e.Status = newStatus
	return nil
}
