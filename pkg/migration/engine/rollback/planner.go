// Package rollback implements impact analysis, plan construction and plan
// execution for undoing a migration at one of four scopes: a single batch, a
// subject, a configuration, or the entire system. The planner derives risk
// and complexity from fixed rule tables; the executor walks the ordered step
// plan with critical/non-critical failure semantics and a strictly forward
// status machine.
package rollback

import (
	"context"
	"errors"
	"fmt"
	"time"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	exception "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/exception"
	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

const moduleName = "rollback"

// singleBatchEstimate is the documented record-count approximation for
// SINGLE_BATCH scope. Batch membership is not persisted per record, so the
// planner estimates one configured batch instead of counting.
const singleBatchEstimate = 1000

// baseDowntime is the fixed floor of every downtime estimate.
const baseDowntime = 30 * time.Second

// Planner computes rollback impact and builds executable plans.
type Planner struct {
	store  port.ActivityStore
	ledger port.LedgerRepository
	backup port.BackupStore
}

// NewPlanner creates a Planner over the given collaborators.
func NewPlanner(store port.ActivityStore, ledger port.LedgerRepository, backup port.BackupStore) *Planner {
	return &Planner{store: store, ledger: ledger, backup: backup}
}

// scopeFilter builds the derived-record filter for a scope. SINGLE_BATCH is
// a bounded subset of the subject's records, approximating one batch.
func scopeFilter(scope model.RollbackScope, subjectID, configurationID string) port.DerivedFilter {
	switch scope {
	case model.RollbackScopeSingleBatch:
		return port.DerivedFilter{SubjectID: subjectID, Limit: singleBatchEstimate}
	case model.RollbackScopeUserMigration:
		return port.DerivedFilter{SubjectID: subjectID}
	case model.RollbackScopeConfiguration:
		return port.DerivedFilter{ConfigurationID: configurationID}
	default:
		return port.DerivedFilter{All: true}
	}
}

// AnalyzeRollbackImpact counts the blast radius of a proposed rollback and
// grades its risk and complexity from the scope's rule table. Counts are
// exact for USER_MIGRATION, CONFIGURATION and FULL_SYSTEM; SINGLE_BATCH uses
// the documented fixed estimate.
func (p *Planner) AnalyzeRollbackImpact(ctx context.Context, migrationID string, scope model.RollbackScope) (*model.RollbackImpact, error) {
	job, err := p.ledger.FindMigrationByID(ctx, migrationID)
	if err != nil {
		if errors.Is(err, port.ErrMigrationNotFound) {
			return nil, exception.NewValidationError(moduleName,
				fmt.Sprintf("migration %s has no ledger entry", migrationID), err)
		}
		return nil, exception.NewInfrastructureError(moduleName,
			fmt.Sprintf("failed to load migration %s", migrationID), err)
	}

	impact := &model.RollbackImpact{BackupAvailable: p.backup != nil}
	filter := scopeFilter(scope, job.SubjectID, job.ConfigurationID)

	switch scope {
	case model.RollbackScopeSingleBatch:
		impact.AffectedSubjects = 1
		impact.AffectedRecords = singleBatchEstimate
		impact.AffectedConfigurations = 1
	case model.RollbackScopeUserMigration:
		impact.AffectedSubjects = 1
		if impact.AffectedRecords, err = p.store.CountDerivedResults(ctx, filter); err != nil {
			return nil, exception.NewInfrastructureError(moduleName, "failed to count affected records", err)
		}
		if impact.AffectedConfigurations, err = p.store.CountDistinctConfigurations(ctx, filter); err != nil {
			return nil, exception.NewInfrastructureError(moduleName, "failed to count affected configurations", err)
		}
	case model.RollbackScopeConfiguration, model.RollbackScopeFullSystem:
		if impact.AffectedRecords, err = p.store.CountDerivedResults(ctx, filter); err != nil {
			return nil, exception.NewInfrastructureError(moduleName, "failed to count affected records", err)
		}
		if impact.AffectedSubjects, err = p.store.CountDistinctSubjects(ctx, filter); err != nil {
			return nil, exception.NewInfrastructureError(moduleName, "failed to count affected subjects", err)
		}
		if scope == model.RollbackScopeConfiguration {
			impact.AffectedConfigurations = 1
		} else if impact.AffectedConfigurations, err = p.store.CountDistinctConfigurations(ctx, filter); err != nil {
			return nil, exception.NewInfrastructureError(moduleName, "failed to count affected configurations", err)
		}
	default:
		return nil, exception.NewValidationError(moduleName,
			fmt.Sprintf("unknown rollback scope %q", scope), nil)
	}

	impact.DataLossRisk = riskFor(scope, impact.AffectedSubjects, impact.AffectedRecords)
	impact.Complexity = complexityFor(scope, impact.AffectedRecords)
	impact.EstimatedDowntime = downtimeFor(scope, impact.AffectedRecords)
	return impact, nil
}

// riskFor applies the fixed per-scope data-loss risk table. FULL_SYSTEM is
// always critical regardless of counts.
func riskFor(scope model.RollbackScope, subjects, records int) model.DataLossRisk {
	switch scope {
	case model.RollbackScopeFullSystem:
		return model.DataLossRiskCritical
	case model.RollbackScopeConfiguration:
		switch {
		case subjects > 100 || records > 10000:
			return model.DataLossRiskHigh
		case subjects > 10 || records > 1000:
			return model.DataLossRiskMedium
		default:
			return model.DataLossRiskLow
		}
	case model.RollbackScopeUserMigration:
		if records > 5000 {
			return model.DataLossRiskMedium
		}
		return model.DataLossRiskLow
	default:
		return model.DataLossRiskLow
	}
}

// complexityFor applies the fixed per-scope complexity table.
func complexityFor(scope model.RollbackScope, records int) model.RollbackComplexity {
	switch scope {
	case model.RollbackScopeFullSystem:
		return model.RollbackComplexityExtreme
	case model.RollbackScopeConfiguration:
		switch {
		case records > 50000:
			return model.RollbackComplexityComplex
		case records > 10000:
			return model.RollbackComplexityModerate
		default:
			return model.RollbackComplexitySimple
		}
	case model.RollbackScopeUserMigration:
		if records > 10000 {
			return model.RollbackComplexityModerate
		}
		return model.RollbackComplexitySimple
	default:
		return model.RollbackComplexitySimple
	}
}

// downtimeFor estimates downtime as a fixed base plus a per-record rate.
// SINGLE_BATCH gets a flat surcharge instead of scaling with records.
func downtimeFor(scope model.RollbackScope, records int) time.Duration {
	switch scope {
	case model.RollbackScopeFullSystem:
		return baseDowntime + time.Duration(float64(records)*0.1*float64(time.Second))
	case model.RollbackScopeConfiguration:
		return baseDowntime + time.Duration(float64(records)*0.05*float64(time.Second))
	case model.RollbackScopeUserMigration:
		return baseDowntime + time.Duration(float64(records)*0.02*float64(time.Second))
	default:
		return baseDowntime + 10*time.Second
	}
}

// complexityFactor scales the summed step durations into the plan estimate.
func complexityFactor(c model.RollbackComplexity) float64 {
	switch c {
	case model.RollbackComplexityExtreme:
		return 2.0
	case model.RollbackComplexityComplex:
		return 1.5
	case model.RollbackComplexityModerate:
		return 1.2
	default:
		return 1.0
	}
}

// scopeStepKind maps a scope to its delete step.
func scopeStepKind(scope model.RollbackScope) model.RollbackStepKind {
	switch scope {
	case model.RollbackScopeSingleBatch:
		return model.StepRollbackSingleBatch
	case model.RollbackScopeUserMigration:
		return model.StepRollbackUserMigration
	case model.RollbackScopeConfiguration:
		return model.StepRollbackConfiguration
	default:
		return model.StepRollbackFullSystem
	}
}

// CreateRollbackPlan builds the immutable plan for a rollback: the fixed
// step skeleton (backup, pre-validate, scope-specific delete, post-validate,
// mark status), the complexity-scaled duration estimate, the operator
// prerequisites, and a point-in-time snapshot of the affected records plus
// the original migration ledger row as the restore source.
func (p *Planner) CreateRollbackPlan(ctx context.Context, migrationID string, scope model.RollbackScope) (*model.RollbackPlan, error) {
	job, err := p.ledger.FindMigrationByID(ctx, migrationID)
	if err != nil {
		if errors.Is(err, port.ErrMigrationNotFound) {
			return nil, exception.NewValidationError(moduleName,
				fmt.Sprintf("migration %s has no ledger entry", migrationID), err)
		}
		return nil, exception.NewInfrastructureError(moduleName,
			fmt.Sprintf("failed to load migration %s", migrationID), err)
	}
	if scope == model.RollbackScopeConfiguration && job.ConfigurationID == "" {
		return nil, exception.NewValidationError(moduleName,
			fmt.Sprintf("migration %s carries no configuration id; CONFIGURATION scope is not plannable", migrationID), nil)
	}

	impact, err := p.AnalyzeRollbackImpact(ctx, migrationID, scope)
	if err != nil {
		return nil, err
	}

	filter := scopeFilter(scope, job.SubjectID, job.ConfigurationID)
	snapshot, err := p.store.ListDerivedResults(ctx, filter)
	if err != nil {
		return nil, exception.NewInfrastructureError(moduleName, "failed to snapshot affected records", err)
	}

	steps := []model.RollbackStep{
		{
			StepID:            model.NewID(),
			Kind:              model.StepCreateBackup,
			Description:       fmt.Sprintf("back up %d affected records before any deletion", len(snapshot)),
			Critical:          true,
			EstimatedDuration: 30 * time.Second,
		},
		{
			StepID:            model.NewID(),
			Kind:              model.StepValidateCurrentState,
			Description:       "validate the current derived-record state",
			Critical:          true,
			EstimatedDuration: 10 * time.Second,
		},
		{
			StepID:            model.NewID(),
			Kind:              scopeStepKind(scope),
			Description:       fmt.Sprintf("delete derived records in scope %s", scope),
			Critical:          true,
			EstimatedDuration: deleteEstimate(impact.AffectedRecords),
		},
		{
			StepID:            model.NewID(),
			Kind:              model.StepValidateRollbackResult,
			Description:       "verify no derived records remain in scope",
			Critical:          true,
			EstimatedDuration: 15 * time.Second,
		},
		{
			StepID:            model.NewID(),
			Kind:              model.StepUpdateMigrationStatus,
			Description:       "mark the original migration as rolled back",
			Critical:          false,
			EstimatedDuration: 5 * time.Second,
		},
	}

	var stepSum time.Duration
	for _, s := range steps {
		stepSum += s.EstimatedDuration
	}

	plan := &model.RollbackPlan{
		PlanID:            model.NewID(),
		Scope:             scope,
		TargetMigrationID: migrationID,
		TargetSubjectID:   job.SubjectID,
		Steps:             steps,
		EstimatedDuration: time.Duration(float64(stepSum) * complexityFactor(impact.Complexity)),
		RiskLevel:         impact.DataLossRisk,
		Prerequisites:     prerequisitesFor(scope, impact),
		SnapshotRecords:   snapshot,
		SnapshotJob:       job,
		CreatedAt:         time.Now(),
	}

	logger.Infof("Rollback plan %s created for migration %s: scope %s, %d records, risk %s, estimated %s.",
		plan.PlanID, migrationID, scope, impact.AffectedRecords, impact.DataLossRisk, plan.EstimatedDuration)
	return plan, nil
}

// deleteEstimate sizes the scope-specific delete step by record count.
func deleteEstimate(records int) time.Duration {
	d := time.Duration(float64(records) * 0.01 * float64(time.Second))
	if d < 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// prerequisitesFor lists the preconditions the operator must confirm before
// executing a plan of this scope.
func prerequisitesFor(scope model.RollbackScope, impact *model.RollbackImpact) []string {
	prereqs := []string{
		"confirm the backup store is reachable and has capacity",
		"confirm no migration is currently running for the affected scope",
	}
	switch scope {
	case model.RollbackScopeConfiguration:
		prereqs = append(prereqs,
			fmt.Sprintf("notify the %d affected subjects of recomputation", impact.AffectedSubjects))
	case model.RollbackScopeFullSystem:
		prereqs = append(prereqs,
			"schedule a maintenance window covering the estimated downtime",
			"obtain operator sign-off for a full-system rollback")
	}
	return prereqs
}
