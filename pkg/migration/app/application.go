// Package app assembles the migration engine into a runnable application
// using uber-fx and executes one CLI command against it.
package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"

	calculator "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/component/calculator"
	config "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/config"
	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	orchestrator "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/engine/orchestrator"
	processor "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/engine/processor"
	resource "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/engine/resource"
	rollback "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/engine/rollback"
	validator "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/engine/validator"
	localbackup "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/infrastructure/backup/local"
	infraMetrics "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/infrastructure/metrics"
	gormrepo "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/infrastructure/repository/gorm"
	inmemory "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/infrastructure/repository/inmemory"
	notification "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/listener/notification"
	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

// Command is one parsed CLI invocation.
type Command struct {
	// Name is the subcommand: migrate, status, analyze, rollback or validate.
	Name string
	// SubjectID targets a subject (migrate, validate).
	SubjectID string
	// ConfigurationID names the ACWR configuration (migrate, validate).
	ConfigurationID string
	// MigrationID targets an existing migration (status, analyze, rollback).
	MigrationID string
	// Scope is the rollback scope (analyze, rollback).
	Scope string
	// Level is the validation level (validate).
	Level string
	// BatchSize overrides the configured batch size when positive (migrate).
	BatchSize int
}

// repositoryModule selects the store implementations: "memory" runs without
// a database, anything else names a connection in the database map.
func repositoryModule(cfg *config.Config) fx.Option {
	if cfg.Migration.DatabaseRef == "memory" {
		return inmemory.Module
	}
	return gormrepo.Module
}

// RunApplication builds the Fx container, runs the command and blocks until
// shutdown. The returned error is the command's outcome.
func RunApplication(appCtx context.Context, envFilePath, configPath string, cmd Command) error {
	cfg, err := config.LoadConfigFile(envFilePath, configPath)
	if err != nil {
		return err
	}

	logger.SetLogLevel(cfg.Migration.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Migration.Logging.Level)

	var cmdErr error
	app := fx.New(
		fx.Supply(cfg),

		logger.Module,
		infraMetrics.Module,
		repositoryModule(cfg),
		localbackup.Module,
		notification.Module,
		calculator.Module,
		resource.Module,
		processor.Module,
		orchestrator.Module,
		validator.Module,
		rollback.Module,

		fx.Invoke(func(
			lc fx.Lifecycle,
			shutdowner fx.Shutdowner,
			orch *orchestrator.Orchestrator,
			planner *rollback.Planner,
			executor *rollback.Executor,
			validate *validator.Validator,
		) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					go func() {
						defer func() {
							if r := recover(); r != nil {
								cmdErr = fmt.Errorf("panic during %s: %v", cmd.Name, r)
								logger.Errorf("Panic recovered in command execution: %v", r)
							}
							code := 0
							if cmdErr != nil {
								code = 1
							}
							if err := shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
								logger.Errorf("Failed to shutdown application: %v", err)
							}
						}()
						cmdErr = runCommand(appCtx, cfg, cmd, orch, planner, executor, validate)
						if cmdErr != nil {
							logger.Errorf("Command '%s' failed: %v", cmd.Name, cmdErr)
						}
					}()
					return nil
				},
			})
		}),
	)

	app.Run()

	if err := app.Err(); err != nil {
		return err
	}
	return cmdErr
}

func runCommand(
	ctx context.Context,
	cfg *config.Config,
	cmd Command,
	orch *orchestrator.Orchestrator,
	planner *rollback.Planner,
	executor *rollback.Executor,
	validate *validator.Validator,
) error {
	switch cmd.Name {
	case "migrate":
		return runMigrate(ctx, cfg, cmd, orch)
	case "status":
		return runStatus(ctx, cmd, orch)
	case "analyze":
		return runAnalyze(ctx, cmd, planner)
	case "rollback":
		return runRollback(ctx, cmd, planner, executor)
	case "validate":
		return runValidate(ctx, cmd, validate)
	default:
		return fmt.Errorf("unknown command %q", cmd.Name)
	}
}

func runMigrate(ctx context.Context, cfg *config.Config, cmd Command, orch *orchestrator.Orchestrator) error {
	batchSize := cmd.BatchSize
	if batchSize <= 0 {
		batchSize = cfg.Migration.Processor.BatchSize
	}

	job, err := orch.CreateMigration(ctx, cmd.SubjectID, cmd.ConfigurationID, batchSize)
	if err != nil {
		return err
	}
	logger.Infof("Created migration %s for subject %s (%d records, %d batches).",
		job.MigrationID, job.SubjectID, job.TotalRecords, job.TotalBatches)

	job, err = orch.ExecuteMigration(ctx, job.MigrationID)
	if err != nil {
		return err
	}
	logger.Infof("Migration %s finished with status %s: %d/%d processed, %d successful, %d failed.",
		job.MigrationID, job.Status, job.ProcessedRecords, job.TotalRecords, job.SuccessfulRecords, job.FailedRecords)
	if job.Status != model.MigrationStatusCompleted {
		return fmt.Errorf("migration %s ended in %s", job.MigrationID, job.Status)
	}
	return nil
}

func runStatus(ctx context.Context, cmd Command, orch *orchestrator.Orchestrator) error {
	job, err := orch.GetMigrationStatus(ctx, cmd.MigrationID)
	if err != nil {
		return err
	}
	logger.Infof("Migration %s: status=%s progress=%d/%d successful=%d failed=%d batch=%d/%d",
		job.MigrationID, job.Status, job.ProcessedRecords, job.TotalRecords,
		job.SuccessfulRecords, job.FailedRecords, job.CurrentBatch, job.TotalBatches)
	if job.ErrorMessage != "" {
		logger.Infof("Migration %s error: %s", job.MigrationID, job.ErrorMessage)
	}
	if job.RollbackID != "" {
		logger.Infof("Migration %s rolled back by %s at %s.", job.MigrationID, job.RollbackID, job.RollbackTimestamp)
	}
	return nil
}

func runAnalyze(ctx context.Context, cmd Command, planner *rollback.Planner) error {
	scope, err := parseScope(cmd.Scope)
	if err != nil {
		return err
	}
	impact, err := planner.AnalyzeRollbackImpact(ctx, cmd.MigrationID, scope)
	if err != nil {
		return err
	}
	logger.Infof("Rollback impact for %s (%s): subjects=%d records=%d configurations=%d",
		cmd.MigrationID, scope, impact.AffectedSubjects, impact.AffectedRecords, impact.AffectedConfigurations)
	logger.Infof("Risk=%s complexity=%s estimated downtime=%s backup available=%t",
		impact.DataLossRisk, impact.Complexity, impact.EstimatedDowntime, impact.BackupAvailable)
	return nil
}

func runRollback(ctx context.Context, cmd Command, planner *rollback.Planner, executor *rollback.Executor) error {
	scope, err := parseScope(cmd.Scope)
	if err != nil {
		return err
	}
	plan, err := planner.CreateRollbackPlan(ctx, cmd.MigrationID, scope)
	if err != nil {
		return err
	}
	logger.Infof("Rollback plan %s: %d steps, risk=%s, estimated duration=%s.",
		plan.PlanID, len(plan.Steps), plan.RiskLevel, plan.EstimatedDuration)

	execution, err := executor.ExecuteRollback(ctx, plan)
	if execution != nil {
		logger.Infof("Rollback %s finished with status %s: %d records affected, verification passed=%t.",
			execution.RollbackID, execution.Status, execution.TotalAffectedRecords, execution.VerificationPassed)
		for _, msg := range execution.ErrorLog {
			logger.Warnf("Rollback %s: %s", execution.RollbackID, msg)
		}
	}
	return err
}

func runValidate(ctx context.Context, cmd Command, validate *validator.Validator) error {
	level, err := parseLevel(cmd.Level)
	if err != nil {
		return err
	}

	filter := port.DerivedFilter{All: true}
	switch {
	case cmd.SubjectID != "":
		filter = port.DerivedFilter{SubjectID: cmd.SubjectID}
	case cmd.ConfigurationID != "":
		filter = port.DerivedFilter{ConfigurationID: cmd.ConfigurationID}
	}

	result, err := validate.Validate(ctx, filter, level, nil)
	if err != nil {
		return err
	}
	logger.Infof("Validation (%s): valid=%t validated=%d failed=%d warnings=%d",
		level, result.IsValid, result.ValidatedCount, result.FailedCount, len(result.Warnings))
	for _, msg := range result.Errors {
		logger.Warnf("Validation error: %s", msg)
	}
	if !result.IsValid {
		return fmt.Errorf("validation found %d failing records", result.FailedCount)
	}
	return nil
}

func parseScope(s string) (model.RollbackScope, error) {
	switch model.RollbackScope(strings.ToUpper(s)) {
	case model.RollbackScopeSingleBatch:
		return model.RollbackScopeSingleBatch, nil
	case model.RollbackScopeUserMigration:
		return model.RollbackScopeUserMigration, nil
	case model.RollbackScopeConfiguration:
		return model.RollbackScopeConfiguration, nil
	case model.RollbackScopeFullSystem:
		return model.RollbackScopeFullSystem, nil
	default:
		return "", fmt.Errorf("unknown rollback scope %q", s)
	}
}

func parseLevel(s string) (validator.Level, error) {
	switch strings.ToUpper(s) {
	case "", "BASIC":
		return validator.LevelBasic, nil
	case "STANDARD":
		return validator.LevelStandard, nil
	case "STRICT":
		return validator.LevelStrict, nil
	default:
		return 0, fmt.Errorf("unknown validation level %q", s)
	}
}
