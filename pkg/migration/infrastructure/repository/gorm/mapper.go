package gorm

import (
	"encoding/json"
	"fmt"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
)

func fromDomainActivity(rec model.ActivityRecord) ActivityEntity {
	return ActivityEntity{
		ActivityID: rec.ActivityID,
		SubjectID:  rec.SubjectID,
		Date:       rec.Date,
		Load:       rec.Load,
	}
}

func toDomainActivity(e ActivityEntity) model.ActivityRecord {
	return model.ActivityRecord{
		ActivityID: e.ActivityID,
		SubjectID:  e.SubjectID,
		Date:       e.Date,
		Load:       e.Load,
	}
}

func fromDomainDerived(rec model.DerivedRecord) DerivedEntity {
	return DerivedEntity{
		ActivityID:      rec.ActivityID,
		ConfigurationID: rec.ConfigurationID,
		SubjectID:       rec.SubjectID,
		Date:            rec.Date,
		AcuteLoad:       rec.AcuteLoad,
		ChronicLoad:     rec.ChronicLoad,
		Ratio:           rec.Ratio,
		ComputedAt:      rec.ComputedAt,
	}
}

func toDomainDerived(e DerivedEntity) model.DerivedRecord {
	return model.DerivedRecord{
		ActivityID:      e.ActivityID,
		ConfigurationID: e.ConfigurationID,
		SubjectID:       e.SubjectID,
		Date:            e.Date,
		AcuteLoad:       e.AcuteLoad,
		ChronicLoad:     e.ChronicLoad,
		Ratio:           e.Ratio,
		ComputedAt:      e.ComputedAt,
	}
}

func fromDomainMigration(job *model.MigrationJob) MigrationLedgerEntity {
	return MigrationLedgerEntity{
		MigrationID:       job.MigrationID,
		SubjectID:         job.SubjectID,
		ConfigurationID:   job.ConfigurationID,
		Status:            string(job.Status),
		TotalRecords:      job.TotalRecords,
		ProcessedRecords:  job.ProcessedRecords,
		SuccessfulRecords: job.SuccessfulRecords,
		FailedRecords:     job.FailedRecords,
		BatchSize:         job.BatchSize,
		TotalBatches:      job.TotalBatches,
		CurrentBatch:      job.CurrentBatch,
		StartedAt:         job.StartedAt,
		LastUpdate:        job.LastUpdate,
		CompletedAt:       job.CompletedAt,
		ErrorMessage:      job.ErrorMessage,
		RollbackID:        job.RollbackID,
		RollbackTimestamp: job.RollbackTimestamp,
	}
}

func toDomainMigration(e MigrationLedgerEntity) *model.MigrationJob {
	return &model.MigrationJob{
		MigrationID:       e.MigrationID,
		SubjectID:         e.SubjectID,
		ConfigurationID:   e.ConfigurationID,
		Status:            model.MigrationStatus(e.Status),
		TotalRecords:      e.TotalRecords,
		ProcessedRecords:  e.ProcessedRecords,
		SuccessfulRecords: e.SuccessfulRecords,
		FailedRecords:     e.FailedRecords,
		BatchSize:         e.BatchSize,
		TotalBatches:      e.TotalBatches,
		CurrentBatch:      e.CurrentBatch,
		StartedAt:         e.StartedAt,
		LastUpdate:        e.LastUpdate,
		CompletedAt:       e.CompletedAt,
		ErrorMessage:      e.ErrorMessage,
		RollbackID:        e.RollbackID,
		RollbackTimestamp: e.RollbackTimestamp,
	}
}

func fromDomainRollback(exec *model.RollbackExecution) (RollbackLedgerEntity, error) {
	stepsJSON, err := json.Marshal(exec.Steps)
	if err != nil {
		return RollbackLedgerEntity{}, fmt.Errorf("failed to marshal rollback steps: %w", err)
	}
	return RollbackLedgerEntity{
		RollbackID:           exec.RollbackID,
		MigrationID:          exec.MigrationID,
		SubjectID:            exec.SubjectID,
		Scope:                string(exec.Scope),
		Status:               string(exec.Status),
		StepsJSON:            string(stepsJSON),
		TotalAffectedRecords: exec.TotalAffectedRecords,
		BackupID:             exec.BackupID,
		VerificationPassed:   exec.VerificationPassed,
		ErrorLog:             exec.ErrorLog,
		Success:              exec.Success,
		StartedAt:            exec.StartedAt,
		EndedAt:              exec.EndedAt,
	}, nil
}

func toDomainRollback(e RollbackLedgerEntity) (*model.RollbackExecution, error) {
	var steps []model.RollbackStepResult
	if e.StepsJSON != "" {
		if err := json.Unmarshal([]byte(e.StepsJSON), &steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rollback steps: %w", err)
		}
	}
	return &model.RollbackExecution{
		RollbackID:           e.RollbackID,
		MigrationID:          e.MigrationID,
		SubjectID:            e.SubjectID,
		Scope:                model.RollbackScope(e.Scope),
		Status:               model.RollbackStatus(e.Status),
		Steps:                steps,
		TotalAffectedRecords: e.TotalAffectedRecords,
		BackupID:             e.BackupID,
		VerificationPassed:   e.VerificationPassed,
		ErrorLog:             e.ErrorLog,
		Success:              e.Success,
		StartedAt:            e.StartedAt,
		EndedAt:              e.EndedAt,
	}, nil
}

func toDomainConfiguration(e ConfigurationEntity) *model.Configuration {
	return &model.Configuration{
		ConfigurationID:   e.ConfigurationID,
		ChronicPeriodDays: e.ChronicPeriodDays,
		DecayRate:         e.DecayRate,
	}
}
