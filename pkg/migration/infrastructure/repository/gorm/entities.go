package gorm

import (
	"time"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
)

// ActivityEntity is the schema model for source training activities.
type ActivityEntity struct {
	ActivityID string    `gorm:"primaryKey"`
	SubjectID  string    `gorm:"index:idx_activity_subject_date"`
	Date       time.Time `gorm:"index:idx_activity_subject_date"`
	// "load" is a reserved word in MySQL, so the column carries an explicit
	// name.
	Load float64 `gorm:"column:training_load"`
}

func (ActivityEntity) TableName() string {
	return "training_activities"
}

// DerivedEntity is the schema model for computed ACWR results.
type DerivedEntity struct {
	ActivityID      string `gorm:"primaryKey"`
	ConfigurationID string `gorm:"primaryKey;index"`
	SubjectID       string `gorm:"index"`
	Date            time.Time
	AcuteLoad       float64
	ChronicLoad     float64
	Ratio           float64
	ComputedAt      time.Time
}

func (DerivedEntity) TableName() string {
	return "acwr_derived_results"
}

// MigrationLedgerEntity is the schema model for the append-only migration
// ledger.
type MigrationLedgerEntity struct {
	MigrationID       string `gorm:"primaryKey"`
	SubjectID         string `gorm:"index"`
	ConfigurationID   string
	Status            string
	TotalRecords      int
	ProcessedRecords  int
	SuccessfulRecords int
	FailedRecords     int
	BatchSize         int
	TotalBatches      int
	CurrentBatch      int
	StartedAt         time.Time
	LastUpdate        time.Time
	CompletedAt       *time.Time
	ErrorMessage      string
	RollbackID        string
	RollbackTimestamp *time.Time
}

func (MigrationLedgerEntity) TableName() string {
	return "acwr_migration_ledger"
}

// RollbackLedgerEntity is the schema model for the rollback-history ledger.
// Steps are stored as a JSON document; they are read back whole, never
// queried individually.
type RollbackLedgerEntity struct {
	RollbackID           string `gorm:"primaryKey"`
	MigrationID          string `gorm:"index"`
	SubjectID            string
	Scope                string
	Status               string
	StepsJSON            string
	TotalAffectedRecords int
	BackupID             string
	VerificationPassed   bool
	ErrorLog             model.FailureList `gorm:"type:text"`
	Success              bool
	StartedAt            time.Time
	EndedAt              *time.Time
}

func (RollbackLedgerEntity) TableName() string {
	return "acwr_rollback_ledger"
}

// ConfigurationEntity is the schema model for ACWR configurations.
type ConfigurationEntity struct {
	ConfigurationID   string `gorm:"primaryKey"`
	ChronicPeriodDays int
	DecayRate         float64
}

func (ConfigurationEntity) TableName() string {
	return "acwr_configurations"
}
