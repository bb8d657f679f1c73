// Package port defines the boundary interfaces between the migration engine
// and its external collaborators: the record store, the configuration
// service, the calculation function, progress event sinks, the
// migration/rollback ledger and the rollback backup store.
package port

import (
	"context"
	"errors"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
)

// ErrConfigurationNotFound is returned by ConfigurationService when the
// requested configuration does not exist.
var ErrConfigurationNotFound = errors.New("configuration not found")

// ErrMigrationNotFound is returned by LedgerRepository when the requested
// migration ledger row does not exist.
var ErrMigrationNotFound = errors.New("migration not found")

// ErrRollbackNotFound is returned by LedgerRepository when the requested
// rollback ledger row does not exist.
var ErrRollbackNotFound = errors.New("rollback not found")

// ErrBackupNotFound is returned by BackupStore when the requested backup id
// does not exist.
var ErrBackupNotFound = errors.New("backup not found")

// DerivedFilter selects derived records for counting, listing or deletion.
// Exactly one of SubjectID, ConfigurationID or All should be set; Limit
// bounds the affected rows when non-zero (used by the SINGLE_BATCH
// approximation).
type DerivedFilter struct {
	SubjectID       string
	ConfigurationID string
	All             bool
	Limit           int
}

// ActivityStore is the external record store adapter. Reads are paginated by
// a stable (date, activity id) order; writes happen inside a transactional
// scope the adapter manages, and the engine commits explicitly at defined
// points rather than assuming auto-commit semantics.
type ActivityStore interface {
	// GetRecordCount returns the number of source records for a subject.
	GetRecordCount(ctx context.Context, subjectID string) (int, error)
	// GetRecordsPage returns one page of a subject's source records ordered
	// by the stable (date, activity id) key.
	GetRecordsPage(ctx context.Context, subjectID string, limit, offset int) ([]model.ActivityRecord, error)
	// WriteDerivedResult upserts one derived record.
	WriteDerivedResult(ctx context.Context, record model.DerivedRecord) error
	// BulkWriteDerivedResults upserts many derived records in one round trip
	// (performance-optimized path).
	BulkWriteDerivedResults(ctx context.Context, records []model.DerivedRecord) error
	// CountDerivedResults counts derived records matching the filter.
	CountDerivedResults(ctx context.Context, filter DerivedFilter) (int, error)
	// ListDerivedResults returns the derived records matching the filter,
	// used for pre-rollback snapshots.
	ListDerivedResults(ctx context.Context, filter DerivedFilter) ([]model.DerivedRecord, error)
	// DeleteDerivedResults deletes derived records matching the filter and
	// returns the number of rows affected.
	DeleteDerivedResults(ctx context.Context, filter DerivedFilter) (int, error)
	// CountDistinctSubjects counts the distinct subjects among derived
	// records matching the filter (impact analysis).
	CountDistinctSubjects(ctx context.Context, filter DerivedFilter) (int, error)
	// CountDistinctConfigurations counts the distinct configurations among
	// derived records matching the filter (impact analysis).
	CountDistinctConfigurations(ctx context.Context, filter DerivedFilter) (int, error)
	// HasActivity reports whether a source record with the given activity id
	// exists for the subject (STRICT validation cross-reference).
	HasActivity(ctx context.Context, subjectID, activityID string) (bool, error)
}

// ConfigurationService resolves ACWR configurations. It is used only for
// existence validation and to read the parameters handed to the calculation
// function.
type ConfigurationService interface {
	GetConfiguration(ctx context.Context, configurationID string) (*model.Configuration, error)
}

// Calculator is the external pure ACWR calculation function. The processor
// treats it as an opaque black box and only inspects Success and the numeric
// fields it persists. An error return means infrastructure failure, never a
// data-quality problem.
type Calculator interface {
	Calculate(ctx context.Context, record model.ActivityRecord, cfg model.Configuration) (model.CalculationResult, error)
}

// ProgressNotifier receives ordered progress events. Implementations must be
// safe for concurrent use; publication failures must never abort a
// migration.
type ProgressNotifier interface {
	Notify(ctx context.Context, event model.ProgressEvent)
}

// LedgerRepository is the append-only migration/rollback ledger. The engine
// writes one row per terminal state and never updates a terminal row except
// to attach a rollback reference to the original migration row.
type LedgerRepository interface {
	// SaveMigration appends or refreshes the ledger row for a job reaching a
	// terminal state.
	SaveMigration(ctx context.Context, job *model.MigrationJob) error
	// FindMigrationByID returns the ledger row for a migration.
	FindMigrationByID(ctx context.Context, migrationID string) (*model.MigrationJob, error)
	// AttachRollback records the rollback id and timestamp on the original
	// migration row. This is the only permitted post-terminal update.
	AttachRollback(ctx context.Context, migrationID, rollbackID string) error
	// SaveRollback appends the ledger row for a finished rollback execution.
	SaveRollback(ctx context.Context, execution *model.RollbackExecution) error
	// FindRollbackByID returns the ledger row for a rollback execution.
	FindRollbackByID(ctx context.Context, rollbackID string) (*model.RollbackExecution, error)
}

// BackupStore is the rollback-backup blob store, keyed by generated backup
// id. A backup must be durable before the scope-specific delete step runs.
type BackupStore interface {
	SaveBackup(ctx context.Context, backupID string, records []model.DerivedRecord) error
	LoadBackup(ctx context.Context, backupID string) ([]model.DerivedRecord, error)
	DeleteBackup(ctx context.Context, backupID string) error
}
