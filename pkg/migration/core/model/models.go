package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

// MigrationStatus represents the state of a migration job.
type MigrationStatus string

const (
	MigrationStatusPending    MigrationStatus = "PENDING"
	MigrationStatusRunning    MigrationStatus = "RUNNING"
	MigrationStatusPaused     MigrationStatus = "PAUSED"
	MigrationStatusCompleted  MigrationStatus = "COMPLETED"
	MigrationStatusFailed     MigrationStatus = "FAILED"
	MigrationStatusCancelled  MigrationStatus = "CANCELLED"
	MigrationStatusRolledBack MigrationStatus = "ROLLED_BACK"
)

// String returns the string representation of the MigrationStatus.
func (s MigrationStatus) String() string {
	return string(s)
}

// IsTerminal checks whether the status represents a finished state.
// Once terminal, a job is immutable except for rollback-related fields.
func (s MigrationStatus) IsTerminal() bool {
	switch s {
	case MigrationStatusCompleted, MigrationStatusFailed, MigrationStatusCancelled, MigrationStatusRolledBack:
		return true
	default:
		return false
	}
}

// isValidMigrationTransition checks whether a state transition is legal:
// PENDING → RUNNING → {PAUSED ⇄ RUNNING} → {COMPLETED | FAILED | CANCELLED};
// FAILED → ROLLED_BACK (rollback executor only).
func isValidMigrationTransition(current, next MigrationStatus) bool {
	switch current {
	case MigrationStatusPending:
		return next == MigrationStatusRunning || next == MigrationStatusCancelled
	case MigrationStatusRunning:
		return next == MigrationStatusPaused || next == MigrationStatusCompleted ||
			next == MigrationStatusFailed || next == MigrationStatusCancelled
	case MigrationStatusPaused:
		return next == MigrationStatusRunning || next == MigrationStatusCancelled
	case MigrationStatusFailed:
		return next == MigrationStatusRolledBack
	case MigrationStatusCompleted, MigrationStatusCancelled, MigrationStatusRolledBack:
		return false
	default:
		return false
	}
}

// FailureList holds a list of error messages.
type FailureList []string

// Value implements the `driver.Valuer` interface, converting the list to a
// JSON string for ledger persistence.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(fl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to a
// FailureList.
func (fl *FailureList) Scan(value interface{}) error {
	if value == nil {
		*fl = make(FailureList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for FailureList: %T", value)
	}

	if len(b) == 0 {
		*fl = make(FailureList, 0)
		return nil
	}

	if err := json.Unmarshal(b, fl); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	return nil
}

// MigrationJob represents one run of ACWR re-computation for one subject
// under one configuration.
type MigrationJob struct {
	MigrationID       string
	SubjectID         string
	ConfigurationID   string
	Status            MigrationStatus
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
	// RollbackID and RollbackTimestamp are the only fields a terminal job may
	// still gain, set by the rollback executor when a rollback completes.
	RollbackID        string
	RollbackTimestamp *time.Time
}

// NewMigrationJob creates a new MigrationJob in PENDING state.
func NewMigrationJob(subjectID, configurationID string, totalRecords, batchSize int) *MigrationJob {
	now := time.Now()
	totalBatches := 0
	if batchSize > 0 {
		totalBatches = (totalRecords + batchSize - 1) / batchSize
	}
	return &MigrationJob{
		MigrationID:     NewID(),
		SubjectID:       subjectID,
		ConfigurationID: configurationID,
		Status:          MigrationStatusPending,
		TotalRecords:    totalRecords,
		BatchSize:       batchSize,
		TotalBatches:    totalBatches,
		StartedAt:       now,
		LastUpdate:      now,
	}
}

// TransitionTo safely transitions the state of the job. An illegal
// transition is rejected with an error and leaves the job unchanged.
func (j *MigrationJob) TransitionTo(newStatus MigrationStatus) error {
	if !isValidMigrationTransition(j.Status, newStatus) {
		return fmt.Errorf("MigrationJob (ID: %s): invalid state transition: %s -> %s", j.MigrationID, j.Status, newStatus)
	}
	j.Status = newStatus
	j.LastUpdate = time.Now()
	return nil
}

// MarkAsRunning transitions the job to RUNNING.
func (j *MigrationJob) MarkAsRunning() error {
	return j.TransitionTo(MigrationStatusRunning)
}

// MarkAsCompleted transitions the job to COMPLETED and stamps the end time.
// Partial per-record failures do not block completion; they stay recorded in
// the counters.
func (j *MigrationJob) MarkAsCompleted() error {
	if err := j.TransitionTo(MigrationStatusCompleted); err != nil {
		return err
	}
	now := time.Now()
	j.CompletedAt = &now
	return nil
}

// MarkAsFailed transitions the job to FAILED and captures the error message.
func (j *MigrationJob) MarkAsFailed(err error) error {
	if terr := j.TransitionTo(MigrationStatusFailed); terr != nil {
		return terr
	}
	now := time.Now()
	j.CompletedAt = &now
	if err != nil {
		j.ErrorMessage = err.Error()
	}
	return nil
}

// MarkAsCancelled transitions the job to CANCELLED.
func (j *MigrationJob) MarkAsCancelled() error {
	if err := j.TransitionTo(MigrationStatusCancelled); err != nil {
		return err
	}
	now := time.Now()
	j.CompletedAt = &now
	return nil
}

// MarkAsRolledBack transitions the job to ROLLED_BACK and records the
// rollback reference. Only legal from FAILED.
func (j *MigrationJob) MarkAsRolledBack(rollbackID string) error {
	if err := j.TransitionTo(MigrationStatusRolledBack); err != nil {
		return err
	}
	now := time.Now()
	j.RollbackID = rollbackID
	j.RollbackTimestamp = &now
	return nil
}

// AccumulateBatch folds one BatchResult into the job's counters. Counter
// updates are commutative sums, so out-of-order completion under parallel
// strategies cannot corrupt the final totals.
func (j *MigrationJob) AccumulateBatch(result BatchResult) {
	j.ProcessedRecords += result.RecordsProcessed
	j.SuccessfulRecords += result.Successful
	j.FailedRecords += result.Failed
	if j.ProcessedRecords > j.TotalRecords {
		logger.Warnf("MigrationJob (ID: %s): processed %d exceeds total %d; clamping.", j.MigrationID, j.ProcessedRecords, j.TotalRecords)
		j.ProcessedRecords = j.TotalRecords
	}
	j.LastUpdate = time.Now()
}

// BatchResult is the immutable outcome of processing one batch of records
// for one subject.
type BatchResult struct {
	BatchID          string
	SubjectID        string
	RecordsProcessed int
	Successful       int
	Failed           int
	ProcessingTime   time.Duration
	Errors           []string
}

// ProcessingMetrics is the per-run aggregate maintained by the batch
// processor. It is reset at the start of each processing run and is not
// persisted.
type ProcessingMetrics struct {
	TotalBatches          int
	CompletedBatches      int
	FailedBatches         int
	TotalRecordsProcessed int
	TotalProcessingTime   time.Duration
	AverageBatchTime      time.Duration
	ThroughputPerSecond   float64
	PeakMemoryPercent     float64
	AverageMemoryPercent  float64
	PeakCPUPercent        float64
	AverageCPUPercent     float64
	ErrorRate             float64
}

// ActivityRecord is one source time-series record (a training activity) for
// a subject, ordered by a stable (date, activity id) key.
type ActivityRecord struct {
	ActivityID string
	SubjectID  string
	Date       time.Time
	Load       float64
}

// DerivedRecord is one computed ACWR result written back by the pipeline.
type DerivedRecord struct {
	ActivityID      string
	SubjectID       string
	ConfigurationID string
	Date            time.Time
	AcuteLoad       float64
	ChronicLoad     float64
	Ratio           float64
	ComputedAt      time.Time
}

// Configuration is a named parameter set controlling how the derived metric
// is computed.
type Configuration struct {
	ConfigurationID   string
	ChronicPeriodDays int
	DecayRate         float64
}

// CalculationResult is the opaque outcome of the external calculation
// function. The processor only inspects Success and the numeric fields it
// persists.
type CalculationResult struct {
	Success     bool
	AcuteLoad   float64
	ChronicLoad float64
	Ratio       float64
	Reason      string
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}
