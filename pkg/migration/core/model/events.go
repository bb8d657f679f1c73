package model

import "time"

// ProgressEventType identifies the kind of a migration progress event.
type ProgressEventType string

const (
	EventMigrationStarted   ProgressEventType = "MIGRATION_STARTED"
	EventBatchStarted       ProgressEventType = "BATCH_STARTED"
	EventBatchCompleted     ProgressEventType = "BATCH_COMPLETED"
	EventBatchFailed        ProgressEventType = "BATCH_FAILED"
	EventProgressUpdate     ProgressEventType = "PROGRESS_UPDATE"
	EventMigrationCompleted ProgressEventType = "MIGRATION_COMPLETED"
	EventMigrationFailed    ProgressEventType = "MIGRATION_FAILED"
)

// ProgressEvent is one ordered progress notification for a migration.
// Within a single migration, events are published in order (STARTED, then
// per-batch events in ascending batch number, then one terminal event) and
// ProcessedRecords is monotonically non-decreasing. Delivery to external
// sinks is at-least-once; consumers must be idempotent on
// (MigrationID, Type, BatchNumber/ProcessedRecords).
type ProgressEvent struct {
	MigrationID      string
	SubjectID        string
	Type             ProgressEventType
	BatchNumber      int
	ProcessedRecords int
	TotalRecords     int
	Message          string
	Timestamp        time.Time
}

// NewProgressEvent creates a timestamped event for the given job.
func NewProgressEvent(job *MigrationJob, eventType ProgressEventType, batchNumber int, message string) ProgressEvent {
	return ProgressEvent{
		MigrationID:      job.MigrationID,
		SubjectID:        job.SubjectID,
		Type:             eventType,
		BatchNumber:      batchNumber,
		ProcessedRecords: job.ProcessedRecords,
		TotalRecords:     job.TotalRecords,
		Message:          message,
		Timestamp:        time.Now(),
	}
}
