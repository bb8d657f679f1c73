// Package logging provides the log-emitting progress event sink.
package logging

import (
	"context"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

// LoggingNotifier is a ProgressNotifier that writes every event to the log.
// Lifecycle events log at INFO, per-batch events at DEBUG and failures at
// WARN, so the default level shows the shape of a run without the noise.
type LoggingNotifier struct{}

// NewLoggingNotifier creates a new LoggingNotifier.
func NewLoggingNotifier() port.ProgressNotifier {
	return &LoggingNotifier{}
}

func (n *LoggingNotifier) Notify(ctx context.Context, event model.ProgressEvent) {
	switch event.Type {
	case model.EventMigrationStarted, model.EventMigrationCompleted:
		logger.Infof("Migration %s: %s - %s (%d/%d records)",
			event.MigrationID, event.Type, event.Message, event.ProcessedRecords, event.TotalRecords)
	case model.EventMigrationFailed, model.EventBatchFailed:
		logger.Warnf("Migration %s: %s - Batch %d: %s (%d/%d records)",
			event.MigrationID, event.Type, event.BatchNumber, event.Message, event.ProcessedRecords, event.TotalRecords)
	default:
		logger.Debugf("Migration %s: %s - Batch %d (%d/%d records)",
			event.MigrationID, event.Type, event.BatchNumber, event.ProcessedRecords, event.TotalRecords)
	}
}

var _ port.ProgressNotifier = (*LoggingNotifier)(nil)
