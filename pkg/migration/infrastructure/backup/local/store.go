// Package local provides the filesystem-backed rollback backup store.
// Backups are JSON blobs keyed by backup id; when enabled, each backup is
// additionally exported as a parquet file for offline audit.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	config "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/config"
	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

// BackupStore implements port.BackupStore on the local filesystem. A backup
// is durable once SaveBackup returns: the blob is written to a temporary
// file and renamed into place.
type BackupStore struct {
	baseDir       string
	exportParquet bool
}

// NewBackupStore creates a BackupStore rooted at cfg.BaseDir, creating the
// directory if needed.
func NewBackupStore(cfg config.BackupConfig) (*BackupStore, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("backup base directory is not configured")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", cfg.BaseDir, err)
	}
	return &BackupStore{baseDir: cfg.BaseDir, exportParquet: cfg.ExportParquet}, nil
}

var _ port.BackupStore = (*BackupStore)(nil)

func (s *BackupStore) blobPath(backupID string) string {
	return filepath.Join(s.baseDir, backupID+".json")
}

func (s *BackupStore) parquetPath(backupID string) string {
	return filepath.Join(s.baseDir, backupID+".parquet")
}

func (s *BackupStore) SaveBackup(ctx context.Context, backupID string, records []model.DerivedRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal backup %s: %w", backupID, err)
	}

	tmp, err := os.CreateTemp(s.baseDir, backupID+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for backup %s: %w", backupID, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write backup %s: %w", backupID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync backup %s: %w", backupID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close backup %s: %w", backupID, err)
	}
	if err := os.Rename(tmpName, s.blobPath(backupID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to finalize backup %s: %w", backupID, err)
	}

	if s.exportParquet {
		// The parquet copy is an audit artifact; its failure never blocks the
		// rollback that depends on the JSON blob.
		if err := exportParquet(s.parquetPath(backupID), records); err != nil {
			logger.Warnf("Parquet export for backup %s failed: %v", backupID, err)
		}
	}
	return nil
}

func (s *BackupStore) LoadBackup(ctx context.Context, backupID string) ([]model.DerivedRecord, error) {
	data, err := os.ReadFile(s.blobPath(backupID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, port.ErrBackupNotFound
		}
		return nil, fmt.Errorf("failed to read backup %s: %w", backupID, err)
	}
	var records []model.DerivedRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backup %s: %w", backupID, err)
	}
	return records, nil
}

func (s *BackupStore) DeleteBackup(ctx context.Context, backupID string) error {
	err := os.Remove(s.blobPath(backupID))
	if errors.Is(err, fs.ErrNotExist) {
		return port.ErrBackupNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete backup %s: %w", backupID, err)
	}
	// The audit copy is best effort both ways.
	if err := os.Remove(s.parquetPath(backupID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warnf("Failed to delete parquet export for backup %s: %v", backupID, err)
	}
	return nil
}
