package inmemory

import (
	"context"
	"sync"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
)

// BackupStore is a map-backed implementation of port.BackupStore. Snapshots
// are copied on save and load so later mutations cannot corrupt a backup.
type BackupStore struct {
	mu    sync.RWMutex
	blobs map[string][]model.DerivedRecord
}

// NewBackupStore creates an empty BackupStore.
func NewBackupStore() *BackupStore {
	return &BackupStore{blobs: make(map[string][]model.DerivedRecord)}
}

var _ port.BackupStore = (*BackupStore)(nil)

func (s *BackupStore) SaveBackup(_ context.Context, backupID string, records []model.DerivedRecord) error {
	copied := make([]model.DerivedRecord, len(records))
	copy(copied, records)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[backupID] = copied
	return nil
}

func (s *BackupStore) LoadBackup(_ context.Context, backupID string) ([]model.DerivedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[backupID]
	if !ok {
		return nil, port.ErrBackupNotFound
	}
	copied := make([]model.DerivedRecord, len(blob))
	copy(copied, blob)
	return copied, nil
}

func (s *BackupStore) DeleteBackup(_ context.Context, backupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[backupID]; !ok {
		return port.ErrBackupNotFound
	}
	delete(s.blobs, backupID)
	return nil
}
