package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/config"
	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
)

func sampleRecords(n int) []model.DerivedRecord {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]model.DerivedRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, model.DerivedRecord{
			ActivityID:      model.NewID(),
			SubjectID:       "subj-a",
			ConfigurationID: "cfg-1",
			Date:            base.AddDate(0, 0, i),
			AcuteLoad:       100,
			ChronicLoad:     90,
			Ratio:           1.11,
			ComputedAt:      base,
		})
	}
	return records
}

func TestSaveAndLoadBackup(t *testing.T) {
	ctx := context.Background()
	store, err := NewBackupStore(config.BackupConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	records := sampleRecords(5)
	require.NoError(t, store.SaveBackup(ctx, "bk-1", records))

	loaded, err := store.LoadBackup(ctx, "bk-1")
	require.NoError(t, err)
	require.Len(t, loaded, 5)
	assert.Equal(t, records[0].ActivityID, loaded[0].ActivityID)
	assert.Equal(t, records[0].Ratio, loaded[0].Ratio)
	assert.True(t, records[0].Date.Equal(loaded[0].Date))
}

func TestLoadMissingBackup(t *testing.T) {
	ctx := context.Background()
	store, err := NewBackupStore(config.BackupConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.LoadBackup(ctx, "missing")
	assert.ErrorIs(t, err, port.ErrBackupNotFound)
}

func TestDeleteBackup(t *testing.T) {
	ctx := context.Background()
	store, err := NewBackupStore(config.BackupConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, store.SaveBackup(ctx, "bk-1", sampleRecords(2)))
	require.NoError(t, store.DeleteBackup(ctx, "bk-1"))
	assert.ErrorIs(t, store.DeleteBackup(ctx, "bk-1"), port.ErrBackupNotFound)
}

func TestSaveBackupEmptySnapshot(t *testing.T) {
	ctx := context.Background()
	store, err := NewBackupStore(config.BackupConfig{BaseDir: t.TempDir()})
	require.NoError(t, err)

	require.NoError(t, store.SaveBackup(ctx, "bk-empty", nil))
	loaded, err := store.LoadBackup(ctx, "bk-empty")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestParquetExportWritesAuditFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewBackupStore(config.BackupConfig{BaseDir: dir, ExportParquet: true})
	require.NoError(t, err)

	require.NoError(t, store.SaveBackup(ctx, "bk-pq", sampleRecords(3)))

	info, err := os.Stat(filepath.Join(dir, "bk-pq.parquet"))
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestNewBackupStoreRequiresBaseDir(t *testing.T) {
	_, err := NewBackupStore(config.BackupConfig{})
	assert.Error(t, err)
}
