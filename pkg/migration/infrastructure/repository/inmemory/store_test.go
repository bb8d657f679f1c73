package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func seedStore(t *testing.T, subjectID string, count int) *ActivityStore {
	t.Helper()
	store := NewActivityStore()
	for i := 0; i < count; i++ {
		store.SeedActivities(model.ActivityRecord{
			ActivityID: model.NewID(),
			SubjectID:  subjectID,
			Date:       day(i),
			Load:       float64(100 + i),
		})
	}
	return store
}

func TestGetRecordsPageStableOrder(t *testing.T) {
	ctx := context.Background()
	store := seedStore(t, "subj-1", 25)

	count, err := store.GetRecordCount(ctx, "subj-1")
	require.NoError(t, err)
	assert.Equal(t, 25, count)

	seen := make(map[string]bool)
	var lastDate time.Time
	for offset := 0; offset < 25; offset += 10 {
		page, err := store.GetRecordsPage(ctx, "subj-1", 10, offset)
		require.NoError(t, err)
		for _, r := range page {
			assert.False(t, seen[r.ActivityID], "record %s served twice", r.ActivityID)
			seen[r.ActivityID] = true
			assert.False(t, r.Date.Before(lastDate))
			lastDate = r.Date
		}
	}
	assert.Len(t, seen, 25)

	empty, err := store.GetRecordsPage(ctx, "subj-1", 10, 25)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDerivedFilterScopes(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	for i := 0; i < 6; i++ {
		subject := "subj-a"
		config := "cfg-1"
		if i >= 4 {
			subject = "subj-b"
			config = "cfg-2"
		}
		require.NoError(t, store.WriteDerivedResult(ctx, model.DerivedRecord{
			ActivityID:      model.NewID(),
			SubjectID:       subject,
			ConfigurationID: config,
			Date:            day(i),
			Ratio:           1.0,
		}))
	}

	count, err := store.CountDerivedResults(ctx, port.DerivedFilter{SubjectID: "subj-a"})
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	count, err = store.CountDerivedResults(ctx, port.DerivedFilter{ConfigurationID: "cfg-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountDerivedResults(ctx, port.DerivedFilter{All: true})
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	// An empty filter matches nothing.
	count, err = store.CountDerivedResults(ctx, port.DerivedFilter{})
	require.NoError(t, err)
	assert.Zero(t, count)

	subjects, err := store.CountDistinctSubjects(ctx, port.DerivedFilter{All: true})
	require.NoError(t, err)
	assert.Equal(t, 2, subjects)

	configs, err := store.CountDistinctConfigurations(ctx, port.DerivedFilter{All: true})
	require.NoError(t, err)
	assert.Equal(t, 2, configs)
}

func TestBoundedDeleteRemovesOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	records := make([]model.DerivedRecord, 0, 10)
	for i := 0; i < 10; i++ {
		records = append(records, model.DerivedRecord{
			ActivityID:      model.NewID(),
			SubjectID:       "subj-a",
			ConfigurationID: "cfg-1",
			Date:            day(i),
		})
	}
	require.NoError(t, store.BulkWriteDerivedResults(ctx, records))

	deleted, err := store.DeleteDerivedResults(ctx, port.DerivedFilter{SubjectID: "subj-a", Limit: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, deleted)

	remaining, err := store.ListDerivedResults(ctx, port.DerivedFilter{SubjectID: "subj-a"})
	require.NoError(t, err)
	require.Len(t, remaining, 6)
	// The bounded delete takes the head of the stable order.
	assert.Equal(t, day(4), remaining[0].Date)
}

func TestWriteDerivedResultUpserts(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	rec := model.DerivedRecord{ActivityID: "act-1", SubjectID: "subj-a", ConfigurationID: "cfg-1", Ratio: 1.0}
	require.NoError(t, store.WriteDerivedResult(ctx, rec))
	rec.Ratio = 1.5
	require.NoError(t, store.WriteDerivedResult(ctx, rec))

	listed, err := store.ListDerivedResults(ctx, port.DerivedFilter{SubjectID: "subj-a"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 1.5, listed[0].Ratio)
}

func TestHasActivity(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	store.SeedActivities(model.ActivityRecord{ActivityID: "act-1", SubjectID: "subj-a", Date: day(0)})

	ok, err := store.HasActivity(ctx, "subj-a", "act-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.HasActivity(ctx, "subj-b", "act-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.HasActivity(ctx, "subj-a", "act-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedgerRoundTripAndCopySemantics(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedgerRepository()

	job := model.NewMigrationJob("subj-a", "cfg-1", 100, 10)
	require.NoError(t, ledger.SaveMigration(ctx, job))

	loaded, err := ledger.FindMigrationByID(ctx, job.MigrationID)
	require.NoError(t, err)
	assert.Equal(t, job.MigrationID, loaded.MigrationID)

	// Mutating the returned row must not leak into the ledger.
	loaded.ProcessedRecords = 42
	again, err := ledger.FindMigrationByID(ctx, job.MigrationID)
	require.NoError(t, err)
	assert.Zero(t, again.ProcessedRecords)

	_, err = ledger.FindMigrationByID(ctx, "missing")
	assert.ErrorIs(t, err, port.ErrMigrationNotFound)
}

func TestLedgerAttachRollback(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedgerRepository()

	job := model.NewMigrationJob("subj-a", "cfg-1", 100, 10)
	require.NoError(t, job.MarkAsRunning())
	require.NoError(t, job.MarkAsFailed(assert.AnError))
	require.NoError(t, ledger.SaveMigration(ctx, job))

	require.NoError(t, ledger.AttachRollback(ctx, job.MigrationID, "rb-1"))

	loaded, err := ledger.FindMigrationByID(ctx, job.MigrationID)
	require.NoError(t, err)
	assert.Equal(t, model.MigrationStatusRolledBack, loaded.Status)
	assert.Equal(t, "rb-1", loaded.RollbackID)
	require.NotNil(t, loaded.RollbackTimestamp)

	assert.ErrorIs(t, ledger.AttachRollback(ctx, "missing", "rb-1"), port.ErrMigrationNotFound)
}

func TestBackupStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	backups := NewBackupStore()

	records := []model.DerivedRecord{
		{ActivityID: "act-1", SubjectID: "subj-a", ConfigurationID: "cfg-1", Ratio: 1.1},
		{ActivityID: "act-2", SubjectID: "subj-a", ConfigurationID: "cfg-1", Ratio: 0.9},
	}
	require.NoError(t, backups.SaveBackup(ctx, "bk-1", records))

	// Mutating the source slice after save must not change the backup.
	records[0].Ratio = 99

	loaded, err := backups.LoadBackup(ctx, "bk-1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, 1.1, loaded[0].Ratio)

	_, err = backups.LoadBackup(ctx, "missing")
	assert.ErrorIs(t, err, port.ErrBackupNotFound)

	require.NoError(t, backups.DeleteBackup(ctx, "bk-1"))
	assert.ErrorIs(t, backups.DeleteBackup(ctx, "bk-1"), port.ErrBackupNotFound)
}

func TestConfigurationService(t *testing.T) {
	ctx := context.Background()
	svc := NewConfigurationService(model.Configuration{ConfigurationID: "cfg-1", ChronicPeriodDays: 28, DecayRate: 0.07})

	cfg, err := svc.GetConfiguration(ctx, "cfg-1")
	require.NoError(t, err)
	assert.Equal(t, 28, cfg.ChronicPeriodDays)

	_, err = svc.GetConfiguration(ctx, "missing")
	assert.ErrorIs(t, err, port.ErrConfigurationNotFound)
}
