package rollback_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	"github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/engine/rollback"
	exception "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/exception"
)

// countsStore serves configurable counts and an in-memory derived set.
type countsStore struct {
	mu              sync.Mutex
	derived         []model.DerivedRecord
	distinctSubj    int
	distinctConfigs int
	deleteErr       error
	listErr         error
	blockList       func()
}

func (s *countsStore) GetRecordCount(ctx context.Context, subjectID string) (int, error) {
	return 0, nil
}

func (s *countsStore) GetRecordsPage(ctx context.Context, subjectID string, limit, offset int) ([]model.ActivityRecord, error) {
	return nil, nil
}

func (s *countsStore) WriteDerivedResult(ctx context.Context, record model.DerivedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derived = append(s.derived, record)
	return nil
}

func (s *countsStore) BulkWriteDerivedResults(ctx context.Context, records []model.DerivedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derived = append(s.derived, records...)
	return nil
}

func (s *countsStore) matches(rec model.DerivedRecord, filter port.DerivedFilter) bool {
	switch {
	case filter.All:
		return true
	case filter.SubjectID != "":
		return rec.SubjectID == filter.SubjectID
	case filter.ConfigurationID != "":
		return rec.ConfigurationID == filter.ConfigurationID
	default:
		return false
	}
}

func (s *countsStore) CountDerivedResults(ctx context.Context, filter port.DerivedFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.derived {
		if s.matches(rec, filter) {
			n++
		}
	}
	return n, nil
}

func (s *countsStore) ListDerivedResults(ctx context.Context, filter port.DerivedFilter) ([]model.DerivedRecord, error) {
	if s.blockList != nil {
		s.blockList()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.DerivedRecord
	for _, rec := range s.derived {
		if s.matches(rec, filter) {
			out = append(out, rec)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				break
			}
		}
	}
	return out, nil
}

func (s *countsStore) DeleteDerivedResults(ctx context.Context, filter port.DerivedFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return 0, s.deleteErr
	}
	var kept []model.DerivedRecord
	deleted := 0
	for _, rec := range s.derived {
		if s.matches(rec, filter) && (filter.Limit == 0 || deleted < filter.Limit) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.derived = kept
	return deleted, nil
}

func (s *countsStore) CountDistinctSubjects(ctx context.Context, filter port.DerivedFilter) (int, error) {
	return s.distinctSubj, nil
}

func (s *countsStore) CountDistinctConfigurations(ctx context.Context, filter port.DerivedFilter) (int, error) {
	return s.distinctConfigs, nil
}

func (s *countsStore) HasActivity(ctx context.Context, subjectID, activityID string) (bool, error) {
	return true, nil
}

func (s *countsStore) addDerived(subjectID, configurationID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.derived = append(s.derived, model.DerivedRecord{
			ActivityID:      fmt.Sprintf("%s-act-%04d", subjectID, len(s.derived)),
			SubjectID:       subjectID,
			ConfigurationID: configurationID,
			Date:            time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			AcuteLoad:       100,
			ChronicLoad:     90,
			Ratio:           1.1,
		})
	}
}

// memLedger is an in-memory migration/rollback ledger.
type memLedger struct {
	mu         sync.Mutex
	migrations map[string]*model.MigrationJob
	rollbacks  map[string]*model.RollbackExecution
}

func newMemLedger() *memLedger {
	return &memLedger{
		migrations: make(map[string]*model.MigrationJob),
		rollbacks:  make(map[string]*model.RollbackExecution),
	}
}

func (l *memLedger) SaveMigration(ctx context.Context, job *model.MigrationJob) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := *job
	l.migrations[job.MigrationID] = &copied
	return nil
}

func (l *memLedger) FindMigrationByID(ctx context.Context, migrationID string) (*model.MigrationJob, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	job, ok := l.migrations[migrationID]
	if !ok {
		return nil, port.ErrMigrationNotFound
	}
	copied := *job
	return &copied, nil
}

func (l *memLedger) AttachRollback(ctx context.Context, migrationID, rollbackID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	job, ok := l.migrations[migrationID]
	if !ok {
		return port.ErrMigrationNotFound
	}
	now := time.Now()
	job.RollbackID = rollbackID
	job.RollbackTimestamp = &now
	return nil
}

func (l *memLedger) SaveRollback(ctx context.Context, execution *model.RollbackExecution) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollbacks[execution.RollbackID] = execution
	return nil
}

func (l *memLedger) FindRollbackByID(ctx context.Context, rollbackID string) (*model.RollbackExecution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	exec, ok := l.rollbacks[rollbackID]
	if !ok {
		return nil, port.ErrRollbackNotFound
	}
	return exec, nil
}

// memBackup is an in-memory rollback backup store.
type memBackup struct {
	mu      sync.Mutex
	blobs   map[string][]model.DerivedRecord
	saveErr error
}

func newMemBackup() *memBackup {
	return &memBackup{blobs: make(map[string][]model.DerivedRecord)}
}

func (b *memBackup) SaveBackup(ctx context.Context, backupID string, records []model.DerivedRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.blobs[backupID] = append([]model.DerivedRecord(nil), records...)
	return nil
}

func (b *memBackup) LoadBackup(ctx context.Context, backupID string) ([]model.DerivedRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	records, ok := b.blobs[backupID]
	if !ok {
		return nil, port.ErrBackupNotFound
	}
	return records, nil
}

func (b *memBackup) DeleteBackup(ctx context.Context, backupID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, backupID)
	return nil
}

func ledgerWithFailedJob(t *testing.T, subjectID, configurationID string) (*memLedger, *model.MigrationJob) {
	t.Helper()
	ledger := newMemLedger()
	job := model.NewMigrationJob(subjectID, configurationID, 500, 100)
	require.NoError(t, job.MarkAsRunning())
	require.NoError(t, job.MarkAsFailed(errors.New("store went away")))
	require.NoError(t, ledger.SaveMigration(context.Background(), job))
	return ledger, job
}

func TestAnalyzeImpactFullSystemAlwaysCriticalExtreme(t *testing.T) {
	// Zero affected records; the rule is fixed, not data-dependent.
	store := &countsStore{}
	ledger, job := ledgerWithFailedJob(t, "athlete-1", "cfg-1")
	planner := rollback.NewPlanner(store, ledger, newMemBackup())

	impact, err := planner.AnalyzeRollbackImpact(context.Background(), job.MigrationID, model.RollbackScopeFullSystem)
	require.NoError(t, err)
	assert.Equal(t, model.DataLossRiskCritical, impact.DataLossRisk)
	assert.Equal(t, model.RollbackComplexityExtreme, impact.Complexity)
	assert.Zero(t, impact.AffectedRecords)
}

func TestAnalyzeImpactConfigurationThresholds(t *testing.T) {
	ctx := context.Background()

	// 5 subjects, 500 records: below all thresholds.
	store := &countsStore{distinctSubj: 5, distinctConfigs: 1}
	store.addDerived("athlete-1", "cfg-1", 500)
	ledger, job := ledgerWithFailedJob(t, "athlete-1", "cfg-1")
	planner := rollback.NewPlanner(store, ledger, newMemBackup())

	impact, err := planner.AnalyzeRollbackImpact(ctx, job.MigrationID, model.RollbackScopeConfiguration)
	require.NoError(t, err)
	assert.Equal(t, model.DataLossRiskLow, impact.DataLossRisk)
	assert.Equal(t, model.RollbackComplexitySimple, impact.Complexity)

	// 150 subjects, same 500 records: subject count alone triggers high risk.
	store.distinctSubj = 150
	impact, err = planner.AnalyzeRollbackImpact(ctx, job.MigrationID, model.RollbackScopeConfiguration)
	require.NoError(t, err)
	assert.Equal(t, model.DataLossRiskHigh, impact.DataLossRisk)
	assert.Equal(t, model.RollbackComplexitySimple, impact.Complexity)
}

func TestAnalyzeImpactSingleBatchEstimate(t *testing.T) {
	store := &countsStore{}
	store.addDerived("athlete-1", "cfg-1", 37) // actual count is ignored for this scope
	ledger, job := ledgerWithFailedJob(t, "athlete-1", "cfg-1")
	planner := rollback.NewPlanner(store, ledger, newMemBackup())

	impact, err := planner.AnalyzeRollbackImpact(context.Background(), job.MigrationID, model.RollbackScopeSingleBatch)
	require.NoError(t, err)
	assert.Equal(t, 1000, impact.AffectedRecords)
	assert.Equal(t, model.DataLossRiskLow, impact.DataLossRisk)
	assert.Equal(t, model.RollbackComplexitySimple, impact.Complexity)
	assert.Equal(t, 40*time.Second, impact.EstimatedDowntime)
}

func TestAnalyzeImpactDowntimeRates(t *testing.T) {
	store := &countsStore{distinctSubj: 2, distinctConfigs: 1}
	store.addDerived("athlete-1", "cfg-1", 1000)
	ledger, job := ledgerWithFailedJob(t, "athlete-1", "cfg-1")
	planner := rollback.NewPlanner(store, ledger, newMemBackup())
	ctx := context.Background()

	impact, err := planner.AnalyzeRollbackImpact(ctx, job.MigrationID, model.RollbackScopeUserMigration)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second+20*time.Second, impact.EstimatedDowntime) // 1000 × 0.02s

	impact, err = planner.AnalyzeRollbackImpact(ctx, job.MigrationID, model.RollbackScopeConfiguration)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second+50*time.Second, impact.EstimatedDowntime) // 1000 × 0.05s

	impact, err = planner.AnalyzeRollbackImpact(ctx, job.MigrationID, model.RollbackScopeFullSystem)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second+100*time.Second, impact.EstimatedDowntime) // 1000 × 0.1s
}

func TestAnalyzeImpactUnknownMigration(t *testing.T) {
	planner := rollback.NewPlanner(&countsStore{}, newMemLedger(), newMemBackup())

	_, err := planner.AnalyzeRollbackImpact(context.Background(), "missing", model.RollbackScopeFullSystem)
	require.Error(t, err)
	assert.True(t, exception.IsValidation(err))
}

func TestCreateRollbackPlanSkeleton(t *testing.T) {
	store := &countsStore{distinctSubj: 1, distinctConfigs: 1}
	store.addDerived("athlete-1", "cfg-1", 200)
	ledger, job := ledgerWithFailedJob(t, "athlete-1", "cfg-1")
	planner := rollback.NewPlanner(store, ledger, newMemBackup())

	plan, err := planner.CreateRollbackPlan(context.Background(), job.MigrationID, model.RollbackScopeUserMigration)
	require.NoError(t, err)

	require.Len(t, plan.Steps, 5)
	assert.Equal(t, model.StepCreateBackup, plan.Steps[0].Kind)
	assert.Equal(t, model.StepValidateCurrentState, plan.Steps[1].Kind)
	assert.Equal(t, model.StepRollbackUserMigration, plan.Steps[2].Kind)
	assert.Equal(t, model.StepValidateRollbackResult, plan.Steps[3].Kind)
	assert.Equal(t, model.StepUpdateMigrationStatus, plan.Steps[4].Kind)

	// Only the final status update is non-critical.
	for i, step := range plan.Steps {
		if step.Kind == model.StepUpdateMigrationStatus {
			assert.False(t, step.Critical, "step %d", i)
		} else {
			assert.True(t, step.Critical, "step %d", i)
		}
	}

	assert.Equal(t, job.MigrationID, plan.TargetMigrationID)
	assert.Equal(t, "athlete-1", plan.TargetSubjectID)
	assert.Len(t, plan.SnapshotRecords, 200)
	require.NotNil(t, plan.SnapshotJob)
	assert.Equal(t, "cfg-1", plan.SnapshotJob.ConfigurationID)
	assert.Greater(t, plan.EstimatedDuration, time.Duration(0))
	assert.NotEmpty(t, plan.Prerequisites)
}

func TestCreateRollbackPlanComplexityFactor(t *testing.T) {
	store := &countsStore{distinctSubj: 1, distinctConfigs: 1}
	ledger, job := ledgerWithFailedJob(t, "athlete-1", "cfg-1")
	planner := rollback.NewPlanner(store, ledger, newMemBackup())

	simple, err := planner.CreateRollbackPlan(context.Background(), job.MigrationID, model.RollbackScopeUserMigration)
	require.NoError(t, err)
	extreme, err := planner.CreateRollbackPlan(context.Background(), job.MigrationID, model.RollbackScopeFullSystem)
	require.NoError(t, err)

	var simpleSum, extremeSum time.Duration
	for _, s := range simple.Steps {
		simpleSum += s.EstimatedDuration
	}
	for _, s := range extreme.Steps {
		extremeSum += s.EstimatedDuration
	}
	assert.Equal(t, simpleSum, simple.EstimatedDuration)                           // ×1 for simple
	assert.Equal(t, time.Duration(float64(extremeSum)*2), extreme.EstimatedDuration) // ×2 for extreme
}

func TestCreateRollbackPlanConfigurationRequiresID(t *testing.T) {
	store := &countsStore{}
	ledger := newMemLedger()
	job := model.NewMigrationJob("athlete-1", "", 100, 100)
	require.NoError(t, job.MarkAsRunning())
	require.NoError(t, job.MarkAsFailed(errors.New("boom")))
	require.NoError(t, ledger.SaveMigration(context.Background(), job))
	planner := rollback.NewPlanner(store, ledger, newMemBackup())

	_, err := planner.CreateRollbackPlan(context.Background(), job.MigrationID, model.RollbackScopeConfiguration)
	require.Error(t, err)
	assert.True(t, exception.IsValidation(err))
}
