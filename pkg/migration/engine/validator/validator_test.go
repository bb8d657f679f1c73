package validator_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	"github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/engine/validator"
	exception "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/exception"
)

// listStore serves a fixed derived record set and a source-activity set.
type listStore struct {
	derived    []model.DerivedRecord
	activities map[string]bool
	listErr    error
	hasErr     error
}

func (s *listStore) GetRecordCount(ctx context.Context, subjectID string) (int, error) {
	return 0, nil
}

func (s *listStore) GetRecordsPage(ctx context.Context, subjectID string, limit, offset int) ([]model.ActivityRecord, error) {
	return nil, nil
}

func (s *listStore) WriteDerivedResult(ctx context.Context, record model.DerivedRecord) error {
	return nil
}

func (s *listStore) BulkWriteDerivedResults(ctx context.Context, records []model.DerivedRecord) error {
	return nil
}

func (s *listStore) CountDerivedResults(ctx context.Context, filter port.DerivedFilter) (int, error) {
	return len(s.derived), nil
}

func (s *listStore) ListDerivedResults(ctx context.Context, filter port.DerivedFilter) ([]model.DerivedRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.derived, nil
}

func (s *listStore) DeleteDerivedResults(ctx context.Context, filter port.DerivedFilter) (int, error) {
	return 0, nil
}

func (s *listStore) CountDistinctSubjects(ctx context.Context, filter port.DerivedFilter) (int, error) {
	return 0, nil
}

func (s *listStore) CountDistinctConfigurations(ctx context.Context, filter port.DerivedFilter) (int, error) {
	return 0, nil
}

func (s *listStore) HasActivity(ctx context.Context, subjectID, activityID string) (bool, error) {
	if s.hasErr != nil {
		return false, s.hasErr
	}
	return s.activities[activityID], nil
}

func derivedRecord(activityID string, ratio float64) model.DerivedRecord {
	return model.DerivedRecord{
		ActivityID:  activityID,
		SubjectID:   "athlete-1",
		Date:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		AcuteLoad:   120,
		ChronicLoad: 100,
		Ratio:       ratio,
	}
}

func TestValidateBasicCountsRows(t *testing.T) {
	store := &listStore{derived: []model.DerivedRecord{
		derivedRecord("a1", 1.2),
		derivedRecord("a2", math.NaN()), // BASIC does not inspect values
	}}
	v := validator.NewValidator(store)

	res, err := v.Validate(context.Background(), port.DerivedFilter{SubjectID: "athlete-1"}, validator.LevelBasic, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Equal(t, 2, res.ValidatedCount)
	assert.Zero(t, res.FailedCount)
}

func TestValidateBasicZeroRemaining(t *testing.T) {
	v := validator.NewValidator(&listStore{})

	res, err := v.Validate(context.Background(), port.DerivedFilter{SubjectID: "athlete-1"}, validator.LevelBasic, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid)
	assert.Zero(t, res.ValidatedCount)
}

func TestValidateStandardFlagsBadValues(t *testing.T) {
	store := &listStore{derived: []model.DerivedRecord{
		derivedRecord("ok", 1.1),
		derivedRecord("nan", math.NaN()),
		derivedRecord("neg", -0.5),
		derivedRecord("huge", 42),
	}}
	v := validator.NewValidator(store)

	res, err := v.Validate(context.Background(), port.DerivedFilter{SubjectID: "athlete-1"}, validator.LevelStandard, nil)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, 4, res.ValidatedCount)
	assert.Equal(t, 3, res.FailedCount)
	assert.Len(t, res.Errors, 3)
}

func TestValidateStrictAgainstSnapshot(t *testing.T) {
	store := &listStore{derived: []model.DerivedRecord{
		derivedRecord("known", 1.0),
		derivedRecord("orphan", 1.0),
	}}
	v := validator.NewValidator(store)

	snapshot := []model.DerivedRecord{derivedRecord("known", 0.9)}
	res, err := v.Validate(context.Background(), port.DerivedFilter{SubjectID: "athlete-1"}, validator.LevelStrict, snapshot)
	require.NoError(t, err)
	assert.True(t, res.IsValid) // snapshot mismatches are warnings, not failures
	assert.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "orphan")
}

func TestValidateStrictAgainstSourceStore(t *testing.T) {
	store := &listStore{
		derived: []model.DerivedRecord{
			derivedRecord("present", 1.0),
			derivedRecord("missing", 1.0),
		},
		activities: map[string]bool{"present": true},
	}
	v := validator.NewValidator(store)

	res, err := v.Validate(context.Background(), port.DerivedFilter{SubjectID: "athlete-1"}, validator.LevelStrict, nil)
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Equal(t, 1, res.FailedCount)
	assert.Contains(t, res.Errors[0], "missing")
}

func TestValidateInfrastructureErrorRaises(t *testing.T) {
	store := &listStore{listErr: errors.New("store unreachable")}
	v := validator.NewValidator(store)

	_, err := v.Validate(context.Background(), port.DerivedFilter{All: true}, validator.LevelBasic, nil)
	require.Error(t, err)
	assert.True(t, exception.IsInfrastructure(err))
}
