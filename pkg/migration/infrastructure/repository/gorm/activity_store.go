package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
)

// ActivityStore is the GORM-backed implementation of port.ActivityStore.
type ActivityStore struct {
	db *gorm.DB
}

// NewActivityStore creates an ActivityStore over an open connection.
func NewActivityStore(db *gorm.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

var _ port.ActivityStore = (*ActivityStore)(nil)

// applyFilter translates a DerivedFilter into a scoped query. The Limit, if
// set, bounds the affected rows in a stable order.
func applyFilter(q *gorm.DB, filter port.DerivedFilter) *gorm.DB {
	switch {
	case filter.All:
		// No predicate: the whole table is in scope.
	case filter.SubjectID != "":
		q = q.Where("subject_id = ?", filter.SubjectID)
	case filter.ConfigurationID != "":
		q = q.Where("configuration_id = ?", filter.ConfigurationID)
	default:
		// An empty filter matches nothing rather than everything; unbounded
		// scope must be requested explicitly via All.
		q = q.Where("1 = 0")
	}
	if filter.Limit > 0 {
		q = q.Order("date, activity_id").Limit(filter.Limit)
	}
	return q
}

func (s *ActivityStore) GetRecordCount(ctx context.Context, subjectID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ActivityEntity{}).
		Where("subject_id = ?", subjectID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count activities for subject %s: %w", subjectID, err)
	}
	return int(count), nil
}

func (s *ActivityStore) GetRecordsPage(ctx context.Context, subjectID string, limit, offset int) ([]model.ActivityRecord, error) {
	var entities []ActivityEntity
	err := s.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("date, activity_id").
		Limit(limit).
		Offset(offset).
		Find(&entities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activity page for subject %s: %w", subjectID, err)
	}

	records := make([]model.ActivityRecord, 0, len(entities))
	for _, e := range entities {
		records = append(records, toDomainActivity(e))
	}
	return records, nil
}

func (s *ActivityStore) WriteDerivedResult(ctx context.Context, record model.DerivedRecord) error {
	entity := fromDomainDerived(record)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "activity_id"}, {Name: "configuration_id"}},
			UpdateAll: true,
		}).
		Create(&entity).Error
	if err != nil {
		return fmt.Errorf("failed to upsert derived result for activity %s: %w", record.ActivityID, err)
	}
	return nil
}

func (s *ActivityStore) BulkWriteDerivedResults(ctx context.Context, records []model.DerivedRecord) error {
	if len(records) == 0 {
		return nil
	}
	entities := make([]DerivedEntity, 0, len(records))
	for _, r := range records {
		entities = append(entities, fromDomainDerived(r))
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "activity_id"}, {Name: "configuration_id"}},
			UpdateAll: true,
		}).
		CreateInBatches(entities, 500).Error
	if err != nil {
		return fmt.Errorf("failed to bulk upsert %d derived results: %w", len(records), err)
	}
	return nil
}

func (s *ActivityStore) CountDerivedResults(ctx context.Context, filter port.DerivedFilter) (int, error) {
	var count int64
	q := applyFilter(s.db.WithContext(ctx).Model(&DerivedEntity{}), filter)
	if err := q.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count derived results: %w", err)
	}
	return int(count), nil
}

func (s *ActivityStore) ListDerivedResults(ctx context.Context, filter port.DerivedFilter) ([]model.DerivedRecord, error) {
	var entities []DerivedEntity
	q := applyFilter(s.db.WithContext(ctx), filter)
	if err := q.Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to list derived results: %w", err)
	}

	records := make([]model.DerivedRecord, 0, len(entities))
	for _, e := range entities {
		records = append(records, toDomainDerived(e))
	}
	return records, nil
}

func (s *ActivityStore) DeleteDerivedResults(ctx context.Context, filter port.DerivedFilter) (int, error) {
	// Bounded deletes select the keys first; GORM cannot express DELETE with
	// LIMIT portably across dialects.
	if filter.Limit > 0 {
		var keys []DerivedEntity
		q := applyFilter(s.db.WithContext(ctx).Select("activity_id", "configuration_id"), filter)
		if err := q.Find(&keys).Error; err != nil {
			return 0, fmt.Errorf("failed to select derived results for bounded delete: %w", err)
		}
		deleted := 0
		for _, k := range keys {
			res := s.db.WithContext(ctx).
				Where("activity_id = ? AND configuration_id = ?", k.ActivityID, k.ConfigurationID).
				Delete(&DerivedEntity{})
			if res.Error != nil {
				return deleted, fmt.Errorf("failed bounded delete of derived results: %w", res.Error)
			}
			deleted += int(res.RowsAffected)
		}
		return deleted, nil
	}

	q := applyFilter(s.db.WithContext(ctx), filter)
	res := q.Delete(&DerivedEntity{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete derived results: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (s *ActivityStore) CountDistinctSubjects(ctx context.Context, filter port.DerivedFilter) (int, error) {
	var count int64
	q := applyFilter(s.db.WithContext(ctx).Model(&DerivedEntity{}), filter)
	if err := q.Distinct("subject_id").Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count distinct subjects: %w", err)
	}
	return int(count), nil
}

func (s *ActivityStore) CountDistinctConfigurations(ctx context.Context, filter port.DerivedFilter) (int, error) {
	var count int64
	q := applyFilter(s.db.WithContext(ctx).Model(&DerivedEntity{}), filter)
	if err := q.Distinct("configuration_id").Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count distinct configurations: %w", err)
	}
	return int(count), nil
}

func (s *ActivityStore) HasActivity(ctx context.Context, subjectID, activityID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ActivityEntity{}).
		Where("subject_id = ? AND activity_id = ?", subjectID, activityID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check activity %s: %w", activityID, err)
	}
	return count > 0, nil
}
