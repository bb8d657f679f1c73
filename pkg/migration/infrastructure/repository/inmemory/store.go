// Package inmemory provides map-backed implementations of the persistence
// ports. They are used by the example wiring and by integration-style tests
// that need real store semantics without a database.
package inmemory

import (
	"context"
	"sort"
	"sync"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
)

type derivedKey struct {
	activityID      string
	configurationID string
}

// ActivityStore is a thread-safe, map-backed implementation of
// port.ActivityStore. Pages are served in the stable (date, activity id)
// order the engine's offset pagination depends on.
type ActivityStore struct {
	mu         sync.RWMutex
	activities map[string]model.ActivityRecord
	derived    map[derivedKey]model.DerivedRecord
}

// NewActivityStore creates an empty ActivityStore.
func NewActivityStore() *ActivityStore {
	return &ActivityStore{
		activities: make(map[string]model.ActivityRecord),
		derived:    make(map[derivedKey]model.DerivedRecord),
	}
}

var _ port.ActivityStore = (*ActivityStore)(nil)

// SeedActivities loads source records into the store. It is a setup helper,
// not part of the port.
func (s *ActivityStore) SeedActivities(records ...model.ActivityRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.activities[r.ActivityID] = r
	}
}

func (s *ActivityStore) GetRecordCount(_ context.Context, subjectID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, r := range s.activities {
		if r.SubjectID == subjectID {
			count++
		}
	}
	return count, nil
}

func (s *ActivityStore) GetRecordsPage(_ context.Context, subjectID string, limit, offset int) ([]model.ActivityRecord, error) {
	s.mu.RLock()
	matched := make([]model.ActivityRecord, 0)
	for _, r := range s.activities {
		if r.SubjectID == subjectID {
			matched = append(matched, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.Before(matched[j].Date)
		}
		return matched[i].ActivityID < matched[j].ActivityID
	})

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	page := make([]model.ActivityRecord, end-offset)
	copy(page, matched[offset:end])
	return page, nil
}

func (s *ActivityStore) WriteDerivedResult(_ context.Context, record model.DerivedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derived[derivedKey{record.ActivityID, record.ConfigurationID}] = record
	return nil
}

func (s *ActivityStore) BulkWriteDerivedResults(_ context.Context, records []model.DerivedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.derived[derivedKey{r.ActivityID, r.ConfigurationID}] = r
	}
	return nil
}

// matchesFilter applies the scope predicate only; the Limit bound is applied
// by the caller after ordering.
func matchesFilter(r model.DerivedRecord, filter port.DerivedFilter) bool {
	switch {
	case filter.All:
		return true
	case filter.SubjectID != "":
		return r.SubjectID == filter.SubjectID
	case filter.ConfigurationID != "":
		return r.ConfigurationID == filter.ConfigurationID
	default:
		// An empty filter matches nothing; unbounded scope must be requested
		// explicitly via All.
		return false
	}
}

// selectDerived returns the matching records in (date, activity id) order,
// bounded by the filter's Limit when set. Callers hold no lock.
func (s *ActivityStore) selectDerived(filter port.DerivedFilter) []model.DerivedRecord {
	s.mu.RLock()
	matched := make([]model.DerivedRecord, 0)
	for _, r := range s.derived {
		if matchesFilter(r, filter) {
			matched = append(matched, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.Before(matched[j].Date)
		}
		return matched[i].ActivityID < matched[j].ActivityID
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched
}

func (s *ActivityStore) CountDerivedResults(_ context.Context, filter port.DerivedFilter) (int, error) {
	return len(s.selectDerived(filter)), nil
}

func (s *ActivityStore) ListDerivedResults(_ context.Context, filter port.DerivedFilter) ([]model.DerivedRecord, error) {
	return s.selectDerived(filter), nil
}

func (s *ActivityStore) DeleteDerivedResults(_ context.Context, filter port.DerivedFilter) (int, error) {
	victims := s.selectDerived(filter)
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, r := range victims {
		key := derivedKey{r.ActivityID, r.ConfigurationID}
		if _, ok := s.derived[key]; ok {
			delete(s.derived, key)
			deleted++
		}
	}
	return deleted, nil
}

func (s *ActivityStore) CountDistinctSubjects(_ context.Context, filter port.DerivedFilter) (int, error) {
	seen := make(map[string]struct{})
	for _, r := range s.selectDerived(filter) {
		seen[r.SubjectID] = struct{}{}
	}
	return len(seen), nil
}

func (s *ActivityStore) CountDistinctConfigurations(_ context.Context, filter port.DerivedFilter) (int, error) {
	seen := make(map[string]struct{})
	for _, r := range s.selectDerived(filter) {
		seen[r.ConfigurationID] = struct{}{}
	}
	return len(seen), nil
}

func (s *ActivityStore) HasActivity(_ context.Context, subjectID, activityID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.activities[activityID]
	return ok && r.SubjectID == subjectID, nil
}
