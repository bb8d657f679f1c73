// Package validator implements the integrity validator used as a
// migration-completion gate and as the rollback pre/post-condition check.
// Data-quality problems are reported in the result, never raised; only
// infrastructure failure (the store is unreachable) returns an error.
package validator

import (
	"context"
	"fmt"
	"math"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	exception "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/exception"
	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

const moduleName = "validator"

// Level is the validation strictness. Broader levels check more: BASIC is
// row existence only, STANDARD adds value-range sanity, STRICT additionally
// cross-references each derived record against the pre-migration snapshot
// (or, when no snapshot is given, against the source activity store).
type Level int

const (
	LevelBasic Level = iota
	LevelStandard
	LevelStrict
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelBasic:
		return "BASIC"
	case LevelStandard:
		return "STANDARD"
	case LevelStrict:
		return "STRICT"
	default:
		return "UNKNOWN"
	}
}

// maxPlausibleRatio bounds the ACWR ratio sanity check. Ratios above 4 are
// already implausible for real training data; 10 leaves headroom for edge
// cases without accepting garbage.
const maxPlausibleRatio = 10.0

// Result is the structured validation outcome.
type Result struct {
	IsValid        bool
	ValidatedCount int
	FailedCount    int
	Errors         []string
	Warnings       []string
}

// Validator checks derived records against a strictness level.
type Validator struct {
	store port.ActivityStore
}

// NewValidator creates a Validator over the given store.
func NewValidator(store port.ActivityStore) *Validator {
	return &Validator{store: store}
}

// Validate inspects the derived records selected by the filter. The
// snapshot, when non-nil, is the pre-migration record set used by STRICT
// cross-referencing; without one, STRICT falls back to checking each derived
// record against the source activity store.
func (v *Validator) Validate(ctx context.Context, filter port.DerivedFilter, level Level, snapshot []model.DerivedRecord) (*Result, error) {
	records, err := v.store.ListDerivedResults(ctx, filter)
	if err != nil {
		return nil, exception.NewInfrastructureError(moduleName, "failed to list derived records for validation", err)
	}

	result := &Result{
		IsValid:        true,
		ValidatedCount: len(records),
	}

	if level >= LevelStandard {
		for _, rec := range records {
			if msg := checkRanges(rec); msg != "" {
				result.FailedCount++
				result.Errors = append(result.Errors, msg)
			}
		}
	}

	if level >= LevelStrict {
		if err := v.crossReference(ctx, records, snapshot, result); err != nil {
			return nil, err
		}
	}

	if result.FailedCount > 0 {
		result.IsValid = false
	}
	logger.Debugf("Validation (%s) over %d records: valid=%t, failed=%d, warnings=%d.",
		level, result.ValidatedCount, result.IsValid, result.FailedCount, len(result.Warnings))
	return result, nil
}

// checkRanges applies value-range sanity to one derived record. A non-empty
// return is the failure message.
func checkRanges(rec model.DerivedRecord) string {
	switch {
	case math.IsNaN(rec.Ratio) || math.IsInf(rec.Ratio, 0):
		return fmt.Sprintf("activity %s: ratio is not a finite number", rec.ActivityID)
	case rec.Ratio < 0:
		return fmt.Sprintf("activity %s: negative ratio %.3f", rec.ActivityID, rec.Ratio)
	case rec.Ratio > maxPlausibleRatio:
		return fmt.Sprintf("activity %s: implausible ratio %.3f", rec.ActivityID, rec.Ratio)
	case rec.AcuteLoad < 0:
		return fmt.Sprintf("activity %s: negative acute load %.3f", rec.ActivityID, rec.AcuteLoad)
	case rec.ChronicLoad < 0:
		return fmt.Sprintf("activity %s: negative chronic load %.3f", rec.ActivityID, rec.ChronicLoad)
	default:
		return ""
	}
}

// crossReference verifies each derived record against the pre-migration
// snapshot, or the source store when no snapshot is available. Missing
// provenance is a data-quality failure; a store error is infrastructure.
func (v *Validator) crossReference(ctx context.Context, records, snapshot []model.DerivedRecord, result *Result) error {
	if snapshot != nil {
		known := make(map[string]struct{}, len(snapshot))
		for _, s := range snapshot {
			known[s.ActivityID] = struct{}{}
		}
		for _, rec := range records {
			if _, ok := known[rec.ActivityID]; !ok {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("activity %s: not present in pre-migration snapshot", rec.ActivityID))
			}
		}
		return nil
	}

	for _, rec := range records {
		exists, err := v.store.HasActivity(ctx, rec.SubjectID, rec.ActivityID)
		if err != nil {
			return exception.NewInfrastructureError(moduleName,
				fmt.Sprintf("failed to cross-reference activity %s", rec.ActivityID), err)
		}
		if !exists {
			result.FailedCount++
			result.Errors = append(result.Errors,
				fmt.Sprintf("activity %s: no matching source record", rec.ActivityID))
		}
	}
	return nil
}
