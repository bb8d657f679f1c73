// Package calculator provides the default ACWR calculation component. The
// engine treats any Calculator as an opaque function; this one computes the
// acute:chronic workload ratio for a record from the subject's source
// history in the activity store, so the result for a record depends only on
// the stored history, never on the order records are fed through the
// pipeline.
package calculator

import (
	"context"
	"math"
	"sync"
	"time"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
)

const (
	acuteWindowDays          = 7
	defaultChronicPeriodDays = 28
	defaultDecayRate         = 0.07

	// historyPageSize is the page size used when loading a subject's source
	// history from the store.
	historyPageSize = 1000
)

type loadPoint struct {
	date time.Time
	load float64
}

// ACWRCalculator computes the acute:chronic workload ratio. Acute load is
// the mean daily load over the trailing 7 days; chronic load is an
// exponentially weighted daily mean over the configured chronic period, with
// older days discounted by the decay rate.
//
// The subject's full source history is loaded from the store once per
// subject and cached; every calculation reads only the points dated at or
// before the record's date, so concurrent and out-of-order processing yield
// identical results, and re-running a migration reproduces the same values.
type ACWRCalculator struct {
	store port.ActivityStore

	mu      sync.Mutex
	history map[string][]loadPoint
}

// NewACWRCalculator creates a calculator over the given source record store.
func NewACWRCalculator(store port.ActivityStore) *ACWRCalculator {
	return &ACWRCalculator{
		store:   store,
		history: make(map[string][]loadPoint),
	}
}

var _ port.Calculator = (*ACWRCalculator)(nil)

// Reset discards the cached per-subject history. The next calculation per
// subject reloads it from the store.
func (c *ACWRCalculator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = make(map[string][]loadPoint)
}

func (c *ACWRCalculator) Calculate(ctx context.Context, record model.ActivityRecord, cfg model.Configuration) (model.CalculationResult, error) {
	if math.IsNaN(record.Load) || math.IsInf(record.Load, 0) {
		return model.CalculationResult{Success: false, Reason: "load is not a finite number"}, nil
	}
	if record.Load < 0 {
		return model.CalculationResult{Success: false, Reason: "load is negative"}, nil
	}

	chronicDays := cfg.ChronicPeriodDays
	if chronicDays <= 0 {
		chronicDays = defaultChronicPeriodDays
	}
	decayRate := cfg.DecayRate
	if decayRate <= 0 {
		decayRate = defaultDecayRate
	}

	points, err := c.subjectHistory(ctx, record.SubjectID)
	if err != nil {
		return model.CalculationResult{}, err
	}

	acute := windowMean(points, record.Date, acuteWindowDays)
	chronic := decayedMean(points, record.Date, chronicDays, decayRate)

	if chronic == 0 {
		if acute == 0 {
			return model.CalculationResult{Success: true, AcuteLoad: 0, ChronicLoad: 0, Ratio: 0}, nil
		}
		return model.CalculationResult{Success: false, Reason: "no chronic training baseline"}, nil
	}

	return model.CalculationResult{
		Success:     true,
		AcuteLoad:   acute,
		ChronicLoad: chronic,
		Ratio:       acute / chronic,
	}, nil
}

// subjectHistory returns the subject's full source history, loading it from
// the store on first use. The store's stable (date, activity id) page order
// keeps the cached points date-sorted.
func (c *ACWRCalculator) subjectHistory(ctx context.Context, subjectID string) ([]loadPoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if points, ok := c.history[subjectID]; ok {
		return points, nil
	}

	points := []loadPoint{}
	for offset := 0; ; offset += historyPageSize {
		page, err := c.store.GetRecordsPage(ctx, subjectID, historyPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, rec := range page {
			points = append(points, loadPoint{date: rec.Date, load: rec.Load})
		}
		if len(page) < historyPageSize {
			break
		}
	}
	c.history[subjectID] = points
	return points, nil
}

// windowMean returns the mean daily load over the trailing window ending at
// the given date, inclusive.
func windowMean(points []loadPoint, end time.Time, days int) float64 {
	start := end.AddDate(0, 0, -(days - 1))
	sum := 0.0
	for _, p := range points {
		if p.date.Before(start) || p.date.After(end) {
			continue
		}
		sum += p.load
	}
	return sum / float64(days)
}

// decayedMean returns the exponentially weighted mean daily load over the
// trailing window. Each load is weighted by exp(-rate * ageDays) and the
// total is normalized by the weight mass of the whole window, so sparse
// histories read as low chronic load rather than being inflated.
func decayedMean(points []loadPoint, end time.Time, days int, rate float64) float64 {
	start := end.AddDate(0, 0, -(days - 1))
	weighted := 0.0
	for _, p := range points {
		if p.date.Before(start) || p.date.After(end) {
			continue
		}
		ageDays := end.Sub(p.date).Hours() / 24
		weighted += p.load * math.Exp(-rate*ageDays)
	}

	mass := 0.0
	for d := 0; d < days; d++ {
		mass += math.Exp(-rate * float64(d))
	}
	if mass == 0 {
		return 0
	}
	return weighted / mass
}
