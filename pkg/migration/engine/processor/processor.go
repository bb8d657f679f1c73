// Package processor implements the batch processing engine: it drains a
// subject's source records in batches, runs the ACWR calculation for each
// record, writes the derived results back and maintains per-run processing
// metrics. Strategy selection (sequential, parallel, adaptive,
// memory-optimized, performance-optimized) changes batch sizing, batch-level
// submission and intra-batch parallelism; the batch-boundary control
// protocol (pause, resume, cancel) is owned by the orchestrator and reaches
// the processor as a control callback evaluated before each batch.
package processor

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	config "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/config"
	metrics "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/metrics"
	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
	"github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/engine/resource"
	exception "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/exception"
	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

const moduleName = "processor"

const (
	// subChunksPerBatch is the fixed intra-batch split used by the parallel
	// and performance-optimized strategies for large batches.
	subChunksPerBatch = 4
	// cpuParallelLimitPercent is the CPU usage above which the adaptive
	// strategy stays sequential even when memory allows parallelism.
	cpuParallelLimitPercent = 80.0
	// preloadPageSize pages the performance-optimized preload reads.
	preloadPageSize = 1000
	// memoryBackoffSleep is the brief back-off inside the memory-optimized
	// strategy's aggressive cleanup.
	memoryBackoffSleep = time.Second
)

// ControlSignal is the orchestrator's verdict at a batch boundary.
type ControlSignal int

const (
	// ControlContinue lets the next batch start.
	ControlContinue ControlSignal = iota
	// ControlPause stops processing at the current boundary; the run can be
	// resumed later from the same position.
	ControlPause
	// ControlCancel stops processing at the current boundary permanently.
	ControlCancel
)

// ControlFunc is evaluated before each batch. It must be cheap; the
// processor calls it on the hot path.
type ControlFunc func(migrationID string) ControlSignal

// Outcome tells the orchestrator how a processing run ended.
type Outcome int

const (
	// OutcomeCompleted means all records were drained.
	OutcomeCompleted Outcome = iota
	// OutcomePaused means the run stopped at a batch boundary on a pause
	// signal and can be resumed from the job's current position.
	OutcomePaused
	// OutcomeCancelled means the run stopped at a batch boundary on a cancel
	// signal.
	OutcomeCancelled
)

// OptimalBatchSize derives the adaptive batch size from the configured size
// and the current memory usage percentage. Size shrinks under pressure and
// grows when memory is plentiful; it never drops below 250 or exceeds 2000.
func OptimalBatchSize(configured int, memoryPercent float64) int {
	switch {
	case memoryPercent >= 85:
		return max(configured/4, 250)
	case memoryPercent >= 70:
		return max(configured/2, 500)
	case memoryPercent < 50:
		return min(configured*2, 2000)
	default:
		return configured
	}
}

// resettable is the optional cache-clearing hook a calculator may expose.
type resettable interface {
	Reset()
}

// Processor drains one subject's records in batches. A single Processor
// instance serves one migration at a time: a second Process call while one
// is active fails fast with a concurrency error instead of queueing.
type Processor struct {
	store    port.ActivityStore
	calc     port.Calculator
	notifier port.ProgressNotifier
	monitor  *resource.Monitor
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
	cfg      config.ProcessorConfig

	mu           sync.Mutex
	isProcessing bool

	metricsMu  sync.Mutex
	runMetrics model.ProcessingMetrics

	preloadMu     sync.Mutex
	preload       []model.ActivityRecord
	preloadActive bool
}

// NewProcessor creates a Processor with the given collaborators.
func NewProcessor(
	store port.ActivityStore,
	calc port.Calculator,
	notifier port.ProgressNotifier,
	monitor *resource.Monitor,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
	cfg config.ProcessorConfig,
) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.MaxParallelBatches <= 0 {
		cfg.MaxParallelBatches = 4
	}
	if cfg.AutoGCFrequency <= 0 {
		cfg.AutoGCFrequency = 10
	}
	if cfg.AdaptiveWarmupBatches <= 0 {
		cfg.AdaptiveWarmupBatches = 10
	}
	if cfg.Strategy == "" {
		cfg.Strategy = config.StrategyAdaptive
	}
	return &Processor{
		store:    store,
		calc:     calc,
		notifier: notifier,
		monitor:  monitor,
		recorder: recorder,
		tracer:   tracer,
		cfg:      cfg,
	}
}

// IsProcessing reports whether a processing run is currently active.
func (p *Processor) IsProcessing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isProcessing
}

// Metrics returns a snapshot of the current run's processing metrics.
func (p *Processor) Metrics() model.ProcessingMetrics {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	return p.runMetrics
}

// Process drains the job's remaining records under the configured strategy.
// The control callback is consulted before every batch; pause and cancel
// take effect only at those boundaries. Per-record calculation failures are
// counted in the job and never abort the run; infrastructure failures abort
// immediately and propagate.
func (p *Processor) Process(ctx context.Context, job *model.MigrationJob, cfg model.Configuration, control ControlFunc) (Outcome, error) {
	p.mu.Lock()
	if p.isProcessing {
		p.mu.Unlock()
		return OutcomeCompleted, exception.NewConcurrencyError(moduleName,
			fmt.Sprintf("batch processing already in progress; rejecting migration %s", job.MigrationID))
	}
	p.isProcessing = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.isProcessing = false
		p.mu.Unlock()
	}()

	p.resetMetrics(job)
	p.resetCalculatorCache()
	if p.monitor != nil {
		p.monitor.Reset()
	}
	if control == nil {
		control = func(string) ControlSignal { return ControlContinue }
	}

	logger.Infof("Processing migration %s for subject %s: %d records remaining, strategy %s.",
		job.MigrationID, job.SubjectID, job.TotalRecords-job.ProcessedRecords, p.cfg.Strategy)

	var outcome Outcome
	var err error
	switch p.cfg.Strategy {
	case config.StrategyParallel, config.StrategyPerformanceOptimized:
		if p.cfg.Strategy == config.StrategyPerformanceOptimized {
			if err := p.preloadSubject(ctx, job); err != nil {
				return OutcomeCompleted, err
			}
			// Cleared whether the run completes, pauses or fails, so repeated
			// runs cannot accumulate cached pages.
			defer p.clearPreload()
		}
		outcome, err = p.drainParallel(ctx, job, cfg, control)
	default:
		outcome, err = p.drainSequential(ctx, job, cfg, control)
	}
	if err != nil {
		return outcome, err
	}
	if outcome != OutcomeCompleted {
		return outcome, nil
	}

	p.finalizeMetrics()
	logger.Infof("Migration %s drained: %d processed, %d succeeded, %d failed across %d batches.",
		job.MigrationID, job.ProcessedRecords, job.SuccessfulRecords, job.FailedRecords, job.CurrentBatch)
	return OutcomeCompleted, nil
}

// drainSequential processes one batch at a time in record order. The
// sequential, adaptive and memory-optimized strategies drain here; batch
// sizing and intra-batch parallelism still vary per batch.
func (p *Processor) drainSequential(ctx context.Context, job *model.MigrationJob, cfg model.Configuration, control ControlFunc) (Outcome, error) {
	for job.ProcessedRecords < job.TotalRecords {
		switch control(job.MigrationID) {
		case ControlPause:
			logger.Infof("Migration %s paused at batch boundary %d.", job.MigrationID, job.CurrentBatch)
			return OutcomePaused, nil
		case ControlCancel:
			logger.Infof("Migration %s cancelled at batch boundary %d.", job.MigrationID, job.CurrentBatch)
			return OutcomeCancelled, nil
		}

		if p.cfg.Strategy == config.StrategyMemoryOptimized {
			p.maybeAggressiveCleanup(ctx)
		}

		batchNumber := job.CurrentBatch + 1
		size := p.nextBatchSize()
		workers := p.batchWorkers()

		p.notify(ctx, model.NewProgressEvent(job, model.EventBatchStarted, batchNumber,
			fmt.Sprintf("batch %d starting (%d records)", batchNumber, size)))

		result, err := p.executeBatch(ctx, job, cfg, batchNumber, job.ProcessedRecords, size, workers)
		if err != nil {
			p.markBatchFailed(ctx, job, batchNumber, err)
			return OutcomeCompleted, err
		}
		if result.RecordsProcessed == 0 {
			// The store returned fewer records than the count promised. Stop
			// draining rather than spinning on an empty page.
			logger.Warnf("Migration %s: empty page at batch %d with %d/%d records processed; stopping early.",
				job.MigrationID, batchNumber, job.ProcessedRecords, job.TotalRecords)
			break
		}

		p.applyBatchResult(ctx, job, batchNumber, result)
	}
	return OutcomeCompleted, nil
}

// drainParallel submits whole batches concurrently, up to the strategy's
// in-flight limit (doubled for performance-optimized), and folds results
// into the job as batches complete. Counter accumulation is commutative, so
// out-of-order completion cannot corrupt totals. When memory pressure
// crosses the configured threshold, submission waits for the in-flight
// batches to finish before adding more.
func (p *Processor) drainParallel(ctx context.Context, job *model.MigrationJob, cfg model.Configuration, control ControlFunc) (Outcome, error) {
	limit := p.cfg.MaxParallelBatches
	if p.cfg.Strategy == config.StrategyPerformanceOptimized {
		limit *= 2
	}
	size := p.nextBatchSize()

	var (
		wg          sync.WaitGroup
		jobMu       sync.Mutex
		drained     bool
		failedBatch int
		batchErrs   *multierror.Error
	)
	slots := make(chan struct{}, limit)

	outcome := OutcomeCompleted
	batchNumber := job.CurrentBatch
	offset := job.ProcessedRecords

submitLoop:
	for offset < job.TotalRecords {
		switch control(job.MigrationID) {
		case ControlPause:
			logger.Infof("Migration %s paused at batch boundary %d.", job.MigrationID, batchNumber)
			outcome = OutcomePaused
			break submitLoop
		case ControlCancel:
			logger.Infof("Migration %s cancelled at batch boundary %d.", job.MigrationID, batchNumber)
			outcome = OutcomeCancelled
			break submitLoop
		}

		// Under memory pressure, wait out the current in-flight batches
		// instead of stacking more on top of them.
		if p.shouldLimitConcurrency() {
			wg.Wait()
		}

		jobMu.Lock()
		stop := drained || batchErrs != nil
		jobMu.Unlock()
		if stop {
			break
		}

		batchNumber++
		num := batchNumber
		off := offset
		offset += size

		slots <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-slots }()

			jobMu.Lock()
			p.notify(ctx, model.NewProgressEvent(job, model.EventBatchStarted, num,
				fmt.Sprintf("batch %d starting (%d records)", num, size)))
			jobMu.Unlock()

			result, err := p.executeBatch(ctx, job, cfg, num, off, size, p.batchWorkers())

			jobMu.Lock()
			defer jobMu.Unlock()
			if err != nil {
				if batchErrs == nil {
					failedBatch = num
				}
				batchErrs = multierror.Append(batchErrs, err)
				return
			}
			if result.RecordsProcessed == 0 {
				drained = true
				return
			}
			p.applyBatchResult(ctx, job, num, result)
		}()
	}
	wg.Wait()

	if err := batchErrs.ErrorOrNil(); err != nil {
		p.markBatchFailed(ctx, job, failedBatch, err)
		return OutcomeCompleted, err
	}
	return outcome, nil
}

// applyBatchResult folds a completed batch into the job and publishes the
// per-batch events. Callers serialize access to the job.
func (p *Processor) applyBatchResult(ctx context.Context, job *model.MigrationJob, batchNumber int, result model.BatchResult) {
	job.AccumulateBatch(result)
	if batchNumber > job.CurrentBatch {
		job.CurrentBatch = batchNumber
	}
	p.accumulateMetrics(result)
	if p.recorder != nil {
		p.recorder.RecordBatch(ctx, job.MigrationID, result)
	}

	p.notify(ctx, model.NewProgressEvent(job, model.EventBatchCompleted, batchNumber,
		fmt.Sprintf("batch %d completed: %d succeeded, %d failed in %s",
			batchNumber, result.Successful, result.Failed, result.ProcessingTime)))
	p.notify(ctx, model.NewProgressEvent(job, model.EventProgressUpdate, batchNumber,
		fmt.Sprintf("%d/%d records processed", job.ProcessedRecords, job.TotalRecords)))

	p.maybeCollectGarbage(job.CurrentBatch)
}

// nextBatchSize picks the size of the next batch under the active strategy.
// Adaptive sizing is recomputed before every batch; warm-up gates only
// parallelism, never sizing.
func (p *Processor) nextBatchSize() int {
	switch p.cfg.Strategy {
	case config.StrategyMemoryOptimized:
		return min(p.cfg.BatchSize, 500)
	case config.StrategyPerformanceOptimized:
		return max(p.cfg.BatchSize, 2000)
	case config.StrategyAdaptive:
		return OptimalBatchSize(p.cfg.BatchSize, p.currentMemoryPercent())
	default:
		return p.cfg.BatchSize
	}
}

// batchWorkers picks the intra-batch parallelism under the active strategy.
func (p *Processor) batchWorkers() int {
	switch p.cfg.Strategy {
	case config.StrategyParallel, config.StrategyPerformanceOptimized:
		// Batch-level concurrency lives in the parallel drain; within one
		// batch, large pages split into a fixed number of sub-chunks.
		if p.shouldLimitConcurrency() {
			return 1
		}
		return subChunksPerBatch
	case config.StrategyAdaptive:
		if !p.warmedUp() || p.shouldLimitConcurrency() || p.currentCPUPercent() >= cpuParallelLimitPercent {
			return 1
		}
		return p.cfg.MaxParallelBatches
	default:
		return 1
	}
}

// warmedUp reports whether the adaptive strategy has completed its warm-up
// window of sequential batches.
func (p *Processor) warmedUp() bool {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	return p.runMetrics.CompletedBatches >= p.cfg.AdaptiveWarmupBatches
}

// shouldLimitConcurrency reports whether memory pressure is above the
// configured threshold, in which case parallel submission collapses to
// sequential until pressure recedes.
func (p *Processor) shouldLimitConcurrency() bool {
	return p.currentMemoryPercent() > p.cfg.MemoryLimitThresholdPercent
}

func (p *Processor) currentMemoryPercent() float64 {
	if p.monitor == nil {
		return 0
	}
	return p.monitor.CurrentMemoryPercent()
}

func (p *Processor) currentCPUPercent() float64 {
	if p.monitor == nil {
		return 0
	}
	return p.monitor.CurrentCPUPercent()
}

// maybeAggressiveCleanup is the memory-optimized strategy's pre-batch
// cleanup: when pressure is high it drops internal caches, forces a GC and
// backs off briefly before the next batch starts.
func (p *Processor) maybeAggressiveCleanup(ctx context.Context) {
	if p.monitor == nil || !p.monitor.ShouldThrottle() {
		return
	}
	logger.Debugf("Memory pressure %s; running aggressive cleanup before next batch.",
		p.monitor.CurrentMemoryPressure())
	p.resetCalculatorCache()
	p.clearPreload()
	runtime.GC()
	select {
	case <-ctx.Done():
	case <-time.After(memoryBackoffSleep):
	}
}

// resetCalculatorCache clears the calculator's internal history cache when
// it exposes one.
func (p *Processor) resetCalculatorCache() {
	if r, ok := p.calc.(resettable); ok {
		r.Reset()
	}
}

// preloadSubject loads the subject's records into the in-memory cache so
// batch execution avoids repeated store round-trips (performance-optimized
// strategy). The cache is indexed by absolute record offset.
func (p *Processor) preloadSubject(ctx context.Context, job *model.MigrationJob) error {
	all := make([]model.ActivityRecord, 0, job.TotalRecords)
	for offset := 0; ; offset += preloadPageSize {
		page, err := p.store.GetRecordsPage(ctx, job.SubjectID, preloadPageSize, offset)
		if err != nil {
			return exception.NewInfrastructureError(moduleName,
				fmt.Sprintf("failed to preload records for subject %s", job.SubjectID), err)
		}
		all = append(all, page...)
		if len(page) < preloadPageSize {
			break
		}
	}

	p.preloadMu.Lock()
	p.preload = all
	p.preloadActive = true
	p.preloadMu.Unlock()
	logger.Debugf("Preloaded %d records for subject %s.", len(all), job.SubjectID)
	return nil
}

// clearPreload drops the preload cache. Safe to call when no preload is
// active.
func (p *Processor) clearPreload() {
	p.preloadMu.Lock()
	p.preload = nil
	p.preloadActive = false
	p.preloadMu.Unlock()
}

// preloadedPage returns the cached page at the absolute record offset. The
// second return reports whether the cache is active at all.
func (p *Processor) preloadedPage(offset, size int) ([]model.ActivityRecord, bool) {
	p.preloadMu.Lock()
	defer p.preloadMu.Unlock()
	if !p.preloadActive {
		return nil, false
	}
	if offset >= len(p.preload) {
		return nil, true
	}
	end := min(offset+size, len(p.preload))
	return p.preload[offset:end], true
}

// executeBatch processes one batch: fetch the page at the given offset, run
// the calculation per record, and write the derived results. A per-record
// failed calculation is counted and recorded; any store or calculator error
// aborts the batch with a classified error.
func (p *Processor) executeBatch(ctx context.Context, job *model.MigrationJob, cfg model.Configuration, batchNumber, offset, size, workers int) (model.BatchResult, error) {
	if p.tracer != nil {
		var finish func()
		ctx, finish = p.tracer.StartBatchSpan(ctx, job.MigrationID, batchNumber)
		defer finish()
	}

	start := time.Now()
	result := model.BatchResult{
		BatchID:   model.NewID(),
		SubjectID: job.SubjectID,
	}

	records, ok := p.preloadedPage(offset, size)
	if !ok {
		var err error
		records, err = p.store.GetRecordsPage(ctx, job.SubjectID, size, offset)
		if err != nil {
			return result, exception.NewInfrastructureError(moduleName,
				fmt.Sprintf("failed to fetch batch %d for subject %s", batchNumber, job.SubjectID), err)
		}
	}
	if len(records) == 0 {
		result.ProcessingTime = time.Since(start)
		return result, nil
	}

	bulkWrite := p.cfg.Strategy == config.StrategyPerformanceOptimized

	var derived []model.DerivedRecord
	var failures []string
	var successful, failed int
	var err error

	if workers <= 1 || len(records) < workers {
		derived, failures, successful, failed, err = p.processChunk(ctx, records, job, cfg, !bulkWrite)
	} else {
		derived, failures, successful, failed, err = p.processChunksParallel(ctx, records, job, cfg, workers, !bulkWrite)
	}
	if err != nil {
		return result, err
	}

	if bulkWrite && len(derived) > 0 {
		// The write buffer is released as soon as the bulk write returns so
		// large batches do not pin memory across batch boundaries.
		writeErr := p.store.BulkWriteDerivedResults(ctx, derived)
		derived = nil
		if writeErr != nil {
			return result, exception.NewInfrastructureError(moduleName,
				fmt.Sprintf("bulk write failed for batch %d", batchNumber), writeErr)
		}
	}

	result.RecordsProcessed = len(records)
	result.Successful = successful
	result.Failed = failed
	result.Errors = failures
	result.ProcessingTime = time.Since(start)
	return result, nil
}

// processChunk runs the calculation over one slice of records, optionally
// writing each derived result immediately. It returns the derived records
// (for bulk-write strategies), the data-quality failure messages and the
// success/failure counts.
func (p *Processor) processChunk(ctx context.Context, records []model.ActivityRecord, job *model.MigrationJob, cfg model.Configuration, writeEach bool) ([]model.DerivedRecord, []string, int, int, error) {
	var derived []model.DerivedRecord
	var failures []string
	var successful, failed int

	for _, rec := range records {
		calcResult, err := p.calc.Calculate(ctx, rec, cfg)
		if err != nil {
			// The calculator contract reserves error returns for
			// infrastructure failure; data-quality outcomes come back as
			// unsuccessful results.
			return nil, nil, 0, 0, exception.NewInfrastructureError(moduleName,
				fmt.Sprintf("calculation failed for activity %s", rec.ActivityID), err)
		}
		if !calcResult.Success {
			failed++
			failures = append(failures, fmt.Sprintf("activity %s: %s", rec.ActivityID, calcResult.Reason))
			continue
		}

		dr := model.DerivedRecord{
			ActivityID:      rec.ActivityID,
			SubjectID:       rec.SubjectID,
			ConfigurationID: cfg.ConfigurationID,
			Date:            rec.Date,
			AcuteLoad:       calcResult.AcuteLoad,
			ChronicLoad:     calcResult.ChronicLoad,
			Ratio:           calcResult.Ratio,
			ComputedAt:      time.Now(),
		}
		if writeEach {
			if err := p.store.WriteDerivedResult(ctx, dr); err != nil {
				return nil, nil, 0, 0, exception.NewInfrastructureError(moduleName,
					fmt.Sprintf("failed to write derived result for activity %s", rec.ActivityID), err)
			}
		} else {
			derived = append(derived, dr)
		}
		successful++
	}
	return derived, failures, successful, failed, nil
}

// processChunksParallel splits the records into near-equal chunks and runs
// processChunk concurrently. Results are merged under a mutex; chunk errors
// are collected and, if any chunk failed, the merged error aborts the batch.
func (p *Processor) processChunksParallel(ctx context.Context, records []model.ActivityRecord, job *model.MigrationJob, cfg model.Configuration, workers int, writeEach bool) ([]model.DerivedRecord, []string, int, int, error) {
	chunks := splitRecords(records, workers)

	var (
		wg         sync.WaitGroup
		mergeMu    sync.Mutex
		derived    []model.DerivedRecord
		failures   []string
		successful int
		failed     int
		chunkErrs  *multierror.Error
	)

	for _, chunk := range chunks {
		wg.Add(1)
		go func(chunk []model.ActivityRecord) {
			defer wg.Done()
			d, f, s, fl, err := p.processChunk(ctx, chunk, job, cfg, writeEach)
			mergeMu.Lock()
			defer mergeMu.Unlock()
			if err != nil {
				chunkErrs = multierror.Append(chunkErrs, err)
				return
			}
			derived = append(derived, d...)
			failures = append(failures, f...)
			successful += s
			failed += fl
		}(chunk)
	}
	wg.Wait()

	if err := chunkErrs.ErrorOrNil(); err != nil {
		return nil, nil, 0, 0, err
	}
	return derived, failures, successful, failed, nil
}

// splitRecords divides records into at most n contiguous chunks.
func splitRecords(records []model.ActivityRecord, n int) [][]model.ActivityRecord {
	if n <= 1 || len(records) <= 1 {
		return [][]model.ActivityRecord{records}
	}
	if n > len(records) {
		n = len(records)
	}
	chunkSize := (len(records) + n - 1) / n
	chunks := make([][]model.ActivityRecord, 0, n)
	for start := 0; start < len(records); start += chunkSize {
		end := min(start+chunkSize, len(records))
		chunks = append(chunks, records[start:end])
	}
	return chunks
}

// maybeCollectGarbage triggers an explicit GC on the strategy's cadence.
// The memory-optimized strategy cleans up every 5 batches regardless of the
// configured frequency.
func (p *Processor) maybeCollectGarbage(completedBatches int) {
	freq := p.cfg.AutoGCFrequency
	if p.cfg.Strategy == config.StrategyMemoryOptimized {
		freq = 5
	}
	if freq > 0 && completedBatches%freq == 0 {
		logger.Debugf("Triggering GC after %d batches.", completedBatches)
		runtime.GC()
	}
}

func (p *Processor) markBatchFailed(ctx context.Context, job *model.MigrationJob, batchNumber int, err error) {
	logger.Errorf("Migration %s: batch %d failed: %v", job.MigrationID, batchNumber, err)
	p.metricsMu.Lock()
	m := &p.runMetrics
	m.FailedBatches++
	if total := m.CompletedBatches + m.FailedBatches; total > 0 {
		m.ErrorRate = float64(m.FailedBatches) / float64(total)
	}
	p.metricsMu.Unlock()
	if p.recorder != nil {
		p.recorder.RecordBatchFailure(ctx, job.MigrationID, batchNumber)
	}
	if p.tracer != nil {
		p.tracer.RecordError(ctx, moduleName, err)
	}
	p.notify(ctx, model.NewProgressEvent(job, model.EventBatchFailed, batchNumber,
		exception.ExtractErrorMessage(err)))
}

func (p *Processor) notify(ctx context.Context, event model.ProgressEvent) {
	if p.notifier == nil {
		return
	}
	p.notifier.Notify(ctx, event)
}

func (p *Processor) resetMetrics(job *model.MigrationJob) {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	p.runMetrics = model.ProcessingMetrics{TotalBatches: job.TotalBatches}
}

// accumulateMetrics folds one batch result into the run metrics with
// cumulative averages, throughput and the batch-level error rate.
func (p *Processor) accumulateMetrics(result model.BatchResult) {
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()

	m := &p.runMetrics
	m.CompletedBatches++
	m.TotalRecordsProcessed += result.RecordsProcessed
	m.TotalProcessingTime += result.ProcessingTime
	if m.CompletedBatches > 0 {
		m.AverageBatchTime = m.TotalProcessingTime / time.Duration(m.CompletedBatches)
	}
	if secs := m.TotalProcessingTime.Seconds(); secs > 0 {
		m.ThroughputPerSecond = float64(m.TotalRecordsProcessed) / secs
	}
	if total := m.CompletedBatches + m.FailedBatches; total > 0 {
		m.ErrorRate = float64(m.FailedBatches) / float64(total)
	}
}

// finalizeMetrics stamps the resource peaks and averages observed during the
// run onto the run metrics.
func (p *Processor) finalizeMetrics() {
	if p.monitor == nil {
		return
	}
	st := p.monitor.Stats()
	p.metricsMu.Lock()
	defer p.metricsMu.Unlock()
	p.runMetrics.PeakMemoryPercent = st.PeakMemoryPercent
	p.runMetrics.AverageMemoryPercent = st.AverageMemoryPercent
	p.runMetrics.PeakCPUPercent = st.PeakCPUPercent
	p.runMetrics.AverageCPUPercent = st.AverageCPUPercent
}
