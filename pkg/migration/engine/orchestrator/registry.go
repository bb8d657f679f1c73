package orchestrator

import (
	"sync"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	"github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/engine/processor"
)

// Registry tracks active migration jobs and their control flags. Pause and
// cancel requests are recorded here and observed by the processor at batch
// boundaries; the registry itself never mutates job state.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	job    *model.MigrationJob
	pause  bool
	cancel bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds a job. Registering the same migration id twice replaces the
// stale entry; job ids are UUIDs so collisions do not occur in practice.
func (r *Registry) Register(job *model.MigrationJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[job.MigrationID] = &registryEntry{job: job}
}

// Get returns the registered job for a migration id.
func (r *Registry) Get(migrationID string) (*model.MigrationJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[migrationID]
	if !ok {
		return nil, false
	}
	return e.job, true
}

// List returns all registered jobs.
func (r *Registry) List() []*model.MigrationJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	jobs := make([]*model.MigrationJob, 0, len(r.entries))
	for _, e := range r.entries {
		jobs = append(jobs, e.job)
	}
	return jobs
}

// RequestPause flags a job for pausing at the next batch boundary. It
// reports whether the job exists and is currently running.
func (r *Registry) RequestPause(migrationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[migrationID]
	if !ok || e.job.Status != model.MigrationStatusRunning {
		return false
	}
	e.pause = true
	return true
}

// ClearPause removes a pending or effective pause request before a resume.
func (r *Registry) ClearPause(migrationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[migrationID]
	if !ok {
		return false
	}
	e.pause = false
	return true
}

// RequestCancel flags a job for cancellation at the next batch boundary (or
// immediately when the job is not running). It reports whether the job
// exists and is not already terminal.
func (r *Registry) RequestCancel(migrationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[migrationID]
	if !ok || e.job.Status.IsTerminal() {
		return false
	}
	e.cancel = true
	return true
}

// Remove drops a job from the registry.
func (r *Registry) Remove(migrationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, migrationID)
}

// Signal is the processor-facing control check. Cancel wins over pause.
func (r *Registry) Signal(migrationID string) processor.ControlSignal {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[migrationID]
	if !ok {
		return processor.ControlContinue
	}
	if e.cancel {
		return processor.ControlCancel
	}
	if e.pause {
		return processor.ControlPause
	}
	return processor.ControlContinue
}
