package inmemory

import (
	"context"
	"sync"
	"time"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
)

// LedgerRepository is a thread-safe, map-backed implementation of
// port.LedgerRepository. Stored rows are copied on the way in and out so
// callers cannot mutate ledger state through shared pointers.
type LedgerRepository struct {
	mu         sync.RWMutex
	migrations map[string]model.MigrationJob
	rollbacks  map[string]model.RollbackExecution
}

// NewLedgerRepository creates an empty LedgerRepository.
func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{
		migrations: make(map[string]model.MigrationJob),
		rollbacks:  make(map[string]model.RollbackExecution),
	}
}

var _ port.LedgerRepository = (*LedgerRepository)(nil)

func (r *LedgerRepository) SaveMigration(_ context.Context, job *model.MigrationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.migrations[job.MigrationID] = *job
	return nil
}

func (r *LedgerRepository) FindMigrationByID(_ context.Context, migrationID string) (*model.MigrationJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.migrations[migrationID]
	if !ok {
		return nil, port.ErrMigrationNotFound
	}
	copied := job
	return &copied, nil
}

func (r *LedgerRepository) AttachRollback(_ context.Context, migrationID, rollbackID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.migrations[migrationID]
	if !ok {
		return port.ErrMigrationNotFound
	}
	job.Status = model.MigrationStatusRolledBack
	job.RollbackID = rollbackID
	now := time.Now()
	job.RollbackTimestamp = &now
	r.migrations[migrationID] = job
	return nil
}

func (r *LedgerRepository) SaveRollback(_ context.Context, execution *model.RollbackExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollbacks[execution.RollbackID] = *execution
	return nil
}

func (r *LedgerRepository) FindRollbackByID(_ context.Context, rollbackID string) (*model.RollbackExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.rollbacks[rollbackID]
	if !ok {
		return nil, port.ErrRollbackNotFound
	}
	copied := exec
	return &copied, nil
}

// ConfigurationService is a map-backed implementation of
// port.ConfigurationService.
type ConfigurationService struct {
	mu      sync.RWMutex
	configs map[string]model.Configuration
}

// NewConfigurationService creates a ConfigurationService with the given
// configurations.
func NewConfigurationService(configs ...model.Configuration) *ConfigurationService {
	svc := &ConfigurationService{configs: make(map[string]model.Configuration)}
	for _, c := range configs {
		svc.configs[c.ConfigurationID] = c
	}
	return svc
}

var _ port.ConfigurationService = (*ConfigurationService)(nil)

// Put registers or replaces a configuration.
func (s *ConfigurationService) Put(cfg model.Configuration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.ConfigurationID] = cfg
}

func (s *ConfigurationService) GetConfiguration(_ context.Context, configurationID string) (*model.Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[configurationID]
	if !ok {
		return nil, port.ErrConfigurationNotFound
	}
	copied := cfg
	return &copied, nil
}
