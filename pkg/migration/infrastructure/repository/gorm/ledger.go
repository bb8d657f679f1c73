package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	model "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/model"
	port "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/port"
)

// LedgerRepository is the GORM-backed migration/rollback ledger.
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a LedgerRepository over an open connection.
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

var _ port.LedgerRepository = (*LedgerRepository)(nil)

func (r *LedgerRepository) SaveMigration(ctx context.Context, job *model.MigrationJob) error {
	entity := fromDomainMigration(job)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "migration_id"}},
			UpdateAll: true,
		}).
		Create(&entity).Error
	if err != nil {
		return fmt.Errorf("failed to save migration ledger row %s: %w", job.MigrationID, err)
	}
	return nil
}

func (r *LedgerRepository) FindMigrationByID(ctx context.Context, migrationID string) (*model.MigrationJob, error) {
	var entity MigrationLedgerEntity
	err := r.db.WithContext(ctx).
		Where("migration_id = ?", migrationID).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, port.ErrMigrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load migration ledger row %s: %w", migrationID, err)
	}
	return toDomainMigration(entity), nil
}

func (r *LedgerRepository) AttachRollback(ctx context.Context, migrationID, rollbackID string) error {
	res := r.db.WithContext(ctx).
		Model(&MigrationLedgerEntity{}).
		Where("migration_id = ?", migrationID).
		Updates(map[string]interface{}{
			"rollback_id":        rollbackID,
			"rollback_timestamp": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to attach rollback %s to migration %s: %w", rollbackID, migrationID, res.Error)
	}
	if res.RowsAffected == 0 {
		return port.ErrMigrationNotFound
	}
	return nil
}

func (r *LedgerRepository) SaveRollback(ctx context.Context, execution *model.RollbackExecution) error {
	entity, err := fromDomainRollback(execution)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rollback_id"}},
			UpdateAll: true,
		}).
		Create(&entity).Error
	if err != nil {
		return fmt.Errorf("failed to save rollback ledger row %s: %w", execution.RollbackID, err)
	}
	return nil
}

func (r *LedgerRepository) FindRollbackByID(ctx context.Context, rollbackID string) (*model.RollbackExecution, error) {
	var entity RollbackLedgerEntity
	err := r.db.WithContext(ctx).
		Where("rollback_id = ?", rollbackID).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, port.ErrRollbackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rollback ledger row %s: %w", rollbackID, err)
	}
	return toDomainRollback(entity)
}

// ConfigurationService is the GORM-backed implementation of
// port.ConfigurationService.
type ConfigurationService struct {
	db *gorm.DB
}

// NewConfigurationService creates a ConfigurationService over an open
// connection.
func NewConfigurationService(db *gorm.DB) *ConfigurationService {
	return &ConfigurationService{db: db}
}

var _ port.ConfigurationService = (*ConfigurationService)(nil)

func (s *ConfigurationService) GetConfiguration(ctx context.Context, configurationID string) (*model.Configuration, error) {
	var entity ConfigurationEntity
	err := s.db.WithContext(ctx).
		Where("configuration_id = ?", configurationID).
		First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, port.ErrConfigurationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration %s: %w", configurationID, err)
	}
	return toDomainConfiguration(entity), nil
}
