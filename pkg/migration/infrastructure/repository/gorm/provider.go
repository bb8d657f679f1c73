// Package gorm provides the GORM-backed persistence adapters: the activity
// record store, the migration/rollback ledger and the configuration service,
// plus the named-connection provider they share. Dialect support is
// registered by the sqlite, mysql and postgres subpackages through the
// dialector registry so that importing a subpackage is all it takes to
// enable an engine.
package gorm

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	config "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/config"
	logger "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

// DialectorFactory builds a gorm.Dialector from a DatabaseConfig.
type DialectorFactory func(cfg DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database
// type. Registering the same type twice overwrites with a warning.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory for a database type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s", dbType)
	}
	return factory, nil
}

// Provider resolves named database connections from the root configuration,
// opening each at most once.
type Provider struct {
	cfg         *config.Config
	mu          sync.Mutex
	connections map[string]*gorm.DB
}

// NewProvider creates a Provider over the root configuration.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		cfg:         cfg,
		connections: make(map[string]*gorm.DB),
	}
}

// Resolve returns the connection registered under name, establishing it on
// first use.
func (p *Provider) Resolve(name string) (*gorm.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if db, ok := p.connections[name]; ok {
		return db, nil
	}

	raw, ok := p.cfg.Database[name]
	if !ok {
		return nil, fmt.Errorf("database configuration '%s' not found", name)
	}
	var dbConfig DatabaseConfig
	if err := mapstructure.Decode(raw, &dbConfig); err != nil {
		return nil, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}

	db, err := open(dbConfig)
	if err != nil {
		return nil, err
	}
	p.connections[name] = db
	logger.Infof("Established DB connection: %s (%s)", name, dbConfig.Type)
	return db, nil
}

// ResolveSQL returns the underlying *sql.DB for a named connection, used by
// the schema migrator.
func (p *Provider) ResolveSQL(name string) (*sql.DB, string, error) {
	raw, ok := p.cfg.Database[name]
	if !ok {
		return nil, "", fmt.Errorf("database configuration '%s' not found", name)
	}
	var dbConfig DatabaseConfig
	if err := mapstructure.Decode(raw, &dbConfig); err != nil {
		return nil, "", fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}

	db, err := p.Resolve(name)
	if err != nil {
		return nil, "", err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get underlying sql.DB for '%s': %w", name, err)
	}
	return sqlDB, dbConfig.Type, nil
}

// open establishes a GORM connection from a decoded DatabaseConfig. GORM's
// own logging stays silent; the application logger covers persistence.
func open(dbConfig DatabaseConfig) (*gorm.DB, error) {
	factory, err := GetDialectorFactory(dbConfig.Type)
	if err != nil {
		return nil, err
	}
	dialector, err := factory(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", dbConfig.Type, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if dbConfig.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.Pool.MaxOpenConns)
	}
	if dbConfig.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.Pool.MaxIdleConns)
	}
	if dbConfig.Pool.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return db, nil
}

// CloseAll closes every connection the provider has opened.
func (p *Provider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for name, db := range p.connections {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil {
			logger.Errorf("Failed to close connection '%s': %v", name, err)
			lastErr = err
		}
		delete(p.connections, name)
	}
	return lastErr
}
